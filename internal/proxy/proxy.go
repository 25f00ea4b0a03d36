// Package proxy forwards gateway requests to configured remote APIs.
//
// A request for /{remote}/{path} has an optional version segment stripped
// from path, is checked against the remote's access lists, and is then sent
// to the remote's URL. JSON upstream bodies are relayed as JSON; anything
// else is relayed as a string.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/leapstack-labs/sqlgate/internal/config"
	"github.com/leapstack-labs/sqlgate/internal/route"
	"github.com/leapstack-labs/sqlgate/pkg/core"
)

// DefaultTimeout applies to remotes without a timeout setting.
const DefaultTimeout = 30 * time.Second

// Methods lists the HTTP methods the proxy accepts.
var Methods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Proxy sends requests to remote APIs.
type Proxy struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a proxy. A nil client uses a fresh http.Client; a nil logger
// discards output.
func New(client *http.Client, logger *slog.Logger) *Proxy {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Proxy{client: client, timeout: DefaultTimeout, logger: logger}
}

// Response is a relayed upstream answer.
// Body is a json.RawMessage for JSON upstream bodies and a string otherwise.
type Response struct {
	Status int
	Body   any
}

// Target is the resolved destination of a proxied request.
type Target struct {
	Remote  *config.RemoteConfig
	Path    string
	Version string
	URL     string
}

// Resolve finds the remote, strips the version prefix, applies access
// lists and builds the upstream URL.
func Resolve(g *config.Gateway, remoteName, path string) (*Target, error) {
	rc, ok := g.Remote(remoteName)
	if !ok {
		return nil, core.Errorf(core.KindConfigNotFound, "Remote '%s' not found", remoteName)
	}

	actual, version := route.StripVersion(path)

	global := route.AccessList{Allow: g.Main.Routes, Deny: g.Main.Restricted}
	remote := route.AccessList{Allow: rc.Routes, Deny: rc.Restricted}
	if !route.Resolve(remote, global).Allowed(actual) {
		return nil, core.Errorf(core.KindRouteNotAllowed, "Route '%s' not allowed for remote '%s'", actual, remoteName)
	}

	if rc.LoadErr != nil {
		return nil, &core.Error{
			Kind:    core.KindConfigNotFound,
			Message: fmt.Sprintf("Configuration for remote '%s' not found", remoteName),
			Err:     rc.LoadErr,
		}
	}
	if rc.URL == "" {
		return nil, core.Errorf(core.KindInternal, "No URL configured for remote '%s'", remoteName)
	}

	url := strings.TrimRight(rc.URL, "/")
	if actual != "" {
		url += "/" + actual
	}
	return &Target{Remote: rc, Path: actual, Version: version, URL: url}, nil
}

// Forward resolves the target for remoteName and path and relays req to it.
func (p *Proxy) Forward(ctx context.Context, g *config.Gateway, remoteName, path string, req *http.Request) (*Response, error) {
	target, err := Resolve(g, remoteName, path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeoutFor(target.Remote))
	defer cancel()

	url := target.URL
	if req.URL.RawQuery != "" {
		url += "?" + req.URL.RawQuery
	}

	var body io.Reader
	switch req.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		body = req.Body
	}

	out, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, core.Wrap(core.KindInternal, err, "Internal server error")
	}
	out.Header = forwardHeaders(req.Header)
	for k, v := range target.Remote.Headers {
		out.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := p.client.Do(out)
	if err != nil {
		p.logger.Warn("remote request failed",
			slog.String("remote", remoteName),
			slog.String("url", target.URL),
			slog.String("error", err.Error()))
		return nil, core.Wrap(core.KindUpstreamConnection, err, "Error connecting to remote API")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.Wrap(core.KindUpstreamConnection, err, "Error connecting to remote API")
	}

	p.logger.Debug("remote request",
		slog.String("remote", remoteName),
		slog.String("method", req.Method),
		slog.String("path", target.Path),
		slog.String("version", target.Version),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	if isJSON(resp.Header.Get("Content-Type")) {
		if !json.Valid(data) {
			return nil, core.Wrap(core.KindInternal, errors.New("invalid JSON from remote"), "Internal server error")
		}
		return &Response{Status: resp.StatusCode, Body: json.RawMessage(data)}, nil
	}
	return &Response{Status: resp.StatusCode, Body: string(data)}, nil
}

func (p *Proxy) timeoutFor(rc *config.RemoteConfig) time.Duration {
	if rc.Timeout == "" {
		return p.timeout
	}
	d, err := time.ParseDuration(rc.Timeout)
	if err != nil || d <= 0 {
		p.logger.Warn("invalid remote timeout, using default",
			slog.String("remote", rc.Name), slog.String("timeout", rc.Timeout))
		return p.timeout
	}
	return d
}

// forwardHeaders copies h without hop-by-hop headers, headers named in
// Connection, Host and Accept-Encoding.
func forwardHeaders(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		return http.Header{}
	}
	for _, name := range h.Values("Connection") {
		for _, token := range strings.Split(name, ",") {
			if t := strings.TrimSpace(token); httpguts.ValidHeaderFieldName(t) {
				out.Del(t)
			}
		}
	}
	for _, name := range hopHeaders {
		out.Del(name)
	}
	out.Del("Host")
	out.Del("Content-Length")
	out.Del("Accept-Encoding")
	return out
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(contentType, "application/json")
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
