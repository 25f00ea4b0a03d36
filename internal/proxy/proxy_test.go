package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlgate/internal/config"
	"github.com/leapstack-labs/sqlgate/internal/testutil"
	"github.com/leapstack-labs/sqlgate/pkg/core"
)

// upstream echoes the request it receives as JSON.
func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/text", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "plain body")
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, "{not json")
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"method":  r.Method,
			"path":    r.URL.Path,
			"query":   r.URL.RawQuery,
			"body":    string(body),
			"token":   r.Header.Get("X-Api-Key"),
			"client":  r.Header.Get("X-Client"),
			"hop":     r.Header.Get("X-Hop"),
			"upgrade": r.Header.Get("Upgrade"),
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func loadGateway(t *testing.T, url string) *config.Gateway {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"config.yaml": `
name: test
restricted:
  - users/<>/delete
remotes:
  - api
  - billing
  - ghost
  - name: nourl
  - name: limited
    url: ` + url + `
    routes:
      - users/<>
  - name: slow
    url: ` + url + `
    timeout: 50ms
databases: []
`,
		"remotes/billing.yaml": `
name: invoices
url: http://billing.test
`,
		"remotes/api.yaml": `
name: api
url: ` + url + `/
headers:
  X-Api-Key: secret
`,
	})
	g, err := config.Load(dir, testutil.NewTestLogger(t))
	require.NoError(t, err)
	return g
}

func TestResolve(t *testing.T) {
	g := loadGateway(t, "http://upstream.test")

	tests := []struct {
		name        string
		remote      string
		path        string
		wantURL     string
		wantVersion string
		wantKind    core.ErrorKind
		wantMsg     string
	}{
		{name: "plain path", remote: "api", path: "users/1", wantURL: "http://upstream.test/users/1"},
		{name: "latest prefix", remote: "api", path: "latest/users/1", wantURL: "http://upstream.test/users/1", wantVersion: "latest"},
		{name: "numeric prefix", remote: "api", path: "2/users", wantURL: "http://upstream.test/users", wantVersion: "2"},
		{name: "empty path", remote: "api", path: "latest", wantURL: "http://upstream.test", wantVersion: "latest"},
		{name: "file name alias", remote: "billing", path: "users", wantURL: "http://billing.test/users"},
		{
			name: "path fragment is not an alias", remote: "remotes", path: "users",
			wantKind: core.KindConfigNotFound, wantMsg: "Remote 'remotes' not found",
		},
		{
			name: "single letter is not an alias", remote: "i", path: "anything",
			wantKind: core.KindConfigNotFound, wantMsg: "Remote 'i' not found",
		},
		{
			name: "unknown remote", remote: "nope", path: "users",
			wantKind: core.KindConfigNotFound, wantMsg: "Remote 'nope' not found",
		},
		{
			name: "global deny list", remote: "api", path: "latest/users/1/delete",
			wantKind: core.KindRouteNotAllowed, wantMsg: "Route 'users/1/delete' not allowed for remote 'api'",
		},
		{
			name: "remote allow list", remote: "limited", path: "orders",
			wantKind: core.KindRouteNotAllowed, wantMsg: "Route 'orders' not allowed for remote 'limited'",
		},
		{
			name: "remote allow list wins over global deny", remote: "limited", path: "users/7",
			wantURL: "http://upstream.test/users/7",
		},
		{
			name: "unreadable remote file", remote: "ghost", path: "users",
			wantKind: core.KindConfigNotFound, wantMsg: "Configuration for remote 'ghost' not found",
		},
		{
			name: "missing url", remote: "nourl", path: "users",
			wantKind: core.KindInternal, wantMsg: "No URL configured for remote 'nourl'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := Resolve(g, tt.remote, tt.path)
			if tt.wantMsg != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, core.KindOf(err))
				assert.Equal(t, tt.wantMsg, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, target.URL)
			assert.Equal(t, tt.wantVersion, target.Version)
		})
	}
}

func TestForward(t *testing.T) {
	srv := upstream(t)
	g := loadGateway(t, srv.URL)
	p := New(srv.Client(), testutil.NewTestLogger(t))

	t.Run("json relay with headers and query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/latest/users/1?active=true", nil)
		req.Header.Set("X-Client", "cli")
		req.Header.Set("Connection", "X-Hop")
		req.Header.Set("X-Hop", "drop me")
		req.Header.Set("Upgrade", "h2c")

		resp, err := p.Forward(context.Background(), g, "api", "latest/users/1", req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)

		raw, ok := resp.Body.(json.RawMessage)
		require.True(t, ok, "expected raw JSON body, got %T", resp.Body)
		var got map[string]string
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "GET", got["method"])
		assert.Equal(t, "/users/1", got["path"])
		assert.Equal(t, "active=true", got["query"])
		assert.Equal(t, "secret", got["token"])
		assert.Equal(t, "cli", got["client"])
		assert.Empty(t, got["hop"])
		assert.Empty(t, got["upgrade"])
	})

	t.Run("post body and upstream status", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{"name":"ada"}`))
		resp, err := p.Forward(context.Background(), g, "api", "users", req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.Status)
		assert.Contains(t, string(resp.Body.(json.RawMessage)), `"body":"{\"name\":\"ada\"}"`)
	})

	t.Run("text relay", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/text", nil)
		resp, err := p.Forward(context.Background(), g, "api", "text", req)
		require.NoError(t, err)
		assert.Equal(t, "plain body", resp.Body)
	})

	t.Run("invalid json from upstream", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/broken", nil)
		_, err := p.Forward(context.Background(), g, "api", "broken", req)
		require.Error(t, err)
		assert.Equal(t, core.KindInternal, core.KindOf(err))
	})

	t.Run("remote timeout", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/slow/slow", nil)
		_, err := p.Forward(context.Background(), g, "slow", "slow", req)
		require.Error(t, err)
		assert.Equal(t, core.KindUpstreamConnection, core.KindOf(err))
		assert.True(t, strings.HasPrefix(err.Error(), "Error connecting to remote API: "))
	})

	t.Run("access denied never reaches upstream", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/users/1/delete", nil)
		_, err := p.Forward(context.Background(), g, "api", "users/1/delete", req)
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, core.HTTPStatus(core.KindOf(err)))
	})
}

func TestForward_UpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := loadGateway(t, url)
	p := New(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	_, err := p.Forward(context.Background(), g, "api", "users", req)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, core.HTTPStatus(core.KindOf(err)))
	assert.Contains(t, err.Error(), "Error connecting to remote API: ")
}

func TestIsJSON(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"application/problem+json", true},
		{"text/plain", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, isJSON(tt.contentType))
		})
	}
}
