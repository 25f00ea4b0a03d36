package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/sqlgate/internal/config"
	"github.com/leapstack-labs/sqlgate/internal/engine"
	"github.com/leapstack-labs/sqlgate/internal/route"
	"github.com/leapstack-labs/sqlgate/pkg/adapter"
	"github.com/leapstack-labs/sqlgate/pkg/core"
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	g := s.current().gateway
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        g.Main.Name,
		"description": g.Main.Description,
		"authors":     g.Main.Authors,
		"remotes":     nonNil(g.RemoteNames()),
		"databases":   nonNil(g.DatabaseNames()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.current()
	status := "ok"
	if !snap.ok() {
		status = "degraded"
	}
	backends := make(map[string]map[string]bool, len(snap.storage))
	for db, st := range snap.storage {
		backends[db] = st.Strings()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"storage":   backends,
		"loaded_at": snap.loadedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	g := s.current().gateway

	if g.IsRemote(key) {
		writeError(w, r, http.StatusBadRequest,
			fmt.Sprintf("'%s' is a remote name. Use /%s/latest/ for remote API access.", key, key))
		return
	}
	v, ok := g.Value(key)
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("Configuration key '%s' not found", key))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleDispatch routes /{name}/* to the remote proxy or a database.
// Remote names take precedence over database names.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path := chi.URLParam(r, "*")
	g := s.current().gateway

	if _, isDB := g.DatabaseSet(name); isDB && !g.IsRemote(name) {
		if r.Method != http.MethodGet {
			writeError(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed", r.Method))
			return
		}
		s.handleDatabase(w, r, g, name, path)
		return
	}

	resp, err := s.proxy.Forward(r.Context(), g, name, path, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if text, ok := resp.Body.(string); ok {
		// Non-JSON upstream bodies are relayed as JSON strings.
		writeJSON(w, resp.Status, text)
		return
	}
	writeJSON(w, resp.Status, resp.Body)
}

func (s *Server) handleDatabase(w http.ResponseWriter, r *http.Request, g *config.Gateway, name, path string) {
	start := time.Now()
	version, path := splitVersion(g, name, path)

	db, err := g.Database(name, version)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	plan, err := engine.Resolve(r.Context(), db, path, queryParams(r), s.opts.Engine)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if plan.Response != nil {
		s.logger.Debug("request short-circuited",
			slog.String("database", name),
			slog.String("path", path),
			slog.Int("status", plan.Response.Status))
		writeJSON(w, plan.Response.Status, plan.Response.Body)
		return
	}

	rows, err := s.query(r.Context(), plan.SQL)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.logger.Info("database request",
		slog.String("database", name),
		slog.String("version", db.Version),
		slog.String("route", plan.Route.Route),
		slog.Int("rows", len(rows)),
		slog.Duration("elapsed", time.Since(start)))
	writeJSON(w, http.StatusOK, rows)
}

// query executes sql and returns every row.
func (s *Server) query(ctx context.Context, sql string) ([]map[string]any, error) {
	if s.opts.Executor == nil {
		return nil, core.Errorf(core.KindInternal, "No query executor configured")
	}
	if s.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.QueryTimeout)
		defer cancel()
	}

	s.logger.Debug("executing query", slog.String("sql", sql))
	rows, err := s.opts.Executor.Query(ctx, sql)
	if err != nil {
		return nil, queryError(err)
	}
	_, result, err := adapter.ScanMaps(rows)
	if err != nil {
		return nil, queryError(err)
	}
	return result, nil
}

func queryError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.Wrap(core.KindInternal, err, "Query timed out")
	}
	return core.Wrap(core.KindInternal, err, "Query execution failed")
}

// splitVersion takes the version segment off path for versioned databases.
// A first segment that is "latest" or a loaded version selects that
// version; otherwise the latest version serves the whole path.
func splitVersion(g *config.Gateway, name, path string) (version, rest string) {
	set, ok := g.DatabaseSet(name)
	if !ok || !set.Versioned {
		return "", path
	}
	first, tail, _ := strings.Cut(strings.Trim(path, "/"), "/")
	if _, loaded := set.Versions[first]; loaded || route.IsVersion(first) {
		return first, tail
	}
	return "latest", path
}

// queryParams flattens the query string, keeping the first value of each key.
func queryParams(r *http.Request) map[string]string {
	q := r.URL.Query()
	params := make(map[string]string, len(q))
	for k, vs := range q {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	return params
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
