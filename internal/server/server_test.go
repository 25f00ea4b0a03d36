package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlgate/internal/testutil"
	"github.com/leapstack-labs/sqlgate/pkg/adapter"
)

// mockExecutor runs queries against sqlmock.
type mockExecutor struct {
	adapter.BaseSQLAdapter
}

func (m *mockExecutor) Connect(context.Context, adapter.Config) error { return nil }

func gatewayFiles(upstreamURL string) map[string]string {
	return map[string]string{
		"config.yaml": `
name: Test Gateway
description: gateway under test
authors: [tester]
contact: ops@example.com
remotes:
  - api
`,
		"remotes/api.yaml": `
name: api
url: ` + upstreamURL + `
`,
		"databases/shop.yaml": `
tables:
  users: users.parquet
routes:
  - route: users
    sql: SELECT * FROM [[users]]
    query_params:
      - ping: {response: {pong: true}}
      - limit: {sql_append: 'LIMIT {{limit}}'}
  - route: users/{{id}}
    sql: SELECT * FROM [[users]] WHERE id = {{id}}
  - route: secure
    sql: SELECT * FROM [[users]]
    query_params:
      - token: {required: true}
`,
		"databases/catalog/1.0.yaml": `
tables:
  items: {uri: 's3://bucket/items.parquet', region: us-east-1}
routes:
  - route: items
    sql: SELECT 1 AS version
`,
		"databases/catalog/2.0.yaml": `
tables:
  items: {uri: 's3://bucket/items.parquet', region: us-east-1}
routes:
  - route: items
    sql: SELECT 2 AS version
`,
	}
}

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/text" {
			_, _ = w.Write([]byte("hello"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"path": r.URL.Path})
	}))
	t.Cleanup(up.Close)

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, gatewayFiles(up.URL))

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// catalog 1.0 and 2.0 each attach the S3 secret
	for range 2 {
		mock.ExpectExec("INSTALL aws").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("LOAD aws").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE OR REPLACE SECRET (TYPE s3, PROVIDER credential_chain, REGION 'us-east-1')").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	exec := &mockExecutor{BaseSQLAdapter: adapter.BaseSQLAdapter{DB: db, Logger: testutil.NewTestLogger(t)}}
	s, err := New(context.Background(), Options{
		ConfigDir:    dir,
		Executor:     exec,
		QueryTimeout: time.Second,
		Logger:       testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return s, mock
}

func do(t *testing.T, h http.Handler, method, target string) (int, any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return rec.Code, body
}

func TestServer_Metadata(t *testing.T) {
	s, mock := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantBody   any
	}{
		{
			name:       "root",
			target:     "/",
			wantStatus: http.StatusOK,
			wantBody: map[string]any{
				"name":        "Test Gateway",
				"description": "gateway under test",
				"authors":     []any{"tester"},
				"remotes":     []any{"api"},
				"databases":   []any{"catalog", "shop"},
			},
		},
		{
			name:       "config key",
			target:     "/contact",
			wantStatus: http.StatusOK,
			wantBody:   "ops@example.com",
		},
		{
			name:       "missing key",
			target:     "/nope",
			wantStatus: http.StatusNotFound,
			wantBody:   map[string]any{"error": "Configuration key 'nope' not found"},
		},
		{
			name:       "remote name as key",
			target:     "/api",
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]any{"error": "'api' is a remote name. Use /api/latest/ for remote API access."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, h, http.MethodGet, tt.target)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, body)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)

	status, body := do(t, s.Handler(), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, status)

	got := body.(map[string]any)
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, map[string]any{
		"catalog/1.0": map[string]any{"s3": true},
		"catalog/2.0": map[string]any{"s3": true},
		"shop":        map[string]any{"local": true},
	}, got["storage"])
	assert.NotEmpty(t, got["loaded_at"])
}

func TestServer_Database(t *testing.T) {
	s, mock := newTestServer(t)
	h := s.Handler()

	t.Run("query with append", func(t *testing.T) {
		mock.ExpectQuery("SELECT * FROM 'users.parquet' AS users LIMIT 5").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "ada").AddRow(2, "bob"))

		status, body := do(t, h, http.MethodGet, "/shop/users?limit=5")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, []any{
			map[string]any{"id": float64(1), "name": "ada"},
			map[string]any{"id": float64(2), "name": "bob"},
		}, body)
	})

	t.Run("path parameter on legacy route", func(t *testing.T) {
		mock.ExpectQuery("SELECT * FROM 'users.parquet' AS users WHERE id = '7'").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		status, body := do(t, h, http.MethodGet, "/shop/users/7")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, []any{}, body)
	})

	t.Run("short circuit", func(t *testing.T) {
		status, body := do(t, h, http.MethodGet, "/shop/users?ping=1")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, map[string]any{"pong": true}, body)
	})

	t.Run("required parameter", func(t *testing.T) {
		status, body := do(t, h, http.MethodGet, "/shop/secure")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, map[string]any{"error": "Required parameter 'token' is missing"}, body)
	})

	t.Run("unknown route", func(t *testing.T) {
		status, body := do(t, h, http.MethodGet, "/shop/nothing")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, map[string]any{"error": "Route 'nothing' not found in database 'shop'"}, body)
	})

	t.Run("query failure", func(t *testing.T) {
		mock.ExpectQuery("SELECT * FROM 'users.parquet' AS users LIMIT 1").WillReturnError(assert.AnError)

		status, body := do(t, h, http.MethodGet, "/shop/users?limit=1")
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.True(t, strings.HasPrefix(body.(map[string]any)["error"].(string), "Query execution failed: "))
	})

	t.Run("write methods are rejected", func(t *testing.T) {
		status, _ := do(t, h, http.MethodPost, "/shop/users")
		assert.Equal(t, http.StatusMethodNotAllowed, status)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServer_VersionedDatabase(t *testing.T) {
	s, mock := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name    string
		target  string
		wantSQL string
	}{
		{name: "explicit version", target: "/catalog/1.0/items", wantSQL: "SELECT 1 AS version"},
		{name: "latest keyword", target: "/catalog/latest/items", wantSQL: "SELECT 2 AS version"},
		{name: "implicit latest", target: "/catalog/items", wantSQL: "SELECT 2 AS version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectQuery(tt.wantSQL).WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
			status, _ := do(t, h, http.MethodGet, tt.target)
			assert.Equal(t, http.StatusOK, status)
		})
	}

	status, body := do(t, h, http.MethodGet, "/catalog/9/items")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, map[string]any{"error": "Version '9' of database 'catalog' not found"}, body)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServer_Proxy(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	status, body := do(t, h, http.MethodGet, "/api/latest/users/1")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"path": "/users/1"}, body)

	status, body = do(t, h, http.MethodGet, "/api/text")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello", body)

	status, body = do(t, h, http.MethodGet, "/unknown/thing")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, map[string]any{"error": "Remote 'unknown' not found"}, body)
}

func TestServer_Reload(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"config.yaml": "name: before\n"})

	s, err := New(context.Background(), Options{ConfigDir: dir, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	h := s.Handler()

	events := s.Subscribe()
	defer s.Unsubscribe(events)

	testutil.WriteFiles(t, dir, map[string]string{"config.yaml": "name: after\n"})
	require.NoError(t, s.Reload(context.Background()))
	assert.NoError(t, (<-events).Err)

	_, body := do(t, h, http.MethodGet, "/")
	assert.Equal(t, "after", body.(map[string]any)["name"])

	// a broken document keeps the previous snapshot
	testutil.WriteFiles(t, dir, map[string]string{"config.yaml": "name: [unclosed\n"})
	require.Error(t, s.Reload(context.Background()))
	assert.Error(t, (<-events).Err)

	_, body = do(t, h, http.MethodGet, "/")
	assert.Equal(t, "after", body.(map[string]any)["name"])
}

func TestServer_Watch(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"config.yaml": "name: before\n"})

	s, err := New(context.Background(), Options{ConfigDir: dir, Watch: true, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)

	events := s.Subscribe()
	defer s.Unsubscribe(events)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// The watcher may not be registered yet; keep touching the file.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("name: watched\n"), 0o600))
		select {
		case ev := <-events:
			require.NoError(t, ev.Err)
			assert.Equal(t, "watched", s.current().gateway.Main.Name)
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("no reload after config change")
		}
	}
}

func TestNew_MissingConfig(t *testing.T) {
	_, err := New(context.Background(), Options{ConfigDir: t.TempDir()})
	require.Error(t, err)
}
