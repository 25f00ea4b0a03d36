package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlgate/pkg/adapter"
	"github.com/leapstack-labs/sqlgate/pkg/core"
)

func TestAdapter_Connect(t *testing.T) {
	tests := []struct {
		name      string
		setupPath func(t *testing.T) string
		verify    func(t *testing.T, path string)
	}{
		{
			name:      "in-memory",
			setupPath: func(_ *testing.T) string { return "" },
		},
		{
			name: "file-based",
			setupPath: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "test.duckdb")
			},
			verify: func(t *testing.T, path string) {
				_, err := os.Stat(path)
				assert.False(t, os.IsNotExist(err), "database file was not created")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			adp := New(nil)

			dbPath := tt.setupPath(t)
			require.NoError(t, adp.Connect(ctx, core.AdapterConfig{Path: dbPath}))
			defer func() { _ = adp.Close() }()

			assert.True(t, adp.IsConnected())
			if tt.verify != nil {
				tt.verify(t, dbPath)
			}
		})
	}
}

func TestAdapter_QueryExecution(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, core.AdapterConfig{
		Params: map[string]any{"settings": map[string]any{"threads": 1}},
	}))
	defer func() { _ = adp.Close() }()

	rows, err := adp.Query(ctx, "SELECT 1 AS id, 'alice' AS name UNION ALL SELECT 2, 'bob' ORDER BY id")
	require.NoError(t, err)

	cols, result, err := adapter.ScanMaps(rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, cols)
	require.Len(t, result, 2)
	assert.Equal(t, "alice", result[0]["name"])
	assert.Equal(t, "bob", result[1]["name"])
}

func TestAdapter_ConnectInvalidParams(t *testing.T) {
	adp := New(nil)
	err := adp.Connect(context.Background(), core.AdapterConfig{Params: map[string]any{"bogus": true}})
	require.Error(t, err)
	assert.False(t, adp.IsConnected())
}

func TestAdapter_AttachRunsStatements(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	params := &Params{
		Extensions: []string{"httpfs"},
		Secrets:    []SecretConfig{{Type: "gcs", Provider: "credential_chain"}},
	}
	mock.ExpectExec("INSTALL httpfs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("LOAD httpfs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE OR REPLACE SECRET (TYPE gcs, PROVIDER credential_chain)")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	adp := New(nil)
	require.NoError(t, adp.attach(context.Background(), db, core.AdapterConfig{Type: Name}, params))
	assert.True(t, adp.IsConnected())
	assert.Equal(t, Name, adp.Cfg.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_AttachFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSTALL spatial").WillReturnError(assert.AnError)

	adp := New(nil)
	err = adp.attach(context.Background(), db, core.AdapterConfig{}, &Params{Extensions: []string{"spatial"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply duckdb params")
	assert.False(t, adp.IsConnected())
}

func TestAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)

	assert.Error(t, adp.Exec(ctx, "SELECT 1"))
	_, err := adp.Query(ctx, "SELECT 1")
	assert.Error(t, err)
	assert.NoError(t, adp.Close())
}
