package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/leapstack-labs/sqlgate/internal/action"
	"github.com/leapstack-labs/sqlgate/pkg/core"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
// A nil logger discards output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the database at path and applies migrations.
// Use ":memory:" for an in-memory database.
func Open(path string, logger *slog.Logger) (*SQLiteStore, error) {
	s := NewSQLiteStore(logger)
	if err := s.Open(path); err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Open opens a connection to the SQLite database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("state store opened", slog.String("path", path))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// RecordAction stores one action run.
func (s *SQLiteStore) RecordAction(ctx context.Context, run *action.Run) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("failed to encode action params: %w", err)
	}

	var errMsg, result *string
	if run.Error != "" {
		errMsg = &run.Error
	}
	if len(run.Result) > 0 {
		r := string(run.Result)
		result = &r
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO action_runs (id, name, parameter, params, status, error, result, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, run.Parameter, string(params), run.Status, errMsg, result,
		run.StartedAt.UTC(), run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record action run: %w", err)
	}

	s.logger.Debug("action run recorded", slog.String("id", run.ID), slog.String("action", run.Name))
	return nil
}

const runColumns = `id, name, parameter, params, status, error, result, started_at, duration_ms`

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*action.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM action_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.Errorf(core.KindConfigNotFound, "action run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs up to limit, newest first.
// A non-positive limit returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*action.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM action_runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list action runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []*action.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list action runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*action.Run, error) {
	var (
		run        action.Run
		params     string
		errMsg     sql.NullString
		result     sql.NullString
		durationMS int64
	)
	if err := row.Scan(&run.ID, &run.Name, &run.Parameter, &params, &run.Status,
		&errMsg, &result, &run.StartedAt, &durationMS); err != nil {
		return nil, err
	}

	if params != "" {
		if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
			return nil, fmt.Errorf("failed to decode action params: %w", err)
		}
	}
	run.Error = errMsg.String
	if result.Valid {
		run.Result = json.RawMessage(result.String)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}
