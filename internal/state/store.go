// Package state persists the gateway's action invocation log in SQLite.
package state

import (
	"context"

	"github.com/leapstack-labs/sqlgate/internal/action"
)

// Store is the action log.
type Store interface {
	action.Recorder

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*action.Run, error)
	// GetRun returns one run by ID.
	GetRun(ctx context.Context, id string) (*action.Run, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
