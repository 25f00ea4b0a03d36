package action

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Run is the record of one action invocation.
type Run struct {
	ID        string
	Name      string
	Parameter string
	Params    map[string]string
	Status    string
	Error     string
	Result    json.RawMessage
	StartedAt time.Time
	Duration  time.Duration
}

// Recorder persists action runs.
type Recorder interface {
	RecordAction(ctx context.Context, run *Run) error
}

// Recording wraps an executor and records every invocation.
// Recording failures are logged and never fail the action.
type Recording struct {
	next     Executor
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewRecording wraps next with recorder.
func NewRecording(next Executor, recorder Recorder, logger *slog.Logger) *Recording {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recording{next: next, recorder: recorder, logger: logger, now: time.Now}
}

// Execute runs the wrapped executor and records the outcome.
func (r *Recording) Execute(ctx context.Context, inv Invocation) (any, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Name:      inv.Name,
		Parameter: inv.Parameter,
		Params:    inv.Params,
		StartedAt: r.now(),
	}

	result, err := r.next.Execute(ctx, inv)
	run.Duration = r.now().Sub(run.StartedAt)

	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
	} else {
		run.Status = StatusSuccess
		if data, mErr := json.Marshal(result); mErr == nil {
			run.Result = data
		} else {
			r.logger.Warn("action result is not JSON serializable",
				slog.String("action", inv.Name), slog.String("error", mErr.Error()))
		}
	}

	// Record with a context that survives request cancellation.
	if recErr := r.recorder.RecordAction(context.WithoutCancel(ctx), run); recErr != nil {
		r.logger.Warn("failed to record action run",
			slog.String("action", inv.Name), slog.String("error", recErr.Error()))
	}
	return result, err
}
