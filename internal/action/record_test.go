package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlgate/internal/testutil"
)

type memoryRecorder struct {
	runs []*Run
	err  error
}

func (m *memoryRecorder) RecordAction(_ context.Context, run *Run) error {
	m.runs = append(m.runs, run)
	return m.err
}

func TestRecording(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name       string
		next       Executor
		recErr     error
		wantStatus string
		wantErr    string
		wantResult string
	}{
		{
			name:       "success",
			next:       ExecutorFunc(func(context.Context, Invocation) (any, error) { return map[string]any{"ok": true}, nil }),
			wantStatus: StatusSuccess,
			wantResult: `{"ok":true}`,
		},
		{
			name:       "failure",
			next:       ExecutorFunc(func(context.Context, Invocation) (any, error) { return nil, errors.New("boom") }),
			wantStatus: StatusFailed,
			wantErr:    "boom",
		},
		{
			name:       "recorder failure does not fail action",
			next:       ExecutorFunc(func(context.Context, Invocation) (any, error) { return "done", nil }),
			recErr:     errors.New("disk full"),
			wantStatus: StatusSuccess,
			wantResult: `"done"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &memoryRecorder{err: tt.recErr}
			r := NewRecording(tt.next, rec, testutil.NewTestLogger(t))
			calls := 0
			r.now = func() time.Time {
				calls++
				return start.Add(time.Duration(calls-1) * time.Second)
			}

			_, err := r.Execute(context.Background(), Invocation{Name: "act", Parameter: "p", Params: map[string]string{"p": "1"}})
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			require.Len(t, rec.runs, 1)
			run := rec.runs[0]
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, "act", run.Name)
			assert.Equal(t, "p", run.Parameter)
			assert.Equal(t, tt.wantStatus, run.Status)
			assert.Equal(t, tt.wantErr, run.Error)
			assert.Equal(t, start, run.StartedAt)
			assert.Equal(t, time.Second, run.Duration)
			if tt.wantResult != "" {
				assert.JSONEq(t, tt.wantResult, string(run.Result))
			}
		})
	}
}
