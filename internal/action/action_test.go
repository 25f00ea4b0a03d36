package action

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlgate/internal/testutil"
)

func TestEcho(t *testing.T) {
	got, err := Echo.Execute(context.Background(), Invocation{
		Name:   "send_email",
		Params: map[string]string{"notify": "yes", "id": "7"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"action_executed": "send_email",
		"message":         "Custom action 'send_email' would be executed here",
		"parameters":      map[string]any{"notify": "yes", "id": "7"},
	}, got)
}

func TestRegistry_Execute(t *testing.T) {
	custom := ExecutorFunc(func(_ context.Context, inv Invocation) (any, error) {
		return "custom:" + inv.Parameter, nil
	})

	tests := []struct {
		name     string
		fallback Executor
		inv      Invocation
		want     any
		wantErr  bool
	}{
		{
			name: "registered",
			inv:  Invocation{Name: "custom", Parameter: "p"},
			want: "custom:p",
		},
		{
			name:     "fallback",
			fallback: ExecutorFunc(func(context.Context, Invocation) (any, error) { return "fallback", nil }),
			inv:      Invocation{Name: "other"},
			want:     "fallback",
		},
		{
			name:    "no fallback",
			inv:     Invocation{Name: "other"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(tt.fallback, testutil.NewTestLogger(t))
			reg.Register("custom", custom)

			got, err := reg.Execute(context.Background(), tt.inv)
			if tt.wantErr {
				var unknown *UnknownActionError
				require.ErrorAs(t, err, &unknown)
				assert.Equal(t, "other", unknown.Name)
				assert.Equal(t, []string{"custom"}, unknown.Available)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_Names(t *testing.T) {
	reg := NewRegistry(nil, nil)
	reg.Register("b", Echo)
	reg.Register("a", Echo)

	assert.Equal(t, []string{"a", "b"}, reg.Names())
	_, ok := reg.Get("a")
	assert.True(t, ok)
	_, ok = reg.Get("c")
	assert.False(t, ok)
}

func TestExecutorFunc_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := ExecutorFunc(func(context.Context, Invocation) (any, error) { return nil, boom }).
		Execute(context.Background(), Invocation{})
	assert.ErrorIs(t, err, boom)
}
