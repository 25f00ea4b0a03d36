package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlgate/internal/testutil"
)

func TestScriptExecutor(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"notify.star": `result = {"sent_to": options["channel"], "user": params["user"], "via": action.parameter}`,
		"broken.star": `result = params["nope"]`,
	})

	exec := NewScriptExecutor(dir, Echo, testutil.NewTestLogger(t))

	t.Run("runs script", func(t *testing.T) {
		got, err := exec.Execute(context.Background(), Invocation{
			Name:      "notify",
			Parameter: "alert",
			Options:   map[string]any{"channel": "ops"},
			Params:    map[string]string{"user": "ann"},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"sent_to": "ops", "user": "ann", "via": "alert"}, got)
	})

	t.Run("script error", func(t *testing.T) {
		_, err := exec.Execute(context.Background(), Invocation{Name: "broken", Params: map[string]string{}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken.star")
	})

	t.Run("missing script falls through", func(t *testing.T) {
		got, err := exec.Execute(context.Background(), Invocation{Name: "absent"})
		require.NoError(t, err)
		assert.Equal(t, "absent", got.(map[string]any)["action_executed"])
	})

	t.Run("path-like names never load scripts", func(t *testing.T) {
		got, err := exec.Execute(context.Background(), Invocation{Name: "../notify"})
		require.NoError(t, err)
		assert.Equal(t, "../notify", got.(map[string]any)["action_executed"])
	})

	t.Run("no next", func(t *testing.T) {
		bare := NewScriptExecutor(dir, nil, nil)
		_, err := bare.Execute(context.Background(), Invocation{Name: "../x"})
		var unknown *UnknownActionError
		assert.ErrorAs(t, err, &unknown)
	})
}
