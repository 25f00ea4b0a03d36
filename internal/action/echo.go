package action

import (
	"context"
	"fmt"
)

// Echo is the default executor. It performs no side effect and describes
// the action it would have run.
var Echo Executor = ExecutorFunc(func(_ context.Context, inv Invocation) (any, error) {
	params := make(map[string]any, len(inv.Params))
	for k, v := range inv.Params {
		params[k] = v
	}
	return map[string]any{
		"action_executed": inv.Name,
		"message":         fmt.Sprintf("Custom action '%s' would be executed here", inv.Name),
		"parameters":      params,
	}, nil
})
