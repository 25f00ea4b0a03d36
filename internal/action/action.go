// Package action dispatches the named side effects that parameter rules
// can trigger.
//
// Executors are looked up by name in a Registry. Names without a
// registered executor fall through to Starlark scripts (when an actions
// directory is configured) and finally to the echo executor.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Invocation is one action dispatch from the parameter pipeline.
type Invocation struct {
	// Name is the action name from the rule.
	Name string
	// Options holds the extra keys of a mapping-form action.
	Options map[string]any
	// Parameter is the query parameter whose rule triggered the action.
	Parameter string
	// Params is the combined request mapping at dispatch time.
	Params map[string]string
}

// Executor runs an action and returns its JSON-serializable result.
type Executor interface {
	Execute(ctx context.Context, inv Invocation) (any, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, inv Invocation) (any, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, inv Invocation) (any, error) {
	return f(ctx, inv)
}

// Registry maps action names to executors.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Executor
	fallback Executor
	logger   *slog.Logger
}

// NewRegistry creates a registry whose unknown names go to fallback.
// A nil fallback makes unknown names fail with UnknownActionError.
func NewRegistry(fallback Executor, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		handlers: make(map[string]Executor),
		fallback: fallback,
		logger:   logger,
	}
}

// Register adds or replaces the executor for name.
func (r *Registry) Register(name string, e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = e
}

// Get returns the executor registered for name.
func (r *Registry) Get(name string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.handlers[name]
	return e, ok
}

// Names returns registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute dispatches inv to the executor registered under inv.Name,
// or to the fallback.
func (r *Registry) Execute(ctx context.Context, inv Invocation) (any, error) {
	e, ok := r.Get(inv.Name)
	if !ok {
		if r.fallback == nil {
			return nil, &UnknownActionError{Name: inv.Name, Available: r.Names()}
		}
		e = r.fallback
	}

	r.logger.Debug("dispatching action",
		slog.String("action", inv.Name),
		slog.String("parameter", inv.Parameter),
		slog.Bool("registered", ok))
	return e.Execute(ctx, inv)
}

// UnknownActionError is returned when no executor can serve an action name.
type UnknownActionError struct {
	Name      string
	Available []string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q\nAvailable actions: %v", e.Name, e.Available)
}
