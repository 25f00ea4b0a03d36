package starlark

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const cancelledKey = "sqlgate.cancelled"

// ResultGlobal is the global a script assigns its return value to.
const ResultGlobal = "result"

// ScriptError wraps a failure while executing a script.
type ScriptError struct {
	File  string
	Cause error
}

func (e *ScriptError) Error() string {
	var evalErr *starlark.EvalError
	if errors.As(e.Cause, &evalErr) {
		return fmt.Sprintf("%s: %s", e.File, evalErr.Backtrace())
	}
	return fmt.Sprintf("%s: %v", e.File, e.Cause)
}

func (e *ScriptError) Unwrap() error { return e.Cause }

// Run executes src with the given predeclared globals and returns the
// converted value of the script's "result" global (nil when unset).
// The script is cancelled when ctx is done.
func Run(ctx context.Context, pool *ThreadPool, filename string, src []byte, predeclared starlark.StringDict) (any, error) {
	thread := pool.Get(filename)

	var cancelled atomic.Bool
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, filename, src, predeclared)
	close(done)
	<-stopped
	if cancelled.Load() {
		thread.SetLocal(cancelledKey, true)
	}
	pool.Put(thread)

	if err != nil {
		return nil, &ScriptError{File: filename, Cause: err}
	}

	v, ok := globals[ResultGlobal]
	if !ok {
		return nil, nil
	}
	out, err := ToGo(v)
	if err != nil {
		return nil, &ScriptError{File: filename, Cause: err}
	}
	return out, nil
}
