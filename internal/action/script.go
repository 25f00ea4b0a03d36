package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sqlgate/internal/starlark"
)

// ScriptExtension is the file extension of action scripts.
const ScriptExtension = ".star"

// ScriptExecutor runs <Dir>/<name>.star for each action. Names without a
// script go to Next.
type ScriptExecutor struct {
	Dir  string
	Next Executor

	pool   *starlark.ThreadPool
	logger *slog.Logger
}

// NewScriptExecutor creates a script executor over dir.
func NewScriptExecutor(dir string, next Executor, logger *slog.Logger) *ScriptExecutor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ScriptExecutor{
		Dir:    dir,
		Next:   next,
		pool:   starlark.NewThreadPool(0, logger),
		logger: logger,
	}
}

// Execute runs the script for inv.Name.
func (s *ScriptExecutor) Execute(ctx context.Context, inv Invocation) (any, error) {
	path, ok := s.scriptPath(inv.Name)
	if !ok {
		if s.Next == nil {
			return nil, &UnknownActionError{Name: inv.Name}
		}
		return s.Next.Execute(ctx, inv)
	}

	src, err := os.ReadFile(path) //nolint:gosec // script names are validated by scriptPath
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && s.Next != nil {
			return s.Next.Execute(ctx, inv)
		}
		return nil, fmt.Errorf("failed to read action script: %w", err)
	}

	predeclared, err := starlark.Predeclared(
		&starlark.ActionInfo{Name: inv.Name, Parameter: inv.Parameter},
		inv.Params,
		inv.Options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build script globals: %w", err)
	}

	s.logger.Debug("running action script", slog.String("action", inv.Name), slog.String("path", path))
	return starlark.Run(ctx, s.pool, filepath.Base(path), src, predeclared)
}

// scriptPath returns the script file for name. Names that are not a plain
// file name never map to a script.
func (s *ScriptExecutor) scriptPath(name string) (string, bool) {
	if s.Dir == "" || name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", false
	}
	return filepath.Join(s.Dir, name+ScriptExtension), true
}
