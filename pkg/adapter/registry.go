package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/leapstack-labs/sqlgate/pkg/core"
)

// Factory builds an unconnected executor. The gateway calls it once per
// serve or resolve run and connects the result to the configured database.
type Factory func(*slog.Logger) Adapter

var (
	executorsMu sync.RWMutex
	executors   = make(map[string]Factory)
)

// Register makes an executor type selectable by name. Executor packages call
// it from init(), so a blank import is enough to enable one.
// Registering a name twice replaces the earlier factory.
func Register(name string, factory Factory) {
	executorsMu.Lock()
	defer executorsMu.Unlock()
	executors[name] = factory
}

// Get returns the factory registered under name.
func Get(name string) (Factory, bool) {
	executorsMu.RLock()
	defer executorsMu.RUnlock()
	f, ok := executors[name]
	return f, ok
}

// NewAdapter builds the executor selected by cfg.Type. The result is not
// connected yet; callers run Connect with the same config.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{
			Type:      cfg.Type,
			Available: ListAdapters(),
		}
	}
	return factory(logger), nil
}

// ListAdapters returns the registered executor names, sorted.
func ListAdapters() []string {
	executorsMu.RLock()
	defer executorsMu.RUnlock()
	names := make([]string, 0, len(executors))
	for name := range executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether an executor type is available.
func IsRegistered(name string) bool {
	executorsMu.RLock()
	defer executorsMu.RUnlock()
	_, ok := executors[name]
	return ok
}

// UnknownAdapterError reports an executor type no package registered,
// usually a typo in the duckdb settings or a missing blank import.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown executor type %q (registered: %v); check the database settings in sqlgate.yaml", e.Type, e.Available)
}
