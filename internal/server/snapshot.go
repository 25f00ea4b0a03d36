package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/leapstack-labs/sqlgate/internal/config"
	"github.com/leapstack-labs/sqlgate/internal/storage"
)

// snapshot is one loaded configuration and the storage status it produced.
type snapshot struct {
	gateway  *config.Gateway
	storage  map[string]storage.Status
	loadedAt time.Time
}

// ok reports whether every storage backend was set up.
func (s *snapshot) ok() bool {
	for _, st := range s.storage {
		if !st.OK() {
			return false
		}
	}
	return true
}

// load reads the config directory and attaches storage credentials for
// every database version.
func (s *Server) load(ctx context.Context) (*snapshot, error) {
	g, err := config.Load(s.opts.ConfigDir, s.logger)
	if err != nil {
		return nil, err
	}
	for _, verr := range config.ValidateGateway(g) {
		s.logger.Warn("invalid configuration", slog.String("error", verr.Error()))
	}

	snap := &snapshot{gateway: g, storage: map[string]storage.Status{}, loadedAt: time.Now()}
	if s.auth == nil {
		return snap, nil
	}
	for _, name := range g.DatabaseNames() {
		set, _ := g.DatabaseSet(name)
		for _, v := range set.VersionNames() {
			key := name
			if v != "" {
				key = name + "/" + v
			}
			snap.storage[key] = s.auth.Setup(ctx, set.Versions[v].Tables)
		}
	}
	return snap, nil
}

// Reload loads a fresh snapshot and swaps it in. On failure the current
// snapshot stays active.
func (s *Server) Reload(ctx context.Context) error {
	snap, err := s.load(ctx)
	if err != nil {
		s.logger.Error("config reload failed", slog.String("error", err.Error()))
		s.notifier.broadcast(ReloadEvent{Err: err})
		return err
	}
	s.snap.Store(snap)
	s.logger.Info("config reloaded", slog.Int("databases", len(snap.gateway.DatabaseNames())))
	s.notifier.broadcast(ReloadEvent{})
	return nil
}

func (s *Server) current() *snapshot {
	return s.snap.Load()
}
