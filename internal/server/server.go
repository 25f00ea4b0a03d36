// Package server exposes the gateway over HTTP.
//
// The server holds the loaded configuration as an immutable snapshot behind
// an atomic pointer. Reloads build a complete new snapshot and swap it in;
// requests keep the snapshot they started with.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/sqlgate/internal/engine"
	"github.com/leapstack-labs/sqlgate/internal/proxy"
	"github.com/leapstack-labs/sqlgate/internal/storage"
	"github.com/leapstack-labs/sqlgate/pkg/adapter"
)

// DefaultAddr is the listen address used when Options.Addr is empty.
const DefaultAddr = ":8000"

// Options configures a Server.
type Options struct {
	// ConfigDir is the gateway config directory.
	ConfigDir string
	// Addr is the listen address.
	Addr string
	// Watch reloads the configuration when files under ConfigDir change.
	Watch bool
	// QueryTimeout bounds each database query. Zero means no limit.
	QueryTimeout time.Duration

	// Executor runs built SQL. It also receives storage setup statements.
	Executor adapter.Adapter
	// Proxy forwards remote requests. Nil uses a default proxy.
	Proxy *proxy.Proxy
	// Engine carries action dispatch and injection settings.
	Engine engine.Options

	Logger *slog.Logger
}

// Server is the gateway HTTP server.
type Server struct {
	opts     Options
	snap     atomic.Pointer[snapshot]
	auth     *storage.Authenticator
	proxy    *proxy.Proxy
	notifier *notifier
	logger   *slog.Logger
}

// New loads the configuration and creates a server.
// A configuration that cannot be loaded is fatal.
func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Engine.Logger == nil {
		opts.Engine.Logger = opts.Logger
	}

	s := &Server{
		opts:     opts,
		proxy:    opts.Proxy,
		notifier: newNotifier(),
		logger:   opts.Logger,
	}
	if s.proxy == nil {
		s.proxy = proxy.New(nil, opts.Logger)
	}
	if opts.Executor != nil {
		s.auth = storage.NewAuthenticator(opts.Executor, opts.Logger)
	}

	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.snap.Store(snap)
	return s, nil
}

// Handler returns the gateway's HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Get("/{key}", s.handleKey)
	for _, m := range proxy.Methods {
		r.Method(m, "/{name}/*", http.HandlerFunc(s.handleDispatch))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("Path '%s' not found", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed", r.Method))
	})
	return r
}

// Serve starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.opts.Addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.opts.Watch {
		eg.Go(func() error {
			return s.watch(egctx)
		})
	}

	eg.Go(func() error {
		s.logger.Info("starting gateway", slog.String("addr", s.opts.Addr), slog.String("config_dir", s.opts.ConfigDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down gateway...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
