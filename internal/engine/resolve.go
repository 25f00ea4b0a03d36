package engine

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/sqlgate/internal/config"
	"github.com/leapstack-labs/sqlgate/internal/route"
	"github.com/leapstack-labs/sqlgate/pkg/core"
)

// FindRoute returns the first route of db matching path, with its bindings.
func FindRoute(db *config.DatabaseConfig, path string) (config.RouteConfig, map[string]string, bool) {
	patterns := make([]string, len(db.Routes))
	for i, r := range db.Routes {
		patterns[i] = r.Route
	}
	idx, params := route.Find(path, patterns)
	if idx < 0 {
		return config.RouteConfig{}, nil, false
	}
	return db.Routes[idx], params, true
}

// Resolve finds the route of db matching path and builds its plan.
// An unmatched path fails with RouteNotFound.
func Resolve(ctx context.Context, db *config.DatabaseConfig, path string, queryParams map[string]string, opts Options) (*Plan, error) {
	rc, pathParams, ok := FindRoute(db, path)
	if !ok {
		return nil, core.Errorf(core.KindRouteNotFound, "Route '%s' not found in database '%s'", path, db.Name)
	}
	opts.logger().Debug("route matched",
		slog.String("database", db.Name),
		slog.String("path", path),
		slog.String("route", rc.Route))
	return Build(ctx, rc, db, pathParams, queryParams, opts)
}
