package engine

import "github.com/leapstack-labs/sqlgate/internal/config"

// Merge returns route with the database's top-level query_params merged in.
// Route rules keep their order; database rules whose names the route does not
// declare follow in database order. A route rule replaces a database rule of
// the same name entirely. Neither input is modified.
func Merge(route config.RouteConfig, db *config.DatabaseConfig) config.RouteConfig {
	if db == nil || len(db.QueryParams) == 0 {
		return route
	}

	declared := make(map[string]bool, len(route.QueryParams))
	for _, r := range route.QueryParams {
		declared[r.Name] = true
	}

	rules := make(config.ParameterRules, 0, len(route.QueryParams)+len(db.QueryParams))
	rules = append(rules, route.QueryParams...)
	for _, r := range db.QueryParams {
		if !declared[r.Name] {
			rules = append(rules, r)
		}
	}

	merged := route
	merged.QueryParams = rules
	return merged
}
