package engine

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/leapstack-labs/sqlgate/internal/config"
	"github.com/leapstack-labs/sqlgate/internal/template"
)

// wherePattern finds an existing WHERE in the expanded template. It is a
// plain word match, so a table URI with a "where" path segment also counts.
var wherePattern = regexp.MustCompile(`(?i)\bWHERE\b`)

// Plan is the result of resolving a route for one request: either a SQL
// statement ready for execution or a short-circuit Response.
type Plan struct {
	SQL      string
	Response *Response

	// Route is the effective route after merging database-level rules.
	Route      config.RouteConfig
	PathParams map[string]string
	Values     map[string]string
	Where      []string
	Append     []string

	// Legacy is true when the route had no rules and was built without the
	// parameter pipeline.
	Legacy bool
}

// Build composes the SQL statement for route. It never executes anything.
//
// The template's [[query]] and [[table]] references are resolved first.
// Database-level rules are merged in and the pipeline evaluated; a
// short-circuit ends building and is returned in Plan.Response. Otherwise
// WHERE fragments are joined with AND onto the template (extending a WHERE
// clause present before placeholder substitution), append fragments follow, and remaining
// placeholders in the template are substituted in literal mode.
func Build(ctx context.Context, route config.RouteConfig, db *config.DatabaseConfig, pathParams, queryParams map[string]string, opts Options) (*Plan, error) {
	merged := Merge(route, db)
	plan := &Plan{Route: merged, PathParams: pathParams}

	if len(merged.QueryParams) == 0 {
		values := make(map[string]string, len(pathParams)+len(queryParams))
		for k, v := range pathParams {
			values[k] = v
		}
		for k, v := range queryParams {
			values[k] = v
		}
		sql, err := BuildLegacy(merged.SQL, db, values)
		if err != nil {
			return nil, err
		}
		plan.SQL, plan.Values, plan.Legacy = sql, values, true
		return plan, nil
	}

	base, err := expandTemplate(merged.SQL, db)
	if err != nil {
		return nil, err
	}

	eval, err := Evaluate(ctx, merged.QueryParams, pathParams, queryParams, opts)
	if err != nil {
		return nil, err
	}
	plan.Values = eval.Values
	if eval.Response != nil {
		plan.Response = eval.Response
		return plan, nil
	}
	plan.Where, plan.Append = eval.Where, eval.Append

	// Request values must not decide between WHERE and AND.
	hasWhere := wherePattern.MatchString(base)

	// Substitute the template on its own so fragment text is never
	// substituted twice.
	if err := audit(base, eval.Values, opts); err != nil {
		return nil, err
	}
	base, err = template.Substitute(base, eval.Values, template.Literal)
	if err != nil {
		return nil, err
	}

	plan.SQL = compose(base, hasWhere, eval.Where, eval.Append)
	opts.logger().Debug("built query",
		slog.String("route", merged.Route),
		slog.Int("where", len(eval.Where)),
		slog.Int("append", len(eval.Append)))
	return plan, nil
}

func compose(base string, hasWhere bool, where, appends []string) string {
	var b strings.Builder
	b.WriteString(base)
	if len(where) > 0 {
		if hasWhere {
			b.WriteString(" AND ")
		} else {
			b.WriteString(" WHERE ")
		}
		b.WriteString(strings.Join(where, " AND "))
	}
	if len(appends) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(appends, " "))
	}
	return b.String()
}
