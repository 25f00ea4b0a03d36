package config

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError lists every problem found in a document.
type ValidationError struct {
	File     string
	Problems []string
}

func (e *ValidationError) Error() string {
	prefix := "invalid configuration"
	if e.File != "" {
		prefix = e.File
	}
	return fmt.Sprintf("%s: %s", prefix, strings.Join(e.Problems, "; "))
}

// ValidateRoute checks a route and its parameter rules.
func ValidateRoute(r RouteConfig) []string {
	var problems []string
	if r.Route == "" {
		problems = append(problems, "route is missing the 'route' field")
	}
	label := r.Route
	if r.SQL == "" {
		problems = append(problems, fmt.Sprintf("route %q has no sql", label))
	}
	for _, p := range ValidateRules(r.QueryParams) {
		problems = append(problems, fmt.Sprintf("route %q: %s", label, p))
	}
	return problems
}

// ValidateRules checks parameter rules independent of any route.
func ValidateRules(rules ParameterRules) []string {
	var problems []string
	for _, rule := range rules {
		name := rule.Name
		if len(rule.Unknown) > 0 {
			problems = append(problems, fmt.Sprintf("parameter %q has unknown keys %v", name, rule.Unknown))
		}
		if rule.SQL != "" && rule.SQLAppend != "" {
			problems = append(problems, fmt.Sprintf("parameter %q cannot set both sql and sql_append", name))
		}
		if rule.SQL == "" && rule.SQLAppend == "" && !rule.HasResponse && rule.Conditional == nil &&
			rule.Action == nil && !rule.Required && !rule.HasDefault && rule.MissingResponse == nil {
			problems = append(problems, fmt.Sprintf("parameter %q has no behaviour", name))
		}
		if rule.Action != nil && rule.Action.Name == "" {
			problems = append(problems, fmt.Sprintf("parameter %q has an action without a name", name))
		}
		if c := rule.Conditional; c != nil {
			keys := append([]string(nil), c.Keys...)
			if c.Default != nil {
				keys = append(keys, "default")
			}
			for _, k := range keys {
				out := c.Default
				if k != "default" {
					b := c.Branches[k]
					out = &b
				}
				if out.Empty() {
					problems = append(problems, fmt.Sprintf("parameter %q: conditional %q needs sql, response or action", name, k))
				}
				if len(out.Unknown) > 0 {
					problems = append(problems, fmt.Sprintf("parameter %q: conditional %q has unknown keys %v", name, k, out.Unknown))
				}
				if out.Action != nil && out.Action.Name == "" {
					problems = append(problems, fmt.Sprintf("parameter %q: conditional %q has an action without a name", name, k))
				}
			}
		}
	}
	return problems
}

// ValidateDatabase checks every route of a database plus its shared rules
// and the table and named-query references in route templates.
func ValidateDatabase(db *DatabaseConfig) error {
	var problems []string
	for _, p := range ValidateRules(db.QueryParams) {
		problems = append(problems, "query_params: "+p)
	}
	for _, r := range db.Routes {
		problems = append(problems, ValidateRoute(r)...)
		problems = append(problems, checkReferences(r, db)...)
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{File: db.Path, Problems: problems}
}

// ValidateGateway validates every database version of a loaded gateway.
func ValidateGateway(g *Gateway) []error {
	var errs []error
	for _, name := range g.DatabaseNames() {
		set, _ := g.DatabaseSet(name)
		for _, v := range set.VersionNames() {
			if err := ValidateDatabase(set.Versions[v]); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for _, name := range g.RemoteNames() {
		rc, _ := g.Remote(name)
		switch {
		case rc.LoadErr != nil:
			errs = append(errs, fmt.Errorf("remote %q: %w", name, rc.LoadErr))
		case rc.URL == "":
			errs = append(errs, fmt.Errorf("remote %q has no url", name))
		}
	}
	return errs
}

func checkReferences(r RouteConfig, db *DatabaseConfig) []string {
	var problems []string
	sqlText := r.SQL
	if name, ok := NamedQueryRef(sqlText); ok {
		q, found := db.NamedQuery(name)
		if !found {
			return []string{fmt.Sprintf("route %q references unknown named query %q", r.Route, name)}
		}
		sqlText = q
	}
	missing := map[string]bool{}
	for _, t := range TableRefs(sqlText) {
		if _, ok := db.Table(t); !ok {
			missing[t] = true
		}
	}
	names := make([]string, 0, len(missing))
	for t := range missing {
		names = append(names, t)
	}
	sort.Strings(names)
	for _, t := range names {
		problems = append(problems, fmt.Sprintf("route %q references unknown table %q", r.Route, t))
	}
	return problems
}
