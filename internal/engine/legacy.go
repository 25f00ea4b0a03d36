package engine

import (
	"github.com/leapstack-labs/sqlgate/internal/config"
	"github.com/leapstack-labs/sqlgate/internal/template"
)

// BuildLegacy renders a route template without parameter rules: named query
// and table references are resolved, then every {{name}} with a value in
// params is replaced by a quoted string literal.
func BuildLegacy(sql string, db *config.DatabaseConfig, params map[string]string) (string, error) {
	resolved, err := expandTemplate(sql, db)
	if err != nil {
		return "", err
	}
	return template.Substitute(resolved, params, template.Quoted)
}
