package engine

import (
	"regexp"
	"strings"

	"github.com/leapstack-labs/sqlgate/internal/config"
	"github.com/leapstack-labs/sqlgate/internal/template"
	"github.com/leapstack-labs/sqlgate/pkg/core"
)

// tableLookback is how many characters before a [[table]] reference are
// searched for FROM or JOIN.
const tableLookback = 20

var tableRefPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// expandTemplate resolves a whole-template [[query]] reference and then every
// [[table]] reference.
func expandTemplate(sql string, db *config.DatabaseConfig) (string, error) {
	if name, ok := config.NamedQueryRef(sql); ok {
		q, found := lookupQuery(db, name)
		if !found {
			return "", core.Errorf(core.KindNamedQueryNotFound,
				"Named query '%s' not found in database configuration", name)
		}
		sql = q
	}
	return substituteTables(sql, db)
}

// substituteTables replaces [[table]] with "'<uri>' AS table" in FROM/JOIN
// position and with the bare table name elsewhere.
func substituteTables(sql string, db *config.DatabaseConfig) (string, error) {
	locs := tableRefPattern.FindAllStringSubmatchIndex(sql, -1)
	if len(locs) == 0 {
		return sql, nil
	}

	var b strings.Builder
	last := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		name := strings.TrimSpace(sql[loc[2]:loc[3]])

		table, ok := lookupTable(db, name)
		if !ok {
			return "", core.Errorf(core.KindTableNotFound,
				"Table '%s' not found in database configuration", name)
		}

		b.WriteString(sql[last:start])
		context := strings.ToUpper(sql[max(0, start-tableLookback):start])
		if strings.Contains(context, "FROM") || strings.Contains(context, "JOIN") {
			b.WriteString(template.Quote(table.URI) + " AS " + name)
		} else {
			b.WriteString(name)
		}
		last = end
	}
	b.WriteString(sql[last:])
	return b.String(), nil
}

func lookupQuery(db *config.DatabaseConfig, name string) (string, bool) {
	if db == nil {
		return "", false
	}
	return db.NamedQuery(name)
}

func lookupTable(db *config.DatabaseConfig, name string) (config.TableDefinition, bool) {
	if db == nil {
		return config.TableDefinition{}, false
	}
	return db.Table(name)
}
