package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/sqlgate/internal/config"
)

// usersDB returns a fresh database with a local users table, a remote orders
// table and one named query.
func usersDB() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Name: "main",
		Tables: map[string]config.TableDefinition{
			"users":  {URI: "test/users.parquet", Metadata: map[string]any{}},
			"orders": {URI: "s3://bucket/orders.parquet", Metadata: map[string]any{}},
		},
		Queries: map[string]string{
			"active_users": "SELECT * FROM [[users]] WHERE active = true",
		},
	}
}

// rules decodes a query_params YAML list.
func rules(t *testing.T, src string) config.ParameterRules {
	t.Helper()
	var rs config.ParameterRules
	require.NoError(t, yaml.Unmarshal([]byte(src), &rs))
	return rs
}
