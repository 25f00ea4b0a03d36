package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *Params
		wantErr string
	}{
		{
			name:  "nil params returns empty struct",
			input: nil,
			want:  &Params{},
		},
		{
			name:  "extensions",
			input: map[string]any{"extensions": []any{"httpfs", "json"}},
			want:  &Params{Extensions: []string{"httpfs", "json"}},
		},
		{
			name:  "settings are stringified",
			input: map[string]any{"settings": map[string]any{"threads": 4, "memory_limit": "4GB"}},
			want:  &Params{Settings: map[string]string{"threads": "4", "memory_limit": "4GB"}},
		},
		{
			name: "secrets",
			input: map[string]any{"secrets": []any{
				map[string]any{"type": "s3", "provider": "credential_chain", "region": "us-west-2", "scope": "s3://bucket"},
			}},
			want: &Params{Secrets: []SecretConfig{
				{Type: "s3", Provider: "credential_chain", Region: "us-west-2", Scope: "s3://bucket"},
			}},
		},
		{
			name:    "unknown key",
			input:   map[string]any{"extension": []any{"httpfs"}},
			wantErr: "failed to decode duckdb params",
		},
		{
			name:    "bad extension name",
			input:   map[string]any{"extensions": []any{"httpfs; DROP"}},
			wantErr: "invalid extension name",
		},
		{
			name:    "bad setting name",
			input:   map[string]any{"settings": map[string]any{"a b": "1"}},
			wantErr: "invalid setting name",
		},
		{
			name:    "secret without type",
			input:   map[string]any{"secrets": []any{map[string]any{"provider": "config"}}},
			wantErr: "type is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParams_Statements(t *testing.T) {
	p := &Params{
		Extensions: []string{"httpfs"},
		Settings:   map[string]string{"threads": "4", "memory_limit": "1GB"},
		Secrets: []SecretConfig{
			{Type: "s3", Provider: "credential_chain", Region: "eu-west-1"},
			{Name: "minio", Type: "s3", KeyID: "k", Secret: "it's", Endpoint: "localhost:9000", Scope: "s3://local"},
		},
	}

	assert.Equal(t, []string{
		"INSTALL httpfs",
		"LOAD httpfs",
		"SET memory_limit = '1GB'",
		"SET threads = '4'",
		"CREATE OR REPLACE SECRET (TYPE s3, PROVIDER credential_chain, REGION 'eu-west-1')",
		"CREATE OR REPLACE SECRET minio (TYPE s3, KEY_ID 'k', SECRET 'it''s', ENDPOINT 'localhost:9000', SCOPE 's3://local')",
	}, p.Statements())

	assert.Empty(t, (&Params{}).Statements())
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "CREATE OR REPLACE SECRET (...)", redact("CREATE OR REPLACE SECRET (TYPE s3, SECRET 'x')"))
	assert.Equal(t, "LOAD httpfs", redact("LOAD httpfs"))
}
