package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/sqlgate/internal/config"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		uri  string
		want Backend
	}{
		{"s3://bucket/file.parquet", S3},
		{"S3A://bucket/file.parquet", S3},
		{"gs://bucket/file.parquet", GCS},
		{"az://container/file.parquet", Azure},
		{"azure://container/file.parquet", Azure},
		{"abfss://container@account.dfs.core.windows.net/f.parquet", Azure},
		{"https://example.com/data.csv", HTTP},
		{"http://example.com/data.csv", HTTP},
		{"/data/users.parquet", Local},
		{"data/users.parquet", Local},
		{"s3:/missing-slash", Local},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.uri))
		})
	}
}

func TestRequirements(t *testing.T) {
	tables := map[string]config.TableDefinition{
		"a_users":  {URI: "s3://b/users.parquet", Metadata: map[string]any{"region": "us-east-1"}},
		"b_orders": {URI: "s3://b/orders.parquet", Metadata: map[string]any{"region": "eu-west-1"}},
		"local":    {URI: "data/local.parquet"},
		"feed":     {URI: "https://example.com/feed.csv", Metadata: map[string]any{"bearer_token": "t"}},
	}

	got := Requirements(tables)
	assert.Equal(t, map[Backend]map[string]any{
		S3:    {"region": "eu-west-1"},
		Local: {},
		HTTP:  {"bearer_token": "t"},
	}, got)
}

func TestStatus(t *testing.T) {
	s := Status{S3: true, Local: true}
	assert.True(t, s.OK())
	assert.Equal(t, map[string]bool{"s3": true, "local": true}, s.Strings())

	s[GCS] = false
	assert.False(t, s.OK())
}
