package duckdb

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "spatial", "json")
	Extensions []string `mapstructure:"extensions"`

	// Secrets registered at connect time, in addition to the per-table
	// storage secrets.
	Secrets []SecretConfig `mapstructure:"secrets"`

	// Settings to apply at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// SecretConfig defines a DuckDB secret for cloud storage.
type SecretConfig struct {
	// Name is optional; unnamed secrets replace the default secret of their type.
	Name string `mapstructure:"name"`
	// Type: "s3", "gcs", "azure", "r2", "http"
	Type string `mapstructure:"type"`
	// Provider: "config", "credential_chain", ...
	Provider string `mapstructure:"provider"`
	Region   string `mapstructure:"region"`
	Scope    string `mapstructure:"scope"`
	KeyID    string `mapstructure:"key_id"`
	Secret   string `mapstructure:"secret"`
	Endpoint string `mapstructure:"endpoint"`
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseParams decodes adapter params. Nil params yield an empty Params.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode duckdb params: %w", err)
	}
	return p, p.validate()
}

func (p *Params) validate() error {
	for _, ext := range p.Extensions {
		if !namePattern.MatchString(ext) {
			return fmt.Errorf("invalid extension name %q", ext)
		}
	}
	for key := range p.Settings {
		if !namePattern.MatchString(key) {
			return fmt.Errorf("invalid setting name %q", key)
		}
	}
	for i, s := range p.Secrets {
		if s.Type == "" {
			return fmt.Errorf("secret %d: type is required", i)
		}
		if !namePattern.MatchString(s.Type) || (s.Name != "" && !namePattern.MatchString(s.Name)) {
			return fmt.Errorf("secret %d: invalid name or type", i)
		}
		if s.Provider != "" && !namePattern.MatchString(s.Provider) {
			return fmt.Errorf("secret %d: invalid provider %q", i, s.Provider)
		}
	}
	return nil
}

// Statements returns the setup statements for p in execution order:
// extensions, then settings (sorted by name), then secrets.
func (p *Params) Statements() []string {
	var stmts []string
	for _, ext := range p.Extensions {
		stmts = append(stmts, "INSTALL "+ext, "LOAD "+ext)
	}

	keys := make([]string, 0, len(p.Settings))
	for k := range p.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmts = append(stmts, fmt.Sprintf("SET %s = %s", k, quote(p.Settings[k])))
	}

	for _, s := range p.Secrets {
		stmts = append(stmts, s.statement())
	}
	return stmts
}

func (s SecretConfig) statement() string {
	parts := []string{"TYPE " + s.Type}
	if s.Provider != "" {
		parts = append(parts, "PROVIDER "+s.Provider)
	}
	for _, kv := range []struct{ key, val string }{
		{"KEY_ID", s.KeyID},
		{"SECRET", s.Secret},
		{"REGION", s.Region},
		{"ENDPOINT", s.Endpoint},
		{"SCOPE", s.Scope},
	} {
		if kv.val != "" {
			parts = append(parts, kv.key+" "+quote(kv.val))
		}
	}

	head := "CREATE OR REPLACE SECRET"
	if s.Name != "" {
		head += " " + s.Name
	}
	return head + " (" + strings.Join(parts, ", ") + ")"
}

func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
