// Package config loads sqlgate's own settings: where the gateway config
// lives, how to serve it, and how to log.
//
// Settings are merged from defaults, an optional sqlgate.yaml file,
// SQLGATE_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import "time"

// Default setting values.
const (
	DefaultConfigDir    = "config"
	DefaultAddr         = ":8000"
	DefaultStateFile    = ".sqlgate/state.db"
	DefaultActionsDir   = "actions"
	DefaultQueryTimeout = 30 * time.Second
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// Config holds all CLI settings.
type Config struct {
	ConfigDir       string         `koanf:"config_dir"`
	Addr            string         `koanf:"addr"`
	DatabasePath    string         `koanf:"database"`
	StatePath       string         `koanf:"state_path"`
	ActionsDir      string         `koanf:"actions_dir"`
	Watch           bool           `koanf:"watch"`
	QueryTimeout    time.Duration  `koanf:"query_timeout"`
	StrictInjection bool           `koanf:"strict_injection"`
	LogLevel        string         `koanf:"log_level"`
	LogFormat       string         `koanf:"log_format"`
	OutputFormat    string         `koanf:"output"`
	Verbose         bool           `koanf:"verbose"`
	DuckDB          map[string]any `koanf:"duckdb"`

	// ConfigFile is the settings file that was read, empty when none was found.
	ConfigFile string `koanf:"-"`
}

// Defaults returns the default settings as a flat map.
func Defaults() map[string]any {
	return map[string]any{
		"config_dir":       DefaultConfigDir,
		"addr":             DefaultAddr,
		"database":         "",
		"state_path":       DefaultStateFile,
		"actions_dir":      DefaultActionsDir,
		"watch":            false,
		"query_timeout":    DefaultQueryTimeout.String(),
		"strict_injection": false,
		"log_level":        DefaultLogLevel,
		"log_format":       DefaultLogFormat,
		"output":           DefaultOutput,
		"verbose":          false,
	}
}
