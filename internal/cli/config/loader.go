package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every settings environment variable.
const EnvPrefix = "SQLGATE_"

// FileNames are the settings files looked up in the working directory.
var FileNames = []string{"sqlgate.yaml", "sqlgate.yml"}

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// configKey is used to store the settings in context.
type configKey struct{}

// pathKeys are settings holding filesystem paths.
var pathKeys = map[string]bool{
	"config_dir":  true,
	"database":    true,
	"state_path":  true,
	"actions_dir": true,
}

// flagKeys maps flag names that differ from their setting key.
var flagKeys = map[string]string{
	"state": "state_path",
}

// findConfigFile returns explicit, or the first settings file present in
// the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range FileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load merges defaults, the settings file, SQLGATE_ environment variables
// and explicitly set flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
//
// Relative paths set by flags resolve against the working directory; other
// relative paths resolve against the settings file's directory.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Settings file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment: SQLGATE_CONFIG_DIR -> config_dir
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	flagPaths := map[string]bool{}
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if mapped, ok := flagKeys[key]; ok {
				key = mapped
			}
			if pathKeys[key] {
				flagPaths[key] = true
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ConfigFile = used

	cfg.ConfigDir = expandEnvVars(cfg.ConfigDir)
	cfg.Addr = expandEnvVars(cfg.Addr)
	cfg.DatabasePath = expandEnvVars(cfg.DatabasePath)
	cfg.StatePath = expandEnvVars(cfg.StatePath)
	cfg.ActionsDir = expandEnvVars(cfg.ActionsDir)
	cfg.DuckDB = expandMap(cfg.DuckDB)

	baseDir := ""
	if used != "" {
		if abs, err := filepath.Abs(used); err == nil {
			baseDir = filepath.Dir(abs)
		}
	}
	cfg.ConfigDir = resolvePath(cfg.ConfigDir, baseDir, flagPaths["config_dir"])
	cfg.StatePath = resolvePath(cfg.StatePath, baseDir, flagPaths["state_path"])
	cfg.ActionsDir = resolvePath(cfg.ActionsDir, baseDir, flagPaths["actions_dir"])
	if cfg.DatabasePath != ":memory:" {
		cfg.DatabasePath = resolvePath(cfg.DatabasePath, baseDir, flagPaths["database"])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q: expected text or json", c.LogFormat)
	}
	switch c.OutputFormat {
	case "", "auto", "text", "markdown", "json":
	default:
		return fmt.Errorf("invalid output %q: expected auto, text, markdown or json", c.OutputFormat)
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("query_timeout must not be negative")
	}
	return nil
}

// resolvePath makes a relative path absolute. Flag values resolve against
// the working directory, everything else against baseDir when set.
func resolvePath(path, baseDir string, fromFlag bool) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if fromFlag || baseDir == "" {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return filepath.Join(baseDir, path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as-is.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val := os.Getenv(name); val != "" {
			return val
		}
		return match
	})
}

func expandMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = expandValue(v)
	}
	return out
}

func expandValue(v any) any {
	switch t := v.(type) {
	case string:
		return expandEnvVars(t)
	case map[string]any:
		return expandMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = expandValue(item)
		}
		return out
	default:
		return v
	}
}

// ParseLevel converts a log level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: expected debug, info, warn or error", s)
	}
	return level, nil
}

// NewLogger builds the CLI logger from settings. Verbose forces debug level.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the settings from the command context, falling back
// to defaults resolved against the working directory.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	cfg, err := Load("", nil)
	if err != nil {
		return &Config{
			ConfigDir:    DefaultConfigDir,
			Addr:         DefaultAddr,
			StatePath:    DefaultStateFile,
			ActionsDir:   DefaultActionsDir,
			QueryTimeout: DefaultQueryTimeout,
			LogLevel:     DefaultLogLevel,
			LogFormat:    DefaultLogFormat,
			OutputFormat: DefaultOutput,
		}
	}
	return cfg
}
