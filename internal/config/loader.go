package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/sqlgate/pkg/core"
)

// File and directory names inside a gateway config directory.
const (
	MainFileName    = "config.yaml"
	MainFileNameAlt = "config.yml"
	RemotesDir      = "remotes"
	DatabasesDir    = "databases"
)

// Gateway is a loaded, read-only snapshot of a config directory.
type Gateway struct {
	Dir  string
	Main *MainConfig

	remotes     map[string]*RemoteConfig
	remoteOrder []string
	databases   map[string]*DatabaseSet
	dbOrder     []string
}

// DatabaseSet holds every loaded version of one database.
// Unversioned databases have a single entry under the empty version.
type DatabaseSet struct {
	Name      string
	Versioned bool
	Versions  map[string]*DatabaseConfig
}

// VersionNames returns the loaded versions, sorted.
func (s *DatabaseSet) VersionNames() []string {
	names := make([]string, 0, len(s.Versions))
	for v := range s.Versions {
		names = append(names, v)
	}
	sort.Strings(names)
	return names
}

// Load reads a config directory: the main document, every referenced remote,
// and every database (all versions).
// A missing main document fails with ConfigNotFound; malformed YAML fails
// with ConfigParseError. A referenced remote file that cannot be read is
// kept with LoadErr set so the proxy can report it per request.
func Load(dir string, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mainPath := findMainFile(dir)
	if mainPath == "" {
		return nil, newNotFoundError("configuration file", filepath.Join(dir, MainFileName))
	}

	var main MainConfig
	if err := readYAML(mainPath, &main); err != nil {
		return nil, err
	}
	if main.Raw == nil {
		main.Raw = map[string]any{}
	}

	g := &Gateway{
		Dir:       dir,
		Main:      &main,
		remotes:   make(map[string]*RemoteConfig),
		databases: make(map[string]*DatabaseSet),
	}

	if err := g.loadRemotes(logger); err != nil {
		return nil, err
	}
	if err := g.loadDatabases(logger); err != nil {
		return nil, err
	}

	logger.Debug("gateway config loaded",
		slog.String("dir", dir),
		slog.Int("remotes", len(g.remoteOrder)),
		slog.Int("databases", len(g.dbOrder)))
	return g, nil
}

func (g *Gateway) loadRemotes(logger *slog.Logger) error {
	for _, ref := range g.Main.Remotes {
		if ref.Inline != nil {
			rc := *ref.Inline
			g.addRemote(&rc)
			continue
		}

		path := filepath.Join(g.Dir, RemotesDir, ref.File+".yaml")
		rc := &RemoteConfig{}
		if err := readYAML(path, rc); err != nil {
			if core.KindOf(err) == core.KindConfigParse {
				return err
			}
			logger.Warn("remote config unavailable", slog.String("remote", ref.File), slog.String("path", path))
			rc = &RemoteConfig{LoadErr: err}
		}
		if rc.Name == "" {
			rc.Name = ref.File
		}
		rc.Path, rc.File = path, ref.File
		g.addRemote(rc)
	}
	return nil
}

func (g *Gateway) addRemote(rc *RemoteConfig) {
	if _, exists := g.remotes[rc.Name]; !exists {
		g.remoteOrder = append(g.remoteOrder, rc.Name)
	}
	g.remotes[rc.Name] = rc
}

func (g *Gateway) loadDatabases(logger *slog.Logger) error {
	names := g.Main.Databases
	if !g.Main.databasesListed {
		discovered, err := discoverDatabases(filepath.Join(g.Dir, DatabasesDir))
		if err != nil {
			return err
		}
		names = discovered
	}

	for _, name := range names {
		set, err := loadDatabaseSet(g.Dir, name)
		if err != nil {
			return err
		}
		if _, exists := g.databases[name]; !exists {
			g.dbOrder = append(g.dbOrder, name)
		}
		g.databases[name] = set
		logger.Debug("database loaded", slog.String("database", name), slog.Any("versions", set.VersionNames()))
	}
	return nil
}

// discoverDatabases lists databases/<name>.yaml files and databases/<name>/ directories.
func discoverDatabases(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read databases directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		switch {
		case e.IsDir():
			names = append(names, e.Name())
		case strings.HasSuffix(e.Name(), ".yaml"):
			names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
		}
	}
	sort.Strings(names)
	return names, nil
}

func loadDatabaseSet(dir, name string) (*DatabaseSet, error) {
	set := &DatabaseSet{Name: name, Versions: make(map[string]*DatabaseConfig)}

	versionDir := filepath.Join(dir, DatabasesDir, name)
	if info, err := os.Stat(versionDir); err == nil && info.IsDir() {
		set.Versioned = true
		versions, err := ListVersions(versionDir)
		if err != nil {
			return nil, err
		}
		for _, v := range versions {
			db, err := LoadDatabase(filepath.Join(versionDir, v+".yaml"))
			if err != nil {
				return nil, err
			}
			db.Name, db.Version = name, v
			set.Versions[v] = db
		}
		return set, nil
	}

	db, err := LoadDatabase(filepath.Join(dir, DatabasesDir, name+".yaml"))
	if err != nil {
		return nil, err
	}
	db.Name = name
	set.Versions[""] = db
	return set, nil
}

// LoadDatabase reads a single database document.
func LoadDatabase(path string) (*DatabaseConfig, error) {
	db := &DatabaseConfig{}
	if err := readYAML(path, db); err != nil {
		return nil, err
	}
	db.Path = path
	if db.Tables == nil {
		db.Tables = map[string]TableDefinition{}
	}
	if db.Queries == nil {
		db.Queries = map[string]string{}
	}
	return db, nil
}

// readYAML decodes a YAML file into out, classifying failures.
func readYAML(path string, out any) error {
	data, err := os.ReadFile(path) //nolint:gosec // paths come from the operator's config directory
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newNotFoundError("configuration file", path)
		}
		return core.Wrap(core.KindInternal, err, "failed to read "+path)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return newParseError(path, err)
	}
	if len(doc.Content) == 0 {
		// Empty document decodes to zero values.
		return nil
	}
	if err := doc.Content[0].Decode(out); err != nil {
		return newParseError(path, err)
	}
	return nil
}

func findMainFile(dir string) string {
	for _, name := range []string{MainFileName, MainFileNameAlt} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// RemoteNames returns remote names in declared order.
func (g *Gateway) RemoteNames() []string {
	return append([]string(nil), g.remoteOrder...)
}

// IsRemote reports whether name is a configured remote.
func (g *Gateway) IsRemote(name string) bool {
	_, ok := g.remotes[name]
	return ok
}

// Remote returns a remote by name. When no name matches exactly, a remote
// listed by file name (remotes/<name>.yaml) is accepted under that file name.
func (g *Gateway) Remote(name string) (*RemoteConfig, bool) {
	if rc, ok := g.remotes[name]; ok {
		return rc, true
	}
	if name == "" {
		return nil, false
	}
	for _, n := range g.remoteOrder {
		if rc := g.remotes[n]; rc.File == name {
			return rc, true
		}
	}
	return nil, false
}

// DatabaseNames returns database names in load order.
func (g *Gateway) DatabaseNames() []string {
	return append([]string(nil), g.dbOrder...)
}

// DatabaseSet returns all versions of a database.
func (g *Gateway) DatabaseSet(name string) (*DatabaseSet, bool) {
	s, ok := g.databases[name]
	return s, ok
}

// Database returns one database version. version is ignored for
// unversioned databases; "latest" or "" picks the newest version of a
// versioned one.
func (g *Gateway) Database(name, version string) (*DatabaseConfig, error) {
	set, ok := g.databases[name]
	if !ok {
		return nil, core.Errorf(core.KindConfigNotFound, "Database '%s' not found", name)
	}
	if !set.Versioned {
		return set.Versions[""], nil
	}
	if version == "" || version == "latest" {
		version = LatestVersion(set.VersionNames())
	}
	db, ok := set.Versions[version]
	if !ok {
		return nil, core.Errorf(core.KindConfigNotFound, "Version '%s' of database '%s' not found", version, name)
	}
	return db, nil
}

// Value returns a top-level key of the main config.
func (g *Gateway) Value(key string) (any, bool) {
	v, ok := g.Main.Raw[key]
	return v, ok
}
