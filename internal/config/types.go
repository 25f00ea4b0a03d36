// Package config loads the gateway's declarative documents: the main config,
// remote API configs, and database configs with their routes and
// parameter rules.
//
// Documents are read once into immutable values. Nothing in this package
// mutates a loaded document; callers that need a variant build a new one.
package config

import (
	"fmt"
	"strconv"
)

// RouteConfig is one routable database endpoint.
type RouteConfig struct {
	Route       string         `yaml:"route"`
	SQL         string         `yaml:"sql"`
	QueryParams ParameterRules `yaml:"query_params"`
}

// ParameterRules is the ordered list of rules under query_params.
type ParameterRules []ParameterRule

// Names returns the rule names in declared order.
func (rs ParameterRules) Names() []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	return names
}

// Lookup returns the rule with the given name.
func (rs ParameterRules) Lookup(name string) (ParameterRule, bool) {
	for _, r := range rs {
		if r.Name == name {
			return r, true
		}
	}
	return ParameterRule{}, false
}

// ParameterRule describes how one query parameter affects a request.
type ParameterRule struct {
	Name string

	SQL       string
	SQLAppend string

	Response    any
	HasResponse bool

	Conditional *Conditional
	Action      *ActionRef

	Required bool

	Default    any
	HasDefault bool

	MissingResponse map[string]any

	// Unknown lists keys that are not part of the rule grammar.
	Unknown []string

	// Line is the source line of the rule, 0 when built in code.
	Line int
}

// RuleKind is the static classification of a parameter rule.
type RuleKind int

// Rule kinds.
const (
	KindNone RuleKind = iota
	KindShortCircuit
	KindWhere
	KindAppend
	KindValueOnly
)

func (k RuleKind) String() string {
	switch k {
	case KindShortCircuit:
		return "short-circuit"
	case KindWhere:
		return "where"
	case KindAppend:
		return "append"
	case KindValueOnly:
		return "value-only"
	default:
		return "none"
	}
}

// Kind classifies the rule by its shape alone.
func (r ParameterRule) Kind() RuleKind {
	switch {
	case r.HasResponse || r.Action != nil || r.Conditional.shortCircuits():
		return KindShortCircuit
	case r.SQL != "":
		return KindWhere
	case r.SQLAppend != "":
		return KindAppend
	case r.HasDefault:
		return KindValueOnly
	default:
		return KindNone
	}
}

// DefaultString returns the default value in the string form used for substitution.
func (r ParameterRule) DefaultString() string {
	return Stringify(r.Default)
}

// MissingStatus returns the HTTP status declared by missing_response, or 400.
func (r ParameterRule) MissingStatus() int {
	if r.MissingResponse == nil {
		return 400
	}
	switch v := r.MissingResponse["http_status"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 400
}

// Conditional maps literal parameter values to outcomes.
type Conditional struct {
	// Keys holds the value keys in declared order.
	Keys     []string
	Branches map[string]Outcome
	Default  *Outcome
}

// Lookup returns the branch for value, falling back to the default branch.
// matched reports whether value named a branch directly.
func (c *Conditional) Lookup(value string) (out Outcome, matched, ok bool) {
	if c == nil {
		return Outcome{}, false, false
	}
	if b, found := c.Branches[value]; found {
		return b, true, true
	}
	if c.Default != nil {
		return *c.Default, false, true
	}
	return Outcome{}, false, false
}

func (c *Conditional) shortCircuits() bool {
	if c == nil {
		return false
	}
	for _, b := range c.Branches {
		if b.HasResponse || b.Action != nil {
			return true
		}
	}
	return c.Default != nil && (c.Default.HasResponse || c.Default.Action != nil)
}

// Outcome is one branch of a conditional.
type Outcome struct {
	SQL         string
	Response    any
	HasResponse bool
	Action      *ActionRef
	Unknown     []string
}

// Empty reports whether the outcome carries nothing.
func (o Outcome) Empty() bool {
	return o.SQL == "" && !o.HasResponse && o.Action == nil
}

// ActionRef names a side effect. YAML accepts a bare name or a mapping with
// "name" and free-form options.
type ActionRef struct {
	Name    string
	Options map[string]any
}

// TableDefinition maps a logical table to a storage URI.
// Metadata is empty for the bare string form.
type TableDefinition struct {
	URI      string
	Metadata map[string]any
}

// DatabaseConfig is one database document.
type DatabaseConfig struct {
	Tables      map[string]TableDefinition `yaml:"tables"`
	Queries     map[string]string          `yaml:"queries"`
	Routes      []RouteConfig              `yaml:"routes"`
	QueryParams ParameterRules             `yaml:"query_params"`

	// Set by the loader.
	Name    string `yaml:"-"`
	Version string `yaml:"-"`
	Path    string `yaml:"-"`
}

// Table returns the definition of a table.
func (d *DatabaseConfig) Table(name string) (TableDefinition, bool) {
	t, ok := d.Tables[name]
	return t, ok
}

// NamedQuery returns a named query template.
func (d *DatabaseConfig) NamedQuery(name string) (string, bool) {
	q, ok := d.Queries[name]
	return q, ok
}

// MainConfig is the gateway's top-level document.
type MainConfig struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Authors     any         `yaml:"authors"`
	Remotes     []RemoteRef `yaml:"remotes"`
	Databases   []string    `yaml:"-"`
	Restricted  []string    `yaml:"restricted"`
	Routes      []string    `yaml:"routes"`

	// Raw holds every top-level key for GET /{key}.
	Raw map[string]any `yaml:"-"`

	// databasesListed is true when the document has a databases key.
	databasesListed bool
}

// RemoteRef is an entry of the main config's remotes list: a file reference
// (remotes/<File>.yaml) or an inline remote.
type RemoteRef struct {
	File   string
	Inline *RemoteConfig
}

// RemoteConfig describes one proxied API.
type RemoteConfig struct {
	Name       string            `yaml:"name"`
	URL        string            `yaml:"url"`
	Restricted []string          `yaml:"restricted"`
	Routes     []string          `yaml:"routes"`
	Timeout    string            `yaml:"timeout"`
	Headers    map[string]string `yaml:"headers"`

	// Set by the loader. File is the remotes: entry the config was read
	// from, empty for inline remotes.
	Path    string `yaml:"-"`
	File    string `yaml:"-"`
	LoadErr error  `yaml:"-"`
}

// Stringify renders a YAML scalar the way defaults are substituted.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
