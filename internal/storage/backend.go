// Package storage prepares the query engine for the storage backends that a
// database's tables live on.
//
// Each table URI is classified into a Backend. Before a database is queried,
// Setup loads the engine extensions each backend needs and registers
// credentials from table metadata or the environment. Setup is best effort:
// a failure is logged and recorded, and queries against public files may
// still succeed.
package storage

import (
	"regexp"
	"sort"

	"github.com/leapstack-labs/sqlgate/internal/config"
)

// Backend identifies where a table's data lives.
type Backend string

// Supported backends.
const (
	S3    Backend = "s3"
	GCS   Backend = "gcs"
	Azure Backend = "azure"
	HTTP  Backend = "http"
	Local Backend = "local"
)

// Backends lists every backend in setup order.
var Backends = []Backend{S3, GCS, Azure, HTTP, Local}

var (
	s3Pattern    = regexp.MustCompile(`(?i)^s3a?://`)
	gcsPattern   = regexp.MustCompile(`(?i)^gs://`)
	azurePattern = regexp.MustCompile(`(?i)^(az|azure|abfss)://`)
	httpPattern  = regexp.MustCompile(`(?i)^https?://`)
)

// Detect classifies a table URI. Anything unrecognized is Local.
func Detect(uri string) Backend {
	switch {
	case s3Pattern.MatchString(uri):
		return S3
	case gcsPattern.MatchString(uri):
		return GCS
	case azurePattern.MatchString(uri):
		return Azure
	case httpPattern.MatchString(uri):
		return HTTP
	default:
		return Local
	}
}

// Requirements maps each backend used by tables to its aggregated metadata.
// Tables are visited in name order and later tables override earlier keys.
func Requirements(tables map[string]config.TableDefinition) map[Backend]map[string]any {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	reqs := make(map[Backend]map[string]any)
	for _, name := range names {
		t := tables[name]
		if t.URI == "" {
			continue
		}
		b := Detect(t.URI)
		meta, ok := reqs[b]
		if !ok {
			meta = make(map[string]any)
			reqs[b] = meta
		}
		for k, v := range t.Metadata {
			meta[k] = v
		}
	}
	return reqs
}

// Status records whether setup succeeded for each required backend.
type Status map[Backend]bool

// OK reports whether every backend was set up.
func (s Status) OK() bool {
	for _, ok := range s {
		if !ok {
			return false
		}
	}
	return true
}

// Strings returns the status keyed by backend name.
func (s Status) Strings() map[string]bool {
	out := make(map[string]bool, len(s))
	for b, ok := range s {
		out[string(b)] = ok
	}
	return out
}
