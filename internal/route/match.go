// Package route matches request paths against route patterns.
//
// Two independent grammars live here. Route patterns bind path parameters
// with {{name}} segments ({{}} matches without binding). Access lists used
// for remote allow/deny checks treat <> as a per-segment wildcard.
package route

import "strings"

const (
	placeholderOpen  = "{{"
	placeholderClose = "}}"
	accessWildcard   = "<>"
)

// Segments splits a path on "/" after stripping leading and trailing slashes.
// The root path yields an empty slice.
func Segments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return []string{}
	}
	return strings.Split(trimmed, "/")
}

// Match reports whether path matches pattern and returns the bound placeholders.
// The returned map is non-nil on a match, even when nothing was bound.
func Match(path, pattern string) (map[string]string, bool) {
	pathParts := Segments(path)
	patternParts := Segments(pattern)
	if len(pathParts) != len(patternParts) {
		return nil, false
	}

	params := make(map[string]string)
	for i, seg := range patternParts {
		name, ok := placeholderName(seg)
		if !ok {
			if seg != pathParts[i] {
				return nil, false
			}
			continue
		}
		if name != "" {
			params[name] = pathParts[i]
		}
	}
	return params, true
}

// Matches reports whether path matches pattern, discarding bindings.
func Matches(path, pattern string) bool {
	_, ok := Match(path, pattern)
	return ok
}

// placeholderName returns the name inside a {{...}} segment.
// ok is false when seg is a literal.
func placeholderName(seg string) (name string, ok bool) {
	if len(seg) < len(placeholderOpen)+len(placeholderClose) ||
		!strings.HasPrefix(seg, placeholderOpen) || !strings.HasSuffix(seg, placeholderClose) {
		return "", false
	}
	return strings.TrimSpace(seg[len(placeholderOpen) : len(seg)-len(placeholderClose)]), true
}

// Find returns the index and bindings of the first pattern that matches
// path, in declared order. Returns -1 when nothing matches.
func Find(path string, patterns []string) (int, map[string]string) {
	for i, p := range patterns {
		if params, ok := Match(path, p); ok {
			return i, params
		}
	}
	return -1, nil
}
