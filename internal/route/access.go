package route

import "strings"

// AccessMatch reports whether path matches an access-list pattern.
// A "<>" segment matches any single segment; every other segment must be equal.
func AccessMatch(path, pattern string) bool {
	pathParts := Segments(path)
	patternParts := Segments(pattern)
	if len(pathParts) != len(patternParts) {
		return false
	}
	for i, seg := range patternParts {
		if seg == accessWildcard {
			continue
		}
		if seg != pathParts[i] {
			return false
		}
	}
	return true
}

// AccessList holds allow and deny patterns for a remote.
// A non-empty Allow list is exclusive: only matching paths pass.
// Otherwise any Deny match blocks the path.
type AccessList struct {
	Allow []string
	Deny  []string
}

// Empty reports whether the list has no patterns.
func (a AccessList) Empty() bool {
	return len(a.Allow) == 0 && len(a.Deny) == 0
}

// Allowed reports whether path passes the list.
func (a AccessList) Allowed(path string) bool {
	if len(a.Allow) > 0 {
		return anyMatch(path, a.Allow)
	}
	return !anyMatch(path, a.Deny)
}

// Resolve picks the effective list for a remote: per-remote allow list,
// then global allow list, then per-remote deny list, then global deny list.
func Resolve(remote, global AccessList) AccessList {
	switch {
	case len(remote.Allow) > 0:
		return AccessList{Allow: remote.Allow}
	case len(global.Allow) > 0:
		return AccessList{Allow: global.Allow}
	case len(remote.Deny) > 0:
		return AccessList{Deny: remote.Deny}
	default:
		return AccessList{Deny: global.Deny}
	}
}

func anyMatch(path string, patterns []string) bool {
	for _, p := range patterns {
		if AccessMatch(path, p) {
			return true
		}
	}
	return false
}

// StripVersion removes a leading version segment ("latest" or all digits)
// and reports the version it removed.
func StripVersion(path string) (rest, version string) {
	parts := Segments(path)
	if len(parts) == 0 || !IsVersion(parts[0]) {
		return strings.Join(parts, "/"), ""
	}
	return strings.Join(parts[1:], "/"), parts[0]
}

// IsVersion reports whether seg is a version prefix segment.
func IsVersion(seg string) bool {
	if seg == "latest" {
		return true
	}
	if seg == "" {
		return false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
