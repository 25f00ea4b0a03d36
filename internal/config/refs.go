package config

import (
	"regexp"
	"strings"
)

var (
	tableRefPattern   = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
	namedQueryPattern = regexp.MustCompile(`^\[\[([^\[\]]+)\]\]$`)
)

// NamedQueryRef reports whether the whole template is a [[name]] reference.
func NamedQueryRef(sql string) (string, bool) {
	m := namedQueryPattern.FindStringSubmatch(strings.TrimSpace(sql))
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// TableRefs returns the table names referenced in a template, in order.
func TableRefs(sql string) []string {
	var names []string
	for _, m := range tableRefPattern.FindAllStringSubmatch(sql, -1) {
		names = append(names, strings.TrimSpace(m[1]))
	}
	return names
}
