package template

import (
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionFinding describes a value libinjection flagged as a likely SQL
// injection attempt.
type InjectionFinding struct {
	Name        string
	Value       string
	Fingerprint string
}

// CheckValue runs libinjection over a single value.
// Returns nil when the value looks clean.
func CheckValue(name, value string) *InjectionFinding {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionFinding{
		Name:        name,
		Value:       value,
		Fingerprint: string(fingerprint),
	}
}

// CheckValues runs CheckValue over every entry, returning findings sorted by name.
func CheckValues(values map[string]string) []InjectionFinding {
	var findings []InjectionFinding
	for name, value := range values {
		if f := CheckValue(name, value); f != nil {
			findings = append(findings, *f)
		}
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].Name < findings[j].Name })
	return findings
}
