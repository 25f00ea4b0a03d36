package template

import (
	"regexp"
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/core"
)

// Mode selects how a value is written into a template.
type Mode int

const (
	// Quoted always writes a single-quoted SQL string literal.
	Quoted Mode = iota
	// Raw writes a sanitized value without quotes.
	Raw
	// Literal writes numeric values bare and quotes everything else.
	Literal
	// Plain writes the value verbatim. Only for non-SQL payloads.
	Plain
)

func (m Mode) String() string {
	switch m {
	case Quoted:
		return "quoted"
	case Raw:
		return "raw"
	case Literal:
		return "literal"
	case Plain:
		return "plain"
	default:
		return "unknown"
	}
}

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][\w.-]*)\s*\}\}`)
	numericPattern     = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
)

// Quote escapes embedded single quotes by doubling them and wraps the result
// in single quotes.
func Quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// IsNumeric reports whether value is a plain decimal literal.
func IsNumeric(value string) bool {
	return numericPattern.MatchString(value)
}

// Placeholders returns the distinct placeholder names in tmpl, in order of
// first appearance.
func Placeholders(tmpl string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Substitute replaces {{name}} placeholders in tmpl using values.
// Placeholders without a value are left verbatim so later stages can fill them.
// In Raw mode every substituted value must pass Sanitize; the first rejection
// aborts substitution.
func Substitute(tmpl string, values map[string]string, mode Mode) (string, error) {
	var firstErr error
	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		if firstErr != nil {
			return match
		}
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := values[name]
		if !ok {
			return match
		}
		rendered, err := render(value, mode)
		if err != nil {
			firstErr = core.Wrap(core.KindInvalidIdentifier, err, "parameter '"+name+"'")
			return match
		}
		return rendered
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func render(value string, mode Mode) (string, error) {
	switch mode {
	case Quoted:
		return Quote(value), nil
	case Raw:
		return Sanitize(value)
	case Literal:
		if IsNumeric(value) {
			return value, nil
		}
		return Quote(value), nil
	default:
		return value, nil
	}
}

// RenderPayload substitutes placeholders in every string leaf of a response
// payload. Mappings and sequences are copied recursively; other scalars are
// returned untouched. The input is never modified.
func RenderPayload(payload any, values map[string]string) any {
	switch v := payload.(type) {
	case string:
		// Plain substitution never fails.
		out, _ := Substitute(v, values, Plain)
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = RenderPayload(item, values)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = RenderPayload(item, values)
		}
		return out
	default:
		return payload
	}
}
