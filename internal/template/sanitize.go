// Package template implements the flat {{name}} variable substitution used by
// gateway SQL templates and response payloads.
//
// Values headed for SQL string positions are quoted. Values headed for
// unquoted positions (columns, sort directions, numeric limits) must pass
// Sanitize first, which rejects anything outside a strict allow-list.
package template

import (
	"regexp"
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/core"
)

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)?$`)
	integerPattern    = regexp.MustCompile(`^[0-9]+$`)
)

// Sanitize validates a value destined for an unquoted SQL position and
// returns it with surrounding whitespace removed.
//
// Accepted shapes: an identifier of letters, digits and underscores with at
// most one dot (table.column), the keywords ASC and DESC in any case, or a
// non-negative integer. Everything else fails with an InvalidIdentifier error.
func Sanitize(value string) (string, error) {
	v := strings.TrimSpace(value)
	switch {
	case v == "":
		return "", core.Errorf(core.KindInvalidIdentifier, "invalid identifier: empty value")
	case strings.EqualFold(v, "ASC"), strings.EqualFold(v, "DESC"):
		return v, nil
	case integerPattern.MatchString(v):
		return v, nil
	case identifierPattern.MatchString(v):
		return v, nil
	}
	return "", core.Errorf(core.KindInvalidIdentifier, "invalid identifier %q", value)
}
