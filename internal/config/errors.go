package config

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/sqlgate/pkg/core"
)

// NodeError is a structural problem found while decoding a YAML node.
type NodeError struct {
	Line    int
	Message string
}

func (e *NodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

func nodeErrorf(node *yaml.Node, format string, args ...any) error {
	return &NodeError{Line: node.Line, Message: fmt.Sprintf(format, args...)}
}

// ParseError represents a malformed gateway document.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

var yamlLinePattern = regexp.MustCompile(`line (\d+): `)

// newParseError converts a decode failure into a classified ConfigParseError.
func newParseError(file string, err error) error {
	pe := &ParseError{File: file, Message: err.Error()}

	var ne *NodeError
	if errors.As(err, &ne) {
		pe.Line = ne.Line
		pe.Message = ne.Message
	} else if m := yamlLinePattern.FindStringSubmatch(pe.Message); m != nil {
		pe.Line, _ = strconv.Atoi(m[1])
		pe.Message = strings.TrimPrefix(pe.Message[strings.Index(pe.Message, m[0])+len(m[0]):], " ")
	}
	pe.Message = strings.TrimPrefix(pe.Message, "yaml: ")

	return &core.Error{Kind: core.KindConfigParse, Message: pe.Error(), Err: pe}
}

func newNotFoundError(what, file string) error {
	return core.Errorf(core.KindConfigNotFound, "%s not found: %s", what, file)
}
