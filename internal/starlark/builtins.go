package starlark

import (
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// ActionInfo describes the action invocation exposed to a script as "action".
type ActionInfo struct {
	Name      string // Action name
	Parameter string // Query parameter that triggered the action
}

// ToStarlark converts ActionInfo to a Starlark struct value.
func (a *ActionInfo) ToStarlark() starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String("action"), starlark.StringDict{
		"name":      starlark.String(a.Name),
		"parameter": starlark.String(a.Parameter),
	})
}

// Predeclared builds the globals available to an action script:
// params (dict of resolved request parameters), options (dict of the
// action's configured options), action (struct with name and parameter)
// and the struct() builtin.
func Predeclared(info *ActionInfo, params map[string]string, options map[string]any) (starlark.StringDict, error) {
	p, err := GoToStarlark(params)
	if err != nil {
		return nil, err
	}
	if options == nil {
		options = map[string]any{}
	}
	o, err := GoToStarlark(options)
	if err != nil {
		return nil, err
	}
	return starlark.StringDict{
		"params":  p,
		"options": o,
		"action":  info.ToStarlark(),
		"struct":  starlark.NewBuiltin("struct", starlarkstruct.Make),
	}, nil
}
