package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/leapstack-labs/sqlgate/internal/action"
	"github.com/leapstack-labs/sqlgate/internal/config"
	"github.com/leapstack-labs/sqlgate/internal/template"
	"github.com/leapstack-labs/sqlgate/pkg/core"
)

// Options configures parameter evaluation and query building.
type Options struct {
	// Actions runs rule actions. Nil uses action.Echo.
	Actions action.Executor
	// Logger receives debug traces and injection audit warnings. Nil discards.
	Logger *slog.Logger
	// StrictInjection rejects values libinjection flags instead of only
	// logging them.
	StrictInjection bool
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

func (o Options) actions() action.Executor {
	if o.Actions == nil {
		return action.Echo
	}
	return o.Actions
}

// Response is a short-circuit result returned to the client as JSON.
type Response struct {
	Status int
	Body   any
}

// Evaluation is the outcome of running a rule list against a request.
// When Response is set, the request ends there and no SQL is built.
type Evaluation struct {
	Response *Response

	// Where holds rendered WHERE fragments in rule order.
	Where []string
	// Append holds rendered append fragments in rule order.
	Append []string
	// Values is the combined mapping used for substitution: path params,
	// query params, and defaults of absent parameters.
	Values map[string]string
}

// Evaluate runs rules in declared order against the request parameters.
// The first rule that short-circuits wins. Fragments are rendered only after
// every rule has been visited, so they can reference any parameter's value.
func Evaluate(ctx context.Context, rules config.ParameterRules, pathParams, queryParams map[string]string, opts Options) (*Evaluation, error) {
	log := opts.logger()
	values := combine(rules, pathParams, queryParams)
	eval := &Evaluation{Values: values}

	var where, appends []string
	for _, rule := range rules {
		value, supplied := queryParams[rule.Name]

		if rule.Required && !supplied {
			eval.Response = missing(rule)
			return eval, nil
		}

		if rule.HasResponse {
			if supplied {
				log.Debug("parameter response", slog.String("param", rule.Name))
				eval.Response = &Response{Status: http.StatusOK, Body: template.RenderPayload(rule.Response, values)}
				return eval, nil
			}
			continue
		}

		if rule.Action != nil && supplied {
			eval.Response = dispatch(ctx, rule.Name, rule.Action, values, opts)
			return eval, nil
		}

		if rule.Conditional != nil && supplied {
			out, _, ok := rule.Conditional.Lookup(value)
			if !ok {
				continue
			}
			switch {
			case out.HasResponse:
				log.Debug("conditional response", slog.String("param", rule.Name), slog.String("value", value))
				eval.Response = &Response{Status: http.StatusOK, Body: template.RenderPayload(out.Response, values)}
				return eval, nil
			case out.Action != nil:
				eval.Response = dispatch(ctx, rule.Name, out.Action, values, opts)
				return eval, nil
			case out.SQL != "":
				where = append(where, out.SQL)
			}
			continue
		}

		if !supplied && !rule.HasDefault {
			continue
		}
		switch {
		case rule.SQL != "":
			where = append(where, rule.SQL)
		case rule.SQLAppend != "":
			appends = append(appends, rule.SQLAppend)
		}
	}

	var err error
	if eval.Where, err = renderFragments(where, values, template.Literal, opts); err != nil {
		return nil, err
	}
	if eval.Append, err = renderFragments(appends, values, template.Raw, opts); err != nil {
		return nil, err
	}
	return eval, nil
}

// combine builds the substitution mapping. Query params override path
// params; defaults fill names the request did not supply.
func combine(rules config.ParameterRules, pathParams, queryParams map[string]string) map[string]string {
	values := make(map[string]string, len(pathParams)+len(queryParams)+len(rules))
	for k, v := range pathParams {
		values[k] = v
	}
	for k, v := range queryParams {
		values[k] = v
	}
	for _, r := range rules {
		if _, ok := values[r.Name]; !ok && r.HasDefault {
			values[r.Name] = r.DefaultString()
		}
	}
	return values
}

func renderFragments(frags []string, values map[string]string, mode template.Mode, opts Options) ([]string, error) {
	var out []string
	for _, frag := range frags {
		if mode != template.Raw {
			if err := audit(frag, values, opts); err != nil {
				return nil, err
			}
		}
		rendered, err := template.Substitute(frag, values, mode)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(rendered) == "" {
			continue
		}
		out = append(out, rendered)
	}
	return out, nil
}

// audit runs libinjection over the values a template will receive.
func audit(tmpl string, values map[string]string, opts Options) error {
	for _, name := range template.Placeholders(tmpl) {
		value, ok := values[name]
		if !ok {
			continue
		}
		f := template.CheckValue(name, value)
		if f == nil {
			continue
		}
		opts.logger().Warn("possible SQL injection in parameter",
			slog.String("param", f.Name),
			slog.String("fingerprint", f.Fingerprint))
		if opts.StrictInjection {
			return core.Errorf(core.KindInvalidIdentifier,
				"Parameter '%s' was rejected as a possible SQL injection", f.Name)
		}
	}
	return nil
}

func dispatch(ctx context.Context, param string, ref *config.ActionRef, values map[string]string, opts Options) *Response {
	inv := action.Invocation{
		Name:      ref.Name,
		Options:   ref.Options,
		Parameter: param,
		Params:    values,
	}
	result, err := opts.actions().Execute(ctx, inv)
	if err != nil {
		opts.logger().Warn("action failed",
			slog.String("action", ref.Name),
			slog.String("param", param),
			slog.String("error", err.Error()))
		return &Response{
			Status: http.StatusInternalServerError,
			Body:   map[string]any{"error": fmt.Sprintf("Action execution failed: %v", err)},
		}
	}
	return &Response{Status: http.StatusOK, Body: result}
}

func missing(rule config.ParameterRule) *Response {
	if rule.MissingResponse != nil {
		return &Response{Status: rule.MissingStatus(), Body: rule.MissingResponse}
	}
	return &Response{
		Status: http.StatusBadRequest,
		Body:   map[string]any{"error": fmt.Sprintf("Required parameter '%s' is missing", rule.Name)},
	}
}
