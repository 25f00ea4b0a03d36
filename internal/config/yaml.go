package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a sequence of single-key mappings, keeping declared order.
func (rs *ParameterRules) UnmarshalYAML(node *yaml.Node) error {
	if isNull(node) {
		*rs = nil
		return nil
	}
	if node.Kind != yaml.SequenceNode {
		return nodeErrorf(node, "query_params must be a list")
	}

	rules := make(ParameterRules, 0, len(node.Content))
	seen := make(map[string]bool, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return nodeErrorf(item, "query_params entries must be a mapping with exactly one parameter name")
		}
		name := item.Content[0].Value
		if seen[name] {
			return nodeErrorf(item, "duplicate parameter %q", name)
		}
		seen[name] = true

		rule, err := decodeRule(name, item.Content[1])
		if err != nil {
			return err
		}
		rule.Line = item.Line
		rules = append(rules, rule)
	}
	*rs = rules
	return nil
}

func decodeRule(name string, node *yaml.Node) (ParameterRule, error) {
	rule := ParameterRule{Name: name}
	if node.Kind != yaml.MappingNode {
		return rule, nodeErrorf(node, "parameter %q must be a mapping", name)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var err error
		switch key.Value {
		case "sql":
			err = val.Decode(&rule.SQL)
		case "sql_append":
			err = val.Decode(&rule.SQLAppend)
		case "response":
			rule.HasResponse = true
			err = val.Decode(&rule.Response)
		case "conditional":
			rule.Conditional, err = decodeConditional(name, val)
		case "action":
			rule.Action, err = decodeAction(val)
		case "required":
			err = val.Decode(&rule.Required)
		case "default":
			rule.HasDefault = true
			err = val.Decode(&rule.Default)
		case "missing_response":
			if val.Kind != yaml.MappingNode {
				return rule, nodeErrorf(val, "parameter %q: missing_response must be a mapping", name)
			}
			err = val.Decode(&rule.MissingResponse)
		default:
			rule.Unknown = append(rule.Unknown, key.Value)
		}
		if err != nil {
			return rule, nodeErrorf(val, "parameter %q: invalid %s: %v", name, key.Value, err)
		}
	}
	return rule, nil
}

func decodeConditional(name string, node *yaml.Node) (*Conditional, error) {
	if node.Kind != yaml.MappingNode {
		return nil, nodeErrorf(node, "parameter %q: conditional must be a mapping", name)
	}

	c := &Conditional{Branches: make(map[string]Outcome)}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		out, err := decodeOutcome(name, key.Value, val)
		if err != nil {
			return nil, err
		}
		if key.Value == "default" {
			c.Default = &out
			continue
		}
		c.Keys = append(c.Keys, key.Value)
		c.Branches[key.Value] = out
	}
	return c, nil
}

func decodeOutcome(name, value string, node *yaml.Node) (Outcome, error) {
	var out Outcome
	if node.Kind != yaml.MappingNode {
		return out, nodeErrorf(node, "parameter %q: conditional branch %q must be a mapping", name, value)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var err error
		switch key.Value {
		case "sql":
			err = val.Decode(&out.SQL)
		case "response":
			out.HasResponse = true
			err = val.Decode(&out.Response)
		case "action":
			out.Action, err = decodeAction(val)
		default:
			out.Unknown = append(out.Unknown, key.Value)
		}
		if err != nil {
			return out, nodeErrorf(val, "parameter %q: branch %q: invalid %s: %v", name, value, key.Value, err)
		}
	}
	return out, nil
}

func decodeAction(node *yaml.Node) (*ActionRef, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return &ActionRef{Name: node.Value}, nil
	case yaml.MappingNode:
		var raw map[string]any
		if err := node.Decode(&raw); err != nil {
			return nil, err
		}
		ref := &ActionRef{Options: make(map[string]any)}
		for k, v := range raw {
			if k == "name" {
				ref.Name = Stringify(v)
				continue
			}
			ref.Options[k] = v
		}
		return ref, nil
	default:
		return nil, fmt.Errorf("action must be a name or a mapping")
	}
}

// UnmarshalYAML accepts a bare URI or a mapping with uri (or path) plus metadata.
func (t *TableDefinition) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		t.URI = node.Value
		t.Metadata = map[string]any{}
		return nil
	case yaml.MappingNode:
		var raw map[string]any
		if err := node.Decode(&raw); err != nil {
			return nodeErrorf(node, "invalid table definition: %v", err)
		}
		uri, ok := raw["uri"]
		if !ok {
			uri = raw["path"]
		}
		t.URI = Stringify(uri)
		if t.URI == "" {
			return nodeErrorf(node, "table definition needs a uri")
		}
		delete(raw, "uri")
		delete(raw, "path")
		t.Metadata = raw
		return nil
	default:
		return nodeErrorf(node, "table definition must be a string or a mapping")
	}
}

// UnmarshalYAML accepts a remote file name or an inline remote mapping.
func (r *RemoteRef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		r.File = node.Value
		return nil
	case yaml.MappingNode:
		var rc RemoteConfig
		if err := node.Decode(&rc); err != nil {
			return nodeErrorf(node, "invalid inline remote: %v", err)
		}
		if rc.Name == "" {
			return nodeErrorf(node, "inline remote needs a name")
		}
		r.Inline = &rc
		return nil
	default:
		return nodeErrorf(node, "remote entries must be a file name or a mapping")
	}
}

// UnmarshalYAML decodes the main config, keeping every top-level key in Raw.
func (m *MainConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain MainConfig
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}

	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}

	var dbs struct {
		Databases []yaml.Node `yaml:"databases"`
	}
	if err := node.Decode(&dbs); err != nil {
		return nodeErrorf(node, "databases must be a list")
	}
	_, p.databasesListed = raw["databases"]
	for i := range dbs.Databases {
		entry := &dbs.Databases[i]
		switch entry.Kind {
		case yaml.ScalarNode:
			p.Databases = append(p.Databases, entry.Value)
		case yaml.MappingNode:
			var named struct {
				Name string `yaml:"name"`
			}
			if err := entry.Decode(&named); err != nil || named.Name == "" {
				return nodeErrorf(entry, "database entries need a name")
			}
			p.Databases = append(p.Databases, named.Name)
		default:
			return nodeErrorf(entry, "database entries must be a name or a mapping")
		}
	}

	*m = MainConfig(p)
	m.Raw = raw
	return nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}
