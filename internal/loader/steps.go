package loader

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapbi/pkg/core"
)

var callPattern = regexp.MustCompile(`(?s)^([A-Za-z_][\w-]*)\s*(?:\((.*)\))?$`)

// parseStep normalizes one custom_steps entry. Accepted forms:
//
//	- distinct
//	- limit_rows(1000)
//	- [limit_rows, 1000]
//	- {name: limit_rows, params: 1000}
//	- {limit_rows: 1000}
func parseStep(file, path string, n *yaml.Node) (core.TransformStep, error) {
	n = resolve(n)
	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() != "!!str" {
			return core.TransformStep{}, nodeError(file, n, path, "step must be a transform name, got %s", n.Value)
		}
		return parseCall(file, path, n)

	case yaml.SequenceNode:
		if len(n.Content) == 0 || len(n.Content) > 2 {
			return core.TransformStep{}, nodeError(file, n, path, "step list must be [name] or [name, params]")
		}
		name, err := stepName(file, path, n.Content[0])
		if err != nil {
			return core.TransformStep{}, err
		}
		step := core.TransformStep{Name: name}
		if len(n.Content) == 2 {
			step.Params = optionalParam(n.Content[1])
		}
		return step, nil

	case yaml.MappingNode:
		if nameNode, paramsNode, ok := namedStep(n); ok {
			name, err := stepName(file, path, nameNode)
			if err != nil {
				return core.TransformStep{}, err
			}
			step := core.TransformStep{Name: name}
			if paramsNode != nil {
				step.Params = optionalParam(paramsNode)
			}
			return step, nil
		}
		if len(n.Content) != 2 {
			return core.TransformStep{}, nodeError(file, n, path, "step mapping must be {name: ..., params: ...} or have a single key")
		}
		name, err := stepName(file, path, n.Content[0])
		if err != nil {
			return core.TransformStep{}, err
		}
		return core.TransformStep{Name: name, Params: optionalParam(n.Content[1])}, nil
	}
	return core.TransformStep{}, nodeError(file, n, path, "unsupported step form")
}

// namedStep matches the {name, params} form.
func namedStep(n *yaml.Node) (name, params *yaml.Node, ok bool) {
	for i := 0; i+1 < len(n.Content); i += 2 {
		switch n.Content[i].Value {
		case "name":
			name = n.Content[i+1]
		case "params":
			params = n.Content[i+1]
		default:
			return nil, nil, false
		}
	}
	return name, params, name != nil
}

func stepName(file, path string, n *yaml.Node) (string, error) {
	n = resolve(n)
	name := strings.TrimSpace(n.Value)
	if n.Kind != yaml.ScalarNode || name == "" || !callPattern.MatchString(name) || strings.Contains(name, "(") {
		return "", nodeError(file, n, path, "invalid transform name %q", n.Value)
	}
	return name, nil
}

// parseCall handles "name" and "name(args)". The argument text is read as a
// YAML flow sequence: a single argument becomes a scalar parameter, several
// become a list.
func parseCall(file, path string, n *yaml.Node) (core.TransformStep, error) {
	text := strings.TrimSpace(n.Value)
	m := callPattern.FindStringSubmatch(text)
	if m == nil {
		return core.TransformStep{}, nodeError(file, n, path, "invalid step %q", n.Value)
	}
	step := core.TransformStep{Name: m[1]}
	args := strings.TrimSpace(m[2])
	if args == "" {
		return step, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte("["+args+"]"), &doc); err != nil {
		return core.TransformStep{}, nodeError(file, n, path, "invalid arguments in %q: %v", n.Value, err)
	}
	items := doc.Content[0].Content
	if len(items) == 1 {
		p := paramFromNode(items[0])
		step.Params = &p
		return step, nil
	}
	list := paramFromNode(doc.Content[0])
	step.Params = &list
	return step, nil
}

// optionalParam returns nil for an explicit null.
func optionalParam(n *yaml.Node) *core.Param {
	n = resolve(n)
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null" {
		return nil
	}
	p := paramFromNode(n)
	return &p
}

// paramFromNode converts a YAML node into a Param. Mapping keys keep their
// document order.
func paramFromNode(n *yaml.Node) core.Param {
	n = resolve(n)
	switch n.Kind {
	case yaml.SequenceNode:
		items := make([]core.Param, len(n.Content))
		for i, c := range n.Content {
			items[i] = paramFromNode(c)
		}
		return core.ListParam(items...)
	case yaml.MappingNode:
		fields := make([]core.ParamField, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			fields = append(fields, core.ParamField{Key: n.Content[i].Value, Value: paramFromNode(n.Content[i+1])})
		}
		return core.RecordParam(fields...)
	}

	switch n.ShortTag() {
	case "!!null":
		return core.ScalarParam(nil)
	case "!!bool":
		var v bool
		if n.Decode(&v) == nil {
			return core.ScalarParam(v)
		}
	case "!!int":
		var v int64
		if n.Decode(&v) == nil {
			return core.ScalarParam(v)
		}
	case "!!float":
		var v float64
		if n.Decode(&v) == nil {
			return core.ScalarParam(v)
		}
	}
	return core.ScalarParam(n.Value)
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		return resolve(n.Content[0])
	}
	return n
}
