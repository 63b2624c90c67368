package transform

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapbi/internal/mcode"
	"github.com/leapstack-labs/leapbi/pkg/core"
)

// Arguments maps a custom step's parameter onto the transform's parameter
// groups and returns the rendered M literals for each group.
//
// With a single declared parameter the whole value is passed to it. With
// several, the value must be a list (positional) or a record (by parameter
// name); a lone scalar fills the first parameter. Trailing optional
// parameters may be omitted, and an omitted optional parameter followed by a
// supplied one is passed as null.
func (r *Registry) Arguments(e *Entry, p *core.Param) ([][]string, error) {
	groups := e.chain.Outer()
	if len(groups) == 0 {
		if p != nil {
			return nil, &ArgumentError{Name: e.Name, Reason: fmt.Sprintf("takes no parameters, got %s", p)}
		}
		return nil, nil
	}

	params := e.Params()
	values, err := bind(e.Name, params, p)
	if err != nil {
		return nil, err
	}

	// Drop trailing omitted optionals; fill interior gaps with null.
	last := -1
	for i, v := range values {
		if v != nil {
			last = i
		}
	}
	flat := make([]string, len(params))
	for i := range params {
		if i > last {
			break
		}
		if values[i] == nil {
			flat[i] = "null"
			continue
		}
		s, err := mcode.ParamValue(*values[i])
		if err != nil {
			return nil, &ArgumentError{Name: e.Name, Reason: fmt.Sprintf("parameter %s: %v", params[i].Name, err)}
		}
		flat[i] = s
	}

	out := make([][]string, len(groups))
	i := 0
	for g, group := range groups {
		args := []string{}
		for range group.Params {
			if i <= last {
				args = append(args, flat[i])
			}
			i++
		}
		out[g] = args
	}
	return out, nil
}

// bind assigns the step parameter to declared parameters by position. A nil
// slot means the parameter was not supplied.
func bind(name string, params []mcode.Param, p *core.Param) ([]*core.Param, error) {
	values := make([]*core.Param, len(params))

	switch {
	case p == nil:
	case len(params) == 1:
		values[0] = p
	case p.Kind == core.ParamList:
		if len(p.Items) > len(params) {
			return nil, &ArgumentError{Name: name, Reason: fmt.Sprintf("got %d arguments, takes at most %d", len(p.Items), len(params))}
		}
		for i := range p.Items {
			values[i] = &p.Items[i]
		}
	case p.Kind == core.ParamRecord:
		index := make(map[string]int, len(params))
		for i, dp := range params {
			index[dp.Name] = i
		}
		for i := range p.Fields {
			f := &p.Fields[i]
			j, ok := index[f.Key]
			if !ok {
				return nil, &ArgumentError{Name: name, Reason: fmt.Sprintf("unknown parameter %q (parameters: %s)", f.Key, paramNames(params))}
			}
			values[j] = &f.Value
		}
	default:
		values[0] = p
	}

	var missing []string
	for i, dp := range params {
		if values[i] == nil && !dp.Optional {
			missing = append(missing, dp.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &ArgumentError{Name: name, Reason: "missing required parameter " + strings.Join(missing, ", ")}
	}
	return values, nil
}

func paramNames(params []mcode.Param) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}

// Callee renders the transform applied to its arguments, ready to be called
// with the table: FxLimitRows(1000) or FxDistinct.
func (r *Registry) Callee(e *Entry, p *core.Param) (string, error) {
	groups, err := r.Arguments(e, p)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(e.Generated)
	for _, args := range groups {
		b.WriteString("(")
		b.WriteString(strings.Join(args, ", "))
		b.WriteString(")")
	}
	return b.String(), nil
}
