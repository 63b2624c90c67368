package starlark

import (
	"fmt"

	"github.com/leapstack-labs/leapbi/internal/mcode"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Builtin global names. User-supplied globals may not shadow them.
const (
	GlobalSource    = "src"
	GlobalSourceKey = "source_key"
	GlobalM         = "m"
)

// MModule is the "m" helper namespace. Each helper returns M source text:
//
//	m.text("a")                  -> "a"
//	m.identifier("Changed Type") -> #"Changed Type"
//	m.list(["A", 1])             -> {"A", 1}
//	m.record({"Role": "R"})      -> [Role = "R"]
//	m.value(None)                -> null
var MModule = &starlarkstruct.Module{
	Name: GlobalM,
	Members: starlark.StringDict{
		"text":       starlark.NewBuiltin("m.text", mText),
		"identifier": starlark.NewBuiltin("m.identifier", mIdentifier),
		"list":       starlark.NewBuiltin("m.list", mList),
		"record":     starlark.NewBuiltin("m.record", mRecord),
		"value":      starlark.NewBuiltin("m.value", mValue),
	},
}

func mText(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	return starlark.String(mcode.Text(s)), nil
}

func mIdentifier(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	return starlark.String(mcode.Identifier(s)), nil
}

func mList(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var items starlark.Iterable
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &items); err != nil {
		return nil, err
	}
	s, err := literal(items)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn.Name(), err)
	}
	return starlark.String(s), nil
}

// mRecord renders a dict as an M record in insertion order. With
// skip_empty=True, entries whose value is None or "" are left out, which
// keeps optional connector settings out of the call.
func mRecord(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var d *starlark.Dict
	skipEmpty := false
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "fields", &d, "skip_empty?", &skipEmpty); err != nil {
		return nil, err
	}
	var fields []mcode.Field
	for _, item := range d.Items() {
		key, ok := item[0].(starlark.String)
		if !ok {
			return nil, fmt.Errorf("%s: field name must be a string, got %s", fn.Name(), item[0].Type())
		}
		if skipEmpty && isEmpty(item[1]) {
			continue
		}
		v, err := literal(item[1])
		if err != nil {
			return nil, fmt.Errorf("%s: field %s: %w", fn.Name(), key, err)
		}
		fields = append(fields, mcode.Field{Name: string(key), Value: v})
	}
	return starlark.String(mcode.Record(fields...)), nil
}

func mValue(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	s, err := literal(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn.Name(), err)
	}
	return starlark.String(s), nil
}

// literal renders a Starlark value as an M literal. Dicts become records in
// insertion order, every other iterable becomes a list.
func literal(v starlark.Value) (string, error) {
	switch x := v.(type) {
	case *starlark.Dict:
		fields := make([]mcode.Field, 0, x.Len())
		for _, item := range x.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return "", fmt.Errorf("field name must be a string, got %s", item[0].Type())
			}
			s, err := literal(item[1])
			if err != nil {
				return "", err
			}
			fields = append(fields, mcode.Field{Name: string(key), Value: s})
		}
		return mcode.Record(fields...), nil
	case starlark.String:
		return mcode.Text(string(x)), nil
	case starlark.Iterable:
		iter := x.Iterate()
		defer iter.Done()
		var items []string
		var elem starlark.Value
		for iter.Next(&elem) {
			s, err := literal(elem)
			if err != nil {
				return "", err
			}
			items = append(items, s)
		}
		return mcode.List(items...), nil
	}
	g, err := ToGo(v)
	if err != nil {
		return "", err
	}
	return mcode.Value(g)
}

func isEmpty(v starlark.Value) bool {
	switch x := v.(type) {
	case starlark.NoneType:
		return true
	case starlark.String:
		return x == ""
	}
	return false
}

// Predeclared returns the builtin globals for rendering a template against src.
func Predeclared(src *SourceInfo) (starlark.StringDict, error) {
	globals := starlark.StringDict{
		GlobalM: MModule,
	}
	if src == nil {
		return globals, nil
	}
	sv, err := src.ToStarlark()
	if err != nil {
		return nil, err
	}
	globals[GlobalSource] = sv
	globals[GlobalSourceKey] = starlark.String(src.Key)
	return globals, nil
}
