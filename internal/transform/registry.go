// Package transform loads reusable M table functions, validates their shape,
// and assigns each one the identifier it is published under.
package transform

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapbi/internal/mcode"
)

// Entry is a validated transform.
type Entry struct {
	// Name is the canonical name custom_steps refer to.
	Name string
	// Generated is the published identifier, e.g. FxLimitRows.
	Generated string
	// Body is the function text with BOM and surrounding whitespace removed.
	Body string
	Path string

	chain *mcode.FunctionChain
}

// Params returns the parameters a caller supplies, in declaration order.
// A unary table transform has none.
func (e *Entry) Params() []mcode.Param {
	var params []mcode.Param
	for _, g := range e.chain.Outer() {
		params = append(params, g.Params...)
	}
	return params
}

// Parameterized reports whether the transform takes arguments before the table.
func (e *Entry) Parameterized() bool {
	return len(e.chain.Outer()) > 0
}

// Registry is a frozen set of transforms. It is safe for concurrent reads.
type Registry struct {
	entries map[string]*Entry
	sorted  []*Entry // by generated name
}

// Build validates defs and assigns generated names. Every validation and
// collision problem is collected into a single *LoadError.
func Build(defs []Definition, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ordered := make([]Definition, len(defs))
	copy(ordered, defs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	r := &Registry{entries: make(map[string]*Entry, len(defs))}
	byGenerated := make(map[string]*Entry, len(defs))
	var errs []error

	for _, def := range ordered {
		if _, dup := r.entries[def.Name]; dup {
			errs = append(errs, &ValidationError{Name: def.Name, Path: def.Path, Reason: "duplicate canonical name"})
			continue
		}
		entry, err := validate(def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, ok := byGenerated[entry.Generated]; ok {
			errs = append(errs, &CollisionError{Generated: entry.Generated, Names: [2]string{prev.Name, entry.Name}})
			continue
		}
		byGenerated[entry.Generated] = entry
		r.entries[entry.Name] = entry
		logger.Debug("transform registered", "name", entry.Name, "generated", entry.Generated, "path", entry.Path)
	}
	if len(errs) > 0 {
		return nil, &LoadError{Errs: errs}
	}

	r.sorted = make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		r.sorted = append(r.sorted, e)
	}
	sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i].Generated < r.sorted[j].Generated })
	return r, nil
}

// Resolve looks up a transform by canonical name.
func (r *Registry) Resolve(name string) (*Entry, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.entries[name]
	return e, ok
}

// Publishable returns every transform, sorted by generated name. Each is
// emitted once per model as a shared expression.
func (r *Registry) Publishable() []*Entry {
	if r == nil {
		return nil
	}
	out := make([]*Entry, len(r.sorted))
	copy(out, r.sorted)
	return out
}

// Len returns the number of transforms.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Names returns the canonical names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// allowedParamTypes are the types accepted for arguments before the table:
// scalars, lists and records. Functions and types cannot be written as
// custom_steps arguments.
var allowedParamTypes = map[string]bool{
	"any": true, "anynonnull": true, "number": true, "text": true, "logical": true,
	"date": true, "datetime": true, "datetimezone": true, "time": true, "duration": true,
	"list": true, "record": true,
}

func validate(def Definition) (*Entry, error) {
	fail := func(format string, args ...any) error {
		return &ValidationError{Name: def.Name, Path: def.Path, Reason: fmt.Sprintf(format, args...)}
	}

	body := strings.TrimSpace(strings.TrimPrefix(def.Body, "\ufeff"))
	if body == "" {
		return nil, fail("empty body")
	}
	if markers := mcode.FindTemplateSyntax(body); len(markers) > 0 {
		m := markers[0]
		return nil, fail("template syntax %s at line %d column %d; transforms take values only through their parameters", m.Text, m.Pos.Line, m.Pos.Column)
	}

	chain, err := mcode.ParseFunction(body)
	if err != nil {
		return nil, fail("not a function: %v", err)
	}

	last := chain.Last()
	if len(last.Params) != 1 || last.Params[0].Type != "table" || last.Params[0].Optional {
		return nil, fail("innermost function must take exactly one parameter of type table, e.g. (t as table) as table => ...")
	}
	if last.ReturnType != "" && last.ReturnType != "table" {
		return nil, fail("innermost function returns %s, want table", last.ReturnType)
	}

	for i, g := range chain.Outer() {
		if len(g.Params) == 0 {
			return nil, fail("parameter group %d is empty", i+1)
		}
		if g.ReturnType != "" && g.ReturnType != "function" {
			return nil, fail("parameter group %d returns %s, want function", i+1, g.ReturnType)
		}
		for _, p := range g.Params {
			if p.Type != "" && !allowedParamTypes[p.Type] {
				return nil, fail("parameter %s has unsupported type %s", p.Name, p.Type)
			}
		}
	}

	return &Entry{
		Name:      def.Name,
		Generated: GeneratedName(def.Name),
		Body:      body,
		Path:      def.Path,
		chain:     chain,
	}, nil
}
