package partition

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapbi/internal/introspect"
	"github.com/leapstack-labs/leapbi/internal/source"
	"github.com/leapstack-labs/leapbi/internal/transform"
	"github.com/leapstack-labs/leapbi/internal/typemap"
	"github.com/leapstack-labs/leapbi/pkg/core"
)

// Templates resolves connector snippets for a source.
type Templates interface {
	Resolve(src core.Source, shape source.Shape) (string, error)
}

// Catalogs are the read-only inputs every partition of a run compiles against.
type Catalogs struct {
	Sources    map[string]core.Source
	Templates  Templates
	Transforms *transform.Registry
	Types      *typemap.Mapper
	// Introspector is optional. Without one, hide_extras compiles as keep_all.
	Introspector introspect.Introspector
}

type phase int

const (
	phaseSeeded phase = iota
	phaseConnected
	phaseLocated
	phaseSelected
	phaseTyped
	phaseTransformed
)

// State is an immutable snapshot of one partition mid-compilation. Every
// operation returns a new State and leaves the receiver untouched.
type State struct {
	cat   *Catalogs
	table *core.Table
	part  *core.Partition
	src   core.Source
	phase phase

	steps      []Step
	acc        accumulator
	warnings   []Warning
	hidden     []string
	transforms []string
}

// Seed starts a partition. It fails with *UnknownSourceError when the
// partition's use key names no source.
func Seed(part *core.Partition, table *core.Table, cat *Catalogs) (State, error) {
	loc := Location{Table: table.Name, Partition: part.Name, Step: "seed"}
	src, ok := cat.Sources[part.Use]
	if !ok || part.Use == "" {
		keys := make([]string, 0, len(cat.Sources))
		for k := range cat.Sources {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return State{}, &UnknownSourceError{Location: loc, Use: part.Use, Available: keys}
	}
	src.Key = part.Use
	return State{cat: cat, table: table, part: part, src: src}, nil
}

func (s State) loc(kind StepKind) Location {
	return Location{Table: s.table.Name, Partition: s.part.Name, Step: kind.String()}
}

func (s State) violation(kind StepKind, format string, args ...any) error {
	return &StepOrderingViolation{Location: s.loc(kind), Reason: fmt.Sprintf(format, args...)}
}

// with returns a copy of s advanced to p with steps appended.
func (s State) with(p phase, steps ...Step) State {
	next := s
	next.phase = p
	if len(steps) > 0 {
		next.steps = append(s.steps[:len(s.steps):len(s.steps)], steps...)
		for _, st := range steps {
			next.acc = reduce(next.acc, st)
		}
	}
	return next
}

func (s State) warn(w Warning) State {
	w.Table, w.Partition = s.table.Name, s.part.Name
	s.warnings = append(s.warnings[:len(s.warnings):len(s.warnings)], w)
	return s
}

// AddSourceConnection binds the inline connector snippet for the source.
func (s State) AddSourceConnection() (State, error) {
	if s.phase != phaseSeeded {
		return s, s.violation(KindConnect, "source connection must be the first step")
	}
	snippet, err := s.cat.Templates.Resolve(s.src, source.ShapeInline)
	if err != nil {
		return s, templateError(s.loc(KindConnect), s.src.Kind, err)
	}
	return s.with(phaseConnected, Connect{Snippet: snippet}), nil
}

// database is the navigation database, falling back to the source's.
func (s State) database() string {
	if s.part.Navigation != nil && s.part.Navigation.Database != "" {
		return s.part.Navigation.Database
	}
	return s.src.Database
}

func (s State) checkLocate(kind StepKind) error {
	switch {
	case s.phase < phaseConnected:
		return s.violation(kind, "%s before the source connection", kind)
	case s.phase > phaseConnected:
		return s.violation(kind, "partition already has a navigation or native query step")
	case s.part.Navigation != nil && s.part.HasNativeQuery():
		return s.violation(kind, "partition declares both navigation and nativeQuery")
	}
	return nil
}

// AddNavigation binds one step per non-empty level of the navigation path.
func (s State) AddNavigation() (State, error) {
	if err := s.checkLocate(KindNavigate); err != nil {
		return s, err
	}
	if s.part.Navigation == nil {
		return s, s.violation(KindNavigate, "partition declares no navigation")
	}

	nav := s.part.Navigation
	var steps []Step
	for _, lv := range []struct {
		level NavLevel
		name  string
	}{
		{LevelDatabase, s.database()},
		{LevelSchema, nav.Schema},
		{LevelTable, nav.Table},
	} {
		if lv.name != "" {
			steps = append(steps, Navigate{Level: lv.level, Name: lv.name})
		}
	}
	return s.with(phaseLocated, steps...), nil
}

// AddNativeQuery binds the partition's query text run against the source.
func (s State) AddNativeQuery() (State, error) {
	if err := s.checkLocate(KindNativeQuery); err != nil {
		return s, err
	}
	if !s.part.HasNativeQuery() {
		return s, s.violation(KindNativeQuery, "partition declares no nativeQuery")
	}
	step := NativeQuery{Query: strings.TrimSpace(s.part.NativeQuery), Database: s.database()}
	return s.with(phaseLocated, step), nil
}

func (s State) declaredColumns() []string {
	names := make([]string, len(s.table.Columns))
	for i, c := range s.table.Columns {
		names[i] = c.SourceName()
	}
	return names
}

// AddColumnSelection applies the table's column policy. Under hide_extras it
// consults the introspector, if any; discovered columns that were not
// declared are selected and reported through HiddenColumns.
func (s State) AddColumnSelection(ctx context.Context) (State, error) {
	switch {
	case s.phase < phaseLocated:
		return s, s.violation(KindSelectColumns, "partition declares neither navigation nor nativeQuery")
	case s.phase > phaseLocated:
		return s, s.violation(KindSelectColumns, "column selection already applied")
	}

	declared := s.declaredColumns()
	switch s.table.ColumnPolicy {
	case core.PolicyKeepAll:
		return s.with(phaseSelected), nil

	case core.PolicyHideExtras:
		discovered, reason, err := s.discover(ctx)
		if err != nil {
			return s, err
		}
		if reason != "" {
			next := s.warn(Warning{
				Code:    WarnColumnPolicyDowngraded,
				From:    string(core.PolicyHideExtras),
				To:      string(core.PolicyKeepAll),
				Message: "hide_extras compiled as keep_all: " + reason,
			})
			return next.with(phaseSelected), nil
		}

		seen := make(map[string]bool, len(declared))
		for _, c := range declared {
			seen[c] = true
		}
		cols := append([]string(nil), declared...)
		var hidden []string
		for _, c := range discovered {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
				hidden = append(hidden, c)
			}
		}
		next := s.with(phaseSelected, SelectColumns{Columns: cols})
		next.hidden = hidden
		return next, nil

	default:
		if len(declared) == 0 {
			return s.with(phaseSelected), nil
		}
		return s.with(phaseSelected, SelectColumns{Columns: declared}), nil
	}
}

// discover asks the introspector for the live columns. A non-empty reason
// means introspection is unavailable and the policy must downgrade.
func (s State) discover(ctx context.Context) (cols []string, reason string, err error) {
	switch {
	case s.cat.Introspector == nil:
		return nil, "no introspector configured", nil
	case s.part.HasNativeQuery():
		return nil, "native query partitions cannot be introspected", nil
	case s.part.Navigation == nil || s.part.Navigation.Table == "":
		return nil, "navigation names no table", nil
	}

	nav := core.Navigation{Database: s.database(), Schema: s.part.Navigation.Schema, Table: s.part.Navigation.Table}
	cols, err = s.cat.Introspector.DiscoverColumns(ctx, s.src, nav)
	if err != nil {
		if introspect.IsUnsupported(err) {
			return nil, err.Error(), nil
		}
		return nil, "", &IntrospectionError{Location: s.loc(KindSelectColumns), Source: s.src.Key, Err: err}
	}
	return cols, "", nil
}

// AddTypeTransformation coerces every declared column to its mapped M type.
// All unmapped columns of the table are reported together.
func (s State) AddTypeTransformation() (State, error) {
	if s.phase != phaseSelected {
		return s, s.violation(KindCoerceTypes, "type transformation must follow column selection")
	}
	if len(s.table.Columns) == 0 {
		return s.with(phaseTyped), nil
	}
	types, err := columnTypes(s.table, s.cat.Types, s.loc(KindCoerceTypes))
	if err != nil {
		return s, err
	}
	return s.with(phaseTyped, CoerceTypes{Types: types}), nil
}

func columnTypes(table *core.Table, types *typemap.Mapper, loc Location) ([]ColumnType, error) {
	out := make([]ColumnType, 0, len(table.Columns))
	var unmapped []UnmappedColumn
	for _, c := range table.Columns {
		m, ok := types.Lookup(c.DataType)
		if !ok {
			unmapped = append(unmapped, UnmappedColumn{Column: c.Name, Type: c.DataType})
			continue
		}
		out = append(out, ColumnType{Column: c.SourceName(), MType: m.M})
	}
	if len(unmapped) > 0 {
		return nil, &UnmappedTypeError{Location: loc, Columns: unmapped, Supported: types.Types()}
	}
	return out, nil
}

// AddCustomTransforms chains each requested transform onto the previous
// binding, in order. Every unknown name is reported in one error.
func (s State) AddCustomTransforms(reqs []core.TransformStep) (State, error) {
	if s.phase != phaseTyped {
		return s, s.violation(KindInvokeTransform, "custom transforms must follow type transformation")
	}
	loc := s.loc(KindInvokeTransform)

	var missing []string
	seenMissing := make(map[string]bool)
	entries := make([]*transform.Entry, len(reqs))
	for i, r := range reqs {
		e, ok := s.cat.Transforms.Resolve(r.Name)
		if !ok {
			if !seenMissing[r.Name] {
				seenMissing[r.Name] = true
				missing = append(missing, r.Name)
			}
			continue
		}
		entries[i] = e
	}
	if len(missing) > 0 {
		return s, &UnknownTransformError{Location: loc, Names: missing, Available: s.cat.Transforms.Names()}
	}

	steps := make([]Step, len(reqs))
	used := append([]string(nil), s.transforms...)
	for i, r := range reqs {
		callee, err := s.cat.Transforms.Callee(entries[i], r.Params)
		if err != nil {
			return s, &TransformArgumentError{Location: loc, Err: err}
		}
		steps[i] = InvokeTransform{Transform: r.Name, Generated: entries[i].Generated, Callee: callee}
		if !contains(used, entries[i].Generated) {
			used = append(used, entries[i].Generated)
		}
	}

	next := s
	if len(reqs) > 0 && s.part.Mode == core.ModeDirectQuery {
		names := make([]string, len(reqs))
		for i, r := range reqs {
			names[i] = r.Name
		}
		next = next.warn(Warning{
			Code:    WarnDirectQueryTransforms,
			Message: "DirectQuery partition applies transforms that may not fold: " + strings.Join(names, ", "),
		})
	}
	next = next.with(phaseTransformed, steps...)
	next.transforms = used
	return next, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Build renders the bindings as a let expression returning the last one.
// It does not change s, so repeated calls return identical text.
func (s State) Build() (string, error) {
	if s.phase < phaseLocated {
		return "", s.violation(KindConnect, "partition declares neither navigation nor nativeQuery")
	}
	return render(s.acc.bindings), nil
}

// Bindings returns the bindings accumulated so far.
func (s State) Bindings() []Binding {
	return append([]Binding(nil), s.acc.bindings...)
}

// Steps returns the steps applied so far.
func (s State) Steps() []Step {
	return append([]Step(nil), s.steps...)
}

// Warnings returns the warnings recorded so far.
func (s State) Warnings() []Warning {
	return append([]Warning(nil), s.warnings...)
}

// Final returns the name of the last binding.
func (s State) Final() string {
	return s.acc.last()
}

func render(bindings []Binding) string {
	var b strings.Builder
	b.WriteString("let\n")
	for i, bd := range bindings {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("    ")
		b.WriteString(bd.Name)
		b.WriteString(" = ")
		b.WriteString(bd.Expr)
	}
	b.WriteString("\nin\n    ")
	if len(bindings) > 0 {
		b.WriteString(bindings[len(bindings)-1].Name)
	}
	return b.String()
}
