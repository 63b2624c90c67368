// Package partition compiles a partition's declared load steps into a single
// chained M let expression.
//
// Steps form a closed union folded by a pure reducer into named bindings.
// State operations enforce the phase order connect, locate (navigation or
// native query), select, type, transforms; Compile runs them in sequence.
package partition

import (
	"context"

	"github.com/leapstack-labs/leapbi/internal/typemap"
	"github.com/leapstack-labs/leapbi/pkg/core"
)

// CompiledExpression is the result of compiling one partition.
type CompiledExpression struct {
	Table     string
	Partition string
	SourceKey string
	Mode      core.PartitionMode

	Bindings []Binding
	// Final is the binding the expression returns.
	Final string
	// Text is the rendered let expression.
	Text  string
	Steps []Step

	Warnings []Warning
	// HiddenColumns were discovered by introspection but not declared.
	HiddenColumns []string
	// Transforms are the generated names this partition calls, in first-use order.
	Transforms []string
}

// Compile runs the full step sequence for one partition of table.
// No text is returned when any step fails.
func Compile(ctx context.Context, cat *Catalogs, table *core.Table, part *core.Partition) (*CompiledExpression, error) {
	s, err := Seed(part, table, cat)
	if err != nil {
		return nil, err
	}

	hasNav, hasNative := part.Navigation != nil, part.HasNativeQuery()
	switch {
	case hasNav && hasNative:
		return nil, s.violation(KindNavigate, "partition declares both navigation and nativeQuery")
	case !hasNav && !hasNative:
		return nil, s.violation(KindNavigate, "partition declares neither navigation nor nativeQuery")
	}

	if s, err = s.AddSourceConnection(); err != nil {
		return nil, err
	}
	if hasNav {
		s, err = s.AddNavigation()
	} else {
		s, err = s.AddNativeQuery()
	}
	if err != nil {
		return nil, err
	}
	if s, err = s.AddColumnSelection(ctx); err != nil {
		return nil, err
	}
	if s, err = s.AddTypeTransformation(); err != nil {
		return nil, err
	}
	if s, err = s.AddCustomTransforms(part.CustomSteps); err != nil {
		return nil, err
	}

	text, err := s.Build()
	if err != nil {
		return nil, err
	}
	return &CompiledExpression{
		Table:         table.Name,
		Partition:     part.Name,
		SourceKey:     s.src.Key,
		Mode:          part.Mode,
		Bindings:      s.Bindings(),
		Final:         s.Final(),
		Text:          text,
		Steps:         s.Steps(),
		Warnings:      s.Warnings(),
		HiddenColumns: append([]string(nil), s.hidden...),
		Transforms:    append([]string(nil), s.transforms...),
	}, nil
}

// ValidateTable checks the table-level invariants that do not depend on any
// one partition: measure table shape and column type mappings. Every
// problem is returned.
func ValidateTable(table *core.Table, types *typemap.Mapper) []error {
	loc := Location{Table: table.Name, Step: "validate"}
	var errs []error
	if table.Kind == core.TableKindMeasureTable && (len(table.Columns) > 0 || len(table.Partitions) > 0) {
		errs = append(errs, &MeasureTableShapeViolation{
			Location:   loc,
			Columns:    len(table.Columns),
			Partitions: len(table.Partitions),
		})
	}
	if _, err := columnTypes(table, types, loc); err != nil {
		errs = append(errs, err)
	}
	return errs
}
