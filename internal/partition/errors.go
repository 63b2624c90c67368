package partition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapbi/internal/source"
	"github.com/leapstack-labs/leapbi/pkg/core"
)

// Location identifies where a compile error arose.
type Location struct {
	Table     string
	Partition string
	// Step is a StepKind name, or "seed" / "validate" / "load".
	Step string
}

func (l Location) String() string {
	var parts []string
	if l.Table != "" {
		parts = append(parts, "table "+l.Table)
	}
	if l.Partition != "" {
		parts = append(parts, "partition "+l.Partition)
	}
	if l.Step != "" {
		parts = append(parts, "step "+l.Step)
	}
	return strings.Join(parts, ", ")
}

// Located is implemented by every partition compile error.
type Located interface {
	error
	Where() Location
	// Code is a stable machine-readable identifier.
	Code() string
}

// UnknownSourceError reports a partition whose use key names no source.
type UnknownSourceError struct {
	Location
	Use       string
	Available []string
}

func (e *UnknownSourceError) Error() string {
	if e.Use == "" {
		return fmt.Sprintf("%s: partition has no source (set use on the partition or source.use on the table)", e.Location)
	}
	return fmt.Sprintf("%s: unknown source %q (available: %s)", e.Location, e.Use, strings.Join(e.Available, ", "))
}

// Where returns the error location.
func (e *UnknownSourceError) Where() Location { return e.Location }

// Code returns "unknown_source".
func (e *UnknownSourceError) Code() string { return "unknown_source" }

// UnsupportedSourceKindError reports a source kind with no usable template.
type UnsupportedSourceKindError struct {
	Location
	Kind core.SourceKind
	Err  error
}

func (e *UnsupportedSourceKindError) Error() string {
	return fmt.Sprintf("%s: %v", e.Location, e.Err)
}

func (e *UnsupportedSourceKindError) Unwrap() error   { return e.Err }
func (e *UnsupportedSourceKindError) Where() Location { return e.Location }
func (e *UnsupportedSourceKindError) Code() string    { return "unsupported_source_kind" }

// SourceTemplateError reports a connector template that failed to render.
type SourceTemplateError struct {
	Location
	Err error
}

func (e *SourceTemplateError) Error() string {
	return fmt.Sprintf("%s: %v", e.Location, e.Err)
}

func (e *SourceTemplateError) Unwrap() error   { return e.Err }
func (e *SourceTemplateError) Where() Location { return e.Location }
func (e *SourceTemplateError) Code() string    { return "source_template" }

// StepOrderingViolation reports steps applied out of order, or a partition
// declaring both or neither of navigation and nativeQuery.
type StepOrderingViolation struct {
	Location
	Reason string
}

func (e *StepOrderingViolation) Error() string {
	return fmt.Sprintf("%s: %s", e.Location, e.Reason)
}

func (e *StepOrderingViolation) Where() Location { return e.Location }
func (e *StepOrderingViolation) Code() string    { return "step_ordering" }

// UnmappedColumn is one column whose type has no mapping.
type UnmappedColumn struct {
	Column string
	Type   string
}

// UnmappedTypeError lists every column of a table with an unmapped type.
type UnmappedTypeError struct {
	Location
	Columns   []UnmappedColumn
	Supported []string
}

func (e *UnmappedTypeError) Error() string {
	cols := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		cols[i] = fmt.Sprintf("%s (%s)", c.Column, c.Type)
	}
	return fmt.Sprintf("%s: unmapped data types for columns %s (supported: %s)",
		e.Location, strings.Join(cols, ", "), strings.Join(e.Supported, ", "))
}

func (e *UnmappedTypeError) Where() Location { return e.Location }
func (e *UnmappedTypeError) Code() string    { return "unmapped_type" }

// UnknownTransformError lists every unresolvable transform a partition references.
type UnknownTransformError struct {
	Location
	Names     []string
	Available []string
}

func (e *UnknownTransformError) Error() string {
	avail := "none"
	if len(e.Available) > 0 {
		avail = strings.Join(e.Available, ", ")
	}
	return fmt.Sprintf("%s: unknown transforms %s (available: %s)", e.Location, strings.Join(e.Names, ", "), avail)
}

func (e *UnknownTransformError) Where() Location { return e.Location }
func (e *UnknownTransformError) Code() string    { return "unknown_transform" }

// TransformValidationError wraps the problems found while loading transforms.
type TransformValidationError struct {
	Location
	Err error
}

func (e *TransformValidationError) Error() string {
	return fmt.Sprintf("invalid transforms: %v", e.Err)
}

func (e *TransformValidationError) Unwrap() error   { return e.Err }
func (e *TransformValidationError) Where() Location { return e.Location }
func (e *TransformValidationError) Code() string    { return "transform_validation" }

// TransformArgumentError reports custom step parameters that do not fit the
// transform's signature.
type TransformArgumentError struct {
	Location
	Err error
}

func (e *TransformArgumentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Location, e.Err)
}

func (e *TransformArgumentError) Unwrap() error   { return e.Err }
func (e *TransformArgumentError) Where() Location { return e.Location }
func (e *TransformArgumentError) Code() string    { return "transform_arguments" }

// MeasureTableShapeViolation reports a measure table with columns or partitions.
type MeasureTableShapeViolation struct {
	Location
	Columns    int
	Partitions int
}

func (e *MeasureTableShapeViolation) Error() string {
	return fmt.Sprintf("%s: measure table must have no columns and no partitions (has %d columns, %d partitions)",
		e.Location, e.Columns, e.Partitions)
}

func (e *MeasureTableShapeViolation) Where() Location { return e.Location }
func (e *MeasureTableShapeViolation) Code() string    { return "measure_table_shape" }

// IntrospectionError reports a failed schema discovery for hide_extras.
type IntrospectionError struct {
	Location
	Source string
	Err    error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("%s: introspecting source %s: %v", e.Location, e.Source, e.Err)
}

func (e *IntrospectionError) Unwrap() error   { return e.Err }
func (e *IntrospectionError) Where() Location { return e.Location }
func (e *IntrospectionError) Code() string    { return "introspection" }

// templateError classifies a resolver failure.
func templateError(loc Location, kind core.SourceKind, err error) error {
	var uk *source.UnsupportedKindError
	if errors.As(err, &uk) {
		return &UnsupportedSourceKindError{Location: loc, Kind: kind, Err: err}
	}
	return &SourceTemplateError{Location: loc, Err: err}
}
