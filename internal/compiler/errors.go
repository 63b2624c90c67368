package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapbi/internal/partition"
	"github.com/leapstack-labs/leapbi/pkg/core"
)

// RunError collects every table and partition error of a run.
type RunError struct {
	Errs []error
}

func (e *RunError) Error() string {
	if len(e.Errs) == 1 {
		return e.Errs[0].Error()
	}
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = "  " + err.Error()
	}
	return fmt.Sprintf("%d compile errors:\n%s", len(e.Errs), strings.Join(msgs, "\n"))
}

// Unwrap exposes the member errors to errors.Is and errors.As.
func (e *RunError) Unwrap() []error {
	return e.Errs
}

// Diagnostics converts the errors to located diagnostics.
func (e *RunError) Diagnostics() []core.Diagnostic {
	out := make([]core.Diagnostic, 0, len(e.Errs))
	for _, err := range e.Errs {
		out = append(out, errorDiagnostic(err))
	}
	return out
}

func errorDiagnostic(err error) core.Diagnostic {
	d := core.Diagnostic{Code: "error", Severity: core.SeverityError, Message: err.Error()}
	var located partition.Located
	if errors.As(err, &located) {
		loc := located.Where()
		d.Code = located.Code()
		d.Table = loc.Table
		d.Partition = loc.Partition
	}
	return d
}

// DuplicateTableError reports two tables with the same name.
type DuplicateTableError struct {
	partition.Location
}

func (e *DuplicateTableError) Error() string {
	return fmt.Sprintf("%s: table name is declared more than once", e.Location)
}

func (e *DuplicateTableError) Where() partition.Location { return e.Location }
func (e *DuplicateTableError) Code() string              { return "duplicate_table" }

// CalculatedTableError reports a calculated table without a usable DAX expression.
type CalculatedTableError struct {
	partition.Location
	Reason string
}

func (e *CalculatedTableError) Error() string {
	return fmt.Sprintf("%s: %s", e.Location, e.Reason)
}

func (e *CalculatedTableError) Where() partition.Location { return e.Location }
func (e *CalculatedTableError) Code() string              { return "calculated_table" }

// RelationshipError reports a relationship whose endpoint cannot be resolved.
type RelationshipError struct {
	Name   string
	Reason string
}

func (e *RelationshipError) Error() string {
	return fmt.Sprintf("relationship %s: %s", e.Name, e.Reason)
}

func (e *RelationshipError) Where() partition.Location { return partition.Location{Step: "validate"} }
func (e *RelationshipError) Code() string              { return "relationship" }
