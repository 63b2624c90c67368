// Package introspect discovers the live column list of a source table.
//
// Introspection is optional: the compiler only calls it for partitions whose
// table declares the hide_extras column policy, and falls back to keep_all
// with a warning when no introspector serves the source.
package introspect

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapbi/pkg/core"
)

// Introspector lists the columns of the table a navigation path points at,
// in source ordinal order.
type Introspector interface {
	DiscoverColumns(ctx context.Context, src core.Source, nav core.Navigation) ([]string, error)
}

// Func adapts a function to the Introspector interface.
type Func func(ctx context.Context, src core.Source, nav core.Navigation) ([]string, error)

// DiscoverColumns calls f.
func (f Func) DiscoverColumns(ctx context.Context, src core.Source, nav core.Navigation) ([]string, error) {
	return f(ctx, src, nav)
}

// UnsupportedError is returned when no introspector serves a source. Callers
// treat it as "introspection unavailable" rather than as a failure.
type UnsupportedError struct {
	Kind      core.SourceKind
	SourceKey string
	Available []string
}

func (e *UnsupportedError) Error() string {
	if e.SourceKey != "" {
		return fmt.Sprintf("no introspector configured for source %q (kind %s)", e.SourceKey, e.Kind)
	}
	return fmt.Sprintf("introspection is not supported for source kind %q (supported: %v)", e.Kind, e.Available)
}

// IsUnsupported reports whether err means introspection is unavailable.
func IsUnsupported(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}

// TableNotFoundError is returned when the navigation path names no table.
type TableNotFoundError struct {
	Schema string
	Table  string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %s.%s not found", e.Schema, e.Table)
}

// DatabaseMismatchError is returned when a navigation path names a database
// other than the one the introspection connection is opened on.
type DatabaseMismatchError struct {
	Want      string
	Connected string
}

func (e *DatabaseMismatchError) Error() string {
	if e.Connected == "" {
		return fmt.Sprintf("navigation targets database %q but the introspection connection names no database", e.Want)
	}
	return fmt.Sprintf("navigation targets database %q but the introspection connection is on %q", e.Want, e.Connected)
}
