package source

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapbi/pkg/core"
)

// UnsupportedKindError is returned when no template can serve a kind and shape.
type UnsupportedKindError struct {
	Kind      core.SourceKind
	Shape     Shape
	Available []string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("no %s template for source kind %q (available: %s)", e.Shape, e.Kind, strings.Join(e.Available, ", "))
}

// TemplateError is returned when a template fails to parse, render, or
// normalize.
type TemplateError struct {
	Kind   core.SourceKind
	Shape  Shape
	Origin string
	Err    error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("%s template for %s (%s): %v", e.Shape, e.Kind, e.Origin, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}
