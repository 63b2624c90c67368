package transform

import (
	"fmt"
	"strings"
)

// ValidationError reports a transform body that cannot be published.
type ValidationError struct {
	Name   string
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("transform %s (%s): %s", e.Name, e.Path, e.Reason)
}

// CollisionError reports two canonical names that generate the same identifier.
type CollisionError struct {
	Generated string
	Names     [2]string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("transforms %s and %s both generate %s", e.Names[0], e.Names[1], e.Generated)
}

// ArgumentError reports parameters that do not fit a transform's signature.
type ArgumentError struct {
	Name   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("transform %s: %s", e.Name, e.Reason)
}

// LoadError collects every problem found while building a registry.
type LoadError struct {
	Errs []error
}

func (e *LoadError) Error() string {
	if len(e.Errs) == 1 {
		return e.Errs[0].Error()
	}
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = "  " + err.Error()
	}
	return fmt.Sprintf("%d transform errors:\n%s", len(e.Errs), strings.Join(msgs, "\n"))
}

func (e *LoadError) Unwrap() []error {
	return e.Errs
}
