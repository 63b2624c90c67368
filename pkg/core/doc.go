// Package core defines the shared language of the LeapBI system.
//
// This package contains:
//   - Source definitions (Source, SourceKind)
//   - The semantic model (Model, Table, Partition, Column, Measure, Relationship)
//   - Transform invocation requests (TransformStep, Param)
//   - Diagnostics (Severity, Diagnostic)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
