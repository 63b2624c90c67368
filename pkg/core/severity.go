package core

import (
	"fmt"
	"strings"
)

// =============================================================================
// Severity
// =============================================================================

// Severity indicates the importance of a compile diagnostic.
type Severity int

// Severity levels for diagnostics.
const (
	// SeverityError marks a problem that prevents a partition or table from compiling.
	SeverityError Severity = iota
	// SeverityWarning marks output that was produced but differs from what was declared.
	SeverityWarning
	// SeverityInfo marks informational feedback.
	SeverityInfo
	// SeverityHint marks a suggestion.
	SeverityHint
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// MarshalText encodes the severity by name so JSON output stays readable.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	v, ok := ParseSeverity(string(text))
	if !ok {
		return fmt.Errorf("invalid severity %q", string(text))
	}
	*s = v
	return nil
}

// ParseSeverity converts a string to a Severity value.
// Returns the severity and true if valid, or SeverityWarning and false if invalid.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return SeverityError, true
	case "warning", "warn":
		return SeverityWarning, true
	case "info":
		return SeverityInfo, true
	case "hint":
		return SeverityHint, true
	default:
		return SeverityWarning, false
	}
}

// =============================================================================
// Diagnostic
// =============================================================================

// Diagnostic is a located, machine-readable message produced while compiling.
type Diagnostic struct {
	Code      string   `json:"code"`
	Severity  Severity `json:"severity"`
	Table     string   `json:"table,omitempty"`
	Partition string   `json:"partition,omitempty"`
	Message   string   `json:"message"`
}

// Location renders "table/partition", "table", or "" depending on what is set.
func (d Diagnostic) Location() string {
	switch {
	case d.Table != "" && d.Partition != "":
		return d.Table + "/" + d.Partition
	default:
		return d.Table
	}
}

func (d Diagnostic) String() string {
	if loc := d.Location(); loc != "" {
		return fmt.Sprintf("%s [%s] %s: %s", d.Severity, d.Code, loc, d.Message)
	}
	return fmt.Sprintf("%s [%s] %s", d.Severity, d.Code, d.Message)
}
