package output

import (
	"github.com/leapstack-labs/leapbi/pkg/core"
)

// Diagnostics renders compiler diagnostics. In JSON mode they are written as
// an array; otherwise errors and warnings go to the error stream, one per line.
func (r *Renderer) Diagnostics(diags []core.Diagnostic) error {
	if r.EffectiveMode() == ModeJSON {
		if diags == nil {
			diags = []core.Diagnostic{}
		}
		return r.JSON(diags)
	}
	for _, d := range diags {
		msg := "[" + d.Code + "] " + d.Message
		if loc := d.Location(); loc != "" {
			msg = loc + ": " + msg
		}
		if d.Severity == core.SeverityError {
			r.Error(msg)
		} else {
			r.Warning(msg)
		}
	}
	return nil
}
