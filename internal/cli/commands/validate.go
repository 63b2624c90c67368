package commands

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapbi/internal/cli/output"
	"github.com/leapstack-labs/leapbi/pkg/core"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the model without writing output",
		Long: `Load sources, model, transforms and templates, compile every partition and
report all errors and warnings. Nothing is written to disk.

Exits non-zero when any error is found.`,
		Example: `  # Validate the project in the current directory
  leapbi validate

  # Machine-readable diagnostics
  leapbi validate --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd)
		},
	}
	return cmd
}

type validateReport struct {
	Valid       bool              `json:"valid"`
	Tables      int               `json:"tables"`
	Partitions  int               `json:"partitions"`
	Errors      int               `json:"errors"`
	Warnings    int               `json:"warnings"`
	Diagnostics []core.Diagnostic `json:"diagnostics"`
}

func runValidate(cmd *cobra.Command) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var rep validateReport
	p, err := LoadProject(ctx, cc.Cfg, cc.Logger, cc.Cfg.Introspection.Enabled)
	if err != nil {
		rep.Diagnostics = diagnosticsOf(nil, err)
	} else {
		defer func() { _ = p.Close() }()
		res, runErr := p.Compile(ctx, cc.Cfg, cc.Logger)
		rep.Diagnostics = diagnosticsOf(res, runErr)
		rep.Tables = len(p.Model.Tables)
		for _, t := range res.Tables {
			rep.Partitions += len(t.Partitions)
		}
	}
	for _, d := range rep.Diagnostics {
		if d.Severity == core.SeverityError {
			rep.Errors++
		} else {
			rep.Warnings++
		}
	}
	rep.Valid = rep.Errors == 0
	if rep.Diagnostics == nil {
		rep.Diagnostics = []core.Diagnostic{}
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(rep); err != nil {
			return err
		}
	} else {
		if err := r.Diagnostics(rep.Diagnostics); err != nil {
			return err
		}
		if rep.Valid {
			r.Success(fmt.Sprintf("%d table(s), %d partition(s) compiled, %d warning(s)", rep.Tables, rep.Partitions, rep.Warnings))
		}
	}

	if !rep.Valid {
		return fmt.Errorf("validation failed with %d error(s)", rep.Errors)
	}
	return nil
}
