package commands

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapbi/internal/cli/output"
	"github.com/leapstack-labs/leapbi/internal/compiler"
	"github.com/leapstack-labs/leapbi/internal/partition"
	"github.com/leapstack-labs/leapbi/pkg/core"
	"github.com/spf13/cobra"
)

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <table> [partition]",
		Short: "Print the compiled M expression of a table",
		Long: `Compile the model and print the M expression of every partition of a table,
or of a single partition. Calculated tables print their DAX expression.

Output adapts to environment:
  - Terminal: the expression text
  - Piped/Scripted: Markdown with a code block`,
		Example: `  # Render every partition of a table
  leapbi render Orders

  # Render one partition
  leapbi render Orders current

  # Render as JSON
  leapbi render Orders --output json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			part := ""
			if len(args) == 2 {
				part = args[1]
			}
			return runRender(cmd, args[0], part)
		},
	}

	return cmd
}

type renderedPartition struct {
	Table      string              `json:"table"`
	Partition  string              `json:"partition,omitempty"`
	Language   string              `json:"language"`
	Mode       string              `json:"mode,omitempty"`
	Expression string              `json:"expression"`
	Transforms []string            `json:"transforms,omitempty"`
	Warnings   []partition.Warning `json:"warnings,omitempty"`
}

func runRender(cmd *cobra.Command, tableName, partName string) error {
	cc := NewCommandContext(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, err := LoadProject(ctx, cc.Cfg, cc.Logger, cc.Cfg.Introspection.Enabled)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if _, ok := p.Model.Table(tableName); !ok {
		return fmt.Errorf("table %q not found in model", tableName)
	}

	res, _ := p.Compile(ctx, cc.Cfg, cc.Logger)
	out, err := selectRendered(res, tableName, partName)
	if err != nil {
		_ = cc.Renderer.Diagnostics(tableDiagnostics(res, tableName))
		return err
	}
	return renderExpressions(cc.Renderer, out)
}

// selectRendered picks the compiled output for a table, or one partition of it.
func selectRendered(res *compiler.Result, tableName, partName string) ([]renderedPartition, error) {
	tr, ok := res.Table(tableName)
	if !ok {
		return nil, fmt.Errorf("table %q not found in model", tableName)
	}

	if tr.Kind == core.TableKindCalculatedTable {
		if tr.CalculatedExpression == "" {
			return nil, fmt.Errorf("table %q did not compile", tableName)
		}
		return []renderedPartition{{Table: tr.Name, Language: "dax", Expression: tr.CalculatedExpression}}, nil
	}

	var out []renderedPartition
	for _, ce := range tr.Partitions {
		if partName != "" && ce.Partition != partName {
			continue
		}
		out = append(out, renderedPartition{
			Table:      ce.Table,
			Partition:  ce.Partition,
			Language:   "powerquery",
			Mode:       string(ce.Mode),
			Expression: ce.Text,
			Transforms: ce.Transforms,
			Warnings:   ce.Warnings,
		})
	}
	if len(out) == 0 {
		if partName != "" {
			return nil, fmt.Errorf("partition %q of table %q did not compile or does not exist", partName, tableName)
		}
		return nil, fmt.Errorf("table %q has no compiled partitions", tableName)
	}
	return out, nil
}

func tableDiagnostics(res *compiler.Result, table string) []core.Diagnostic {
	var out []core.Diagnostic
	for _, d := range res.Diagnostics() {
		if d.Table == table {
			out = append(out, d)
		}
	}
	return out
}

func renderExpressions(r *output.Renderer, parts []renderedPartition) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(parts)
	case output.ModeMarkdown:
		for _, p := range parts {
			r.Println(output.FormatHeader(2, title(p)))
			r.Println()
			r.Println(output.FormatCodeBlock(p.Language, p.Expression))
			r.Println()
			for _, w := range p.Warnings {
				r.Warning(w.String())
			}
		}
	default:
		for i, p := range parts {
			if len(parts) > 1 {
				if i > 0 {
					r.Println()
				}
				r.Muted("// " + title(p))
			}
			r.Println(p.Expression)
			for _, w := range p.Warnings {
				r.Warning(w.String())
			}
		}
	}
	return nil
}

func title(p renderedPartition) string {
	if p.Partition == "" {
		return p.Table
	}
	return p.Table + "/" + p.Partition
}
