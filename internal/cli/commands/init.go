package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapbi/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new leapbi project",
		Long: `Initialize a new leapbi project with a working example.

This creates:
  - leapbi.yaml configuration file
  - sources.yml with one PostgreSQL source
  - model.yml with import, calculated and measure tables
  - transforms/ with distinct and limit_rows
  - dax/ with a date_table template`,
		Example: `  # Initialize in current directory
  leapbi init

  # Initialize in a new directory
  leapbi init my-model

  # Force overwrite existing files
  leapbi init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "leapbi.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("leapbi.yaml already exists. Use --force to overwrite")
	}

	if err := copyTemplate("minimal", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, _ := listTemplateFiles("minimal")
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{"directory": dir, "files": files})
	}
	for _, f := range files {
		r.Success(f)
	}

	r.Println("")
	r.Success("leapbi project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Point sources.yml at your warehouse")
	r.Println("  2. Describe tables in model.yml")
	r.Println("  3. Run 'leapbi validate' to check the model")
	r.Println("  4. Run 'leapbi compile' to write the Power BI project")

	return nil
}
