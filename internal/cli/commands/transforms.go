package commands

import (
	"github.com/leapstack-labs/leapbi/internal/cli/output"
	"github.com/leapstack-labs/leapbi/internal/transform"
	"github.com/spf13/cobra"
)

// NewTransformsCommand creates the transforms command group.
func NewTransformsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transforms",
		Short: "Inspect the transform catalog",
	}
	cmd.AddCommand(newTransformsListCommand())
	return cmd
}

type transformInfo struct {
	Name          string   `json:"name"`
	Generated     string   `json:"generated"`
	Parameters    []string `json:"parameters"`
	Parameterized bool     `json:"parameterized"`
	Path          string   `json:"path"`
}

func newTransformsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered transforms and where they come from",
		Long: `List every transform from the discovered directories, lowest to highest
precedence: the user data directory, LEAPBI_TRANSFORMS_PATH, transforms_dirs
and --transforms-dir, ./transforms and <project>/transforms. A later file with
the same canonical name overrides an earlier one.`,
		Example: `  leapbi transforms list
  leapbi transforms list --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			dirs := transform.DiscoverDirs(transform.Discovery{
				ProjectRoot: cc.Cfg.ProjectRoot,
				Dirs:        cc.Cfg.TransformsDirs,
			})
			reg, err := transform.Load(dirs, cc.Logger)
			if err != nil {
				return err
			}
			return renderTransforms(cc.Renderer, reg, dirs)
		},
	}
}

func renderTransforms(r *output.Renderer, reg *transform.Registry, dirs []string) error {
	var infos []transformInfo
	for _, e := range reg.Publishable() {
		info := transformInfo{
			Name:          e.Name,
			Generated:     e.Generated,
			Parameters:    []string{},
			Parameterized: e.Parameterized(),
			Path:          e.Path,
		}
		for _, p := range e.Params() {
			info.Parameters = append(info.Parameters, p.Name)
		}
		infos = append(infos, info)
	}

	if r.EffectiveMode() == output.ModeJSON {
		if infos == nil {
			infos = []transformInfo{}
		}
		return r.JSON(infos)
	}

	if len(infos) == 0 {
		r.Muted("No transforms found.")
		for _, d := range dirs {
			r.Muted("  searched " + d)
		}
		return nil
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{info.Name, info.Generated, joinOrDash(info.Parameters), info.Path})
	}
	r.Header(1, "Transforms")
	r.Table([]string{"Name", "Generated", "Parameters", "Origin"}, rows)
	return nil
}
