package commands

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/leapbi/internal/cli/output"
	"github.com/leapstack-labs/leapbi/internal/loader"
	"github.com/leapstack-labs/leapbi/internal/source"
	"github.com/leapstack-labs/leapbi/pkg/core"
	"github.com/spf13/cobra"
)

// NewSourcesCommand creates the sources command group.
func NewSourcesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect declared sources and connector templates",
	}
	cmd.AddCommand(newSourcesListCommand())
	return cmd
}

type sourceInfo struct {
	Key       string   `json:"key"`
	Kind      string   `json:"kind"`
	Shapes    []string `json:"shapes"`
	Templates []string `json:"templates"`
	Supported bool     `json:"supported"`
}

func newSourcesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sources with their kind and available template shapes",
		Long: `List every source declared in sources.yml with its kind and the connector
template shapes available for it. Inline shapes fall back to the standard
template when a kind has no inline template of its own.`,
		Example: `  leapbi sources list
  leapbi sources list --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			sources, err := loader.LoadSources(cc.Cfg.Sources)
			if err != nil {
				return err
			}
			opts := []source.Option{source.WithLogger(cc.Logger)}
			if cc.Cfg.TemplatesDir != "" {
				opts = append(opts, source.WithOverrideDir(cc.Cfg.TemplatesDir))
			}
			res, err := source.NewResolver(opts...)
			if err != nil {
				return err
			}
			return renderSources(cc.Renderer, describeSources(sources, res))
		},
	}
}

func describeSources(sources map[string]core.Source, res *source.Resolver) []sourceInfo {
	keys := make([]string, 0, len(sources))
	for k := range sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	infos := make([]sourceInfo, 0, len(keys))
	for _, k := range keys {
		src := sources[k]
		info := sourceInfo{Key: k, Kind: string(src.Kind), Shapes: []string{}, Templates: []string{}}
		for _, shape := range res.Shapes(src.Kind) {
			info.Shapes = append(info.Shapes, string(shape))
			if origin, ok := res.Origin(src.Kind, shape); ok {
				info.Templates = append(info.Templates, origin)
			}
		}
		info.Supported = len(info.Shapes) > 0
		infos = append(infos, info)
	}
	return infos
}

func renderSources(r *output.Renderer, infos []sourceInfo) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(infos)
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		shapes := joinOrDash(info.Shapes)
		if !info.Supported {
			shapes = "unsupported"
		}
		rows = append(rows, []string{info.Key, info.Kind, shapes, joinOrDash(info.Templates)})
	}
	r.Header(1, "Sources")
	r.Table([]string{"Key", "Kind", "Shapes", "Templates"}, rows)
	return nil
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
