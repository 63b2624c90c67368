package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/leapstack-labs/leapbi/internal/cli/config"
	"github.com/leapstack-labs/leapbi/internal/cli/output"
	"github.com/leapstack-labs/leapbi/internal/compiler"
	"github.com/leapstack-labs/leapbi/internal/emit"
	"github.com/leapstack-labs/leapbi/internal/introspect"
	"github.com/leapstack-labs/leapbi/internal/loader"
	"github.com/leapstack-labs/leapbi/internal/transform"
	"github.com/leapstack-labs/leapbi/pkg/core"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// getConfig returns the current configuration, or defaults when none was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		Model:        config.DefaultModel,
		Sources:      config.DefaultSources,
		OutputDir:    config.DefaultOutputDir,
		DAXDirs:      []string{config.DefaultDAXDir},
		Concurrency:  config.DefaultConcurrency,
		StubReport:   true,
		OutputFormat: config.DefaultOutput,
	}
}

// Project is a loaded model with the catalogs it compiles against.
type Project struct {
	Model    *core.Model
	Sources  map[string]core.Source
	Catalogs *compiler.Catalogs

	introspector *introspect.Multi
}

// LoadProject reads sources and model files and loads every catalog. When
// introspection is requested, connections from the configuration are opened;
// the caller must Close the project.
func LoadProject(ctx context.Context, cfg *config.Config, logger *slog.Logger, introspection bool) (*Project, error) {
	if err := cfg.ValidateFiles(); err != nil {
		return nil, err
	}
	sources, err := loader.LoadSources(cfg.Sources)
	if err != nil {
		return nil, err
	}
	model, err := loader.LoadModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	p := &Project{Model: model, Sources: sources}

	catCfg := compiler.CatalogConfig{
		Sources:      sources,
		TemplatesDir: cfg.TemplatesDir,
		TransformDirs: transform.DiscoverDirs(transform.Discovery{
			ProjectRoot: cfg.ProjectRoot,
			Dirs:        cfg.TransformsDirs,
		}),
		DAXDirs: cfg.DAXDirs,
		Logger:  logger,
	}

	if introspection && len(cfg.Introspection.Connections) > 0 {
		multi, err := introspect.NewMulti(ctx, introspect.DefaultRegistry(), sources,
			withDefaultTimeout(cfg.Introspection.Connections, cfg.Introspection.Timeout.String()), logger)
		if err != nil {
			return nil, fmt.Errorf("open introspection connections: %w", err)
		}
		p.introspector = multi
		catCfg.Introspector = multi
	}

	p.Catalogs, err = compiler.LoadCatalogs(catCfg)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func withDefaultTimeout(conns map[string]map[string]any, timeout string) map[string]map[string]any {
	out := make(map[string]map[string]any, len(conns))
	for key, conn := range conns {
		c := maps.Clone(conn)
		if c == nil {
			c = map[string]any{}
		}
		if _, ok := c["timeout"]; !ok {
			c["timeout"] = timeout
		}
		out[key] = c
	}
	return out
}

// Compile runs the compiler over the project.
func (p *Project) Compile(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*compiler.Result, error) {
	return compiler.Run(ctx, p.Model, p.Catalogs, compiler.Options{
		Concurrency: cfg.Concurrency,
		Logger:      logger,
	})
}

// Emit renders the PBIP project for a successful run.
func (p *Project) Emit(res *compiler.Result, cfg *config.Config) (*emit.Files, error) {
	return emit.Project(p.Model, res, p.Sources, emit.Options{
		Templates:  p.Catalogs.Templates,
		Types:      p.Catalogs.Types,
		StubReport: cfg.StubReport,
	})
}

// Close releases introspection connections.
func (p *Project) Close() error {
	if p == nil || p.introspector == nil {
		return nil
	}
	return p.introspector.Close()
}

// diagnosticsOf returns the diagnostics of a run. Errors that did not come
// from the compiler, such as load failures, become a single diagnostic.
func diagnosticsOf(res *compiler.Result, err error) []core.Diagnostic {
	if res != nil {
		return res.Diagnostics()
	}
	var runErr *compiler.RunError
	if errors.As(err, &runErr) {
		return runErr.Diagnostics()
	}
	if err != nil {
		return []core.Diagnostic{{Code: "load", Severity: core.SeverityError, Message: err.Error()}}
	}
	return nil
}
