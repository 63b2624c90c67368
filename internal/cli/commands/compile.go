package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/leapbi/internal/cli/config"
	"github.com/leapstack-labs/leapbi/internal/cli/output"
	"github.com/leapstack-labs/leapbi/internal/compiler"
	"github.com/leapstack-labs/leapbi/internal/emit"
	"github.com/leapstack-labs/leapbi/pkg/core"
	"github.com/spf13/cobra"
)

// watchDebounce coalesces bursts of file events into one recompile.
const watchDebounce = 150 * time.Millisecond

// CompileOptions holds options for the compile command that are not
// configuration keys.
type CompileOptions struct {
	Watch bool
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	opts := &CompileOptions{}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the model into a Power BI project",
		Long: `Compile every table and partition of the model and write a PBIP project
(TMDL semantic model plus an optional report stub) to the output directory.

Errors from every table are reported together; nothing is written when any
partition fails to compile.`,
		Example: `  # Compile into ./build
  leapbi compile

  # Compile into a custom directory without a report stub
  leapbi compile --out dist --no-report

  # Use extra transform directories and discover hidden columns live
  leapbi compile --transforms-dir ../shared/transforms --introspect

  # Recompile whenever model, sources or transforms change
  leapbi compile --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompile(cmd, opts)
		},
	}

	cmd.Flags().String("out", "", "Output directory (default: build)")
	cmd.Flags().StringSlice("transforms-dir", nil, "Transform directory (repeatable, highest precedence last)")
	cmd.Flags().Bool("no-report", false, "Do not write the .Report stub or .pbip file")
	cmd.Flags().Bool("introspect", false, "Discover source columns for hide_extras tables")
	cmd.Flags().Int("concurrency", 0, "Compile partitions in parallel with this many workers")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Recompile on file changes")

	return cmd
}

type tableSummary struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Partitions int    `json:"partitions"`
}

type compileSummary struct {
	RunID       string            `json:"run_id"`
	OutputDir   string            `json:"output_dir"`
	Files       []string          `json:"files"`
	Tables      []tableSummary    `json:"tables"`
	Transforms  []string          `json:"transforms_used"`
	Diagnostics []core.Diagnostic `json:"diagnostics"`
}

func runCompile(cmd *cobra.Command, opts *CompileOptions) error {
	cc := NewCommandContext(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	err := compileOnce(ctx, cc)
	if !opts.Watch {
		return err
	}
	if err != nil {
		cc.Renderer.Error(err.Error())
	}
	return watchAndCompile(ctx, cc)
}

// compileOnce loads the project, compiles it and writes the output tree.
func compileOnce(ctx context.Context, cc *CommandContext) error {
	cfg, r := cc.Cfg, cc.Renderer

	p, err := LoadProject(ctx, cfg, cc.Logger, cfg.Introspection.Enabled)
	if err != nil {
		_ = r.Diagnostics(diagnosticsOf(nil, err))
		return err
	}
	defer func() { _ = p.Close() }()

	res, err := p.Compile(ctx, cfg, cc.Logger)
	diags := diagnosticsOf(res, err)
	if err != nil {
		_ = r.Diagnostics(diags)
		var runErr *compiler.RunError
		if errors.As(err, &runErr) {
			return fmt.Errorf("compile failed with %d error(s)", len(runErr.Errs))
		}
		return err
	}

	files, err := p.Emit(res, cfg)
	if err != nil {
		return fmt.Errorf("emit project: %w", err)
	}
	if err := files.WriteDir(cfg.OutputDir); err != nil {
		return err
	}

	return renderCompileSummary(r, buildSummary(res, files, cfg.OutputDir, diags))
}

func buildSummary(res *compiler.Result, files *emit.Files, outDir string, diags []core.Diagnostic) compileSummary {
	s := compileSummary{
		RunID:       res.RunID,
		OutputDir:   outDir,
		Files:       files.Paths(),
		Transforms:  res.Used,
		Diagnostics: diags,
	}
	if s.Transforms == nil {
		s.Transforms = []string{}
	}
	if s.Diagnostics == nil {
		s.Diagnostics = []core.Diagnostic{}
	}
	for _, t := range res.Tables {
		kind := string(t.Kind)
		if kind == "" {
			kind = string(core.TableKindTable)
		}
		s.Tables = append(s.Tables, tableSummary{Name: t.Name, Kind: kind, Partitions: len(t.Partitions)})
	}
	return s
}

func renderCompileSummary(r *output.Renderer, s compileSummary) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(s)
	}

	r.Header(1, fmt.Sprintf("Compiled %d table(s)", len(s.Tables)))
	rows := make([][]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		rows = append(rows, []string{t.Name, t.Kind, strconv.Itoa(t.Partitions)})
	}
	r.Table([]string{"Table", "Kind", "Partitions"}, rows)

	if err := r.Diagnostics(s.Diagnostics); err != nil {
		return err
	}
	r.Success(fmt.Sprintf("Wrote %d files to %s", len(s.Files), s.OutputDir))
	r.Muted("run " + s.RunID)
	return nil
}

// watchedExts are the file types that trigger a recompile.
var watchedExts = map[string]bool{
	".yml":  true,
	".yaml": true,
	".m":    true,
	".dax":  true,
	".tmpl": true,
}

// watchDirs lists the directories holding project inputs.
func watchDirs(cfg *config.Config) []string {
	dirs := []string{filepath.Dir(cfg.Model), filepath.Dir(cfg.Sources)}
	dirs = append(dirs, cfg.TransformsDirs...)
	dirs = append(dirs, cfg.DAXDirs...)
	if cfg.TemplatesDir != "" {
		dirs = append(dirs, cfg.TemplatesDir)
	}
	if cfg.ProjectRoot != "" {
		dirs = append(dirs, filepath.Join(cfg.ProjectRoot, "transforms"))
	}
	return dirs
}

// watchAndCompile recompiles whenever a project input changes, until ctx is done.
// Compile failures are reported and do not stop the watch.
func watchAndCompile(ctx context.Context, cc *CommandContext) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	outDir, _ := filepath.Abs(cc.Cfg.OutputDir)
	seen := map[string]bool{}
	for _, dir := range watchDirs(cc.Cfg) {
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := watchDirRecursive(watcher, dir, outDir); err != nil {
			cc.Logger.Debug("not watching directory", "dir", dir, "error", err)
		}
	}

	cc.Renderer.Muted("Watching for changes (Ctrl+C to stop)")

	trigger := make(chan struct{}, 1)
	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !watchedExts[filepath.Ext(event.Name)] {
				continue
			}
			cc.Logger.Debug("file changed", "file", event.Name, "op", event.Op.String())
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			if err := compileOnce(ctx, cc); err != nil {
				cc.Renderer.Error(err.Error())
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cc.Logger.Error("watcher error", "error", err)
		}
	}
}

// watchDirRecursive adds a directory and all subdirectories to the watcher,
// skipping the output directory.
func watchDirRecursive(watcher *fsnotify.Watcher, dir, skip string) error {
	if _, err := os.Stat(dir); err != nil {
		return err
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == skip {
			return filepath.SkipDir
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
