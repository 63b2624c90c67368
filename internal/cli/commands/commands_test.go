package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapbi/internal/cli/config"
	clitest "github.com/leapstack-labs/leapbi/internal/cli/testutil"
	"github.com/leapstack-labs/leapbi/pkg/core"
)

func loadTestConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	cfg, err := config.LoadConfig(filepath.Join(dir, "leapbi.yaml"), nil)
	require.NoError(t, err)
	return cfg
}

func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		name  string
		cmd   *cobra.Command
		use   string
		flags []string
		subs  []string
	}{
		{
			name:  "compile",
			cmd:   NewCompileCommand(),
			use:   "compile",
			flags: []string{"out", "transforms-dir", "no-report", "introspect", "concurrency", "watch"},
		},
		{name: "render", cmd: NewRenderCommand(), use: "render <table> [partition]"},
		{name: "validate", cmd: NewValidateCommand(), use: "validate"},
		{name: "transforms", cmd: NewTransformsCommand(), use: "transforms", subs: []string{"list"}},
		{name: "sources", cmd: NewSourcesCommand(), use: "sources", subs: []string{"list"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, f := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(f), "flag %q should exist", f)
			}
			for _, s := range tt.subs {
				found, _, err := tt.cmd.Find([]string{s})
				require.NoError(t, err)
				assert.Equal(t, s, found.Name())
			}
		})
	}
}

func TestCompile_WritesProject(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	t.Setenv("LEAPBI_OUTPUT", "markdown")
	loadTestConfig(t, dir)

	stdout, stderr, err := execute(NewCompileCommand())
	require.NoError(t, err, stderr)

	orders, err := os.ReadFile(filepath.Join(dir, "build", "Shop.SemanticModel", "definition", "tables", "Orders.tmdl"))
	require.NoError(t, err)
	assert.Contains(t, string(orders), "FxDistinct")
	assert.FileExists(t, filepath.Join(dir, "build", "Shop.pbip"))

	assert.Contains(t, stdout, "# Compiled 2 table(s)")
	assert.Contains(t, stdout, "Wrote ")
	assert.Contains(t, stderr, "Customers/all: [column_policy_downgraded]")
	clitest.AssertValidMarkdown(t, stdout)
	clitest.AssertNoANSI(t, stdout+stderr)
}

func TestCompile_JSON(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	t.Setenv("LEAPBI_OUTPUT", "json")
	loadTestConfig(t, dir)

	stdout, _, err := execute(NewCompileCommand(), "--no-report")
	require.NoError(t, err)

	var summary compileSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.NotEmpty(t, summary.RunID)
	assert.Contains(t, summary.Files, "Shop.SemanticModel/definition/tables/Orders.tmdl")
	assert.NotContains(t, summary.Files, "Shop.pbip")
	assert.Equal(t, []string{"FxDistinct"}, summary.Transforms)
	require.Len(t, summary.Diagnostics, 1)
	assert.Equal(t, "column_policy_downgraded", summary.Diagnostics[0].Code)
	assert.Equal(t, []tableSummary{
		{Name: "Orders", Kind: "table", Partitions: 1},
		{Name: "Customers", Kind: "table", Partitions: 1},
	}, summary.Tables)
}

func TestCompile_OutFlag(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	t.Setenv("LEAPBI_OUTPUT", "markdown")
	out := filepath.Join(t.TempDir(), "dist")

	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	cmd := NewCompileCommand()
	require.NoError(t, cmd.Flags().Set("out", out))
	_, err := config.LoadConfig(filepath.Join(dir, "leapbi.yaml"), cmd.Flags())
	require.NoError(t, err)

	_, stderr, err := execute(cmd, "--out", out)
	require.NoError(t, err, stderr)
	assert.FileExists(t, filepath.Join(out, "Shop.SemanticModel", "definition", "model.tmdl"))
	assert.NoDirExists(t, filepath.Join(dir, "build"))
}

func TestCompile_FailureWritesNothing(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	clitest.WriteFile(t, filepath.Join(dir, "model.yml"),
		strings.Replace(clitest.ProjectModel, "- distinct", "- nope", 1))
	t.Setenv("LEAPBI_OUTPUT", "markdown")
	loadTestConfig(t, dir)

	_, stderr, err := execute(NewCompileCommand())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile failed with 1 error(s)")
	assert.Contains(t, stderr, "[unknown_transform]")
	assert.NoDirExists(t, filepath.Join(dir, "build"))
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		dir := clitest.SetupTestProject(t)
		t.Setenv("LEAPBI_OUTPUT", "markdown")
		loadTestConfig(t, dir)

		stdout, stderr, err := execute(NewValidateCommand())
		require.NoError(t, err)
		assert.Contains(t, stdout, "2 table(s), 2 partition(s) compiled, 1 warning(s)")
		assert.Contains(t, stderr, "[column_policy_downgraded]")
		assert.NoDirExists(t, filepath.Join(dir, "build"))
	})

	t.Run("invalid json", func(t *testing.T) {
		dir := clitest.SetupTestProject(t)
		clitest.WriteFile(t, filepath.Join(dir, "model.yml"),
			strings.Replace(clitest.ProjectModel, "- distinct", "- nope", 1))
		t.Setenv("LEAPBI_OUTPUT", "json")
		loadTestConfig(t, dir)

		stdout, _, err := execute(NewValidateCommand())
		require.Error(t, err)

		var rep validateReport
		require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
		assert.False(t, rep.Valid)
		assert.Equal(t, 1, rep.Errors)
		var codes []string
		for _, d := range rep.Diagnostics {
			if d.Severity == core.SeverityError {
				codes = append(codes, d.Code)
			}
		}
		assert.Equal(t, []string{"unknown_transform"}, codes)
	})

	t.Run("missing model file", func(t *testing.T) {
		dir := clitest.SetupTestProject(t)
		require.NoError(t, os.Remove(filepath.Join(dir, "model.yml")))
		t.Setenv("LEAPBI_OUTPUT", "json")
		loadTestConfig(t, dir)

		stdout, _, err := execute(NewValidateCommand())
		require.Error(t, err)
		assert.Contains(t, stdout, "model file does not exist")
	})
}

func TestRender(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	t.Setenv("LEAPBI_OUTPUT", "markdown")
	loadTestConfig(t, dir)

	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr string
	}{
		{
			name: "whole table",
			args: []string{"Orders"},
			want: []string{"## Orders/all", "```powerquery", "FxDistinct(", "\nin\n"},
		},
		{
			name: "one partition",
			args: []string{"Customers", "all"},
			want: []string{"## Customers/all"},
		},
		{name: "unknown table", args: []string{"Nope"}, wantErr: `table "Nope" not found`},
		{name: "unknown partition", args: []string{"Orders", "archive"}, wantErr: `partition "archive" of table "Orders"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(NewRenderCommand(), tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, stdout, w)
			}
			clitest.AssertValidMarkdown(t, stdout)
		})
	}
}

func TestTransformsList(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	t.Setenv("LEAPBI_OUTPUT", "json")
	loadTestConfig(t, dir)

	stdout, _, err := execute(NewTransformsCommand(), "list")
	require.NoError(t, err)

	var infos []transformInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "distinct", infos[0].Name)
	assert.Equal(t, "FxDistinct", infos[0].Generated)
	assert.False(t, infos[0].Parameterized)
	assert.True(t, strings.HasSuffix(infos[0].Path, filepath.Join("transforms", "distinct.m")), infos[0].Path)
}

func TestSourcesList_JSON(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	t.Setenv("LEAPBI_OUTPUT", "json")
	loadTestConfig(t, dir)

	stdout, _, err := execute(NewSourcesCommand(), "list")
	require.NoError(t, err)

	var infos []sourceInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "shop", infos[0].Key)
	assert.Equal(t, "postgresql", infos[0].Kind)
	assert.Equal(t, []string{"standard"}, infos[0].Shapes)
	assert.True(t, infos[0].Supported)
	require.Len(t, infos[0].Templates, 1)
	assert.True(t, strings.HasPrefix(infos[0].Templates[0], "embedded:"))
}

func TestRenderTransforms_Empty(t *testing.T) {
	tr := clitest.NewTestRendererMarkdown()
	require.NoError(t, renderTransforms(tr.Renderer, nil, []string{"/nowhere"}))
	assert.Contains(t, tr.Output(), "No transforms found.")
	assert.Contains(t, tr.Output(), "searched /nowhere")
}

func TestWatchAndCompile_StopsOnCancel(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	cfg := loadTestConfig(t, dir)

	tr := clitest.NewTestRendererMarkdown()
	cc := &CommandContext{Cfg: cfg, Logger: slog.New(slog.DiscardHandler), Renderer: tr.Renderer}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, watchAndCompile(ctx, cc))
	assert.Contains(t, tr.Output(), "Watching for changes")
}

func TestWatchDirs(t *testing.T) {
	cfg := &config.Config{
		ProjectRoot:    "/p",
		Model:          "/p/model.yml",
		Sources:        "/p/conf/sources.yml",
		TransformsDirs: []string{"/shared/transforms"},
		DAXDirs:        []string{"/p/dax"},
		TemplatesDir:   "/p/templates",
	}
	assert.Equal(t, []string{
		"/p", "/p/conf", "/shared/transforms", "/p/dax", "/p/templates", "/p/transforms",
	}, watchDirs(cfg))
}

func TestRenderSources_Modes(t *testing.T) {
	infos := []sourceInfo{
		{Key: "lake", Kind: "excel", Shapes: []string{"standard"}, Templates: []string{"embedded:excel.m.tmpl"}, Supported: true},
		{Key: "legacy", Kind: "oracle", Shapes: []string{}, Templates: []string{}},
	}

	tests := []struct {
		name     string
		renderer *clitest.TestRenderer
		check    func(t *testing.T, out string)
	}{
		{
			name:     "auto without tty is markdown",
			renderer: clitest.NewTestRendererAuto(),
			check: func(t *testing.T, out string) {
				clitest.AssertValidMarkdown(t, out)
				assert.Contains(t, out, "| lake | excel | standard | embedded:excel.m.tmpl |")
				assert.Contains(t, out, "| legacy | oracle | unsupported | - |")
			},
		},
		{
			name:     "text",
			renderer: clitest.NewTestRendererText(),
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "lake")
				assert.Contains(t, out, "unsupported")
			},
		},
		{
			name:     "json",
			renderer: clitest.NewTestRendererJSON(),
			check: func(t *testing.T, out string) {
				var got []sourceInfo
				require.NoError(t, json.Unmarshal([]byte(out), &got))
				assert.Equal(t, infos, got)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, renderSources(tt.renderer.Renderer, infos))
			tt.check(t, tt.renderer.Output())
			assert.Empty(t, tt.renderer.ErrorOutput())
		})
	}
}

func TestDiagnosticsGoToErrorStream(t *testing.T) {
	tr := clitest.NewTestRendererMarkdown()
	require.NoError(t, tr.Diagnostics([]core.Diagnostic{
		{Code: "column_policy_downgraded", Severity: core.SeverityWarning, Table: "Orders", Partition: "all", Message: "hide_extras fell back to keep_all"},
	}))
	assert.Empty(t, tr.Output())
	assert.Contains(t, tr.ErrorOutput(), "Orders/all: [column_policy_downgraded] hide_extras fell back to keep_all")

	tr.Reset()
	assert.Empty(t, tr.ErrorOutput())
}
