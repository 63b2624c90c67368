package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "leapbi.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func compileFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("out", "", "output directory")
	flags.StringSlice("transforms-dir", nil, "transform directories")
	flags.Bool("no-report", false, "skip report")
	flags.Bool("introspect", false, "introspect")
	flags.Int("concurrency", 0, "workers")
	flags.StringP("output", "o", "", "output format")
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(dir, DefaultModel), cfg.Model)
	assert.Equal(t, filepath.Join(dir, DefaultSources), cfg.Sources)
	assert.Equal(t, filepath.Join(dir, DefaultOutputDir), cfg.OutputDir)
	assert.Equal(t, []string{filepath.Join(dir, DefaultDAXDir)}, cfg.DAXDirs)
	assert.Empty(t, cfg.TransformsDirs)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.True(t, cfg.StubReport)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.False(t, cfg.Introspection.Enabled)
	assert.Equal(t, DefaultTimeout, cfg.Introspection.Timeout)
	assert.Equal(t, cfgPath, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `model: semantic/model.yml
sources: semantic/sources.yml
output_dir: /tmp/pbip
transforms_dirs:
  - transforms
  - shared/transforms
templates_dir: templates
concurrency: 4
stub_report: false
introspection:
  enabled: true
  timeout: 5s
  connections:
    warehouse:
      host: db.internal
      port: 5432
      password: ${PGPASSWORD}
`)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "semantic", "model.yml"), cfg.Model)
	assert.Equal(t, filepath.Join(dir, "semantic", "sources.yml"), cfg.Sources)
	assert.Equal(t, "/tmp/pbip", cfg.OutputDir)
	assert.Equal(t, []string{
		filepath.Join(dir, "transforms"),
		filepath.Join(dir, "shared", "transforms"),
	}, cfg.TransformsDirs)
	assert.Equal(t, filepath.Join(dir, "templates"), cfg.TemplatesDir)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.False(t, cfg.StubReport)
	assert.True(t, cfg.Introspection.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Introspection.Timeout)
	require.Contains(t, cfg.Introspection.Connections, "warehouse")
	conn := cfg.Introspection.Connections["warehouse"]
	assert.Equal(t, "db.internal", conn["host"])
	// Credentials are expanded by the introspect package, not here.
	assert.Equal(t, "${PGPASSWORD}", conn["password"])
}

func TestLoadConfig_UpwardSearch(t *testing.T) {
	ResetConfig()
	root := t.TempDir()
	writeConfig(t, root, "concurrency: 3\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0750))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	resolvedRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	gotRoot, err := filepath.EvalSymlinks(cfg.ProjectRoot)
	require.NoError(t, err)
	assert.Equal(t, resolvedRoot, gotRoot)
	assert.Equal(t, 3, cfg.Concurrency)
}

func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "concurrency: 2\noutput: text\n")
	t.Setenv("LEAPBI_CONCURRENCY", "8")
	t.Setenv("LEAPBI_INTROSPECTION_ENABLED", "true")
	t.Setenv("LEAPBI_TRANSFORMS_DIRS", "a, b")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "text", cfg.OutputFormat)
	assert.True(t, cfg.Introspection.Enabled)
	assert.Equal(t, []string{filepath.Join(dir, "a"), filepath.Join(dir, "b")}, cfg.TransformsDirs)
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "concurrency: 2\nstub_report: true\n")
	t.Setenv("LEAPBI_CONCURRENCY", "8")

	flags := compileFlags()
	require.NoError(t, flags.Set("concurrency", "16"))
	require.NoError(t, flags.Set("no-report", "true"))
	require.NoError(t, flags.Set("introspect", "true"))
	require.NoError(t, flags.Set("out", "dist"))
	require.NoError(t, flags.Set("transforms-dir", "x,y"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Concurrency)
	assert.False(t, cfg.StubReport)
	assert.True(t, cfg.Introspection.Enabled)
	assert.Equal(t, filepath.Join(cwd, "dist"), cfg.OutputDir, "flag paths resolve against the working directory")
	assert.Equal(t, []string{filepath.Join(cwd, "x"), filepath.Join(cwd, "y")}, cfg.TransformsDirs)
}

func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "concurrency: 2\n")
	t.Setenv("LEAPBI_CONCURRENCY", "8")

	cfg, err := LoadConfig(cfgPath, compileFlags())
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.True(t, cfg.StubReport)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errSub  string
	}{
		{"bad output", "output: yaml\n", `invalid output "yaml"`},
		{"negative concurrency", "concurrency: -1\n", "concurrency must be >= 0"},
		{"bad timeout", "introspection:\n  timeout: soon\n", "unable to decode config"},
		{"bad yaml", "model: [\n", "error reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			cfgPath := writeConfig(t, t.TempDir(), tt.content)
			_, err := LoadConfig(cfgPath, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestValidateFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Model: filepath.Join(dir, "model.yml"), Sources: filepath.Join(dir, "sources.yml")}

	err := cfg.ValidateFiles()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model file does not exist")

	require.NoError(t, os.WriteFile(cfg.Model, nil, 0600))
	err = cfg.ValidateFiles()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sources file does not exist")

	require.NoError(t, os.WriteFile(cfg.Sources, nil, 0600))
	assert.NoError(t, cfg.ValidateFiles())
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LEAPBI_TEST_DIR", "/data")
	tests := []struct {
		in, want string
	}{
		{"${LEAPBI_TEST_DIR}/out", "/data/out"},
		{"${LEAPBI_TEST_UNSET}/out", "${LEAPBI_TEST_UNSET}/out"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandEnvVars(tt.in))
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "output_dir", envKey("LEAPBI_OUTPUT_DIR"))
	assert.Equal(t, "introspection.timeout", envKey("LEAPBI_INTROSPECTION_TIMEOUT"))
}

func TestGetLogger_Fallback(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))
}
