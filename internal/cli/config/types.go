// Package config provides configuration management for the leapbi CLI.
//
// Settings are layered from defaults, leapbi.yaml, LEAPBI_* environment
// variables and explicitly set command-line flags, in increasing precedence.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot is inferred, never read from configuration.
	ProjectRoot string `koanf:"-"`

	Model          string              `koanf:"model"`
	Sources        string              `koanf:"sources"`
	OutputDir      string              `koanf:"output_dir"`
	TransformsDirs []string            `koanf:"transforms_dirs"`
	DAXDirs        []string            `koanf:"dax_dirs"`
	TemplatesDir   string              `koanf:"templates_dir"`
	Concurrency    int                 `koanf:"concurrency"`
	StubReport     bool                `koanf:"stub_report"`
	Verbose        bool                `koanf:"verbose"`
	OutputFormat   string              `koanf:"output"`
	Introspection  IntrospectionConfig `koanf:"introspection"`
}

// IntrospectionConfig enables live schema discovery for hide_extras tables.
type IntrospectionConfig struct {
	Enabled bool `koanf:"enabled"`
	// Timeout bounds one discovery call unless a connection sets its own.
	Timeout time.Duration `koanf:"timeout"`
	// Connections are keyed by source key. Values are decoded by the
	// introspect package.
	Connections map[string]map[string]any `koanf:"connections"`
}

// Default configuration values.
const (
	DefaultModel       = "model.yml"
	DefaultSources     = "sources.yml"
	DefaultOutputDir   = "build"
	DefaultDAXDir      = "dax"
	DefaultConcurrency = 1
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultTimeout     = 30 * time.Second
)

// ConfigFileNames are the file names searched for, in order.
var ConfigFileNames = []string{"leapbi.yaml", "leapbi.yml"}
