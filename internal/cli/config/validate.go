package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/leapstack-labs/leapbi/internal/cli/output"
)

// Validate checks settings that do not touch the filesystem.
func (c *Config) Validate() error {
	var errs []error
	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.Sources == "" {
		errs = append(errs, errors.New("sources is required"))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 0, got %d", c.Concurrency))
	}
	if c.OutputFormat != "" && !slices.Contains(output.Modes(), c.OutputFormat) {
		errs = append(errs, fmt.Errorf("invalid output %q (want one of %v)", c.OutputFormat, output.Modes()))
	}
	if c.Introspection.Timeout < 0 {
		errs = append(errs, errors.New("introspection.timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateFiles checks that the model and sources files exist.
func (c *Config) ValidateFiles() error {
	if _, err := os.Stat(c.Model); os.IsNotExist(err) {
		return fmt.Errorf("model file does not exist: %s\nHint: run 'leapbi init' or set model in leapbi.yaml", c.Model)
	}
	if _, err := os.Stat(c.Sources); os.IsNotExist(err) {
		return fmt.Errorf("sources file does not exist: %s\nHint: run 'leapbi init' or set sources in leapbi.yaml", c.Sources)
	}
	return nil
}
