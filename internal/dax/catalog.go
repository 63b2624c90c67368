// Package dax loads DAX expression templates used by calculated tables.
// Templates are plain *.dax files addressed by their sanitized file stem.
package dax

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapbi/internal/transform"
)

// FileExt is the extension of DAX template files.
const FileExt = ".dax"

// Template is one loaded DAX expression.
type Template struct {
	Name       string
	Expression string
	Path       string
}

// Catalog is a frozen set of DAX templates.
type Catalog struct {
	templates map[string]Template
}

// Load reads every *.dax file under dirs. A later directory's template
// replaces an earlier one with the same name. Missing directories are skipped.
func Load(dirs []string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Catalog{templates: make(map[string]Template)}
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to access dax directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("dax path is not a directory: %s", dir)
		}

		var files []string
		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), FileExt) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan dax directory %s: %w", dir, err)
		}
		sort.Strings(files)

		for _, path := range files {
			content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from walking a dax directory
			if err != nil {
				return nil, fmt.Errorf("read dax template %s: %w", path, err)
			}
			name := transform.CanonicalName(path)
			if prev, ok := c.templates[name]; ok {
				logger.Debug("dax template overridden", "name", name, "path", path, "previous", prev.Path)
			}
			c.templates[name] = Template{
				Name:       name,
				Expression: strings.TrimSpace(strings.TrimPrefix(string(content), "\ufeff")),
				Path:       path,
			}
		}
	}
	return c, nil
}

// FromMap builds a catalog from in-memory expressions.
func FromMap(exprs map[string]string) *Catalog {
	c := &Catalog{templates: make(map[string]Template, len(exprs))}
	for name, expr := range exprs {
		c.templates[name] = Template{Name: name, Expression: strings.TrimSpace(expr), Path: "<memory>"}
	}
	return c
}

// Lookup returns the template with the given name.
func (c *Catalog) Lookup(name string) (Template, bool) {
	if c == nil {
		return Template{}, false
	}
	t, ok := c.templates[name]
	return t, ok
}

// Names returns the template names in sorted order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
