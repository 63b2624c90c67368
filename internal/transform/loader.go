package transform

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileExt is the extension of transform files.
const FileExt = ".m"

// Definition is one transform body before validation.
type Definition struct {
	Name string
	Body string
	// Path is the file the body was read from, or a label for in-memory bodies.
	Path string
}

// ReadDirs reads every *.m file under dirs, recursively and in sorted order.
// A later directory's transform replaces an earlier one with the same
// canonical name. Missing directories are skipped. The result is sorted by name.
func ReadDirs(dirs []string, logger *slog.Logger) ([]Definition, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	merged := make(map[string]Definition)
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Debug("transform directory not found", "dir", dir)
				continue
			}
			return nil, fmt.Errorf("failed to access transforms directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("transforms path is not a directory: %s", dir)
		}

		files, err := findFiles(dir)
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from walking a transforms directory
			if err != nil {
				return nil, fmt.Errorf("read transform %s: %w", path, err)
			}
			name := CanonicalName(path)
			if prev, ok := merged[name]; ok {
				logger.Info("transform overridden", "name", name, "path", path, "previous", prev.Path)
			}
			merged[name] = Definition{Name: name, Body: string(content), Path: path}
		}
	}

	defs := make([]Definition, 0, len(merged))
	for _, d := range merged {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

func findFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), FileExt) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan transforms directory %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Load reads dirs and builds a registry from what it finds.
func Load(dirs []string, logger *slog.Logger) (*Registry, error) {
	defs, err := ReadDirs(dirs, logger)
	if err != nil {
		return nil, err
	}
	return Build(defs, logger)
}
