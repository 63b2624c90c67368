// Package loader reads sources.yml and model.yml into the core model.
//
// Decoding is strict: unknown keys are rejected with their line number.
// The loader checks structure and enumerations only. Cross references such
// as a partition's source key are resolved by the compiler.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapbi/pkg/core"
)

// CurrentVersion is the only schema version understood by the loader.
const CurrentVersion = 1

type sourcesFile struct {
	Version int                   `yaml:"version"`
	Sources map[string]sourceYAML `yaml:"sources"`
}

type sourceYAML struct {
	Kind      string         `yaml:"kind"`
	Server    string         `yaml:"server"`
	Warehouse string         `yaml:"warehouse"`
	Database  string         `yaml:"database"`
	Role      string         `yaml:"role"`
	HTTPPath  string         `yaml:"http_path"`
	FilePath  string         `yaml:"file_path"`
	Options   map[string]any `yaml:"options"`
}

// LoadSources reads a sources file.
func LoadSources(path string) (map[string]core.Source, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from project config
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return ParseSources(path, data)
}

// ParseSources decodes sources YAML. file is used in error messages only.
func ParseSources(file string, data []byte) (map[string]core.Source, error) {
	var doc sourcesFile
	if err := decodeStrict(file, data, &doc); err != nil {
		return nil, err
	}
	if err := checkVersion(file, doc.Version); err != nil {
		return nil, err
	}
	if len(doc.Sources) == 0 {
		return nil, &ParseError{File: file, Path: "sources", Message: "at least one source is required"}
	}

	keys := make([]string, 0, len(doc.Sources))
	for k := range doc.Sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]core.Source, len(keys))
	var errs []error
	for _, key := range keys {
		sy := doc.Sources[key]
		path := "sources." + key
		if sy.Kind == "" {
			errs = append(errs, &ParseError{File: file, Path: path, Message: "kind is required"})
			continue
		}
		kind, err := core.ParseSourceKind(sy.Kind)
		if err != nil {
			errs = append(errs, &ParseError{File: file, Path: path + ".kind", Message: err.Error()})
			continue
		}
		out[key] = core.Source{
			Key:       key,
			Kind:      kind,
			Server:    sy.Server,
			Warehouse: sy.Warehouse,
			Database:  sy.Database,
			Role:      sy.Role,
			HTTPPath:  sy.HTTPPath,
			FilePath:  sy.FilePath,
			Options:   sy.Options,
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func decodeStrict(file string, data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return &ParseError{File: file, Message: "document is empty"}
		}
		return convertYAMLError(file, err)
	}
	return nil
}

func checkVersion(file string, v int) error {
	if v == 0 || v == CurrentVersion {
		return nil
	}
	return &ParseError{File: file, Path: "version", Message: fmt.Sprintf("unsupported version %d (expected %d)", v, CurrentVersion)}
}
