package loader

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError represents malformed YAML or a value that fails structural
// validation. Line is zero when the position is not known.
type ParseError struct {
	File    string
	Line    int
	Path    string
	Message string
}

func (e *ParseError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, msg)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}

// UnknownFieldError represents a key that is not part of the file schema.
type UnknownFieldError struct {
	File    string
	Line    int
	Field   string
	Section string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q", e.Field)
	if e.Section != "" {
		msg += " in " + e.Section
	}
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, msg)
		}
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}

var (
	linePattern         = regexp.MustCompile(`line (\d+):\s*`)
	unknownFieldPattern = regexp.MustCompile(`^line (\d+): field (\S+) not found in type (\S+)$`)
)

// convertYAMLError turns yaml.v3 decoder errors into ParseError and
// UnknownFieldError values. Several type errors are joined.
func convertYAMLError(file string, err error) error {
	var te *yaml.TypeError
	if !errors.As(err, &te) {
		return lineError(file, strings.TrimPrefix(err.Error(), "yaml: "))
	}
	errs := make([]error, 0, len(te.Errors))
	for _, msg := range te.Errors {
		if m := unknownFieldPattern.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			errs = append(errs, &UnknownFieldError{File: file, Line: line, Field: m[2], Section: section(m[3])})
			continue
		}
		errs = append(errs, lineError(file, msg))
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

func lineError(file, msg string) *ParseError {
	pe := &ParseError{File: file, Message: msg}
	if m := linePattern.FindStringSubmatchIndex(msg); m != nil {
		pe.Line, _ = strconv.Atoi(msg[m[2]:m[3]])
		pe.Message = msg[:m[0]] + msg[m[1]:]
	}
	return pe
}

// section maps a decoder type name such as loader.partitionYAML to "partition".
func section(typeName string) string {
	name := typeName[strings.LastIndex(typeName, ".")+1:]
	return strings.TrimSuffix(name, "YAML")
}

func nodeError(file string, n *yaml.Node, path, format string, args ...any) *ParseError {
	pe := &ParseError{File: file, Path: path, Message: fmt.Sprintf(format, args...)}
	if n != nil {
		pe.Line = n.Line
	}
	return pe
}
