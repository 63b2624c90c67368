// Package typemap maps semantic column types to Power Query M type literals
// and TMDL data types.
//
// The Mapper is the single source of truth for both the partition compiler's
// coercion step and the emitter's column annotations. It is immutable after
// construction and safe for concurrent use.
package typemap

import (
	"fmt"
	"sort"
	"strings"
)

// Mapping is the destination representation of one semantic type.
type Mapping struct {
	// Semantic is the canonical semantic type name.
	Semantic string
	// M is the Power Query type literal used by Table.TransformColumnTypes.
	M string
	// TMDL is the dataType written to table definitions.
	TMDL string
}

// UnmappedTypeError is returned when a semantic type has no mapping.
type UnmappedTypeError struct {
	Type      string
	Supported []string
}

func (e *UnmappedTypeError) Error() string {
	return fmt.Sprintf("unmapped data type %q (supported: %s)", e.Type, strings.Join(e.Supported, ", "))
}

var defaults = []Mapping{
	{Semantic: "int64", M: "Int64.Type", TMDL: "int64"},
	{Semantic: "decimal", M: "Number.Type", TMDL: "decimal"},
	{Semantic: "double", M: "Number.Type", TMDL: "double"},
	{Semantic: "bool", M: "Logical.Type", TMDL: "boolean"},
	{Semantic: "string", M: "Text.Type", TMDL: "string"},
	{Semantic: "date", M: "Date.Type", TMDL: "dateTime"},
	{Semantic: "datetime", M: "DateTime.Type", TMDL: "dateTime"},
	{Semantic: "time", M: "Time.Type", TMDL: "dateTime"},
	{Semantic: "currency", M: "Currency.Type", TMDL: "decimal"},
	{Semantic: "variant", M: "Any.Type", TMDL: "variant"},
}

// aliases resolve alternate spellings to a canonical name. Keys are lowercase.
var aliases = map[string]string{
	"boolean": "bool",
	"logical": "bool",
	"text":    "string",
	"integer": "int64",
	"number":  "double",
}

// Mapper resolves semantic types.
type Mapper struct {
	byName map[string]Mapping
	names  []string
}

// New returns a Mapper loaded with the built-in table.
func New() *Mapper {
	m := &Mapper{byName: make(map[string]Mapping, len(defaults)+len(aliases))}
	for _, d := range defaults {
		m.byName[d.Semantic] = d
	}
	for alias, target := range aliases {
		m.byName[alias] = m.byName[target]
	}
	m.names = make([]string, 0, len(m.byName))
	for name := range m.byName {
		m.names = append(m.names, name)
	}
	sort.Strings(m.names)
	return m
}

// Lookup returns the mapping for a semantic type. Matching is case-insensitive,
// so "dateTime" and "datetime" are the same type.
func (m *Mapper) Lookup(semantic string) (Mapping, bool) {
	mp, ok := m.byName[strings.ToLower(strings.TrimSpace(semantic))]
	return mp, ok
}

// MType returns the M type literal for a semantic type.
func (m *Mapper) MType(semantic string) (string, error) {
	mp, ok := m.Lookup(semantic)
	if !ok {
		return "", m.unmapped(semantic)
	}
	return mp.M, nil
}

// TMDLType returns the TMDL dataType for a semantic type.
func (m *Mapper) TMDLType(semantic string) (string, error) {
	mp, ok := m.Lookup(semantic)
	if !ok {
		return "", m.unmapped(semantic)
	}
	return mp.TMDL, nil
}

// Types returns every accepted type name, aliases included, sorted.
func (m *Mapper) Types() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

func (m *Mapper) unmapped(semantic string) error {
	return &UnmappedTypeError{Type: semantic, Supported: m.Types()}
}
