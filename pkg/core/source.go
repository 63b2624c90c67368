package core

import (
	"fmt"
	"sort"
	"strings"
)

// SourceKind identifies the connector family a source is reached through.
type SourceKind string

// Supported source kinds.
const (
	SourceSnowflake  SourceKind = "snowflake"
	SourceDatabricks SourceKind = "databricks"
	SourceSQLServer  SourceKind = "sqlserver"
	SourcePostgreSQL SourceKind = "postgresql"
	SourceExcel      SourceKind = "excel"
)

var sourceKinds = []SourceKind{
	SourceDatabricks,
	SourceExcel,
	SourcePostgreSQL,
	SourceSnowflake,
	SourceSQLServer,
}

// SourceKinds returns every supported kind in sorted order.
func SourceKinds() []SourceKind {
	out := make([]SourceKind, len(sourceKinds))
	copy(out, sourceKinds)
	return out
}

// ParseSourceKind normalizes a kind name. Aliases such as "mssql" and "postgres" are accepted.
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "snowflake":
		return SourceSnowflake, nil
	case "databricks":
		return SourceDatabricks, nil
	case "sqlserver", "mssql", "sql_server":
		return SourceSQLServer, nil
	case "postgresql", "postgres", "pg":
		return SourcePostgreSQL, nil
	case "excel", "xlsx":
		return SourceExcel, nil
	}
	names := make([]string, len(sourceKinds))
	for i, k := range sourceKinds {
		names[i] = string(k)
	}
	return "", fmt.Errorf("unknown source kind %q (expected one of %s)", s, strings.Join(names, ", "))
}

// Source is a named connection definition from sources.yml.
// Sources are immutable once loaded.
type Source struct {
	// Key is the name partitions refer to through `use`.
	Key  string
	Kind SourceKind

	Server    string
	Warehouse string
	Database  string
	Role      string
	// HTTPPath is the SQL warehouse path used by Databricks.
	HTTPPath string
	// FilePath is the workbook location used by Excel.
	FilePath string

	// Options holds connector options such as implementation and queryTag.
	Options map[string]any
}

// OptionKeys returns the option keys in sorted order.
func (s Source) OptionKeys() []string {
	keys := make([]string, 0, len(s.Options))
	for k := range s.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Option returns an option value as a string, or "" when unset.
func (s Source) Option(key string) string {
	v, ok := s.Options[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
