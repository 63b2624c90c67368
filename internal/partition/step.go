package partition

import (
	"strings"

	"github.com/leapstack-labs/leapbi/internal/mcode"
)

// StepKind tags the Step union.
type StepKind int

// Step kinds, in the order they may appear in a partition.
const (
	KindConnect StepKind = iota
	KindNavigate
	KindNativeQuery
	KindSelectColumns
	KindCoerceTypes
	KindInvokeTransform
)

func (k StepKind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindNavigate:
		return "navigate"
	case KindNativeQuery:
		return "native_query"
	case KindSelectColumns:
		return "select_columns"
	case KindCoerceTypes:
		return "coerce_types"
	case KindInvokeTransform:
		return "invoke_transform"
	default:
		return "unknown"
	}
}

// Step is one declared load step. Each step produces exactly one binding.
// The concrete types are Connect, Navigate, NativeQuery, SelectColumns,
// CoerceTypes and InvokeTransform.
type Step interface {
	Kind() StepKind
	// expr renders the step's expression reading from the binding prev.
	expr(prev string) string
	// name is the preferred binding name before uniqueness suffixes.
	name(n int) string
}

// Connect acquires the source through an inline connector snippet.
type Connect struct {
	Snippet string
}

func (Connect) Kind() StepKind       { return KindConnect }
func (s Connect) expr(string) string { return s.Snippet }
func (Connect) name(int) string      { return "Source" }

// NavLevel is one level of a navigation path.
type NavLevel int

// Navigation levels.
const (
	LevelDatabase NavLevel = iota
	LevelSchema
	LevelTable
)

// Kind returns the navigation table Kind value, e.g. "Database".
func (l NavLevel) Kind() string {
	switch l {
	case LevelDatabase:
		return "Database"
	case LevelSchema:
		return "Schema"
	default:
		return "Table"
	}
}

func (l NavLevel) binding() string {
	switch l {
	case LevelDatabase:
		return "DB"
	case LevelSchema:
		return "SCH"
	default:
		return "TBL"
	}
}

// Navigate selects one item of the previous navigation table.
type Navigate struct {
	Level NavLevel
	Name  string
}

func (Navigate) Kind() StepKind { return KindNavigate }

func (s Navigate) expr(prev string) string {
	return navigateExpr(prev, s.Name, s.Level)
}

func (s Navigate) name(int) string { return s.Level.binding() }

func navigateExpr(prev, name string, level NavLevel) string {
	key := mcode.Record(
		mcode.Field{Name: "Name", Value: mcode.Text(name)},
		mcode.Field{Name: "Kind", Value: mcode.Text(level.Kind())},
	)
	return mcode.Identifier(prev) + "{" + key + "}[Data]"
}

// NativeQuery runs literal query text against the source, in Database when set.
type NativeQuery struct {
	Query    string
	Database string
}

func (NativeQuery) Kind() StepKind { return KindNativeQuery }

func (s NativeQuery) expr(prev string) string {
	target := mcode.Identifier(prev)
	if s.Database != "" {
		target = navigateExpr(prev, s.Database, LevelDatabase)
	}
	return "Value.NativeQuery(" + target + ", " + mcode.Text(s.Query) + ", null, [EnableFolding = true])"
}

func (NativeQuery) name(int) string { return "Result" }

// SelectColumns keeps the listed columns in order. Missing source columns
// become null rather than failing the load.
type SelectColumns struct {
	Columns []string
}

func (SelectColumns) Kind() StepKind { return KindSelectColumns }

func (s SelectColumns) expr(prev string) string {
	return "Table.SelectColumns(" + mcode.Identifier(prev) + ", " + mcode.TextList(s.Columns) + ", MissingField.UseNull)"
}

func (SelectColumns) name(int) string { return "Selected" }

// ColumnType pairs a column with its M type literal.
type ColumnType struct {
	Column string
	MType  string
}

// CoerceTypes applies declared column types.
type CoerceTypes struct {
	Types []ColumnType
}

func (CoerceTypes) Kind() StepKind { return KindCoerceTypes }

func (s CoerceTypes) expr(prev string) string {
	pairs := make([]string, len(s.Types))
	for i, t := range s.Types {
		pairs[i] = mcode.List(mcode.Text(t.Column), t.MType)
	}
	return "Table.TransformColumnTypes(" + mcode.Identifier(prev) + ", " + mcode.List(pairs...) + ")"
}

func (CoerceTypes) name(int) string { return "Typed" }

// InvokeTransform calls a published transform on the previous binding.
type InvokeTransform struct {
	// Transform is the canonical name.
	Transform string
	// Generated is the published identifier, e.g. FxLimitRows.
	Generated string
	// Callee is Generated applied to its arguments, e.g. FxLimitRows(1000).
	Callee string
}

func (InvokeTransform) Kind() StepKind { return KindInvokeTransform }

func (s InvokeTransform) expr(prev string) string {
	return s.Callee + "(" + mcode.Identifier(prev) + ")"
}

func (s InvokeTransform) name(n int) string {
	base := strings.TrimPrefix(s.Generated, "Fx")
	if base == "" {
		base = "Step"
	}
	return base + "_" + itoa(n)
}
