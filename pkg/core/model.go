package core

import (
	"fmt"
	"regexp"
)

// TableKind is the semantic role of a table in the model.
type TableKind string

// Table kinds.
const (
	TableKindTable            TableKind = "table"
	TableKindMeasureTable     TableKind = "measureTable"
	TableKindCalculatedTable  TableKind = "calculatedTable"
	TableKindCalculationGroup TableKind = "calculationGroup"
	TableKindFieldParameter   TableKind = "fieldParameter"
)

// Valid reports whether k is a known table kind.
func (k TableKind) Valid() bool {
	switch k {
	case TableKindTable, TableKindMeasureTable, TableKindCalculatedTable,
		TableKindCalculationGroup, TableKindFieldParameter:
		return true
	}
	return false
}

// ColumnPolicy governs which source columns survive into the model.
type ColumnPolicy string

// Column policies.
const (
	// PolicySelectOnly keeps exactly the declared columns, in declaration order.
	PolicySelectOnly ColumnPolicy = "select_only"
	// PolicyKeepAll passes every source column through.
	PolicyKeepAll ColumnPolicy = "keep_all"
	// PolicyHideExtras keeps declared columns visible and hides discovered extras.
	PolicyHideExtras ColumnPolicy = "hide_extras"
)

// Valid reports whether p is a known column policy.
func (p ColumnPolicy) Valid() bool {
	switch p {
	case PolicySelectOnly, PolicyKeepAll, PolicyHideExtras:
		return true
	}
	return false
}

// PartitionMode is the storage mode of a partition.
type PartitionMode string

// Partition modes.
const (
	ModeImport      PartitionMode = "import"
	ModeDirectQuery PartitionMode = "directQuery"
)

// Model is the root of model.yml.
type Model struct {
	Name          string
	Culture       string
	Tables        []Table
	Relationships []Relationship
}

// Table returns the table with the given name.
func (m *Model) Table(name string) (*Table, bool) {
	for i := range m.Tables {
		if m.Tables[i].Name == name {
			return &m.Tables[i], true
		}
	}
	return nil, false
}

// Table is a single table definition.
type Table struct {
	Name         string
	Kind         TableKind
	ColumnPolicy ColumnPolicy
	Description  string
	IsHidden     bool
	Columns      []Column
	Measures     []Measure
	Partitions   []Partition

	// Exactly one of these is set for the matching kinds.
	CalculatedTable  *CalculatedTableDef
	CalculationGroup *CalculationGroupDef
	FieldParameter   *FieldParameterDef
}

// ColumnNames returns the declared column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column is a declared column.
type Column struct {
	Name     string
	DataType string
	// SourceColumn defaults to Name when empty.
	SourceColumn string
	FormatString string
	IsHidden     bool
	Description  string
	SummarizeBy  string
}

// SourceName returns the column name in the data source.
func (c Column) SourceName() string {
	if c.SourceColumn != "" {
		return c.SourceColumn
	}
	return c.Name
}

// Measure is a DAX measure.
type Measure struct {
	Name          string
	Expression    string
	FormatString  string
	DisplayFolder string
	IsHidden      bool
	Description   string
}

// Partition is one data-loading unit for a table.
type Partition struct {
	Name string
	Mode PartitionMode
	// Use is the key of the Source this partition reads from.
	Use string
	// Exactly one of Navigation and NativeQuery must be set.
	Navigation  *Navigation
	NativeQuery string
	CustomSteps []TransformStep
}

// HasNativeQuery reports whether the partition declares a native query.
func (p *Partition) HasNativeQuery() bool {
	return p.NativeQuery != ""
}

// Navigation is a database/schema/table path. Any prefix may be omitted.
type Navigation struct {
	Database string
	Schema   string
	Table    string
}

// CalculatedTableDef defines a DAX calculated table by expression or by template name.
type CalculatedTableDef struct {
	Expression string
	Template   string
}

// CalculationGroupDef holds the items of a calculation group table.
type CalculationGroupDef struct {
	Precedence int
	Items      []CalculationItem
}

// CalculationItem is one item of a calculation group.
type CalculationItem struct {
	Name                   string
	Expression             string
	Ordinal                int
	FormatStringExpression string
}

// FieldParameterDef lists the fields a field parameter switches between.
type FieldParameterDef struct {
	Fields []FieldRef
}

// FieldRef is one entry of a field parameter: a display name and a `Table[Column]` or `[Measure]` reference.
type FieldRef struct {
	Name string
	Ref  string
}

// Cardinality of a relationship.
type Cardinality string

// Relationship cardinalities.
const (
	CardinalityOneToOne  Cardinality = "oneToOne"
	CardinalityOneToMany Cardinality = "oneToMany"
	CardinalityManyToOne Cardinality = "manyToOne"
)

// CrossFilter direction of a relationship.
type CrossFilter string

// Cross filter directions.
const (
	CrossFilterSingle CrossFilter = "single"
	CrossFilterBoth   CrossFilter = "both"
)

// Relationship links two columns.
type Relationship struct {
	Name        string
	From        string
	To          string
	Cardinality Cardinality
	CrossFilter CrossFilter
	IsActive    bool
}

var endpointPattern = regexp.MustCompile(`^([A-Za-z_][\w ]*)\[([A-Za-z_][\w ]*)\]$`)

// ParseEndpoint splits a `Table[Column]` endpoint.
func ParseEndpoint(s string) (table, column string, err error) {
	m := endpointPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", fmt.Errorf("invalid relationship endpoint %q: expected Table[Column]", s)
	}
	return m[1], m[2], nil
}
