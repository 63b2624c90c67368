package emit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapbi/internal/compiler"
	"github.com/leapstack-labs/leapbi/internal/dax"
	"github.com/leapstack-labs/leapbi/internal/introspect"
	"github.com/leapstack-labs/leapbi/internal/partition"
	"github.com/leapstack-labs/leapbi/internal/source"
	"github.com/leapstack-labs/leapbi/internal/transform"
	"github.com/leapstack-labs/leapbi/internal/typemap"
	"github.com/leapstack-labs/leapbi/pkg/core"
)

var testSources = map[string]core.Source{
	"pg": {Key: "pg", Kind: core.SourcePostgreSQL, Server: "db.internal:5432", Database: "shop"},
}

func testModel() *core.Model {
	return &core.Model{
		Name: "Sales",
		Tables: []core.Table{
			{
				Name:         "Orders",
				Kind:         core.TableKindTable,
				ColumnPolicy: core.PolicyHideExtras,
				Columns: []core.Column{
					{Name: "Order Id", SourceColumn: "id", DataType: "int64"},
					{Name: "amount", DataType: "decimal", FormatString: "#,0.00"},
				},
				Measures: []core.Measure{{Name: "Total", Expression: "SUM(Orders[amount])", FormatString: "#,0"}},
				Partitions: []core.Partition{{
					Name:        "current",
					Use:         "pg",
					Navigation:  &core.Navigation{Schema: "public", Table: "orders"},
					CustomSteps: []core.TransformStep{{Name: "distinct"}},
				}},
			},
			{
				Name:     "Key Metrics",
				Kind:     core.TableKindMeasureTable,
				Measures: []core.Measure{{Name: "Margin", Expression: "DIVIDE(\n    [Total],\n    2\n)"}},
			},
			{Name: "Calendar", Kind: core.TableKindCalculatedTable, CalculatedTable: &core.CalculatedTableDef{Template: "dates"},
				Columns: []core.Column{{Name: "Date", DataType: "date"}}},
			{
				Name: "Time Intelligence",
				Kind: core.TableKindCalculationGroup,
				CalculationGroup: &core.CalculationGroupDef{Items: []core.CalculationItem{
					{Name: "Current", Expression: "SELECTEDMEASURE()"},
					{Name: "YTD", Expression: "CALCULATE(SELECTEDMEASURE(), DATESYTD(Calendar[Date]))", Ordinal: 1},
				}},
			},
			{
				Name: "Metric",
				Kind: core.TableKindFieldParameter,
				FieldParameter: &core.FieldParameterDef{Fields: []core.FieldRef{
					{Name: "Sales", Ref: "[Total]"},
					{Name: "Amount", Ref: "Orders[amount]"},
				}},
			},
		},
		Relationships: []core.Relationship{
			{Name: "r1", From: "Orders[Order Id]", To: "Calendar[Date]", Cardinality: core.CardinalityManyToOne, CrossFilter: core.CrossFilterBoth, IsActive: false},
		},
	}
}

func compile(t *testing.T, model *core.Model) (*compiler.Result, *source.Resolver) {
	t.Helper()
	resolver, err := source.NewResolver()
	require.NoError(t, err)
	reg, err := transform.Build([]transform.Definition{
		{Name: "distinct", Body: "(t as table) as table => Table.Distinct(t)"},
	}, nil)
	require.NoError(t, err)

	cat := &compiler.Catalogs{
		Catalogs: partition.Catalogs{
			Sources:    testSources,
			Templates:  resolver,
			Transforms: reg,
			Types:      typemap.New(),
			Introspector: introspect.Func(func(context.Context, core.Source, core.Navigation) ([]string, error) {
				return []string{"id", "amount", "note"}, nil
			}),
		},
		DAX: dax.FromMap(map[string]string{"dates": "CALENDARAUTO()"}),
	}
	res, err := compiler.Run(context.Background(), model, cat, compiler.Options{})
	require.NoError(t, err)
	return res, resolver
}

func project(t *testing.T, stubReport bool) *Files {
	t.Helper()
	model := testModel()
	res, resolver := compile(t, model)
	files, err := Project(model, res, testSources, Options{Templates: resolver, StubReport: stubReport})
	require.NoError(t, err)
	return files
}

func content(t *testing.T, files *Files, p string) string {
	t.Helper()
	b, ok := files.Get(p)
	require.True(t, ok, "missing %s", p)
	return string(b)
}

func TestProject_Layout(t *testing.T) {
	files := project(t, true)
	assert.Equal(t, []string{
		"Sales.pbip",
		"Sales.SemanticModel/definition.pbism",
		"Sales.SemanticModel/definition/database.tmdl",
		"Sales.SemanticModel/definition/model.tmdl",
		"Sales.SemanticModel/definition/expressions.tmdl",
		"Sales.SemanticModel/definition/relationships.tmdl",
		"Sales.SemanticModel/definition/tables/Orders.tmdl",
		"Sales.SemanticModel/definition/tables/Key Metrics.tmdl",
		"Sales.SemanticModel/definition/tables/Calendar.tmdl",
		"Sales.SemanticModel/definition/tables/Time Intelligence.tmdl",
		"Sales.SemanticModel/definition/tables/Metric.tmdl",
		"Sales.Report/definition.pbir",
	}, files.Paths())

	noReport := project(t, false)
	_, ok := noReport.Get("Sales.pbip")
	assert.False(t, ok)
	_, ok = noReport.Get("Sales.Report/definition.pbir")
	assert.False(t, ok)
	assert.Equal(t, files.Len()-2, noReport.Len())

	pbir := content(t, files, "Sales.Report/definition.pbir")
	assert.Contains(t, pbir, `"path": "../Sales.SemanticModel"`)
}

func TestProject_Deterministic(t *testing.T) {
	a := project(t, true)
	b := project(t, true)
	for _, p := range a.Paths() {
		assert.Equal(t, content(t, a, p), content(t, b, p), p)
	}
}

func TestProject_Model(t *testing.T) {
	got := content(t, project(t, false), "Sales.SemanticModel/definition/model.tmdl")
	assert.True(t, strings.HasPrefix(got, "model Model\n\tculture: en-US\n"))
	assert.Contains(t, got, "ref table Orders\nref table 'Key Metrics'\nref table Calendar\nref table 'Time Intelligence'\nref table Metric\n")
}

func TestProject_Expressions(t *testing.T) {
	got := content(t, project(t, false), "Sales.SemanticModel/definition/expressions.tmdl")
	assert.Contains(t, got, "expression 'Source.pg' =\n\t\tlet\n")
	assert.Contains(t, got, "\t\t    Source = PostgreSQL.Database(\"db.internal:5432\", \"shop\")\n")
	assert.Contains(t, got, "expression FxDistinct = (t as table) as table => Table.Distinct(t)\n")
	assert.Contains(t, got, "annotation PBI_ResultType = Function")
	assert.Contains(t, got, "\tlineageTag: "+lineageTag("Sales", "expression", "FxDistinct")+"\n")
}

func TestProject_ImportTable(t *testing.T) {
	got := content(t, project(t, false), "Sales.SemanticModel/definition/tables/Orders.tmdl")

	assert.True(t, strings.HasPrefix(got, "table Orders\n\tlineageTag: "+lineageTag("Sales", "Orders")+"\n"))
	assert.Contains(t, got, "\tmeasure Total = SUM(Orders[amount])\n\t\tformatString: #,0\n")
	assert.Contains(t, got, "\tcolumn 'Order Id'\n\t\tdataType: int64\n")
	assert.Contains(t, got, "\t\tsourceColumn: id\n")
	assert.Contains(t, got, "\t\tdataType: decimal\n\t\tformatString: #,0.00\n")
	assert.Contains(t, got, "\tcolumn note\n\t\tdataType: string\n\t\tisHidden: true\n")
	assert.Contains(t, got, "\tpartition current = m\n\t\tmode: import\n\t\tsource =\n\t\t\t\tlet\n")
	assert.Contains(t, got, "\t\t\t\t    Distinct_1 = FxDistinct(Typed)\n")
	assert.True(t, strings.HasSuffix(got, "\t\t\t\t    Distinct_1\n"))
}

func TestProject_OtherKinds(t *testing.T) {
	files := project(t, false)

	measures := content(t, files, "Sales.SemanticModel/definition/tables/Key Metrics.tmdl")
	assert.Contains(t, measures, "\tmeasure Margin =\n\t\t\tDIVIDE(\n\t\t\t    [Total],\n\t\t\t    2\n\t\t\t)\n")
	assert.NotContains(t, measures, "partition")

	calendar := content(t, files, "Sales.SemanticModel/definition/tables/Calendar.tmdl")
	assert.Contains(t, calendar, "\t\tsourceColumn: [Date]\n")
	assert.Contains(t, calendar, "\tpartition Calendar = calculated\n\t\tmode: import\n\t\tsource = CALENDARAUTO()\n")

	group := content(t, files, "Sales.SemanticModel/definition/tables/Time Intelligence.tmdl")
	assert.Contains(t, group, "\tcalculationGroup\n")
	assert.Contains(t, group, "\t\tcalculationItem YTD = CALCULATE(SELECTEDMEASURE(), DATESYTD(Calendar[Date]))\n\t\t\tordinal: 1\n")
	assert.Contains(t, group, "\tpartition 'Time Intelligence' = calculationGroup\n")

	param := content(t, files, "Sales.SemanticModel/definition/tables/Metric.tmdl")
	assert.Contains(t, param, "(\"Sales\", NAMEOF([Total]), 0),\n")
	assert.Contains(t, param, "(\"Amount\", NAMEOF('Orders'[amount]), 1)\n")
	assert.Contains(t, param, "extendedProperty ParameterMetadata =")
	assert.Contains(t, param, "\t\tsortByColumn: 'Metric Order'\n")
}

func TestProject_Relationships(t *testing.T) {
	got := content(t, project(t, false), "Sales.SemanticModel/definition/relationships.tmdl")
	assert.Equal(t, "relationship "+lineageTag("Sales", "relationship", "r1")+"\n"+
		"\tcrossFilteringBehavior: bothDirections\n"+
		"\tisActive: false\n"+
		"\tfromColumn: Orders.'Order Id'\n"+
		"\ttoColumn: Calendar.Date\n", got)
}

func TestFiles_WriteDir(t *testing.T) {
	files := project(t, true)
	dir := t.TempDir()
	require.NoError(t, files.WriteDir(dir))

	for _, p := range files.Paths() {
		want, _ := files.Get(p)
		got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(p)))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Orders", "Orders"},
		{"order_id", "order_id"},
		{"Order Id", "'Order Id'"},
		{"Customer's", "'Customer''s'"},
		{"2024", "'2024'"},
		{"Source.pg", "'Source.pg'"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Quote(tt.in))
		})
	}
}

func TestLineageTag_Stable(t *testing.T) {
	a := lineageTag("Sales", "Orders", "column", "id")
	assert.Equal(t, a, lineageTag("Sales", "Orders", "column", "id"))
	assert.NotEqual(t, a, lineageTag("Sales", "Orders", "column", "amount"))
	assert.Len(t, a, 36)
}
