package partition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapbi/pkg/core"
)

func TestReduce(t *testing.T) {
	steps := []Step{
		Connect{Snippet: `Sql.Databases("s")`},
		Navigate{Level: LevelTable, Name: "a"},
		Navigate{Level: LevelTable, Name: "b"},
		InvokeTransform{Generated: "FxTrim", Callee: "FxTrim"},
		InvokeTransform{Generated: "FxTrim", Callee: "FxTrim"},
	}

	a := fold(steps)
	want := []Binding{
		{Name: "Source", Expr: `Sql.Databases("s")`, Kind: KindConnect},
		{Name: "TBL", Expr: `Source{[Name = "a", Kind = "Table"]}[Data]`, Kind: KindNavigate},
		{Name: "TBL_2", Expr: `TBL{[Name = "b", Kind = "Table"]}[Data]`, Kind: KindNavigate},
		{Name: "Trim_1", Expr: "FxTrim(TBL_2)", Kind: KindInvokeTransform},
		{Name: "Trim_2", Expr: "FxTrim(Trim_1)", Kind: KindInvokeTransform},
	}
	assert.Equal(t, want, a.bindings)
	assert.Equal(t, 2, a.counters[KindInvokeTransform])
}

func TestInvokeTransform_Expr(t *testing.T) {
	tests := []struct {
		callee string
		prev   string
		want   string
	}{
		{"FxLimitRows(1000)", "TBL", "FxLimitRows(1000)(TBL)"},
		{"FxDistinct", "Selected", "FxDistinct(Selected)"},
		{"FxDistinct", "Step Two", `FxDistinct(#"Step Two")`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InvokeTransform{Callee: tt.callee}.expr(tt.prev))
	}
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	a := fold([]Step{Connect{Snippet: "X"}})
	b := reduce(a, SelectColumns{Columns: []string{"c"}})

	assert.Len(t, a.bindings, 1)
	assert.Len(t, b.bindings, 2)
	assert.Equal(t, 1, a.counters[KindConnect])
	assert.Zero(t, a.counters[KindSelectColumns])
	assert.False(t, a.used["Selected"])
}

func TestStepKindString(t *testing.T) {
	assert.Equal(t, "connect", KindConnect.String())
	assert.Equal(t, "native_query", KindNativeQuery.String())
	assert.Equal(t, "invoke_transform", KindInvokeTransform.String())
	assert.Equal(t, "unknown", StepKind(99).String())
}

func TestState_Immutable(t *testing.T) {
	cat := newCatalogs(t)
	s0, err := Seed(navPartition(), ordersTable(core.PolicySelectOnly), cat)
	require.NoError(t, err)

	s1, err := s0.AddSourceConnection()
	require.NoError(t, err)
	s2, err := s1.AddNavigation()
	require.NoError(t, err)

	assert.Empty(t, s0.Bindings())
	assert.Len(t, s1.Bindings(), 1)
	assert.Len(t, s2.Bindings(), 4)

	text1, err := s2.Build()
	require.NoError(t, err)
	text2, err := s2.Build()
	require.NoError(t, err)
	assert.Equal(t, text1, text2)
	assert.Equal(t, "TBL", s2.Final())
}

func TestState_Ordering(t *testing.T) {
	ctx := context.Background()
	cat := newCatalogs(t)
	seed, err := Seed(navPartition(), ordersTable(core.PolicySelectOnly), cat)
	require.NoError(t, err)
	connected, err := seed.AddSourceConnection()
	require.NoError(t, err)
	located, err := connected.AddNavigation()
	require.NoError(t, err)

	tests := []struct {
		name string
		op   func() error
	}{
		{"navigate before connect", func() error { _, err := seed.AddNavigation(); return err }},
		{"connect twice", func() error { _, err := connected.AddSourceConnection(); return err }},
		{"navigate twice", func() error { _, err := located.AddNavigation(); return err }},
		{"native query after navigation", func() error { _, err := located.AddNativeQuery(); return err }},
		{"native query without query", func() error { _, err := connected.AddNativeQuery(); return err }},
		{"select before locate", func() error { _, err := connected.AddColumnSelection(ctx); return err }},
		{"types before select", func() error { _, err := located.AddTypeTransformation(); return err }},
		{"transforms before types", func() error { _, err := located.AddCustomTransforms(nil); return err }},
		{"build before locate", func() error { _, err := connected.Build(); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v *StepOrderingViolation
			require.ErrorAs(t, tt.op(), &v)
			assert.Equal(t, "step_ordering", v.Code())
		})
	}
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "table T, partition p, step navigate", Location{Table: "T", Partition: "p", Step: "navigate"}.String())
	assert.Equal(t, "table T", Location{Table: "T"}.String())
}
