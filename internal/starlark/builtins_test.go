package starlark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMModule(t *testing.T) {
	ctx, err := NewExecutionContext(&SourceInfo{
		Key:      "sf",
		Kind:     "snowflake",
		Server:   "acme",
		Role:     "",
		Database: "SALES",
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"text", `m.text(src.server)`, `"acme"`},
		{"text escapes quotes", `m.text('say "hi"')`, `"say ""hi"""`},
		{"identifier bare", `m.identifier("Source")`, `Source`},
		{"identifier quoted", `m.identifier("Changed Type")`, `#"Changed Type"`},
		{"list", `m.list(["A", 1, None])`, `{"A", 1, null}`},
		{"record", `m.record({"Role": "R", "Implementation": "2.0"})`, `[Role = "R", Implementation = "2.0"]`},
		{"record skip empty", `m.record({"Role": src.role, "Database": src.database}, skip_empty=True)`, `[Database = "SALES"]`},
		{"record nested", `m.record({"Options": {"Timeout": 10}})`, `[Options = [Timeout = 10]]`},
		{"value bool", `m.value(True)`, `true`},
		{"value float", `m.value(1.5)`, `1.5`},
		{"value none", `m.value(None)`, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ctx.EvalExprString(tt.expr, "test.m.tmpl", 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMModule_Errors(t *testing.T) {
	ctx, err := NewExecutionContext(nil)
	require.NoError(t, err)

	for _, expr := range []string{
		`m.text(1)`,
		`m.record([1])`,
		`m.record({1: "a"})`,
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := ctx.EvalExpr(expr, "test.m.tmpl", 1)
			assert.Error(t, err)
		})
	}
}

func TestPredeclared(t *testing.T) {
	globals, err := Predeclared(&SourceInfo{Key: "pg_main", Kind: "postgresql"})
	require.NoError(t, err)

	for _, name := range []string{GlobalSource, GlobalSourceKey, GlobalM} {
		_, ok := globals[name]
		assert.True(t, ok, "global %q missing", name)
	}
	assert.Equal(t, `"pg_main"`, globals[GlobalSourceKey].String())
}

func TestPredeclared_NilSource(t *testing.T) {
	globals, err := Predeclared(nil)
	require.NoError(t, err)

	_, ok := globals[GlobalM]
	assert.True(t, ok)
	_, ok = globals[GlobalSource]
	assert.False(t, ok, "src should not be set without a source")
}
