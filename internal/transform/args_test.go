package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapbi/pkg/core"
)

func buildOne(t *testing.T, body string) (*Registry, *Entry) {
	t.Helper()
	reg, err := Build([]Definition{def("fx", body)}, nil)
	require.NoError(t, err)
	e, ok := reg.Resolve("fx")
	require.True(t, ok)
	return reg, e
}

func ptr(p core.Param) *core.Param { return &p }

func TestArguments(t *testing.T) {
	const (
		single   = "(n as number) => (t as table) as table => Table.FirstN(t, n)"
		multi    = "(col as text, optional n as number, optional desc as logical) => (t as table) => t"
		curried  = "(a as text) => (b as number) => (t as table) => t"
		optional = "(optional n as number) => (t as table) => t"
	)

	tests := []struct {
		name  string
		body  string
		param *core.Param
		want  [][]string
	}{
		{
			name:  "single scalar",
			body:  single,
			param: ptr(core.ScalarParam(1000)),
			want:  [][]string{{"1000"}},
		},
		{
			name:  "single takes whole list",
			body:  "(cols as list) => (t as table) => t",
			param: ptr(core.ListParam(core.ScalarParam("A"), core.ScalarParam("B"))),
			want:  [][]string{{`{"A", "B"}`}},
		},
		{
			name:  "single takes whole record",
			body:  "(opts as record) => (t as table) => t",
			param: ptr(core.RecordParam(core.ParamField{Key: "x", Value: core.ScalarParam(true)})),
			want:  [][]string{{"[x = true]"}},
		},
		{
			name:  "positional list",
			body:  multi,
			param: ptr(core.ListParam(core.ScalarParam("Id"), core.ScalarParam(5))),
			want:  [][]string{{`"Id"`, "5"}},
		},
		{
			name:  "record by name",
			body:  multi,
			param: ptr(core.RecordParam(core.ParamField{Key: "desc", Value: core.ScalarParam(true)}, core.ParamField{Key: "col", Value: core.ScalarParam("Id")})),
			want:  [][]string{{`"Id"`, "null", "true"}},
		},
		{
			name:  "scalar fills first",
			body:  multi,
			param: ptr(core.ScalarParam("Id")),
			want:  [][]string{{`"Id"`}},
		},
		{
			name:  "curried groups",
			body:  curried,
			param: ptr(core.ListParam(core.ScalarParam("x"), core.ScalarParam(2))),
			want:  [][]string{{`"x"`}, {"2"}},
		},
		{
			name: "all optional without params",
			body: optional,
			want: [][]string{{}},
		},
		{
			name: "unary",
			body: "(t as table) => t",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, e := buildOne(t, tt.body)
			got, err := reg.Arguments(e, tt.param)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArguments_Errors(t *testing.T) {
	const multi = "(col as text, optional n as number) => (t as table) => t"

	tests := []struct {
		name    string
		body    string
		param   *core.Param
		wantErr string
	}{
		{"unary with params", "(t as table) => t", ptr(core.ScalarParam(1)), "takes no parameters"},
		{"missing required", "(n as number) => (t as table) => t", nil, "missing required parameter n"},
		{"too many", multi, ptr(core.ListParam(core.ScalarParam("a"), core.ScalarParam(1), core.ScalarParam(2))), "got 3 arguments, takes at most 2"},
		{"unknown key", multi, ptr(core.RecordParam(core.ParamField{Key: "nope", Value: core.ScalarParam(1)})), `unknown parameter "nope"`},
		{"record missing required", multi, ptr(core.RecordParam(core.ParamField{Key: "n", Value: core.ScalarParam(1)})), "missing required parameter col"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, e := buildOne(t, tt.body)
			_, err := reg.Arguments(e, tt.param)
			var ae *ArgumentError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, "fx", ae.Name)
			assert.Contains(t, ae.Reason, tt.wantErr)
		})
	}
}

func TestCallee(t *testing.T) {
	reg, err := Build([]Definition{
		def("limit_rows", limitRowsBody),
		def("distinct", distinctBody),
	}, nil)
	require.NoError(t, err)

	limit, _ := reg.Resolve("limit_rows")
	got, err := reg.Callee(limit, ptr(core.ScalarParam(1000)))
	require.NoError(t, err)
	assert.Equal(t, "FxLimitRows(1000)", got)

	distinct, _ := reg.Resolve("distinct")
	got, err = reg.Callee(distinct, nil)
	require.NoError(t, err)
	assert.Equal(t, "FxDistinct", got)

	_, err = reg.Callee(distinct, ptr(core.ScalarParam(1)))
	var ae *ArgumentError
	assert.ErrorAs(t, err, &ae)
}
