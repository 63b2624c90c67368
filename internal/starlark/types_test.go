package starlark

import (
	"testing"

	"github.com/leapstack-labs/leapbi/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestGoToStarlark(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantStr string
		wantErr bool
	}{
		{name: "string", input: "hello", wantStr: `"hello"`},
		{name: "int", input: 42, wantStr: "42"},
		{name: "int64", input: int64(123456789), wantStr: "123456789"},
		{name: "float64", input: 2.5, wantStr: "2.5"},
		{name: "bool", input: true, wantStr: "True"},
		{name: "nil", input: nil, wantStr: "None"},
		{name: "string slice", input: []string{"a", "b"}, wantStr: `["a", "b"]`},
		{name: "any slice", input: []any{"x", 1, true}, wantStr: `["x", 1, True]`},
		{name: "map keys sorted", input: map[string]any{"b": 2, "a": 1}, wantStr: `{"a": 1, "b": 2}`},
		{name: "unsupported", input: struct{}{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GoToStarlark(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStr, got.String())
		})
	}
}

func TestToGo(t *testing.T) {
	tests := []struct {
		name  string
		input starlark.Value
		want  any
	}{
		{name: "string", input: starlark.String("hello"), want: "hello"},
		{name: "int", input: starlark.MakeInt(42), want: int64(42)},
		{name: "float", input: starlark.Float(1.5), want: 1.5},
		{name: "bool", input: starlark.False, want: false},
		{name: "none", input: starlark.None, want: nil},
		{name: "list", input: starlark.NewList([]starlark.Value{starlark.MakeInt(1), starlark.String("a")}), want: []any{int64(1), "a"}},
		{name: "tuple", input: starlark.Tuple{starlark.True}, want: []any{true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToGo(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSourceInfo_ToStarlark(t *testing.T) {
	info := SourceInfoFromCore(core.Source{
		Key:       "sf_main",
		Kind:      core.SourceSnowflake,
		Server:    "acme.snowflakecomputing.com",
		Warehouse: "WH",
		Options:   map[string]any{"implementation": "2.0"},
	})

	val, err := info.ToStarlark()
	require.NoError(t, err)

	s, ok := val.(starlark.HasAttrs)
	require.True(t, ok, "expected struct, got %T", val)

	server, err := s.Attr("server")
	require.NoError(t, err)
	assert.Equal(t, starlark.String("acme.snowflakecomputing.com"), server)

	role, err := s.Attr("role")
	require.NoError(t, err)
	assert.Equal(t, starlark.String(""), role)

	opts, err := s.Attr("options")
	require.NoError(t, err)
	assert.Equal(t, `{"implementation": "2.0"}`, opts.String())
}

func TestSourceInfo_NoOptions(t *testing.T) {
	val, err := (&SourceInfo{Key: "pg"}).ToStarlark()
	require.NoError(t, err)

	opts, err := val.(starlark.HasAttrs).Attr("options")
	require.NoError(t, err)
	assert.Equal(t, "{}", opts.String())
}
