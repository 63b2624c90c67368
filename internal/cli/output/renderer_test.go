package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapbi/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTest(mode OutputMode, tty bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, tty, mode), out, errOut
}

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"TEXT", ModeText},
		{"md", ModeMarkdown},
		{"markdown", ModeMarkdown},
		{"json", ModeJSON},
		{"yaml", ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.in))
		})
	}
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name string
		mode OutputMode
		tty  bool
		want OutputMode
	}{
		{"auto on terminal", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeMarkdown},
		{"explicit text piped", ModeText, false, ModeText},
		{"json on terminal", ModeJSON, true, ModeJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTest(tt.mode, tt.tty)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestNewRenderer_BufferIsNotTerminal(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())
}

func TestRenderer_Markdown(t *testing.T) {
	r, out, errOut := newTest(ModeMarkdown, false)

	r.Header(2, "Transforms")
	r.Success("compiled")
	r.Warning("downgraded")
	r.Error("failed")

	assert.Contains(t, out.String(), "## Transforms\n")
	assert.Contains(t, out.String(), "✓ compiled\n")
	assert.Contains(t, errOut.String(), "! downgraded\n")
	assert.Contains(t, errOut.String(), "✗ failed\n")
	assert.NotContains(t, out.String()+errOut.String(), "\x1b[")
}

func TestRenderer_JSONModeSuppressesText(t *testing.T) {
	r, out, errOut := newTest(ModeJSON, false)

	r.Header(1, "ignored")
	r.Success("ignored")
	r.Muted("ignored")
	require.NoError(t, r.JSON(map[string]int{"tables": 2}))

	assert.Empty(t, errOut.String())
	var got map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 2, got["tables"])
}

func TestRenderer_Table(t *testing.T) {
	t.Run("markdown", func(t *testing.T) {
		r, out, _ := newTest(ModeMarkdown, false)
		r.Table([]string{"Name", "Kind"}, [][]string{{"pg", "postgresql"}})
		got := strings.ToLower(out.String())
		assert.Contains(t, got, "| name | kind |")
		assert.Contains(t, got, "| pg | postgresql |")
	})
	t.Run("text", func(t *testing.T) {
		r, out, _ := newTest(ModeText, true)
		r.Table([]string{"Name"}, [][]string{{"pg"}})
		assert.Contains(t, out.String(), "┌")
		assert.Contains(t, out.String(), "pg")
	})
}

func TestRenderer_Diagnostics(t *testing.T) {
	diags := []core.Diagnostic{
		{Code: "unknown_source", Severity: core.SeverityError, Table: "Orders", Partition: "p1", Message: "no source"},
		{Code: "column_policy_downgraded", Severity: core.SeverityWarning, Table: "Customers", Message: "keep_all"},
	}

	t.Run("markdown", func(t *testing.T) {
		r, _, errOut := newTest(ModeMarkdown, false)
		require.NoError(t, r.Diagnostics(diags))
		assert.Contains(t, errOut.String(), "✗ Orders/p1: [unknown_source] no source")
		assert.Contains(t, errOut.String(), "! Customers: [column_policy_downgraded] keep_all")
	})
	t.Run("json", func(t *testing.T) {
		r, out, _ := newTest(ModeJSON, false)
		require.NoError(t, r.Diagnostics(diags))
		assert.Contains(t, out.String(), `"severity": "error"`)
		assert.Contains(t, out.String(), `"partition": "p1"`)
	})
	t.Run("json empty", func(t *testing.T) {
		r, out, _ := newTest(ModeJSON, false)
		require.NoError(t, r.Diagnostics(nil))
		assert.Equal(t, "[]\n", out.String())
	})
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "### Sources", FormatHeader(3, "Sources"))
	assert.Equal(t, "###### deep", FormatHeader(9, "deep"))
	assert.Equal(t, "# top", FormatHeader(0, "top"))
	assert.Equal(t, "- **kind**: postgresql", FormatKeyValue("kind", "postgresql"))
	assert.Equal(t, "```m\nlet\n```", FormatCodeBlock("m", "let\n"))
}
