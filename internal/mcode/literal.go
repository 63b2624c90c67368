package mcode

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapbi/pkg/core"
)

var (
	bareIdentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

	keywords = map[string]bool{
		"and": true, "as": true, "each": true, "else": true, "error": true,
		"false": true, "if": true, "in": true, "is": true, "let": true,
		"meta": true, "not": true, "null": true, "or": true, "otherwise": true,
		"section": true, "shared": true, "then": true, "true": true, "try": true,
		"type": true,
	}

	textEscaper = strings.NewReplacer(
		`"`, `""`,
		"#(", "#(#)(",
		"\r\n", "#(cr,lf)",
		"\n", "#(lf)",
		"\r", "#(cr)",
		"\t", "#(tab)",
	)
)

// Text renders s as an M text literal.
func Text(s string) string {
	return `"` + textEscaper.Replace(s) + `"`
}

// IsKeyword reports whether s is a reserved M keyword.
func IsKeyword(s string) bool {
	return keywords[s]
}

// Identifier renders name as a bare identifier when possible, otherwise as #"...".
func Identifier(name string) string {
	if bareIdentPattern.MatchString(name) && !keywords[name] {
		return name
	}
	return "#" + `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// FieldName renders a record field name. Field names accept any generalized
// identifier, so keywords stay bare.
func FieldName(name string) string {
	if bareIdentPattern.MatchString(name) {
		return name
	}
	return "#" + `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// List renders already-formatted items as an M list.
func List(items ...string) string {
	return "{" + strings.Join(items, ", ") + "}"
}

// Field is one entry of an M record.
type Field struct {
	Name  string
	Value string
}

// Record renders already-formatted values as an M record, keeping field order.
func Record(fields ...Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = FieldName(f.Name) + " = " + f.Value
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// TextList renders a list of text literals.
func TextList(values []string) string {
	items := make([]string, len(values))
	for i, v := range values {
		items[i] = Text(v)
	}
	return List(items...)
}

// Value renders a Go scalar, slice, or core.Param as an M literal.
func Value(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case string:
		return Text(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	case []string:
		return TextList(x), nil
	case []any:
		items := make([]string, len(x))
		for i, it := range x {
			s, err := Value(it)
			if err != nil {
				return "", err
			}
			items[i] = s
		}
		return List(items...), nil
	case core.Param:
		return ParamValue(x)
	case *core.Param:
		if x == nil {
			return "null", nil
		}
		return ParamValue(*x)
	}
	return "", fmt.Errorf("cannot render %T as an M literal", v)
}

// ParamValue renders a transform parameter as an M literal.
func ParamValue(p core.Param) (string, error) {
	switch p.Kind {
	case core.ParamList:
		items := make([]string, len(p.Items))
		for i, it := range p.Items {
			s, err := ParamValue(it)
			if err != nil {
				return "", err
			}
			items[i] = s
		}
		return List(items...), nil
	case core.ParamRecord:
		fields := make([]Field, len(p.Fields))
		for i, f := range p.Fields {
			s, err := ParamValue(f.Value)
			if err != nil {
				return "", err
			}
			fields[i] = Field{Name: f.Key, Value: s}
		}
		return Record(fields...), nil
	default:
		return Value(p.Scalar)
	}
}

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) {
		return "#nan", nil
	}
	if math.IsInf(f, 1) {
		return "#infinity", nil
	}
	if math.IsInf(f, -1) {
		return "-#infinity", nil
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}
