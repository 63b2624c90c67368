package core

import "fmt"

// TransformStep requests one invocation of a registered transform.
type TransformStep struct {
	// Name is the canonical transform name, e.g. "limit_rows".
	Name string
	// Params is nil when the transform is invoked without arguments.
	Params *Param
}

func (s TransformStep) String() string {
	if s.Params == nil {
		return s.Name
	}
	return fmt.Sprintf("%s(%s)", s.Name, s.Params)
}

// ParamKind tags the Param union.
type ParamKind int

// Param kinds.
const (
	ParamScalar ParamKind = iota
	ParamList
	ParamRecord
)

func (k ParamKind) String() string {
	switch k {
	case ParamScalar:
		return "scalar"
	case ParamList:
		return "list"
	case ParamRecord:
		return "record"
	default:
		return "unknown"
	}
}

// Param is a transform argument: a scalar, an ordered list, or a keyed record.
// Record fields keep declaration order.
type Param struct {
	Kind ParamKind
	// Scalar holds string, int64, float64, bool, or nil.
	Scalar any
	Items  []Param
	Fields []ParamField
}

// ParamField is one key of a record parameter.
type ParamField struct {
	Key   string
	Value Param
}

// ScalarParam wraps a scalar value.
func ScalarParam(v any) Param {
	switch n := v.(type) {
	case int:
		v = int64(n)
	case int32:
		v = int64(n)
	case float32:
		v = float64(n)
	}
	return Param{Kind: ParamScalar, Scalar: v}
}

// ListParam builds an ordered list parameter.
func ListParam(items ...Param) Param {
	return Param{Kind: ParamList, Items: items}
}

// RecordParam builds a keyed record parameter.
func RecordParam(fields ...ParamField) Param {
	return Param{Kind: ParamRecord, Fields: fields}
}

// Field returns the value of a record field.
func (p Param) Field(key string) (Param, bool) {
	for _, f := range p.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Param{}, false
}

func (p Param) String() string {
	switch p.Kind {
	case ParamList:
		s := "["
		for i, it := range p.Items {
			if i > 0 {
				s += ", "
			}
			s += it.String()
		}
		return s + "]"
	case ParamRecord:
		s := "{"
		for i, f := range p.Fields {
			if i > 0 {
				s += ", "
			}
			s += f.Key + ": " + f.Value.String()
		}
		return s + "}"
	default:
		if str, ok := p.Scalar.(string); ok {
			return fmt.Sprintf("%q", str)
		}
		if p.Scalar == nil {
			return "null"
		}
		return fmt.Sprint(p.Scalar)
	}
}
