// Package starlark provides the Starlark execution context used to render
// connector templates.
package starlark

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapbi/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// SourceInfo is the connection definition exposed to templates as "src".
type SourceInfo struct {
	Key       string
	Kind      string
	Server    string
	Warehouse string
	Database  string
	Role      string
	HTTPPath  string
	FilePath  string
	Options   map[string]any
}

// SourceInfoFromCore copies the template-visible fields of a source.
func SourceInfoFromCore(s core.Source) *SourceInfo {
	return &SourceInfo{
		Key:       s.Key,
		Kind:      string(s.Kind),
		Server:    s.Server,
		Warehouse: s.Warehouse,
		Database:  s.Database,
		Role:      s.Role,
		HTTPPath:  s.HTTPPath,
		FilePath:  s.FilePath,
		Options:   s.Options,
	}
}

// ToStarlark converts SourceInfo to a Starlark struct. Options become a dict
// with keys in sorted order.
func (s *SourceInfo) ToStarlark() (starlark.Value, error) {
	opts, err := GoToStarlark(s.Options)
	if err != nil {
		return nil, fmt.Errorf("source %s options: %w", s.Key, err)
	}
	if opts == starlark.None {
		opts = starlark.NewDict(0)
	}
	return starlarkstruct.FromStringDict(starlark.String("src"), starlark.StringDict{
		"key":       starlark.String(s.Key),
		"kind":      starlark.String(s.Kind),
		"server":    starlark.String(s.Server),
		"warehouse": starlark.String(s.Warehouse),
		"database":  starlark.String(s.Database),
		"role":      starlark.String(s.Role),
		"http_path": starlark.String(s.HTTPPath),
		"file_path": starlark.String(s.FilePath),
		"options":   opts,
	}), nil
}

// GoToStarlark converts a Go value to a Starlark value.
// Supported types: string, int, int64, float64, bool, []string, []any, map[string]any.
// Map keys are inserted in sorted order so rendering is deterministic.
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case string:
		return starlark.String(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case bool:
		return starlark.Bool(val), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		if val == nil {
			return starlark.None, nil
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := starlark.NewDict(len(val))
		for _, k := range keys {
			sv, err := GoToStarlark(val[k])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts a Starlark value back to a Go value.
// Returns: string, int64, float64, bool, []any, map[string]any, or nil
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String:
		return string(val), nil
	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer %s out of range", val)
		}
		return i64, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.Bool:
		return bool(val), nil

	case starlark.Indexable:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case *starlark.Dict:
		result := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}
			result[string(key)] = gv
		}
		return result, nil
	}
	return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
}
