package loader

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapbi/pkg/core"
)

var aggregations = map[string]string{
	"sum":           "SUM",
	"avg":           "AVERAGE",
	"min":           "MIN",
	"max":           "MAX",
	"count":         "COUNT",
	"distinctcount": "DISTINCTCOUNT",
}

// expandBaseMeasures turns the base_measures shorthand into measures.
//
//	base_measures:
//	  sum: sales_amount, fact_sales.profit
//	  avg: [rating]
//
// yields sum_sales_amount = SUM([sales_amount]) and
// sum_profit = SUM('fact_sales'[profit]). A list of single-key mappings is
// accepted as well.
func expandBaseMeasures(file, path string, n *yaml.Node) ([]core.Measure, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	n = resolve(n)

	var pairs []*yaml.Node
	switch n.Kind {
	case yaml.MappingNode:
		pairs = n.Content
	case yaml.SequenceNode:
		for _, item := range n.Content {
			item = resolve(item)
			if item.Kind != yaml.MappingNode {
				return nil, nodeError(file, item, path, "list entries must be mappings such as {sum: col}")
			}
			pairs = append(pairs, item.Content...)
		}
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return nil, nil
		}
		fallthrough
	default:
		return nil, nodeError(file, n, path, "must be a mapping of aggregation to columns")
	}

	var out []core.Measure
	for i := 0; i+1 < len(pairs); i += 2 {
		key := pairs[i].Value
		fn, ok := aggregations[strings.ToLower(key)]
		if !ok {
			return nil, nodeError(file, pairs[i], path, "unknown aggregation %q (expected sum, avg, min, max, count or distinctcount)", key)
		}
		cols, err := columnList(file, path+"."+key, pairs[i+1])
		if err != nil {
			return nil, err
		}
		for _, col := range cols {
			table, column := splitColumnRef(col)
			ref := "[" + column + "]"
			if table != "" {
				ref = "'" + strings.ReplaceAll(table, "'", "''") + "'" + ref
			}
			out = append(out, core.Measure{
				Name:       strings.ToLower(key) + "_" + column,
				Expression: fmt.Sprintf("%s(%s)", fn, ref),
			})
		}
	}
	return out, nil
}

func columnList(file, path string, n *yaml.Node) ([]string, error) {
	n = resolve(n)
	var raw []string
	switch n.Kind {
	case yaml.ScalarNode:
		raw = strings.Split(n.Value, ",")
	case yaml.SequenceNode:
		for _, c := range n.Content {
			c = resolve(c)
			if c.Kind != yaml.ScalarNode {
				return nil, nodeError(file, c, path, "column must be a string")
			}
			raw = append(raw, c.Value)
		}
	default:
		return nil, nodeError(file, n, path, "must be a comma-separated string or a list of columns")
	}
	cols := make([]string, 0, len(raw))
	for _, c := range raw {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols, nil
}

// splitColumnRef splits "table.column" at the first dot.
func splitColumnRef(ref string) (table, column string) {
	if i := strings.Index(ref, "."); i > 0 {
		return strings.TrimSpace(ref[:i]), strings.TrimSpace(ref[i+1:])
	}
	return "", ref
}
