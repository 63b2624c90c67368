package emit

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapbi/internal/partition"
	"github.com/leapstack-labs/leapbi/pkg/core"
)

func (e *emitter) table(t *core.Table) ([]byte, error) {
	var w tmdlWriter
	if t.Description != "" {
		w.description(0, t.Description)
	}
	w.line(0, "table %s", Quote(t.Name))
	if t.IsHidden {
		w.property(1, "isHidden", "true")
	}
	w.property(1, "lineageTag", lineageTag(e.model.Name, t.Name))
	w.blank()

	if t.Kind == core.TableKindCalculationGroup && t.CalculationGroup != nil {
		e.calculationGroup(&w, t)
	}
	for _, m := range t.Measures {
		e.measure(&w, t, m)
	}

	var err error
	switch t.Kind {
	case core.TableKindCalculatedTable:
		err = e.calculatedTable(&w, t)
	case core.TableKindCalculationGroup:
		e.calculationGroupColumns(&w, t)
	case core.TableKindFieldParameter:
		err = e.fieldParameter(&w, t)
	case core.TableKindMeasureTable:
	default:
		err = e.importTable(&w, t)
	}
	if err != nil {
		return nil, err
	}
	return w.bytes(), nil
}

func (e *emitter) measure(w *tmdlWriter, t *core.Table, m core.Measure) {
	if m.Description != "" {
		w.description(1, m.Description)
	}
	w.expression(1, "measure "+Quote(m.Name), m.Expression)
	w.property(2, "formatString", m.FormatString)
	w.property(2, "displayFolder", m.DisplayFolder)
	if m.IsHidden {
		w.property(2, "isHidden", "true")
	}
	w.property(2, "lineageTag", lineageTag(e.model.Name, t.Name, "measure", m.Name))
	w.blank()
}

type columnSpec struct {
	core.Column
	tmdlType     string
	sourceColumn string
	sortBy       string
	extra        []string
}

func (e *emitter) column(w *tmdlWriter, t *core.Table, c columnSpec) {
	if c.Description != "" {
		w.description(1, c.Description)
	}
	w.line(1, "column %s", Quote(c.Name))
	w.property(2, "dataType", c.tmdlType)
	w.property(2, "formatString", c.FormatString)
	if c.IsHidden {
		w.property(2, "isHidden", "true")
	}
	w.property(2, "lineageTag", lineageTag(e.model.Name, t.Name, "column", c.Name))
	summarize := c.SummarizeBy
	if summarize == "" {
		summarize = "none"
	}
	w.property(2, "summarizeBy", summarize)
	w.property(2, "sourceColumn", c.sourceColumn)
	w.property(2, "sortByColumn", c.sortBy)
	for _, l := range c.extra {
		if l == "" {
			w.blank()
			continue
		}
		w.line(2, "%s", l)
	}
	w.blank()
}

func (e *emitter) declaredColumn(t *core.Table, c core.Column, sourceColumn string) (columnSpec, error) {
	tmdlType, err := e.opts.Types.TMDLType(c.DataType)
	if err != nil {
		return columnSpec{}, fmt.Errorf("column %s: %w", c.Name, err)
	}
	return columnSpec{Column: c, tmdlType: tmdlType, sourceColumn: sourceColumn}, nil
}

// importTable writes the declared columns, the hidden extras discovered for
// hide_extras, and one M partition per compiled partition.
func (e *emitter) importTable(w *tmdlWriter, t *core.Table) error {
	declared := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		declared[c.SourceName()] = true
		spec, err := e.declaredColumn(t, c, c.SourceName())
		if err != nil {
			return err
		}
		e.column(w, t, spec)
	}

	var parts []*partition.CompiledExpression
	if tr, ok := e.res.Table(t.Name); ok {
		parts = tr.Partitions
	}
	for _, p := range parts {
		for _, name := range p.HiddenColumns {
			if declared[name] {
				continue
			}
			declared[name] = true
			e.column(w, t, columnSpec{
				Column:       core.Column{Name: name, IsHidden: true},
				tmdlType:     "string",
				sourceColumn: name,
				extra:        []string{"", "annotation UnderlyingDataType = Inferred"},
			})
		}
	}

	for _, p := range parts {
		w.line(1, "partition %s = m", Quote(p.Partition))
		w.property(2, "mode", partitionMode(p.Mode))
		w.expression(2, "source", p.Text)
		w.blank()
	}
	return nil
}

func partitionMode(m core.PartitionMode) string {
	if m == core.ModeDirectQuery {
		return "directQuery"
	}
	return "import"
}

func (e *emitter) calculatedTable(w *tmdlWriter, t *core.Table) error {
	for _, c := range t.Columns {
		spec, err := e.declaredColumn(t, c, "["+c.SourceName()+"]")
		if err != nil {
			return err
		}
		e.column(w, t, spec)
	}
	expr := ""
	if tr, ok := e.res.Table(t.Name); ok {
		expr = tr.CalculatedExpression
	}
	if expr == "" {
		return fmt.Errorf("calculated table has no expression")
	}
	w.line(1, "partition %s = calculated", Quote(t.Name))
	w.property(2, "mode", "import")
	w.expression(2, "source", expr)
	w.blank()
	return nil
}

func (e *emitter) calculationGroup(w *tmdlWriter, t *core.Table) {
	cg := t.CalculationGroup
	w.line(1, "calculationGroup")
	if cg.Precedence != 0 {
		w.line(2, "precedence: %d", cg.Precedence)
	}
	w.blank()
	for _, item := range cg.Items {
		w.expression(2, "calculationItem "+Quote(item.Name), item.Expression)
		w.line(3, "ordinal: %d", item.Ordinal)
		if item.FormatStringExpression != "" {
			w.blank()
			w.expression(3, "formatStringDefinition", item.FormatStringExpression)
		}
		w.blank()
	}
}

func (e *emitter) calculationGroupColumns(w *tmdlWriter, t *core.Table) {
	name := "Name"
	if len(t.Columns) > 0 {
		name = t.Columns[0].Name
	}
	e.column(w, t, columnSpec{Column: core.Column{Name: name}, tmdlType: "string", sourceColumn: "Name", sortBy: "Ordinal"})
	e.column(w, t, columnSpec{Column: core.Column{Name: "Ordinal", IsHidden: true, FormatString: "0"}, tmdlType: "int64", sourceColumn: "Ordinal"})

	w.line(1, "partition %s = calculationGroup", Quote(t.Name))
	w.property(2, "mode", "import")
	w.blank()
}

// fieldParameter writes the three-column calculated table Power BI uses for
// field parameters: display name, field reference, and order.
func (e *emitter) fieldParameter(w *tmdlWriter, t *core.Table) error {
	if t.FieldParameter == nil || len(t.FieldParameter.Fields) == 0 {
		return fmt.Errorf("field parameter has no fields")
	}
	display := t.Name
	fields := t.Name + " Fields"
	order := t.Name + " Order"

	e.column(w, t, columnSpec{Column: core.Column{Name: display}, tmdlType: "string", sourceColumn: "[Value1]", sortBy: Quote(order)})
	e.column(w, t, columnSpec{
		Column:       core.Column{Name: fields, IsHidden: true},
		tmdlType:     "string",
		sourceColumn: "[Value2]",
		sortBy:       Quote(order),
		extra: []string{
			"",
			"extendedProperty ParameterMetadata =",
			"\t\t{",
			"\t\t  \"version\": 3,",
			"\t\t  \"kind\": 2",
			"\t\t}",
		},
	})
	e.column(w, t, columnSpec{Column: core.Column{Name: order, IsHidden: true, FormatString: "0"}, tmdlType: "int64", sourceColumn: "[Value3]"})

	rows := make([]string, len(t.FieldParameter.Fields))
	for i, f := range t.FieldParameter.Fields {
		rows[i] = fmt.Sprintf("    (%s, NAMEOF(%s), %d)", daxString(f.Name), daxRef(f.Ref), i)
	}
	expr := "{\n" + strings.Join(rows, ",\n") + "\n}"

	w.line(1, "partition %s = calculated", Quote(t.Name))
	w.property(2, "mode", "import")
	w.expression(2, "source", expr)
	w.blank()
	return nil
}

func daxString(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// daxRef quotes the table part of a Table[Column] reference. Measure
// references such as [Total] are returned unchanged.
func daxRef(ref string) string {
	ref = strings.TrimSpace(ref)
	i := strings.Index(ref, "[")
	if i <= 0 {
		return ref
	}
	table := strings.Trim(ref[:i], "'")
	return "'" + strings.ReplaceAll(table, "'", "''") + "'" + ref[i:]
}
