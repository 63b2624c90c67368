package loader

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapbi/pkg/core"
)

const defaultCulture = "en-US"

type modelFile struct {
	Version int       `yaml:"version"`
	Model   modelYAML `yaml:"model"`
}

type modelYAML struct {
	Name          string             `yaml:"name"`
	Culture       string             `yaml:"culture"`
	Tables        []tableYAML        `yaml:"tables"`
	Relationships []relationshipYAML `yaml:"relationships"`
	// Roles are accepted for compatibility and not emitted.
	Roles []map[string]any `yaml:"roles"`
}

type tableYAML struct {
	Name                  string                `yaml:"name"`
	Kind                  string                `yaml:"kind"`
	ColumnPolicy          string                `yaml:"column_policy"`
	Description           string                `yaml:"description"`
	IsHidden              bool                  `yaml:"isHidden"`
	Source                *tableSourceYAML      `yaml:"source"`
	Columns               []columnYAML          `yaml:"columns"`
	Measures              []measureYAML         `yaml:"measures"`
	BaseMeasures          yaml.Node             `yaml:"base_measures"`
	Partitions            []partitionYAML       `yaml:"partitions"`
	CalculatedTableDef    *calculatedTableYAML  `yaml:"calculatedTableDef"`
	CalculationGroup      *calculationGroupYAML `yaml:"calculationGroup"`
	CalculationGroupItems []calculationItemYAML `yaml:"calculationGroupItems"`
	FieldParameter        *fieldParameterYAML   `yaml:"fieldParameter"`
}

type tableSourceYAML struct {
	Use string `yaml:"use"`
}

type columnYAML struct {
	Name         string `yaml:"name"`
	DataType     string `yaml:"dataType"`
	SourceColumn string `yaml:"sourceColumn"`
	FormatString string `yaml:"formatString"`
	IsHidden     bool   `yaml:"isHidden"`
	Description  string `yaml:"description"`
	SummarizeBy  string `yaml:"summarizeBy"`
}

type measureYAML struct {
	Name          string `yaml:"name"`
	Expression    string `yaml:"expression"`
	FormatString  string `yaml:"formatString"`
	DisplayFolder string `yaml:"displayFolder"`
	IsHidden      bool   `yaml:"isHidden"`
	Description   string `yaml:"description"`
}

type partitionYAML struct {
	Name        string          `yaml:"name"`
	Mode        string          `yaml:"mode"`
	Use         string          `yaml:"use"`
	Navigation  *navigationYAML `yaml:"navigation"`
	NativeQuery string          `yaml:"nativeQuery"`
	CustomSteps []yaml.Node     `yaml:"custom_steps"`
}

type navigationYAML struct {
	Database string `yaml:"database"`
	Schema   string `yaml:"schema"`
	Table    string `yaml:"table"`
}

type calculatedTableYAML struct {
	Expression  string `yaml:"expression"`
	Template    string `yaml:"template"`
	Description string `yaml:"description"`
}

type calculationGroupYAML struct {
	Precedence int                   `yaml:"precedence"`
	Items      []calculationItemYAML `yaml:"items"`
}

type calculationItemYAML struct {
	Name                   string `yaml:"name"`
	Expression             string `yaml:"expression"`
	Ordinal                *int   `yaml:"ordinal"`
	FormatString           string `yaml:"formatString"`
	FormatStringExpression string `yaml:"formatStringExpression"`
}

type fieldParameterYAML struct {
	Fields []fieldRefYAML `yaml:"fields"`
}

type fieldRefYAML struct {
	Name string `yaml:"name"`
	Ref  string `yaml:"ref"`
}

type relationshipYAML struct {
	Name        string `yaml:"name"`
	From        string `yaml:"from"`
	To          string `yaml:"to"`
	Cardinality string `yaml:"cardinality"`
	CrossFilter string `yaml:"crossFilter"`
	IsActive    *bool  `yaml:"isActive"`
}

// LoadModel reads a model file.
func LoadModel(path string) (*core.Model, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from project config
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return ParseModel(path, data)
}

// ParseModel decodes model YAML. Every structural problem in the file is
// reported, joined into one error.
func ParseModel(file string, data []byte) (*core.Model, error) {
	var doc modelFile
	if err := decodeStrict(file, data, &doc); err != nil {
		return nil, err
	}
	if err := checkVersion(file, doc.Version); err != nil {
		return nil, err
	}

	b := &modelBuilder{file: file}
	m := b.model(&doc.Model)
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return m, nil
}

type modelBuilder struct {
	file string
	errs []error
}

func (b *modelBuilder) fail(path, format string, args ...any) {
	b.errs = append(b.errs, &ParseError{File: b.file, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (b *modelBuilder) model(my *modelYAML) *core.Model {
	if my.Name == "" {
		b.fail("model.name", "is required")
	}
	m := &core.Model{Name: my.Name, Culture: my.Culture}
	if m.Culture == "" {
		m.Culture = defaultCulture
	}
	if len(my.Tables) == 0 {
		b.fail("model.tables", "at least one table is required")
	}
	for i := range my.Tables {
		m.Tables = append(m.Tables, b.table(fmt.Sprintf("model.tables[%d]", i), &my.Tables[i]))
	}
	for i, ry := range my.Relationships {
		m.Relationships = append(m.Relationships, b.relationship(fmt.Sprintf("model.relationships[%d]", i), ry))
	}
	return m
}

func (b *modelBuilder) table(path string, ty *tableYAML) core.Table {
	if ty.Name == "" {
		b.fail(path+".name", "is required")
	} else {
		path = fmt.Sprintf("%s(%s)", path, ty.Name)
	}

	t := core.Table{
		Name:         ty.Name,
		Kind:         core.TableKind(ty.Kind),
		ColumnPolicy: core.ColumnPolicy(ty.ColumnPolicy),
		Description:  ty.Description,
		IsHidden:     ty.IsHidden,
	}
	if t.Kind == "" {
		t.Kind = core.TableKindTable
	}
	if !t.Kind.Valid() {
		b.fail(path+".kind", "invalid value %q (expected table, measureTable, calculatedTable, calculationGroup or fieldParameter)", ty.Kind)
	}
	if t.ColumnPolicy == "" {
		t.ColumnPolicy = core.PolicySelectOnly
	}
	if !t.ColumnPolicy.Valid() {
		b.fail(path+".column_policy", "invalid value %q (expected select_only, keep_all or hide_extras)", ty.ColumnPolicy)
	}

	for i, cy := range ty.Columns {
		if cy.Name == "" {
			b.fail(fmt.Sprintf("%s.columns[%d].name", path, i), "is required")
		}
		t.Columns = append(t.Columns, core.Column(cy))
	}

	for i, my := range ty.Measures {
		mp := fmt.Sprintf("%s.measures[%d]", path, i)
		if my.Name == "" {
			b.fail(mp+".name", "is required")
		}
		if my.Expression == "" {
			b.fail(mp+".expression", "is required")
		}
		t.Measures = append(t.Measures, core.Measure(my))
	}
	generated, err := expandBaseMeasures(b.file, path+".base_measures", &ty.BaseMeasures)
	if err != nil {
		b.errs = append(b.errs, err)
	}
	t.Measures = append(t.Measures, generated...)

	defaultUse := ""
	if ty.Source != nil {
		defaultUse = ty.Source.Use
	}
	for i := range ty.Partitions {
		t.Partitions = append(t.Partitions, b.partition(fmt.Sprintf("%s.partitions[%d]", path, i), &ty.Partitions[i], defaultUse))
	}

	if ty.CalculatedTableDef != nil {
		t.CalculatedTable = &core.CalculatedTableDef{
			Expression: ty.CalculatedTableDef.Expression,
			Template:   ty.CalculatedTableDef.Template,
		}
		if t.Description == "" {
			t.Description = ty.CalculatedTableDef.Description
		}
	}
	if ty.CalculationGroup != nil || len(ty.CalculationGroupItems) > 0 {
		t.CalculationGroup = b.calculationGroup(path, ty)
	}
	if ty.FieldParameter != nil {
		fp := &core.FieldParameterDef{}
		for i, f := range ty.FieldParameter.Fields {
			if f.Name == "" || f.Ref == "" {
				b.fail(fmt.Sprintf("%s.fieldParameter.fields[%d]", path, i), "name and ref are required")
			}
			fp.Fields = append(fp.Fields, core.FieldRef(f))
		}
		t.FieldParameter = fp
	}
	return t
}

func (b *modelBuilder) calculationGroup(path string, ty *tableYAML) *core.CalculationGroupDef {
	cg := &core.CalculationGroupDef{}
	items := ty.CalculationGroupItems
	if ty.CalculationGroup != nil {
		cg.Precedence = ty.CalculationGroup.Precedence
		items = append(items, ty.CalculationGroup.Items...)
	}
	for i, iy := range items {
		if iy.Name == "" || iy.Expression == "" {
			b.fail(fmt.Sprintf("%s.calculationGroup.items[%d]", path, i), "name and expression are required")
		}
		item := core.CalculationItem{
			Name:                   iy.Name,
			Expression:             iy.Expression,
			Ordinal:                i,
			FormatStringExpression: iy.FormatStringExpression,
		}
		if iy.Ordinal != nil {
			item.Ordinal = *iy.Ordinal
		}
		// A static format string is a constant format expression.
		if item.FormatStringExpression == "" && iy.FormatString != "" {
			item.FormatStringExpression = fmt.Sprintf("%q", iy.FormatString)
		}
		cg.Items = append(cg.Items, item)
	}
	return cg
}

func (b *modelBuilder) partition(path string, py *partitionYAML, defaultUse string) core.Partition {
	if py.Name == "" {
		b.fail(path+".name", "is required")
	}
	p := core.Partition{
		Name:        py.Name,
		Use:         py.Use,
		NativeQuery: strings.TrimSpace(py.NativeQuery),
	}
	if p.Use == "" {
		p.Use = defaultUse
	}
	if p.Use == "" {
		b.fail(path+".use", "is required (set it on the partition or as the table's source.use)")
	}

	switch strings.ToLower(py.Mode) {
	case "", "import":
		p.Mode = core.ModeImport
	case "directquery":
		p.Mode = core.ModeDirectQuery
	default:
		b.fail(path+".mode", "invalid value %q (expected import or directQuery)", py.Mode)
	}

	if py.Navigation != nil {
		p.Navigation = &core.Navigation{
			Database: py.Navigation.Database,
			Schema:   py.Navigation.Schema,
			Table:    py.Navigation.Table,
		}
	}

	for i := range py.CustomSteps {
		step, err := parseStep(b.file, fmt.Sprintf("%s.custom_steps[%d]", path, i), &py.CustomSteps[i])
		if err != nil {
			b.errs = append(b.errs, err)
			continue
		}
		p.CustomSteps = append(p.CustomSteps, step)
	}
	return p
}

func (b *modelBuilder) relationship(path string, ry relationshipYAML) core.Relationship {
	r := core.Relationship{
		Name:        ry.Name,
		From:        ry.From,
		To:          ry.To,
		Cardinality: core.Cardinality(ry.Cardinality),
		CrossFilter: core.CrossFilter(ry.CrossFilter),
		IsActive:    ry.IsActive == nil || *ry.IsActive,
	}

	fromTable, fromCol, errFrom := core.ParseEndpoint(ry.From)
	if errFrom != nil {
		b.fail(path+".from", "%v", errFrom)
	}
	toTable, toCol, errTo := core.ParseEndpoint(ry.To)
	if errTo != nil {
		b.fail(path+".to", "%v", errTo)
	}
	if r.Name == "" && errFrom == nil && errTo == nil {
		r.Name = fmt.Sprintf("%s_%s_%s_%s", fromTable, fromCol, toTable, toCol)
	}

	switch r.Cardinality {
	case core.CardinalityOneToOne, core.CardinalityOneToMany, core.CardinalityManyToOne:
	case "":
		b.fail(path+".cardinality", "is required")
	default:
		b.fail(path+".cardinality", "invalid value %q (expected oneToOne, oneToMany or manyToOne)", ry.Cardinality)
	}
	switch r.CrossFilter {
	case core.CrossFilterSingle, core.CrossFilterBoth:
	case "":
		r.CrossFilter = core.CrossFilterSingle
	default:
		b.fail(path+".crossFilter", "invalid value %q (expected single or both)", ry.CrossFilter)
	}
	return r
}
