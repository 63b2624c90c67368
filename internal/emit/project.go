// Package emit writes a compiled model as a Power BI project: a semantic
// model in TMDL, the .pbip descriptor and an optional stub report.
//
// Output is deterministic. Lineage tags are name-based UUIDs, so compiling
// the same model twice yields identical bytes.
package emit

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapbi/internal/compiler"
	"github.com/leapstack-labs/leapbi/internal/partition"
	"github.com/leapstack-labs/leapbi/internal/source"
	"github.com/leapstack-labs/leapbi/internal/typemap"
	"github.com/leapstack-labs/leapbi/pkg/core"
)

const compatibilityLevel = 1567

// Options control emission.
type Options struct {
	// Templates renders the shared Source.<key> expressions. When nil they
	// are omitted.
	Templates partition.Templates
	// Types maps declared column types to TMDL data types.
	Types *typemap.Mapper
	// StubReport adds a .Report folder and the .pbip descriptor.
	StubReport bool
}

// Project builds every file of the project for model from a successful run.
func Project(model *core.Model, res *compiler.Result, sources map[string]core.Source, opts Options) (*Files, error) {
	if opts.Types == nil {
		opts.Types = typemap.New()
	}
	e := &emitter{model: model, res: res, opts: opts, files: newFiles()}

	smDir := model.Name + ".SemanticModel"
	defDir := path.Join(smDir, "definition")

	if opts.StubReport {
		if err := e.json(model.Name+".pbip", pbipFile(model.Name)); err != nil {
			return nil, err
		}
	}
	if err := e.json(path.Join(smDir, "definition.pbism"), map[string]any{
		"version":  "4.0",
		"settings": map[string]any{},
	}); err != nil {
		return nil, err
	}

	e.files.add(path.Join(defDir, "database.tmdl"), e.database())
	e.files.add(path.Join(defDir, "model.tmdl"), e.modelFile())

	exprs, err := e.expressions(sources)
	if err != nil {
		return nil, err
	}
	if exprs != nil {
		e.files.add(path.Join(defDir, "expressions.tmdl"), exprs)
	}
	if len(model.Relationships) > 0 {
		e.files.add(path.Join(defDir, "relationships.tmdl"), e.relationships())
	}

	for i := range model.Tables {
		t := &model.Tables[i]
		data, err := e.table(t)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		e.files.add(path.Join(defDir, "tables", fileName(t.Name)+".tmdl"), data)
	}

	if opts.StubReport {
		if err := e.json(path.Join(model.Name+".Report", "definition.pbir"), map[string]any{
			"version": "4.0",
			"datasetReference": map[string]any{
				"byPath": map[string]any{"path": "../" + smDir},
			},
		}); err != nil {
			return nil, err
		}
	}
	return e.files, nil
}

type emitter struct {
	model *core.Model
	res   *compiler.Result
	opts  Options
	files *Files
}

func pbipFile(name string) map[string]any {
	return map[string]any{
		"$schema": "https://developer.microsoft.com/json-schemas/fabric/pbip/pbipProperties/1.0.0/schema.json",
		"version": "1.0",
		"artifacts": []any{
			map[string]any{"report": map[string]any{"path": name + ".Report"}},
		},
		"settings": map[string]any{"enableAutoRecovery": true},
	}
}

func (e *emitter) json(p string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	e.files.add(p, append(data, '\n'))
	return nil
}

func (e *emitter) database() []byte {
	var w tmdlWriter
	w.line(0, "database")
	w.line(1, "compatibilityLevel: %d", compatibilityLevel)
	return w.bytes()
}

func (e *emitter) modelFile() []byte {
	culture := e.model.Culture
	if culture == "" {
		culture = "en-US"
	}
	var w tmdlWriter
	w.line(0, "model Model")
	w.property(1, "culture", culture)
	w.property(1, "defaultPowerBIDataSourceVersion", "powerBI_V3")
	w.property(1, "sourceQueryCulture", culture)
	w.line(1, "dataAccessOptions")
	w.line(2, "legacyRedirects")
	w.line(2, "returnErrorValuesAsNull")
	w.blank()
	w.line(0, "annotation PBI_ProTooling = [\"leapbi\"]")
	w.blank()
	for _, t := range e.model.Tables {
		w.line(0, "ref table %s", Quote(t.Name))
	}
	return w.bytes()
}

// expressions renders the shared source functions and every published
// transform. It returns nil when there is nothing to publish.
func (e *emitter) expressions(sources map[string]core.Source) ([]byte, error) {
	var w tmdlWriter
	n := 0

	if e.opts.Templates != nil {
		keys := make([]string, 0, len(sources))
		for k := range sources {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			text, err := e.opts.Templates.Resolve(sources[k], source.ShapeStandard)
			if err != nil {
				return nil, fmt.Errorf("source %s: %w", k, err)
			}
			name := "Source." + k
			w.expression(0, "expression "+Quote(name), text)
			w.property(1, "lineageTag", lineageTag(e.model.Name, "expression", name))
			w.blank()
			w.line(1, "annotation PBI_ResultType = Table")
			w.blank()
			n++
		}
	}

	for _, t := range e.res.Published {
		w.expression(0, "expression "+Quote(t.Generated), t.Body)
		w.property(1, "lineageTag", lineageTag(e.model.Name, "expression", t.Generated))
		w.blank()
		w.line(1, "annotation PBI_ResultType = Function")
		w.blank()
		n++
	}
	if n == 0 {
		return nil, nil
	}
	return w.bytes(), nil
}

func (e *emitter) relationships() []byte {
	var w tmdlWriter
	for _, r := range e.model.Relationships {
		fromTable, fromCol, _ := core.ParseEndpoint(r.From)
		toTable, toCol, _ := core.ParseEndpoint(r.To)

		w.line(0, "relationship %s", lineageTag(e.model.Name, "relationship", r.Name))
		if r.CrossFilter == core.CrossFilterBoth {
			w.property(1, "crossFilteringBehavior", "bothDirections")
		}
		if !r.IsActive {
			w.property(1, "isActive", "false")
		}
		switch r.Cardinality {
		case core.CardinalityOneToOne:
			w.property(1, "fromCardinality", "one")
		case core.CardinalityOneToMany:
			w.property(1, "fromCardinality", "one")
			w.property(1, "toCardinality", "many")
		}
		w.property(1, "fromColumn", Quote(fromTable)+"."+Quote(fromCol))
		w.property(1, "toColumn", Quote(toTable)+"."+Quote(toCol))
		w.blank()
	}
	return w.bytes()
}

// fileName replaces characters that are not valid in file names.
func fileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		return r
	}, name)
}
