// Package compiler orchestrates a compilation run: it validates every table,
// compiles each M partition against frozen catalogs, and aggregates the
// results and errors of the whole model.
package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapbi/internal/partition"
	"github.com/leapstack-labs/leapbi/internal/transform"
	"github.com/leapstack-labs/leapbi/pkg/core"
)

// Options tune a run.
type Options struct {
	// Concurrency > 1 compiles partitions in parallel. Output order does not change.
	Concurrency int
	Logger      *slog.Logger
}

// TableResult holds the compiled output of one table.
type TableResult struct {
	Name string
	Kind core.TableKind
	// Partitions holds one entry per successfully compiled partition, in
	// declaration order.
	Partitions []*partition.CompiledExpression
	// CalculatedExpression is the DAX of a calculated table.
	CalculatedExpression string
}

// Result is the output of a run.
type Result struct {
	RunID  string
	Tables []TableResult
	// Published is every transform, emitted once per model.
	Published []*transform.Entry
	// Used are the generated names referenced by at least one partition, sorted.
	Used     []string
	Warnings []partition.Warning
	Errors   []error
}

// Table returns the result for the named table.
func (r *Result) Table(name string) (*TableResult, bool) {
	for i := range r.Tables {
		if r.Tables[i].Name == name {
			return &r.Tables[i], true
		}
	}
	return nil, false
}

// Partition returns the compiled expression of one partition.
func (r *Result) Partition(table, name string) (*partition.CompiledExpression, bool) {
	t, ok := r.Table(table)
	if !ok {
		return nil, false
	}
	for _, p := range t.Partitions {
		if p.Partition == name {
			return p, true
		}
	}
	return nil, false
}

// WarningsByCode returns the warnings with the given code.
func (r *Result) WarningsByCode(code string) []partition.Warning {
	var out []partition.Warning
	for _, w := range r.Warnings {
		if w.Code == code {
			out = append(out, w)
		}
	}
	return out
}

// Diagnostics returns errors followed by warnings as located diagnostics.
func (r *Result) Diagnostics() []core.Diagnostic {
	out := make([]core.Diagnostic, 0, len(r.Errors)+len(r.Warnings))
	for _, err := range r.Errors {
		out = append(out, errorDiagnostic(err))
	}
	for _, w := range r.Warnings {
		out = append(out, core.Diagnostic{
			Code:      w.Code,
			Severity:  core.SeverityWarning,
			Table:     w.Table,
			Partition: w.Partition,
			Message:   w.Message,
		})
	}
	return out
}

type job struct {
	table int
	part  int
}

type outcome struct {
	expr *partition.CompiledExpression
	err  error
}

// Run compiles model. The returned Result is always non-nil; when any table
// or partition fails, err is a *RunError listing every failure and the failed
// partitions are absent from the Result.
func Run(ctx context.Context, model *core.Model, cat *Catalogs, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	start := time.Now()
	logger.Info("starting compile", "model", model.Name, "tables", len(model.Tables))

	res := &Result{RunID: runID, Published: cat.Transforms.Publishable()}
	var errs []error

	// Validation is table-wide; a table that fails it is not compiled.
	skip := make([]bool, len(model.Tables))
	seen := make(map[string]bool, len(model.Tables))
	for i := range model.Tables {
		t := &model.Tables[i]
		if seen[t.Name] {
			errs = append(errs, &DuplicateTableError{Location: partition.Location{Table: t.Name, Step: "validate"}})
			skip[i] = true
			continue
		}
		seen[t.Name] = true
		if tableErrs := partition.ValidateTable(t, cat.Types); len(tableErrs) > 0 {
			errs = append(errs, tableErrs...)
			skip[i] = true
		}
	}
	errs = append(errs, validateRelationships(model)...)

	res.Tables = make([]TableResult, len(model.Tables))
	var jobs []job
	for i := range model.Tables {
		t := &model.Tables[i]
		res.Tables[i] = TableResult{Name: t.Name, Kind: t.Kind}
		if skip[i] {
			continue
		}
		switch t.Kind {
		case core.TableKindCalculatedTable:
			expr, err := calculatedExpression(t, cat)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			res.Tables[i].CalculatedExpression = expr
		case core.TableKindTable, "":
			for j := range t.Partitions {
				jobs = append(jobs, job{table: i, part: j})
			}
		}
	}

	outcomes := make([]outcome, len(jobs))
	compile := func(k int) {
		jb := jobs[k]
		t := &model.Tables[jb.table]
		p := &t.Partitions[jb.part]
		expr, err := partition.Compile(ctx, &cat.Catalogs, t, p)
		outcomes[k] = outcome{expr: expr, err: err}
		if err == nil {
			logger.Debug("partition compiled", "table", t.Name, "partition", p.Name, "bindings", len(expr.Bindings))
		}
	}

	if opts.Concurrency > 1 && len(jobs) > 1 {
		var g errgroup.Group
		g.SetLimit(opts.Concurrency)
		for k := range jobs {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					outcomes[k] = outcome{err: err}
					return nil
				}
				compile(k)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for k := range jobs {
			if err := ctx.Err(); err != nil {
				outcomes[k] = outcome{err: err}
				continue
			}
			compile(k)
		}
	}

	used := make(map[string]bool)
	for k, o := range outcomes {
		if o.err != nil {
			errs = append(errs, o.err)
			continue
		}
		tr := &res.Tables[jobs[k].table]
		tr.Partitions = append(tr.Partitions, o.expr)
		for _, w := range o.expr.Warnings {
			logger.Warn(w.Message, "code", w.Code, "table", w.Table, "partition", w.Partition)
			res.Warnings = append(res.Warnings, w)
		}
		for _, name := range o.expr.Transforms {
			used[name] = true
		}
	}
	for name := range used {
		res.Used = append(res.Used, name)
	}
	sort.Strings(res.Used)

	res.Errors = errs
	logger.Info("compile finished",
		"partitions", len(jobs),
		"errors", len(errs),
		"warnings", len(res.Warnings),
		"duration_ms", time.Since(start).Milliseconds())

	if len(errs) > 0 {
		return res, &RunError{Errs: errs}
	}
	return res, nil
}

func calculatedExpression(t *core.Table, cat *Catalogs) (string, error) {
	loc := partition.Location{Table: t.Name, Step: "validate"}
	def := t.CalculatedTable
	switch {
	case def == nil || (def.Expression == "" && def.Template == ""):
		return "", &CalculatedTableError{Location: loc, Reason: "calculated table must have either an expression or a template"}
	case def.Expression != "" && def.Template != "":
		return "", &CalculatedTableError{Location: loc, Reason: "calculated table cannot have both an expression and a template"}
	case def.Expression != "":
		return def.Expression, nil
	}
	tmpl, ok := cat.DAX.Lookup(def.Template)
	if !ok {
		return "", &CalculatedTableError{
			Location: loc,
			Reason:   fmt.Sprintf("unknown DAX template %q (available: %v)", def.Template, cat.DAX.Names()),
		}
	}
	return tmpl.Expression, nil
}

func validateRelationships(model *core.Model) []error {
	var errs []error
	for _, r := range model.Relationships {
		for _, end := range []string{r.From, r.To} {
			table, column, err := core.ParseEndpoint(end)
			if err != nil {
				errs = append(errs, &RelationshipError{Name: r.Name, Reason: err.Error()})
				continue
			}
			t, ok := model.Table(table)
			if !ok {
				errs = append(errs, &RelationshipError{Name: r.Name, Reason: fmt.Sprintf("unknown table %q", table)})
				continue
			}
			if len(t.Columns) > 0 && !hasColumn(t, column) {
				errs = append(errs, &RelationshipError{Name: r.Name, Reason: fmt.Sprintf("table %s has no column %q", table, column)})
			}
		}
	}
	return errs
}

func hasColumn(t *core.Table, name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}
