package starlark

import (
	"fmt"

	"go.starlark.net/starlark"
)

// ExecutionContext holds the globals a template is evaluated against.
// It is read-only after construction and may be shared between goroutines.
type ExecutionContext struct {
	// Source is exposed as src and source_key. It may be nil.
	Source *SourceInfo

	globals starlark.StringDict
	pool    *ThreadPool
}

// ContextOption configures an ExecutionContext.
type ContextOption func(*contextConfig)

type contextConfig struct {
	extra starlark.StringDict
	pool  *ThreadPool
}

// WithGlobals adds extra globals. Names of builtins are rejected by
// NewExecutionContext.
func WithGlobals(g starlark.StringDict) ContextOption {
	return func(c *contextConfig) {
		if c.extra == nil {
			c.extra = make(starlark.StringDict, len(g))
		}
		for k, v := range g {
			c.extra[k] = v
		}
	}
}

// WithThreadPool makes evaluation borrow threads from p instead of allocating.
func WithThreadPool(p *ThreadPool) ContextOption {
	return func(c *contextConfig) {
		c.pool = p
	}
}

// NewExecutionContext builds the globals for src.
func NewExecutionContext(src *SourceInfo, opts ...ContextOption) (*ExecutionContext, error) {
	var cfg contextConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	globals, err := Predeclared(src)
	if err != nil {
		return nil, err
	}
	for name, v := range cfg.extra {
		switch name {
		case GlobalSource, GlobalSourceKey, GlobalM:
			return nil, fmt.Errorf("global %q conflicts with builtin", name)
		}
		globals[name] = v
	}
	globals.Freeze()

	return &ExecutionContext{Source: src, globals: globals, pool: cfg.pool}, nil
}

// Globals returns the frozen globals.
func (ctx *ExecutionContext) Globals() starlark.StringDict {
	return ctx.globals
}

// EvalExpr evaluates a single Starlark expression.
// This is used for {{ expr }} template expressions.
func (ctx *ExecutionContext) EvalExpr(expr string, filename string, line int) (starlark.Value, error) {
	return ctx.EvalExprWithLocals(expr, filename, line, nil)
}

// EvalExprWithLocals evaluates a Starlark expression with loop variables in scope.
// Locals shadow globals.
func (ctx *ExecutionContext) EvalExprWithLocals(expr string, filename string, line int, locals starlark.StringDict) (starlark.Value, error) {
	thread := ctx.thread(filename)
	if ctx.pool != nil {
		defer ctx.pool.Put(thread)
	}

	env := ctx.globals
	if len(locals) > 0 {
		env = make(starlark.StringDict, len(ctx.globals)+len(locals))
		for k, v := range ctx.globals {
			env[k] = v
		}
		for k, v := range locals {
			env[k] = v
		}
	}

	result, err := starlark.Eval(thread, filename, expr, env) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	if err != nil {
		return nil, &EvalError{
			File:    filename,
			Line:    line,
			Expr:    expr,
			Message: err.Error(),
		}
	}
	return result, nil
}

// EvalExprString evaluates a Starlark expression and returns its text.
func (ctx *ExecutionContext) EvalExprString(expr string, filename string, line int) (string, error) {
	return ctx.EvalExprStringWithLocals(expr, filename, line, nil)
}

// EvalExprStringWithLocals is EvalExprString with loop variables in scope.
// Strings are returned unquoted and None renders as the empty string.
func (ctx *ExecutionContext) EvalExprStringWithLocals(expr string, filename string, line int, locals starlark.StringDict) (string, error) {
	result, err := ctx.EvalExprWithLocals(expr, filename, line, locals)
	if err != nil {
		return "", err
	}
	switch v := result.(type) {
	case starlark.String:
		return string(v), nil
	case starlark.NoneType:
		return "", nil
	default:
		return result.String(), nil
	}
}

func (ctx *ExecutionContext) thread(name string) *starlark.Thread {
	if ctx.pool != nil {
		return ctx.pool.Get(name)
	}
	return newThread(name)
}

// EvalError represents an error during Starlark expression evaluation.
type EvalError struct {
	File    string
	Line    int
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: error evaluating %q: %s", e.File, e.Line, e.Expr, e.Message)
	}
	return fmt.Sprintf("%s: error evaluating %q: %s", e.File, e.Expr, e.Message)
}
