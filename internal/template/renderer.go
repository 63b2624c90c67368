package template

import (
	"strings"

	starctx "github.com/leapstack-labs/leapbi/internal/starlark"
	"go.starlark.net/starlark"
)

// maxIterations bounds a single for loop.
const maxIterations = 10000

// Render evaluates a parsed template against ctx.
func Render(tmpl *Template, ctx *starctx.ExecutionContext) (string, error) {
	r := &renderer{ctx: ctx, file: tmpl.File}
	var b strings.Builder
	if err := r.renderNodes(&b, tmpl.Nodes, nil); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderString parses and renders a template in one step.
func RenderString(input, file string, ctx *starctx.ExecutionContext) (string, error) {
	tmpl, err := ParseString(input, file)
	if err != nil {
		return "", err
	}
	return Render(tmpl, ctx)
}

type renderer struct {
	ctx  *starctx.ExecutionContext
	file string
}

func (r *renderer) renderNodes(b *strings.Builder, nodes []Node, locals starlark.StringDict) error {
	for _, n := range nodes {
		if err := r.renderNode(b, n, locals); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) renderNode(b *strings.Builder, n Node, locals starlark.StringDict) error {
	switch node := n.(type) {
	case *TextNode:
		b.WriteString(node.Text)

	case *ExprNode:
		s, err := r.ctx.EvalExprStringWithLocals(node.Expr, r.file, node.Pos().Line, locals)
		if err != nil {
			return WrapRenderError(node.Pos(), "expression failed", err)
		}
		b.WriteString(s)

	case *ForBlock:
		return r.renderFor(b, node, locals)

	case *IfBlock:
		return r.renderIf(b, node, locals)

	default:
		return NewRenderErrorf(n.Pos(), "unexpected node %T", n)
	}
	return nil
}

func (r *renderer) renderFor(b *strings.Builder, node *ForBlock, locals starlark.StringDict) error {
	v, err := r.ctx.EvalExprWithLocals(node.IterExpr, r.file, node.Pos().Line, locals)
	if err != nil {
		return WrapRenderError(node.Pos(), "for loop iterator failed", err)
	}
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return NewRenderErrorf(node.Pos(), "cannot iterate over %s", v.Type())
	}

	iter := iterable.Iterate()
	defer iter.Done()

	scope := make(starlark.StringDict, len(locals)+1)
	for k, v := range locals {
		scope[k] = v
	}

	var elem starlark.Value
	for n := 0; iter.Next(&elem); n++ {
		if n >= maxIterations {
			return NewRenderErrorf(node.Pos(), "for loop exceeded %d iterations", maxIterations)
		}
		scope[node.VarName] = elem
		if err := r.renderNodes(b, node.Body, scope); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) renderIf(b *strings.Builder, node *IfBlock, locals starlark.StringDict) error {
	ok, err := r.truth(node.Condition, node.Pos(), locals)
	if err != nil {
		return err
	}
	if ok {
		return r.renderNodes(b, node.Body, locals)
	}

	for _, branch := range node.ElseIfs {
		ok, err := r.truth(branch.Condition, branch.pos, locals)
		if err != nil {
			return err
		}
		if ok {
			return r.renderNodes(b, branch.Body, locals)
		}
	}

	return r.renderNodes(b, node.Else, locals)
}

func (r *renderer) truth(cond string, pos Position, locals starlark.StringDict) (bool, error) {
	v, err := r.ctx.EvalExprWithLocals(cond, r.file, pos.Line, locals)
	if err != nil {
		return false, WrapRenderError(pos, "condition failed", err)
	}
	return bool(v.Truth()), nil
}
