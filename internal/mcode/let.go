package mcode

import (
	"fmt"
	"strings"
)

// LetBinding is one `name = expression` entry of a let expression.
type LetBinding struct {
	Name string
	// Expr is the right-hand side source text, trimmed.
	Expr string
	// Refs lists identifiers in Expr, in order of appearance.
	Refs []string
}

// LetExpr is a parsed `let ... in name` expression.
type LetExpr struct {
	Bindings []LetBinding
	// Result is the identifier after `in`.
	Result string
}

// Binding returns the binding with the given name.
func (l *LetExpr) Binding(name string) (*LetBinding, bool) {
	for i := range l.Bindings {
		if l.Bindings[i].Name == name {
			return &l.Bindings[i], true
		}
	}
	return nil, false
}

// ShapeError reports text that does not follow the let/in shape templates must have.
type ShapeError struct {
	Pos Position
	Msg string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// ParseLet parses text of the form
//
//	let
//	    A = expr,
//	    B = expr
//	in
//	    B
//
// The returned identifier must be a single name bound by the let.
func ParseLet(src string) (*LetExpr, error) {
	all, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	toks := significant(all)
	if len(toks) == 0 || !toks[0].Is("let") {
		return nil, &ShapeError{Pos: firstPos(toks), Msg: "expected 'let'"}
	}

	expr := &LetExpr{}
	i := 1
	for {
		if i >= len(toks) {
			return nil, &ShapeError{Pos: lastPos(toks), Msg: "unexpected end of input, expected binding"}
		}
		name, err := bindingName(toks[i])
		if err != nil {
			return nil, err
		}
		if i+1 >= len(toks) || !toks[i+1].Is("=") {
			return nil, &ShapeError{Pos: toks[i].Pos, Msg: fmt.Sprintf("expected '=' after %s", toks[i].Value)}
		}

		start := i + 2
		end, term, err := scanBindingExpr(toks, start)
		if err != nil {
			return nil, err
		}
		if end == start {
			return nil, &ShapeError{Pos: toks[i+1].Pos, Msg: fmt.Sprintf("binding %s has no expression", name)}
		}

		expr.Bindings = append(expr.Bindings, LetBinding{
			Name: name,
			Expr: strings.TrimSpace(src[toks[start].Pos.Offset : toks[end-1].Pos.Offset+len(toks[end-1].Value)]),
			Refs: identifiers(toks[start:end]),
		})

		i = end + 1
		if term == "in" {
			break
		}
	}

	rest := toks[i:]
	if len(rest) != 1 {
		return nil, &ShapeError{Pos: firstPos(rest), Msg: "expected a single identifier after 'in'"}
	}
	result, err := bindingName(rest[0])
	if err != nil {
		return nil, err
	}
	if _, ok := expr.Binding(result); !ok {
		return nil, &ShapeError{Pos: rest[0].Pos, Msg: fmt.Sprintf("'in' returns %s, which is not bound by the let", result)}
	}
	expr.Result = result
	return expr, nil
}

// TerminalExpression returns the right-hand side of the binding a let
// expression returns. The right-hand side must not refer to other bindings
// of the same let, since it is lifted out of that scope.
func TerminalExpression(src string) (string, error) {
	let, err := ParseLet(src)
	if err != nil {
		return "", err
	}
	b, _ := let.Binding(let.Result)

	bound := make(map[string]bool, len(let.Bindings))
	for _, other := range let.Bindings {
		if other.Name != b.Name {
			bound[other.Name] = true
		}
	}
	for _, ref := range b.Refs {
		if bound[ref] {
			return "", &ShapeError{Msg: fmt.Sprintf("returned binding %s depends on binding %s and cannot be inlined", b.Name, ref)}
		}
	}
	return b.Expr, nil
}

// Canonical renders a let expression with every binding on one line:
//
//	let
//	    A = expr,
//	    B = expr
//	in
//	    B
//
// Each right-hand side is collapsed, so TerminalExpression of the result
// returns text that can be embedded as-is.
func (l *LetExpr) Canonical() (string, error) {
	var b strings.Builder
	b.WriteString("let\n")
	for i, binding := range l.Bindings {
		expr, err := Collapse(binding.Expr)
		if err != nil {
			return "", err
		}
		b.WriteString("    " + Identifier(binding.Name) + " = " + expr)
		if i < len(l.Bindings)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("in\n    " + Identifier(l.Result))
	return b.String(), nil
}

// scanBindingExpr finds the end of the expression starting at start. It
// returns the index of the terminating ',' or 'in' token and which one it was.
func scanBindingExpr(toks []Token, start int) (int, string, error) {
	depth := 0
	lets := 0
	for j := start; j < len(toks); j++ {
		t := toks[j]
		switch {
		case t.Kind == KindPunct && (t.Value == "(" || t.Value == "[" || t.Value == "{"):
			depth++
		case t.Kind == KindPunct && (t.Value == ")" || t.Value == "]" || t.Value == "}"):
			depth--
			if depth < 0 {
				return 0, "", &ShapeError{Pos: t.Pos, Msg: "unbalanced " + t.Value}
			}
		case t.Is("let"):
			lets++
		case t.Is("in"):
			if lets > 0 {
				lets--
				continue
			}
			if depth == 0 {
				return j, "in", nil
			}
		case t.Is(","):
			if depth == 0 && lets == 0 {
				return j, ",", nil
			}
		}
	}
	return 0, "", &ShapeError{Pos: lastPos(toks), Msg: "unterminated let: missing 'in'"}
}

func bindingName(t Token) (string, error) {
	switch t.Kind {
	case KindIdent:
		if IsKeyword(t.Value) {
			return "", &ShapeError{Pos: t.Pos, Msg: fmt.Sprintf("expected identifier, got keyword %q", t.Value)}
		}
		return t.Value, nil
	case KindQuotedId:
		return unquote(t.Value[1:]), nil
	}
	return "", &ShapeError{Pos: t.Pos, Msg: fmt.Sprintf("expected identifier, got %q", t.Value)}
}

func identifiers(toks []Token) []string {
	var out []string
	for _, t := range toks {
		switch t.Kind {
		case KindIdent:
			if !IsKeyword(t.Value) {
				out = append(out, t.Value)
			}
		case KindQuotedId:
			out = append(out, unquote(t.Value[1:]))
		}
	}
	return out
}

// unquote strips surrounding quotes from a "..." literal and collapses "" escapes.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.ReplaceAll(s, `""`, `"`)
}

func firstPos(toks []Token) Position {
	if len(toks) == 0 {
		return Position{Line: 1, Column: 1}
	}
	return toks[0].Pos
}

func lastPos(toks []Token) Position {
	if len(toks) == 0 {
		return Position{Line: 1, Column: 1}
	}
	return toks[len(toks)-1].Pos
}
