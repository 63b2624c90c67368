package mcode

import (
	"fmt"
	"strings"
)

// Param is one function parameter.
type Param struct {
	Name     string
	Type     string // empty when unannotated
	Nullable bool
	Optional bool
}

// ParamGroup is one `(params) [as type] =>` header.
type ParamGroup struct {
	Params     []Param
	ReturnType string
}

// FunctionChain is a function, possibly curried: each group returns the next.
type FunctionChain struct {
	Groups []ParamGroup
	// Body is the source text after the last '=>'.
	Body string
}

// Last returns the innermost group.
func (f *FunctionChain) Last() ParamGroup {
	return f.Groups[len(f.Groups)-1]
}

// Outer returns every group except the innermost.
func (f *FunctionChain) Outer() []ParamGroup {
	return f.Groups[:len(f.Groups)-1]
}

// ParseFunction parses the header chain of a function expression such as
//
//	(n as number) => (t as table) as table => Table.FirstN(t, n)
//
// into two groups. Parsing stops at the first token that does not start another header.
func ParseFunction(src string) (*FunctionChain, error) {
	all, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	toks := significant(all)

	fn := &FunctionChain{}
	i := 0
	for {
		group, next, ok, err := parseHeader(toks, i)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		fn.Groups = append(fn.Groups, group)
		i = next
	}

	if len(fn.Groups) == 0 {
		return nil, &ShapeError{Pos: firstPos(toks), Msg: "expected a function: '(param as type) =>'"}
	}
	if i >= len(toks) {
		return nil, &ShapeError{Pos: lastPos(toks), Msg: "function has no body"}
	}
	fn.Body = strings.TrimSpace(src[toks[i].Pos.Offset:])
	return fn, nil
}

// parseHeader tries to parse `( params ) [as type] =>` at position i. ok is
// false without error when the tokens at i are not a header.
func parseHeader(toks []Token, i int) (ParamGroup, int, bool, error) {
	var g ParamGroup
	if i >= len(toks) || !toks[i].Is("(") {
		return g, i, false, nil
	}

	// Find the matching ')' and require '=>' (optionally after a return type)
	// before committing, so that a parenthesized body is not mistaken for a header.
	closing := -1
	depth := 0
	for j := i; j < len(toks); j++ {
		if toks[j].Is("(") {
			depth++
		} else if toks[j].Is(")") {
			depth--
			if depth == 0 {
				closing = j
				break
			}
		}
	}
	if closing < 0 {
		return g, i, false, nil
	}

	next := closing + 1
	if next < len(toks) && toks[next].Is("as") {
		typ, after, err := parseType(toks, next+1)
		if err != nil {
			return g, i, false, nil //nolint:nilerr // not a header
		}
		g.ReturnType = typ
		next = after
	}
	if next >= len(toks) || !toks[next].Is("=>") {
		return g, i, false, nil
	}

	params, err := parseParams(toks[i+1 : closing])
	if err != nil {
		return g, i, false, err
	}
	g.Params = params
	return g, next + 1, true, nil
}

func parseParams(toks []Token) ([]Param, error) {
	var params []Param
	if len(toks) == 0 {
		return params, nil
	}

	j := 0
	for j < len(toks) {
		var p Param
		if toks[j].Is("optional") && j+1 < len(toks) && (toks[j+1].Kind == KindIdent || toks[j+1].Kind == KindQuotedId) && !toks[j+1].Is("as") {
			p.Optional = true
			j++
		}
		name, err := bindingName(toks[j])
		if err != nil {
			return nil, err
		}
		p.Name = name
		j++

		if j < len(toks) && toks[j].Is("as") {
			if j+1 < len(toks) && toks[j+1].Is("nullable") {
				p.Nullable = true
				j++
			}
			typ, after, err := parseType(toks, j+1)
			if err != nil {
				return nil, err
			}
			p.Type = typ
			j = after
		}

		if !p.Optional && len(params) > 0 && params[len(params)-1].Optional {
			return nil, &ShapeError{Pos: toks[0].Pos, Msg: fmt.Sprintf("required parameter %s follows an optional parameter", p.Name)}
		}
		params = append(params, p)

		if j < len(toks) {
			if !toks[j].Is(",") {
				return nil, &ShapeError{Pos: toks[j].Pos, Msg: fmt.Sprintf("unexpected %q in parameter list", toks[j].Value)}
			}
			j++
			if j == len(toks) {
				return nil, &ShapeError{Pos: toks[j-1].Pos, Msg: "trailing ',' in parameter list"}
			}
		}
	}
	return params, nil
}

// parseType reads a primitive type name, with an optional 'nullable' prefix.
func parseType(toks []Token, i int) (string, int, error) {
	if i < len(toks) && toks[i].Is("nullable") {
		i++
	}
	if i >= len(toks) || toks[i].Kind != KindIdent {
		return "", i, &ShapeError{Pos: lastPos(toks), Msg: "expected a type name"}
	}
	return strings.ToLower(toks[i].Value), i + 1, nil
}
