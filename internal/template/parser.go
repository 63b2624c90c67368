package template

import (
	"regexp"
	"strings"
)

var (
	forPattern   = regexp.MustCompile(`^for\s+([A-Za-z_]\w*)\s+in\s+(.+?)\s*:?$`)
	ifPattern    = regexp.MustCompile(`^if\s+(.+?)\s*:?$`)
	elifPattern  = regexp.MustCompile(`^elif\s+(.+?)\s*:?$`)
	elsePattern  = regexp.MustCompile(`^else\s*:?$`)
	endForStmt   = "endfor"
	endIfStmt    = "endif"
	stmtKeywords = []string{"for", "if", "elif", "else", "endfor", "endif"}
)

// ParseString tokenizes and parses a template.
func ParseString(input, file string) (*Template, error) {
	tokens, err := NewLexer(input, file).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	nodes, stop, err := p.parseUntil()
	if err != nil {
		return nil, err
	}
	if stop != nil {
		return nil, NewUnmatchedBlockError(stop.Pos(), stop.Kind)
	}
	return &Template{Nodes: nodes, File: file}, nil
}

type parser struct {
	tokens []Token
	pos    int
}

// parseUntil parses nodes until EOF or a statement that closes or continues
// an enclosing block (elif, else, endfor, endif). That statement is returned
// as stop, or nil at EOF.
func (p *parser) parseUntil() ([]Node, *StmtNode, error) {
	var nodes []Node
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		p.pos++

		switch tok.Type {
		case TokenEOF:
			return nodes, nil, nil
		case TokenText:
			nodes = append(nodes, &TextNode{nodeBase: nodeBase{pos: tok.Pos}, Text: tok.Value})
		case TokenExpr:
			if tok.Value == "" {
				return nil, nil, NewParseError(tok.Pos, "empty expression")
			}
			nodes = append(nodes, &ExprNode{nodeBase: nodeBase{pos: tok.Pos}, Expr: tok.Value})
		case TokenStmt:
			stmt, err := parseStmt(tok)
			if err != nil {
				return nil, nil, err
			}
			switch stmt.Kind {
			case StmtFor:
				block, err := p.parseFor(stmt)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, block)
			case StmtIf:
				block, err := p.parseIf(stmt)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, block)
			default:
				return nodes, stmt, nil
			}
		}
	}
	return nodes, nil, nil
}

func (p *parser) parseFor(open *StmtNode) (*ForBlock, error) {
	body, stop, err := p.parseUntil()
	if err != nil {
		return nil, err
	}
	if stop == nil {
		return nil, NewUnmatchedBlockError(open.Pos(), StmtFor)
	}
	if stop.Kind != StmtEndFor {
		return nil, NewUnmatchedBlockError(stop.Pos(), stop.Kind)
	}
	return &ForBlock{
		nodeBase: open.nodeBase,
		VarName:  open.VarName,
		IterExpr: open.Expr,
		Body:     body,
	}, nil
}

func (p *parser) parseIf(open *StmtNode) (*IfBlock, error) {
	block := &IfBlock{nodeBase: open.nodeBase, Condition: open.Expr}

	body, stop, err := p.parseUntil()
	if err != nil {
		return nil, err
	}
	block.Body = body

	for {
		if stop == nil {
			return nil, NewUnmatchedBlockError(open.Pos(), StmtIf)
		}
		switch stop.Kind {
		case StmtEndIf:
			return block, nil
		case StmtElif:
			if block.Else != nil {
				return nil, NewParseError(stop.Pos(), "'elif' after 'else'")
			}
			branch := Branch{Condition: stop.Expr, pos: stop.Pos()}
			branch.Body, stop, err = p.parseUntil()
			if err != nil {
				return nil, err
			}
			block.ElseIfs = append(block.ElseIfs, branch)
		case StmtElse:
			if block.Else != nil {
				return nil, NewParseError(stop.Pos(), "duplicate 'else'")
			}
			var elseBody []Node
			elseBody, stop, err = p.parseUntil()
			if err != nil {
				return nil, err
			}
			if elseBody == nil {
				elseBody = []Node{}
			}
			block.Else = elseBody
		default:
			return nil, NewUnmatchedBlockError(stop.Pos(), stop.Kind)
		}
	}
}

// parseStmt classifies the content of a {* ... *} tag.
func parseStmt(tok Token) (*StmtNode, error) {
	s := tok.Value
	node := &StmtNode{nodeBase: nodeBase{pos: tok.Pos}}

	switch {
	case s == endForStmt:
		node.Kind = StmtEndFor
	case s == endIfStmt:
		node.Kind = StmtEndIf
	case elsePattern.MatchString(s):
		node.Kind = StmtElse
	case strings.HasPrefix(s, "for"):
		m := forPattern.FindStringSubmatch(s)
		if m == nil {
			return nil, NewParseErrorf(tok.Pos, "malformed for statement %q: expected 'for NAME in EXPR'", s)
		}
		node.Kind, node.VarName, node.Expr = StmtFor, m[1], m[2]
	case strings.HasPrefix(s, "elif"):
		m := elifPattern.FindStringSubmatch(s)
		if m == nil {
			return nil, NewParseErrorf(tok.Pos, "malformed elif statement %q", s)
		}
		node.Kind, node.Expr = StmtElif, m[1]
	case strings.HasPrefix(s, "if"):
		m := ifPattern.FindStringSubmatch(s)
		if m == nil {
			return nil, NewParseErrorf(tok.Pos, "malformed if statement %q", s)
		}
		node.Kind, node.Expr = StmtIf, m[1]
	default:
		return nil, NewParseErrorf(tok.Pos, "unknown statement %q (expected one of %s)", s, strings.Join(stmtKeywords, ", "))
	}
	return node, nil
}
