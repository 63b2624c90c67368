package template

import (
	"strings"
)

// TokenType identifies the type of token.
type TokenType int

// TokenType constants.
const (
	TokenText TokenType = iota // literal M text
	TokenExpr                  // content between {{ and }}
	TokenStmt                  // content between {* and *}
	TokenEOF
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenExpr:
		return "EXPR"
	case TokenStmt:
		return "STMT"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

const (
	exprOpen  = "{{"
	exprClose = "}}"
	stmtOpen  = "{*"
	stmtClose = "*}"
)

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

// Lexer splits a template into text, expression, and statement tokens.
//
// A statement that sits alone on its line swallows that line, so block tags
// do not leave blank lines or stray indentation in the output.
type Lexer struct {
	input string
	file  string
	pos   int
	line  int
	col   int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input, file string) *Lexer {
	return &Lexer{input: input, file: file, line: 1, col: 1}
}

// Tokenize converts the input into a slice of tokens ending in TokenEOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for l.pos < len(l.input) {
		switch {
		case strings.HasPrefix(l.input[l.pos:], exprOpen):
			tok, err := l.scanDelimited(TokenExpr, exprOpen, exprClose, "unclosed expression: missing '}}'")
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)

		case strings.HasPrefix(l.input[l.pos:], stmtOpen):
			lineStart := l.atLineStart()
			tok, err := l.scanDelimited(TokenStmt, stmtOpen, stmtClose, "unclosed statement: missing '*}'")
			if err != nil {
				return nil, err
			}
			if lineStart && l.restOfLineBlank() {
				tokens = trimIndent(tokens)
				l.skipLine()
			}
			tokens = append(tokens, tok)

		default:
			tokens = append(tokens, l.scanText())
		}
	}
	return append(tokens, Token{Type: TokenEOF, Pos: l.position()}), nil
}

// scanText consumes literal text up to the next delimiter or EOF.
func (l *Lexer) scanText() Token {
	start, pos := l.pos, l.position()
	end := len(l.input)
	for _, open := range []string{exprOpen, stmtOpen} {
		if i := strings.Index(l.input[l.pos:], open); i >= 0 && l.pos+i < end {
			end = l.pos + i
		}
	}
	l.advanceTo(end)
	return Token{Type: TokenText, Value: l.input[start:end], Pos: pos}
}

// scanDelimited consumes open ... close and returns the trimmed content.
// Inside expressions, braces nest so dict literals can contain "}}".
func (l *Lexer) scanDelimited(typ TokenType, open, closing, unclosed string) (Token, error) {
	pos := l.position()
	contentStart := l.pos + len(open)

	depth := 0
	for i := contentStart; i < len(l.input); i++ {
		if depth == 0 && strings.HasPrefix(l.input[i:], closing) {
			value := strings.TrimSpace(l.input[contentStart:i])
			l.advanceTo(i + len(closing))
			return Token{Type: typ, Value: value, Pos: pos}, nil
		}
		if typ != TokenExpr {
			continue
		}
		switch l.input[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return Token{}, NewLexError(pos, unclosed)
}

// restOfLineBlank reports whether only spaces or tabs remain before the next newline.
func (l *Lexer) restOfLineBlank() bool {
	for i := l.pos; i < len(l.input); i++ {
		switch l.input[i] {
		case ' ', '\t', '\r':
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

// skipLine consumes the remainder of the current line including its newline.
func (l *Lexer) skipLine() {
	end := strings.IndexByte(l.input[l.pos:], '\n')
	if end < 0 {
		l.advanceTo(len(l.input))
		return
	}
	l.advanceTo(l.pos + end + 1)
}

func (l *Lexer) advanceTo(end int) {
	for _, r := range l.input[l.pos:end] {
		if r == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
	}
	l.pos = end
}

func (l *Lexer) position() Position {
	return Position{File: l.file, Line: l.line, Column: l.col}
}

// atLineStart reports whether only indentation precedes the current position on its line.
func (l *Lexer) atLineStart() bool {
	for i := l.pos - 1; i >= 0; i-- {
		switch l.input[i] {
		case ' ', '\t':
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

// trimIndent drops trailing indentation from the last text token.
func trimIndent(tokens []Token) []Token {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != TokenText {
		return tokens
	}
	last := &tokens[len(tokens)-1]
	last.Value = strings.TrimRight(last.Value, " \t")
	if last.Value == "" {
		return tokens[:len(tokens)-1]
	}
	return tokens
}
