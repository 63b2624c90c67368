// Package mcode provides the small amount of Power Query M understanding the
// compiler needs: a lexer, literal formatting, whitespace normalization, and
// parsers for the fixed let/in and function-header shapes used by source
// templates and transforms.
//
// It is not a general M parser.
package mcode

import (
	"fmt"
	"strings"
)

// Kind identifies the type of token.
type Kind int

// Token kinds.
const (
	KindIdent      Kind = iota // Table.SelectColumns, let, #date
	KindQuotedId               // #"Changed Type"
	KindText                   // "text"
	KindNumber                 // 12, 1.5e3, 0xff
	KindPunct                  // ( ) [ ] { } , = => etc.
	KindComment                // // line or /* block */
	KindWhitespace             // spaces, tabs, newlines
	KindEOF
)

func (k Kind) String() string {
	switch k {
	case KindIdent:
		return "IDENT"
	case KindQuotedId:
		return "QUOTED_IDENT"
	case KindText:
		return "TEXT"
	case KindNumber:
		return "NUMBER"
	case KindPunct:
		return "PUNCT"
	case KindComment:
		return "COMMENT"
	case KindWhitespace:
		return "WHITESPACE"
	case KindEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Position is a location in M source text.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a lexical token. Value is the exact source text.
type Token struct {
	Kind  Kind
	Value string
	Pos   Position
}

// Trivia reports whether the token carries no meaning (whitespace or comment).
func (t Token) Trivia() bool {
	return t.Kind == KindWhitespace || t.Kind == KindComment
}

// Is reports whether the token is the given punctuation or keyword.
func (t Token) Is(s string) bool {
	return (t.Kind == KindPunct || t.Kind == KindIdent) && t.Value == s
}

// SyntaxError reports malformed M text.
type SyntaxError struct {
	Pos Position
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// multi-character operators, longest first
var operators = []string{"...", "=>", "<=", ">=", "<>", "..", "??"}

// Lexer tokenizes M source text.
type Lexer struct {
	input string
	pos   int
	line  int
	col   int
}

// NewLexer creates a lexer over input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1}
}

// Tokenize returns every token including trivia, terminated by KindEOF.
func Tokenize(input string) ([]Token, error) {
	return NewLexer(input).Tokenize()
}

// Tokenize converts the input into a slice of tokens.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == KindEOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) peek(n int) byte {
	if l.pos+n >= len(l.input) {
		return 0
	}
	return l.input[l.pos+n]
}

func (l *Lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.input); i++ {
		if l.input[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func (l *Lexer) emit(kind Kind, start Position) Token {
	return Token{Kind: kind, Value: l.input[start.Offset:l.pos], Pos: start}
}

func (l *Lexer) next() (Token, error) {
	start := l.position()
	if l.pos >= len(l.input) {
		return Token{Kind: KindEOF, Pos: start}, nil
	}

	c := l.input[l.pos]
	switch {
	case isSpace(c):
		for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
			l.advance(1)
		}
		return l.emit(KindWhitespace, start), nil

	case c == '/' && l.peek(1) == '/':
		for l.pos < len(l.input) && l.input[l.pos] != '\n' {
			l.advance(1)
		}
		return l.emit(KindComment, start), nil

	case c == '/' && l.peek(1) == '*':
		end := strings.Index(l.input[l.pos+2:], "*/")
		if end < 0 {
			return Token{}, &SyntaxError{Pos: start, Msg: "unterminated block comment"}
		}
		l.advance(end + 4)
		return l.emit(KindComment, start), nil

	case c == '"':
		if err := l.scanQuoted(start); err != nil {
			return Token{}, err
		}
		return l.emit(KindText, start), nil

	case c == '#' && l.peek(1) == '"':
		l.advance(1)
		if err := l.scanQuoted(start); err != nil {
			return Token{}, err
		}
		return l.emit(KindQuotedId, start), nil

	case c == '#' && isIdentStart(l.peek(1)):
		l.advance(1)
		l.scanIdent()
		return l.emit(KindIdent, start), nil

	case isIdentStart(c):
		l.scanIdent()
		return l.emit(KindIdent, start), nil

	case isDigit(c) || (c == '.' && isDigit(l.peek(1))):
		l.scanNumber()
		return l.emit(KindNumber, start), nil
	}

	for _, op := range operators {
		if strings.HasPrefix(l.input[l.pos:], op) {
			l.advance(len(op))
			return l.emit(KindPunct, start), nil
		}
	}
	l.advance(1)
	return l.emit(KindPunct, start), nil
}

// scanQuoted consumes a "..." literal where "" is an escaped quote.
func (l *Lexer) scanQuoted(start Position) error {
	l.advance(1) // opening quote
	for l.pos < len(l.input) {
		if l.input[l.pos] == '"' {
			if l.peek(1) == '"' {
				l.advance(2)
				continue
			}
			l.advance(1)
			return nil
		}
		l.advance(1)
	}
	return &SyntaxError{Pos: start, Msg: "unterminated text literal"}
}

// scanIdent consumes a generalized identifier. Dots join parts, as in Table.SelectColumns.
func (l *Lexer) scanIdent() {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if isIdentPart(c) {
			l.advance(1)
			continue
		}
		if c == '.' && isIdentStart(l.peek(1)) {
			l.advance(1)
			continue
		}
		break
	}
}

func (l *Lexer) scanNumber() {
	if l.peek(0) == '0' && (l.peek(1) == 'x' || l.peek(1) == 'X') {
		l.advance(2)
		for l.pos < len(l.input) && isHex(l.input[l.pos]) {
			l.advance(1)
		}
		return
	}
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.advance(1)
	}
	if l.peek(0) == '.' && isDigit(l.peek(1)) {
		l.advance(1)
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.advance(1)
		}
	}
	if c := l.peek(0); c == 'e' || c == 'E' {
		n := 1
		if s := l.peek(1); s == '+' || s == '-' {
			n = 2
		}
		if isDigit(l.peek(n)) {
			l.advance(n)
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.advance(1)
			}
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

// significant returns the non-trivia tokens, without EOF.
func significant(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Trivia() || t.Kind == KindEOF {
			continue
		}
		out = append(out, t)
	}
	return out
}
