package template

import "fmt"

// Error is implemented by every error this package returns.
type Error interface {
	error
	Position() Position
}

func (p Position) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type baseError struct {
	pos Position
	msg string
}

func (e *baseError) Position() Position { return e.pos }
func (e *baseError) Error() string      { return e.pos.String() + ": " + e.msg }

// LexError reports an unterminated delimiter.
type LexError struct {
	baseError
}

// NewLexError creates a new lexer error.
func NewLexError(pos Position, msg string) *LexError {
	return &LexError{baseError{pos: pos, msg: msg}}
}

// ParseError reports a malformed statement or misplaced branch.
type ParseError struct {
	baseError
}

// NewParseError creates a new parser error.
func NewParseError(pos Position, msg string) *ParseError {
	return &ParseError{baseError{pos: pos, msg: msg}}
}

// NewParseErrorf creates a new parser error with formatting.
func NewParseErrorf(pos Position, format string, args ...any) *ParseError {
	return NewParseError(pos, fmt.Sprintf(format, args...))
}

// RenderError reports a failure while evaluating a template.
type RenderError struct {
	baseError
	Cause error // evaluation error, if any
}

// NewRenderErrorf creates a render error with formatting.
func NewRenderErrorf(pos Position, format string, args ...any) *RenderError {
	return &RenderError{baseError: baseError{pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// WrapRenderError wraps an evaluation error.
func WrapRenderError(pos Position, msg string, cause error) *RenderError {
	return &RenderError{baseError: baseError{pos: pos, msg: msg}, Cause: cause}
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.baseError.Error(), e.Cause)
	}
	return e.baseError.Error()
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// UnmatchedBlockError reports a block tag without its counterpart.
type UnmatchedBlockError struct {
	baseError
	BlockKind StmtKind
}

// NewUnmatchedBlockError creates an unmatched block error for kind.
func NewUnmatchedBlockError(pos Position, kind StmtKind) *UnmatchedBlockError {
	var msg string
	switch kind {
	case StmtFor:
		msg = "unclosed 'for' block (missing 'endfor')"
	case StmtIf:
		msg = "unclosed 'if' block (missing 'endif')"
	case StmtEndFor, StmtEndIf, StmtElse, StmtElif:
		msg = fmt.Sprintf("'%s' without matching block", kind)
	default:
		msg = fmt.Sprintf("unmatched block: %s", kind)
	}
	return &UnmatchedBlockError{baseError: baseError{pos: pos, msg: msg}, BlockKind: kind}
}
