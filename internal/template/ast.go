// Package template renders connector templates: M source text with
// {{ expr }} Starlark expressions and {* stmt *} control flow.
package template

// Position is a 1-based location inside a template file.
type Position struct {
	File   string
	Line   int
	Column int
}

// Node is a template AST node. Only this package implements it.
type Node interface {
	Pos() Position
	node()
}

type nodeBase struct {
	pos Position
}

func (n *nodeBase) Pos() Position { return n.pos }
func (n *nodeBase) node()         {}

// TextNode is literal M text, copied to the output unchanged.
type TextNode struct {
	nodeBase
	Text string
}

// ExprNode is a {{ expr }} expression. Expr holds the Starlark source without delimiters.
type ExprNode struct {
	nodeBase
	Expr string
}

// StmtKind identifies a {* stmt *} tag.
type StmtKind int

// Statement kinds.
const (
	StmtUnknown StmtKind = iota
	StmtFor              // {* for x in items: *}
	StmtEndFor           // {* endfor *}
	StmtIf               // {* if cond: *}
	StmtElif             // {* elif cond: *}
	StmtElse             // {* else: *}
	StmtEndIf            // {* endif *}
)

var stmtNames = [...]string{
	StmtUnknown: "unknown",
	StmtFor:     "for",
	StmtEndFor:  "endfor",
	StmtIf:      "if",
	StmtElif:    "elif",
	StmtElse:    "else",
	StmtEndIf:   "endif",
}

func (k StmtKind) String() string {
	if k < 0 || int(k) >= len(stmtNames) {
		return stmtNames[StmtUnknown]
	}
	return stmtNames[k]
}

// StmtNode is a single {* stmt *} tag before blocks are assembled.
type StmtNode struct {
	nodeBase
	Kind    StmtKind
	Expr    string // condition or iterable
	VarName string // for loops only
}

// ForBlock is a for loop with its body.
type ForBlock struct {
	nodeBase
	VarName  string
	IterExpr string
	Body     []Node
}

// IfBlock is an if/elif/else conditional. Else is nil when absent.
type IfBlock struct {
	nodeBase
	Condition string
	Body      []Node
	ElseIfs   []Branch
	Else      []Node
}

// Branch is one elif arm.
type Branch struct {
	Condition string
	Body      []Node
	pos       Position
}

// Template is a parsed connector template.
type Template struct {
	Nodes []Node
	File  string // template file name, used in error positions
}

// Expressions returns every Starlark expression in t in source order:
// {{ }} bodies, loop iterables and branch conditions.
func (t *Template) Expressions() []string {
	var out []string
	var walk func(nodes []Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			switch n := n.(type) {
			case *ExprNode:
				out = append(out, n.Expr)
			case *ForBlock:
				out = append(out, n.IterExpr)
				walk(n.Body)
			case *IfBlock:
				out = append(out, n.Condition)
				walk(n.Body)
				for _, b := range n.ElseIfs {
					out = append(out, b.Condition)
					walk(b.Body)
				}
				walk(n.Else)
			}
		}
	}
	walk(t.Nodes)
	return out
}
