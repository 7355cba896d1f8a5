// node.go defines the tagged s-expression tree the core consumes: every
// node is either a leaf atom or a list whose head is one of the keyword
// forms compile_exp dispatches on.

package ir

import "fmt"

// NodeType differentiates the keyword forms and leaf atoms of the tree.
type NodeType int

// Node is a single node of the tree the front end hands to the core.
// Children holds the form's operands in source order; Data holds a leaf's
// literal value (int64, float64, string, depending on Typ).
type Node struct {
	Typ      NodeType
	Line     int
	Col      int
	File     string
	Data     interface{}
	Children []*Node
}

const (
	// Keyword forms, one per compile_exp dispatch entry.
	NodeDo NodeType = iota
	NodeClass
	NodeModule
	NodeDefun
	NodeDefm
	NodeIf
	NodeLambda
	NodeProc
	NodeAssign
	NodeWhile
	NodeIndex
	NodeBindex
	NodeLet
	NodeCase
	NodeWhen
	NodeTernif
	NodeTernalt
	NodeHash
	NodePair
	NodeReturn
	NodeSexp
	NodeRescue
	NodeIncr
	NodeBlock
	NodeRequired
	NodeAdd
	NodeSub
	NodeMul
	NodeDiv
	NodeEq
	NodeNe
	NodeLt
	NodeLe
	NodeGt
	NodeGe
	NodeSaveregs
	NodeAnd
	NodeOr
	NodePreturn
	NodeStackframe
	NodeDeref
	NodeCall
	NodeCallm
	NodeSuper
	NodeYield

	// Leaf atoms.
	NodeInt
	NodeFloat
	NodeString
	NodeSymbol       // bare identifier, e.g. foo, @ivar, A::B
	NodeQuotedSymbol // :foo — interned as a runtime Symbol
	NodeTrue
	NodeFalse
	NodeNil
	NodeSelf
)

var nodeNames = [...]string{
	"do", "class", "module", "defun", "defm", "if", "lambda", "proc",
	"assign", "while", "index", "bindex", "let", "case", "when", "ternif",
	"ternalt", "hash", "pair", "return", "sexp", "rescue", "incr", "block",
	"required", "add", "sub", "mul", "div", "eq", "ne", "lt", "le", "gt",
	"ge", "saveregs", "and", "or", "preturn", "stackframe", "deref", "call",
	"callm", "super", "yield",
	"int", "float", "string", "symbol", "quoted_symbol", "true", "false",
	"nil", "self",
}

// operatorMethods is the set of punctuation method names lowered as callm
// rather than as a binary arithmetic/comparison keyword form.
var operatorMethods = map[string]bool{
	"<<": true,
}

// IsOperatorMethod reports whether name is lowered as a method call even
// though it reads like an operator.
func IsOperatorMethod(name string) bool {
	return operatorMethods[name]
}

// Name returns the print-friendly keyword or atom name of n's type.
func (n *Node) Name() string {
	if n == nil || int(n.Typ) < 0 || int(n.Typ) >= len(nodeNames) {
		return "<invalid>"
	}
	return nodeNames[n.Typ]
}

// String renders n for diagnostics: its form name plus leaf data if any.
func (n *Node) String() string {
	if n == nil {
		return "<nil node>"
	}
	switch n.Typ {
	case NodeInt, NodeFloat, NodeString, NodeSymbol, NodeQuotedSymbol:
		return fmt.Sprintf("%s(%v)", n.Name(), n.Data)
	default:
		return n.Name()
	}
}

// Pos renders n's source position for error messages.
func (n *Node) Pos() string {
	if n == nil {
		return "<unknown>"
	}
	if n.File != "" {
		return fmt.Sprintf("%s:%d:%d", n.File, n.Line, n.Col)
	}
	return fmt.Sprintf("%d:%d", n.Line, n.Col)
}

// Print recursively dumps n and its children indented by depth, mirroring
// the token-stream dump the -ts flag requests.
func (n *Node) Print(depth int) {
	if n == nil {
		fmt.Printf("%*c<nil>\n", depth<<1, ' ')
		return
	}
	fmt.Printf("%*c%s\n", depth<<1, ' ', n.String())
	for _, c := range n.Children {
		c.Print(depth + 1)
	}
}

// IsKeyword reports whether typ is a dispatchable keyword form rather than
// a leaf atom.
func IsKeyword(typ NodeType) bool {
	return typ <= NodeYield
}

// keywordTypes maps every keyword form's source spelling to its NodeType,
// built once from nodeNames. Used by the front end's reader to dispatch a
// list's head symbol to the NodeType it builds.
var keywordTypes = func() map[string]NodeType {
	m := make(map[string]NodeType, NodeYield+1)
	for t := NodeDo; t <= NodeYield; t++ {
		m[nodeNames[t]] = t
	}
	return m
}()

// KeywordNodeType looks up the NodeType a list head's source spelling
// dispatches to. ok is false if name does not name a keyword form.
func KeywordNodeType(name string) (typ NodeType, ok bool) {
	typ, ok = keywordTypes[name]
	return
}
