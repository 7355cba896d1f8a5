// errors.go implements the two error severities spec.md §7 names: fatal
// CompileErrors that abort compilation, and warnings that print to the
// diagnostic stream and let compilation continue. Grounded on the teacher's
// pattern of returning fmt.Errorf("... at line %d:%d", ...) throughout
// ir/validate.go and backend/arm.

package ir

import (
	"fmt"
	"os"
)

// CompileError is a fatal error: the position of the offending node, the
// enclosing scope kind at the point of failure, and a rendering of the
// expression that triggered it.
type CompileError struct {
	Pos    string
	Scope  string
	Expr   string
	Reason string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s: in %s: %s", e.Pos, e.Reason, e.Scope, e.Expr)
}

// NewCompileError builds a CompileError anchored at n, with msg formatted
// per fmt.Sprintf.
func NewCompileError(n *Node, scope string, msg string, args ...interface{}) *CompileError {
	return &CompileError{
		Pos:    n.Pos(),
		Scope:  scope,
		Expr:   n.String(),
		Reason: fmt.Sprintf(msg, args...),
	}
}

// Warnf prints a non-fatal diagnostic to stderr and lets lowering continue.
// Used for: unresolved vtable slot rewritten to __send__, and unimplemented
// rescue bodies. Argument resolution (getArg) does not warn on nil.
func Warnf(n *Node, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if n != nil {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", n.Pos(), msg)
	} else {
		fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
	}
}
