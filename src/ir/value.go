// value.go defines Value, the tagged descriptor every lowering routine in
// compile_exp returns: where a computed operand currently lives, plus an
// optional semantic type hint.

package ir

import "fmt"

// ValueKind enumerates the residences a lowered operand can occupy.
type ValueKind int

const (
	// ValInt is an immediate integer literal.
	ValInt ValueKind = iota
	// ValAddr is the absolute address of a label (function or string constant).
	ValAddr
	// ValReg is a value currently cached in a named machine register.
	ValReg
	// ValLocal is a local variable slot k relative to the frame.
	ValLocal
	// ValArg is an argument slot k relative to the frame.
	ValArg
	// ValIvar is instance slot k of self.
	ValIvar
	// ValGlobal is a named BSS long; reading it yields its content.
	ValGlobal
	// ValIndirect is a 32-bit memory dereference through a register.
	ValIndirect
	// ValIndirect8 is an 8-bit memory dereference through a register.
	ValIndirect8
	// ValPossibleCallm is a resolution-ambiguous bare identifier.
	ValPossibleCallm
	// ValSubexpr signals the result register holds the value now.
	ValSubexpr
)

// TypeHint narrows what a Value's runtime type is known to be, if anything.
type TypeHint int

const (
	// TypeUnspecified means nothing further is known about the value.
	TypeUnspecified TypeHint = iota
	// TypeObject means the value is a tagged object reference (relevant to
	// if/while truthiness: only nil and false are falsy).
	TypeObject
	// TypeRaw marks the one non-object slot in an environment record: the
	// saved frame pointer at __env__ slot 0.
	TypeRaw
)

// Value is the operand descriptor every compile_exp lowering routine
// returns. Exactly one of its fields is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	Type TypeHint

	Int  int64  // ValInt
	Name string // ValAddr, ValGlobal, ValPossibleCallm: label or identifier
	Reg  string // ValReg, ValIndirect, ValIndirect8: register name
	Slot int     // ValLocal, ValArg, ValIvar: frame/ivar offset
}

// Subexpr returns the canonical "result lives in the result register" value.
func Subexpr(hint TypeHint) Value {
	return Value{Kind: ValSubexpr, Type: hint}
}

// Imm returns an immediate integer Value.
func Imm(n int64) Value {
	return Value{Kind: ValInt, Int: n}
}

// Addr returns the address-of-label Value.
func Addr(label string) Value {
	return Value{Kind: ValAddr, Name: label, Type: TypeObject}
}

// PossibleCallm returns a resolution-ambiguous bare identifier Value.
func PossibleCallm(name string) Value {
	return Value{Kind: ValPossibleCallm, Name: name}
}

// String renders v for diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case ValInt:
		return fmt.Sprintf("int(%d)", v.Int)
	case ValAddr:
		return fmt.Sprintf("addr(%s)", v.Name)
	case ValReg:
		return fmt.Sprintf("reg(%s)", v.Reg)
	case ValLocal:
		return fmt.Sprintf("lvar(%d)", v.Slot)
	case ValArg:
		return fmt.Sprintf("arg(%d)", v.Slot)
	case ValIvar:
		return fmt.Sprintf("ivar(%d)", v.Slot)
	case ValGlobal:
		return fmt.Sprintf("global(%s)", v.Name)
	case ValIndirect:
		return fmt.Sprintf("indirect(%s)", v.Reg)
	case ValIndirect8:
		return fmt.Sprintf("indirect8(%s)", v.Reg)
	case ValPossibleCallm:
		return fmt.Sprintf("possible_callm(%s)", v.Name)
	case ValSubexpr:
		return "subexpr"
	default:
		return "<invalid value>"
	}
}

// IsObjectTyped reports whether v carries the object type hint, which
// determines whether if/while truthiness must test for both nil and false.
func (v Value) IsObjectTyped() bool {
	return v.Type == TypeObject
}
