// assign.go implements the three assignment shapes spec.md §4.1 names:
// method-call rewriting (foo.bar = v), instance-variable stores, and plain
// name targets (local, argument, or promoted global).

package x86

import (
	"oolc/src/ir"
)

// compileAssign lowers the assign form. The front end is responsible for
// having already rewritten "foo.bar = v" into "foo.bar=(v)", a callm node;
// compileAssign itself handles an ivar-store, an index/bindex target, or a
// plain-name target, matching spec.md §4.1's "rewritten inline" note.
func compileAssign(c *Ctx, n *ir.Node) (ir.Value, error) {
	target := n.Children[0]
	valueExpr := n.Children[1]

	if target.Typ == ir.NodeSymbol && isIvarName(target.Data.(string)) {
		return compileIvarAssign(c, target, valueExpr)
	}

	if target.Typ == ir.NodeCallm {
		// foo.bar = v already rewritten to foo.bar=(v) by the front end;
		// a bare assign node around a callm target just forwards.
		return CompileExp(c, target)
	}

	v, err := CompileExp(c, valueExpr)
	if err != nil {
		return ir.Value{}, err
	}
	loadIntoResult(c, v)

	if target.Typ == ir.NodeIndex || target.Typ == ir.NodeBindex {
		// The address computation may clobber the result register.
		c.Em.Push(c.Em.ResultReg())
		dst, err := CompileExp(c, target)
		if err != nil {
			return ir.Value{}, err
		}
		c.Em.Pop(c.Em.ResultReg())
		storeResultInto(c, dst)
		return ir.Subexpr(v.Type), nil
	}

	dst, err := getArg(c, target, true)
	if err != nil {
		return ir.Value{}, err
	}
	storeResultInto(c, dst)
	return ir.Subexpr(v.Type), nil
}

// isIvarName reports whether name uses the @ivar sigil.
func isIvarName(name string) bool {
	return len(name) > 0 && name[0] == '@'
}

// compileIvarAssign stores the result of valueExpr into self's ivar slot,
// preserving the source value across the self reload via a stack push, per
// spec.md §4.1.
func compileIvarAssign(c *Ctx, target *ir.Node, valueExpr *ir.Node) (ir.Value, error) {
	v, err := CompileExp(c, valueExpr)
	if err != nil {
		return ir.Value{}, err
	}
	loadIntoResult(c, v)
	c.Em.Push(c.Em.ResultReg())

	scope := ir.NewClassScope(ir.CurrentClass(c.Chain))
	ivar := scope.Define(target.Data.(string)[1:])

	c.Em.Pop(c.Em.ResultReg())
	storeResultInto(c, ivar)
	return ir.Subexpr(v.Type), nil
}

// storeResultInto writes the result register into dst's residence.
func storeResultInto(c *Ctx, dst ir.Value) {
	switch dst.Kind {
	case ir.ValReg:
		if dst.Reg != c.Em.ResultReg() {
			c.Em.Move(dst.Reg, c.Em.ResultReg())
		}
	case ir.ValGlobal:
		c.Em.Move(dst.Name, c.Em.ResultReg())
	case ir.ValLocal:
		c.Em.Move(localOperand(dst.Slot), c.Em.ResultReg())
	case ir.ValArg:
		c.Em.Move(argOperand(dst.Slot), c.Em.ResultReg())
	case ir.ValIvar:
		c.Em.Move(ivarOperand(dst.Slot), c.Em.ResultReg())
	case ir.ValIndirect, ir.ValIndirect8:
		c.Em.Move(indirectOperand(dst.Reg, 0), c.Em.ResultReg())
	default:
		panic("internal: assignment target has no storable residence")
	}
}

func localOperand(slot int) string { return indirectOperand("ebp", -(slot+1)*4) }
func argOperand(slot int) string   { return indirectOperand("ebp", 8+slot*4) }
func ivarOperand(slot int) string  { return indirectOperand("esi", slot*4) }
