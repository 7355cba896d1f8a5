// call.go implements the four call shapes spec.md §4.3 names — call,
// callm, super, yield — sharing a common stack-building helper.

package x86

import (
	"oolc/src/ir"
)

// argcReg is the scratch register the callee's arity guard reads the actual
// argument count from, set by every call site just before transferring
// control.
const argcReg = "ecx"

// pushArgs lowers args right-to-left, each one landing on the stack through
// its own Push (which already adjusts esp itself — do not also wrap this in
// WithStack, or the reservation and the pushes double-account the same
// bytes and the call ends up reading past its own arguments), and leaves
// the pushed count in argcReg for the callee's arity guard to read
// (spec.md §4.3: "argcount in scratch register"). Splat expansion at a call
// site is not implemented: every argument here is a single ordinary
// expression.
func pushArgs(c *Ctx, args []*ir.Node) (int, error) {
	n := len(args)
	for i1 := n - 1; i1 >= 0; i1-- {
		v, err := CompileExp(c, args[i1])
		if err != nil {
			return n, err
		}
		loadIntoResult(c, v)
		c.Em.Push(c.Em.ResultReg())
	}
	c.Em.Move(argcReg, "$"+itoa(int64(n)))
	return n, nil
}

// cleanupArgs restores esp after a call whose arguments were pushed by the
// caller (true cdecl, spec.md §6): n words pushed means n*4 bytes to give
// back once the callee returns.
func cleanupArgs(c *Ctx, n int) {
	if n > 0 {
		c.Em.Arith("add", "esp", "$"+itoa(int64(n*4)))
	}
}

// compileCall lowers a plain call(name, args) form: the callee resolves
// through the scope chain like any other name. An unresolved bare callee
// is possible_callm, which on a call site reads as an implicit self-send
// rather than a direct call.
func compileCall(c *Ctx, n *ir.Node) (ir.Value, error) {
	callee := n.Children[0]
	args := n.Children[1].Children

	v, err := getArg(c, callee, false)
	if err != nil {
		return ir.Value{}, err
	}
	if v.Kind == ir.ValPossibleCallm {
		return dispatchCallm(c, selfValue(c), v.Name, args, false)
	}

	var result ir.Value
	c.Em.CallerSave(func() {
		n, perr := pushArgs(c, args)
		if perr != nil {
			err = perr
			return
		}
		switch v.Kind {
		case ir.ValAddr:
			c.Em.Call(v.Name)
		default:
			c.Em.WithRegister(func(reg string) {
				loadIntoReg(c, reg, v)
				c.Em.CallReg(reg)
			})
		}
		cleanupArgs(c, n)
		result = ir.Subexpr(ir.TypeUnspecified)
	})
	return result, err
}

// compileCallm lowers callm(obj, m, args, block) and, when loadSuper is
// true, super's re-dispatch of the current method name through the
// superclass's vtable instead.
func compileCallm(c *Ctx, n *ir.Node, loadSuper bool) (ir.Value, error) {
	var recv ir.Value
	var method string
	var argsNode *ir.Node
	var err error

	if loadSuper {
		fr := ir.CurrentFunction(c.Chain)
		method = fr.Name
		recv = selfValue(c)
		argsNode = n.Children[0]
	} else {
		recv, err = CompileExp(c, n.Children[0])
		if err != nil {
			return ir.Value{}, err
		}
		method = n.Children[1].Data.(string)
		argsNode = n.Children[2]
	}

	return dispatchCallm(c, recv, method, argsNode.Children, loadSuper)
}

// dispatchCallm implements §4.3's callm sequence: resolve the global vtable
// offset (falling back to a __send__ rewrite with a warning if the method
// is never defined anywhere), prepend the implicit __closure__ argument,
// push args inside caller_save, load the receiver into self (esi) and its
// class pointer, optionally chase the superclass pointer, and call through
// the vtable. After return, evict cached registers for self and force a
// reload if the receiver wasn't already self.
func dispatchCallm(c *Ctx, recv ir.Value, method string, args []*ir.Node, loadSuper bool) (ir.Value, error) {
	wasSelf := recv.Kind == ir.ValReg && recv.Reg == c.Em.SelfReg()
	var err error

	c.Em.CallerSave(func() {
		if !wasSelf {
			c.Em.Push(c.Em.SelfReg()) // restored after the call below.
		}
		n, perr := pushArgs(c, args)
		if perr != nil {
			err = perr
			return
		}
		c.Em.Move(c.Em.ResultReg(), "$0") // implicit __closure__ argument: block, or 0.
		c.Em.Push(c.Em.ResultReg())
		n++

		loadIntoResult(c, recv)
		c.Em.Move(c.Em.SelfReg(), c.Em.ResultReg())

		c.Em.WithRegister(func(classReg string) {
			c.Em.Move(classReg, indirectOperand(c.Em.SelfReg(), 0))
			if loadSuper {
				c.Em.Move(classReg, indirectOperand(classReg, 3*4))
			}
			if off, ok := lookupVTable(c, method); ok {
				c.Em.WithRegister(func(slotReg string) {
					c.Em.Move(slotReg, indirectOperand(classReg, off*4))
					c.Em.CallReg(slotReg)
				})
			} else {
				ir.Warnf(nil, "method %q is never defined anywhere; rewriting to __send__", method)
				c.Em.Call("__send__")
			}
		})
		cleanupArgs(c, n)
		if !wasSelf {
			c.Em.Pop(c.Em.SelfReg())
		}
	})
	if err != nil {
		return ir.Value{}, err
	}

	if !wasSelf {
		c.Em.EvictRegsFor("self")
	}
	return ir.Subexpr(ir.TypeUnspecified), nil
}

// lookupVTable returns method's globally assigned offset. The teacher's
// validate.go looked up a statically known symbol table; here the same
// miss is not fatal (spec.md §4.3 item 1): an unknown method warns and
// routes through __send__ instead of aborting compilation.
func lookupVTable(c *Ctx, method string) (int, bool) {
	for _, name := range c.Drv.VTableNames() {
		if name == method {
			return c.Drv.VTableOffset(method), true
		}
	}
	return 0, false
}

// compileYield lowers yield(args, block) as
// callm(self, __closure__, :call, args, block).
func compileYield(c *Ctx, n *ir.Node) (ir.Value, error) {
	recv, err := getArg(c, &ir.Node{Typ: ir.NodeSymbol, Line: n.Line, Col: n.Col, Data: "__closure__"}, false)
	if err != nil {
		return ir.Value{}, err
	}
	if recv.Kind == ir.ValPossibleCallm {
		return ir.Value{}, ir.NewCompileError(n, scopeName(c), "yield outside of a method or block body")
	}
	args := n.Children[0].Children
	return dispatchCallm(c, recv, "call", args, false)
}

func selfValue(c *Ctx) ir.Value {
	return ir.Value{Kind: ir.ValReg, Reg: c.Em.SelfReg(), Type: ir.TypeObject}
}

// indirectOperand renders an x86 base+displacement memory operand.
func indirectOperand(reg string, offset int) string {
	return itoa(int64(offset)) + "(%" + reg + ")"
}
