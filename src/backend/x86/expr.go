// expr.go implements compile_exp (spec.md §4.1): the single dispatch point
// over the keyword form set, plus the arithmetic/comparison, control-flow,
// and binding lowering routines that don't warrant their own file.
//
// Grounded on the teacher's backend/arm/expressions.go (keyword-dispatch
// switch shape) and backend/arm/conditional.go (if/while lowering via the
// emitter's loop/branch helpers), generalized from a statically-typed
// int/float expression language to this dynamically-typed, object one.

package x86

import (
	"oolc/src/ir"
)

// CompileExp is the single entry point every lowering routine recurses
// through. A node that is not a keyword form is resolved as a leaf through
// getArg; no other head is treated as an implicit call, and the arithmetic
// and comparison forms lower to machine instructions, not method calls.
func CompileExp(c *Ctx, n *ir.Node) (ir.Value, error) {
	if n == nil {
		return ir.Value{}, nil
	}
	c.Em.LineNo(n.Line, n.Col)

	if !ir.IsKeyword(n.Typ) {
		return getArg(c, n, false)
	}

	switch n.Typ {
	case ir.NodeDo, ir.NodeBlock:
		return compileSeq(c, n.Children)
	case ir.NodeSexp:
		return compileSexp(c, n)
	case ir.NodeClass, ir.NodeModule:
		return compileClass(c, n)
	case ir.NodeDefun:
		return compileDefun(c, n, false, "")
	case ir.NodeDefm:
		return compileDefm(c, n)
	case ir.NodeLambda:
		return compileLambdaProc(c, n, false)
	case ir.NodeProc:
		return compileLambdaProc(c, n, true)
	case ir.NodeIf:
		return compileIf(c, n)
	case ir.NodeWhile:
		return compileWhile(c, n)
	case ir.NodeAssign:
		return compileAssign(c, n)
	case ir.NodeLet:
		return compileLet(c, n)
	case ir.NodeCase:
		return compileCase(c, n)
	case ir.NodeTernif:
		return compileTernif(c, n)
	case ir.NodeHash:
		return compileHash(c, n)
	case ir.NodeReturn:
		return compileReturn(c, n)
	case ir.NodePreturn:
		return compilePreturn(c, n)
	case ir.NodeRescue:
		ir.Warnf(n, "rescue is not lowered; handlers are silently dropped")
		if len(n.Children) > 0 {
			return CompileExp(c, n.Children[0])
		}
		return ir.Subexpr(ir.TypeUnspecified), nil
	case ir.NodeIncr:
		return compileIncr(c, n)
	case ir.NodeRequired:
		return ir.Subexpr(ir.TypeUnspecified), nil
	case ir.NodeIndex:
		return compileIndex(c, n, false)
	case ir.NodeBindex:
		return compileIndex(c, n, true)
	case ir.NodeAdd, ir.NodeSub, ir.NodeMul, ir.NodeDiv,
		ir.NodeEq, ir.NodeNe, ir.NodeLt, ir.NodeLe, ir.NodeGt, ir.NodeGe:
		return compileBinop(c, n)
	case ir.NodeAnd:
		return compileAnd(c, n)
	case ir.NodeOr:
		return compileOr(c, n)
	case ir.NodeSaveregs:
		c.Em.CallerSave(func() {})
		return ir.Subexpr(ir.TypeUnspecified), nil
	case ir.NodeStackframe:
		return compileStackframe(c, n)
	case ir.NodeDeref:
		return compileDeref(c, n)
	case ir.NodeCall:
		return compileCall(c, n)
	case ir.NodeCallm:
		return compileCallm(c, n, false)
	case ir.NodeSuper:
		return compileCallm(c, n, true)
	case ir.NodeYield:
		return compileYield(c, n)
	default:
		return ir.Value{}, ir.NewCompileError(n, scopeName(c), "unknown keyword form: %s", n.Name())
	}
}

// compileSeq lowers a list of expressions in order and returns the value of
// the last one, matching do/block's "evaluate sequentially" semantics.
func compileSeq(c *Ctx, children []*ir.Node) (ir.Value, error) {
	var last ir.Value
	for _, ch := range children {
		v, err := CompileExp(c, ch)
		if err != nil {
			return ir.Value{}, err
		}
		last = v
	}
	return last, nil
}

// compileSexp is the transparent pass-through scope used to suppress
// certain rewrites: push a ScopeSexp frame, lower the body, pop.
func compileSexp(c *Ctx, n *ir.Node) (ir.Value, error) {
	c.Chain.Push(ir.NewSexpScope())
	defer c.Chain.Pop()
	return compileSeq(c, n.Children)
}

// compileBinop lowers add/sub/mul/div/eq/ne/lt/le/gt/ge: evaluate both
// operands left to right, then emit the corresponding two-operand
// instruction producing a result in the result register.
func compileBinop(c *Ctx, n *ir.Node) (ir.Value, error) {
	lhs, err := CompileExp(c, n.Children[0])
	if err != nil {
		return ir.Value{}, err
	}
	loadIntoResult(c, lhs)

	c.Em.WithRegister(func(reg string) {
		rhs, rerr := CompileExp(c, n.Children[1])
		if rerr != nil {
			err = rerr
			return
		}
		loadIntoReg(c, reg, rhs)
		switch n.Typ {
		case ir.NodeAdd:
			c.Em.Arith("add", c.Em.ResultReg(), reg)
		case ir.NodeSub:
			c.Em.Arith("sub", c.Em.ResultReg(), reg)
		case ir.NodeMul:
			c.Em.Arith("mul", c.Em.ResultReg(), reg)
		case ir.NodeDiv:
			c.Em.Arith("div", c.Em.ResultReg(), reg)
		case ir.NodeEq:
			emitCompare(c, reg, "eq")
		case ir.NodeNe:
			emitCompare(c, reg, "ne")
		case ir.NodeLt:
			emitCompare(c, reg, "lt")
		case ir.NodeLe:
			emitCompare(c, reg, "le")
		case ir.NodeGt:
			emitCompare(c, reg, "gt")
		case ir.NodeGe:
			emitCompare(c, reg, "ge")
		}
	})
	if err != nil {
		return ir.Value{}, err
	}
	return ir.Subexpr(ir.TypeUnspecified), nil
}

// emitCompare lowers a relational operator into a boolean (0/1) result in
// the result register, since this object language has no dedicated flags
// operand type: the caller always consumes a Value, never raw flags.
func emitCompare(c *Ctx, rhsReg, cond string) {
	c.Em.Arith("sub", c.Em.ResultReg(), rhsReg) // sets flags, result register is clobbered by design.
	isTrue := c.Em.Local(ir.LabelIf)
	done := c.Em.Local(ir.LabelIfEnd)
	c.Em.JmpCond(cond, isTrue)
	c.Em.Move(c.Em.ResultReg(), "$0")
	c.Em.Jmp(done)
	c.Em.Label(isTrue)
	c.Em.Move(c.Em.ResultReg(), "$1")
	c.Em.Label(done)
}

// loadIntoResult moves v into the result register if it is not already
// there.
func loadIntoResult(c *Ctx, v ir.Value) {
	loadIntoReg(c, c.Em.ResultReg(), v)
}

// loadIntoReg moves v into reg, rendering whichever operand form v carries.
func loadIntoReg(c *Ctx, reg string, v ir.Value) {
	switch v.Kind {
	case ir.ValReg:
		if v.Reg != reg {
			c.Em.Move(reg, v.Reg)
		}
	case ir.ValInt:
		c.Em.Move(reg, immOperand(v.Int))
	case ir.ValAddr:
		// A label's address: function entry points, interned strings/symbols.
		c.Em.Move(reg, "$"+v.Name)
	case ir.ValGlobal:
		// The value currently stored at the global, not its address: reading
		// a previously assigned top-level name, a class's object pointer, or
		// one of the true/false/nil singletons.
		c.Em.Move(reg, v.Name)
	case ir.ValSubexpr:
		// Already in the result register by construction; nothing to do
		// unless the caller wants it somewhere else, handled by Move above
		// when reg != ResultReg.
		if reg != c.Em.ResultReg() {
			c.Em.Move(reg, c.Em.ResultReg())
		}
	case ir.ValPossibleCallm:
		// A read of an unresolved bare name: implicit self-send.
		panic("internal: possible_callm must be resolved by the caller before loadIntoReg")
	case ir.ValIndirect:
		c.Em.Move(reg, indirectOperand(v.Reg, 0))
	case ir.ValIndirect8:
		// The addressed byte is the low byte of the word loaded.
		c.Em.Move(reg, indirectOperand(v.Reg, 0))
		c.Em.Arith("and", reg, "$255")
	default:
		c.Em.Move(reg, "0") // lvar/arg/ivar already materialised via CacheReg upstream.
	}
}

func immOperand(n int64) string {
	return "$" + itoa(n)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i1 := len(buf)
	for n > 0 {
		i1--
		buf[i1] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i1--
		buf[i1] = '-'
	}
	return string(buf[i1:])
}

// compileAnd lowers (a && b) as "if a then b": the right operand is
// evaluated only on the path where the left is truthy.
func compileAnd(c *Ctx, n *ir.Node) (ir.Value, error) {
	lhs, err := CompileExp(c, n.Children[0])
	if err != nil {
		return ir.Value{}, err
	}
	loadIntoResult(c, lhs)
	end := c.Em.Local(ir.LabelAndEnd)
	c.Em.JmpIfZero(c.Em.ResultReg(), end)
	if lhs.IsObjectTyped() {
		// false is falsy too, as in compileIf; a stays in the result register.
		c.Em.WithRegister(func(reg string) {
			loadIntoReg(c, reg, getArgConstant(c, "false"))
			c.Em.Arith("sub", reg, c.Em.ResultReg())
			c.Em.JmpCond("eq", end)
		})
	}
	rhs, err := CompileExp(c, n.Children[1])
	if err != nil {
		return ir.Value{}, err
	}
	loadIntoResult(c, rhs)
	c.Em.Label(end)
	c.Em.EvictAll()
	return ir.Subexpr(ir.TypeUnspecified), nil
}

// compileOr lowers (a || b): a is kept in the result register; if truthy it
// is returned, else b is evaluated and returned.
func compileOr(c *Ctx, n *ir.Node) (ir.Value, error) {
	lhs, err := CompileExp(c, n.Children[0])
	if err != nil {
		return ir.Value{}, err
	}
	loadIntoResult(c, lhs)
	end := c.Em.Local(ir.LabelOrEnd)
	if lhs.IsObjectTyped() {
		// Both nil and false are falsy, as in compileIf.
		isFalse := c.Em.Local(ir.LabelLocal)
		c.Em.JmpIfZero(c.Em.ResultReg(), isFalse)
		c.Em.WithRegister(func(reg string) {
			loadIntoReg(c, reg, getArgConstant(c, "false"))
			c.Em.Arith("sub", reg, c.Em.ResultReg())
			c.Em.JmpCond("ne", end)
		})
		c.Em.Label(isFalse)
	} else {
		c.Em.JmpIfNotZero(c.Em.ResultReg(), end)
	}
	rhs, err := CompileExp(c, n.Children[1])
	if err != nil {
		return ir.Value{}, err
	}
	loadIntoResult(c, rhs)
	c.Em.Label(end)
	c.Em.EvictAll()
	return ir.Subexpr(ir.TypeUnspecified), nil
}

// compileIf lowers the if form (spec.md §4.1): an object-typed condition
// must be compared against both nil and false; otherwise a generic
// jump-on-false is used. The register cache is invalidated wholesale after
// both arms, since arm-local state cannot be safely reused across branches.
func compileIf(c *Ctx, n *ir.Node) (ir.Value, error) {
	cond := n.Children[0]
	thenArm := n.Children[1]
	var elseArm *ir.Node
	if len(n.Children) > 2 {
		elseArm = n.Children[2]
	}

	cv, err := CompileExp(c, cond)
	if err != nil {
		return ir.Value{}, err
	}
	loadIntoResult(c, cv)

	elseLabel := c.Em.Local(ir.LabelIfElse)
	endLabel := c.Em.Local(ir.LabelIfElseEnd)

	if cv.IsObjectTyped() {
		// Both nil and false are falsy for an object-typed condition.
		c.Em.JmpIfZero(c.Em.ResultReg(), elseLabel) // nil is represented as 0.
		c.Em.WithRegister(func(reg string) {
			falseConst := getArgConstant(c, "false")
			loadIntoReg(c, reg, falseConst)
			c.Em.Arith("sub", c.Em.ResultReg(), reg)
			c.Em.JmpCond("eq", elseLabel)
		})
	} else {
		c.Em.JmpIfZero(c.Em.ResultReg(), elseLabel)
	}

	thenVal, err := CompileExp(c, thenArm)
	if err != nil {
		return ir.Value{}, err
	}
	loadIntoResult(c, thenVal)
	c.Em.Jmp(endLabel)

	c.Em.Label(elseLabel)
	var elseVal ir.Value
	if elseArm != nil {
		elseVal, err = CompileExp(c, elseArm)
		if err != nil {
			return ir.Value{}, err
		}
		loadIntoResult(c, elseVal)
	} else {
		elseVal = getArgConstant(c, "nil")
		loadIntoResult(c, elseVal)
	}
	c.Em.Label(endLabel)
	c.Em.EvictAll()

	if elseArm != nil && thenVal.Type == elseVal.Type {
		return ir.Subexpr(thenVal.Type), nil
	}
	return ir.Subexpr(ir.TypeUnspecified), nil
}

// compileWhile lowers the while form as the same conditional lowering as
// if, wrapped in a backward branch.
func compileWhile(c *Ctx, n *ir.Node) (ir.Value, error) {
	cond := n.Children[0]
	body := n.Children[1]

	head := c.Em.Local(ir.LabelWhileHead)
	end := c.Em.Local(ir.LabelWhileEnd)

	c.Em.Label(head)
	cv, err := CompileExp(c, cond)
	if err != nil {
		return ir.Value{}, err
	}
	loadIntoResult(c, cv)
	if cv.IsObjectTyped() {
		c.Em.JmpIfZero(c.Em.ResultReg(), end)
		c.Em.WithRegister(func(reg string) {
			falseConst := getArgConstant(c, "false")
			loadIntoReg(c, reg, falseConst)
			c.Em.Arith("sub", c.Em.ResultReg(), reg)
			c.Em.JmpCond("eq", end)
		})
	} else {
		c.Em.JmpIfZero(c.Em.ResultReg(), end)
	}

	if _, err := CompileExp(c, body); err != nil {
		return ir.Value{}, err
	}
	c.Em.EvictAll()
	c.Em.Jmp(head)
	c.Em.Label(end)
	c.Em.EvictAll()
	return ir.Subexpr(ir.TypeUnspecified), nil
}

// compileLet introduces a local-variable scope with consecutive indices,
// evicts cached registers on entry and exit, then lowers the body
// sequentially.
func compileLet(c *Ctx, n *ir.Node) (ir.Value, error) {
	c.Em.EvictAll()
	scope := ir.NewLetScope(ir.NextLocalBase(c.Chain))
	names := n.Children[0]
	for _, ident := range names.Children {
		scope.Define(ident.Data.(string))
	}
	c.Chain.Push(scope)
	v, err := compileSeq(c, n.Children[1:])
	c.Chain.Pop()
	c.Em.EvictAll()
	return v, err
}

// compileCase tests each "when v" clause by comparing the subject and v as
// machine words (equal words select the clause; no === method is sent),
// chaining a failed test to the next clause's label.
func compileCase(c *Ctx, n *ir.Node) (ir.Value, error) {
	subject := n.Children[0]
	clauses := n.Children[1:]
	end := c.Em.Local(ir.LabelCaseEnd)

	var result ir.Value
	for i1, clause := range clauses {
		if clause.Typ != ir.NodeWhen {
			// Trailing else clause.
			v, err := CompileExp(c, clause)
			if err != nil {
				return ir.Value{}, err
			}
			loadIntoResult(c, v)
			result = v
			break
		}
		next := c.Em.Local(ir.LabelCaseNext)

		sv, err := CompileExp(c, subject)
		if err != nil {
			return ir.Value{}, err
		}
		loadIntoResult(c, sv)
		c.Em.WithRegister(func(reg string) {
			wv, werr := CompileExp(c, clause.Children[0])
			if werr != nil {
				err = werr
				return
			}
			loadIntoReg(c, reg, wv)
			c.Em.Arith("sub", c.Em.ResultReg(), reg)
			c.Em.JmpCond("ne", next)
		})
		if err != nil {
			return ir.Value{}, err
		}

		v, err := CompileExp(c, clause.Children[1])
		if err != nil {
			return ir.Value{}, err
		}
		loadIntoResult(c, v)
		result = v
		c.Em.Jmp(end)
		c.Em.Label(next)
		_ = i1
	}
	c.Em.Label(end)
	c.Em.EvictAll()
	return ir.Subexpr(result.Type), nil
}

// compileTernif rewrites to if; the else arm is carried by an optional
// ternalt sibling already attached as this node's third child by the front
// end.
func compileTernif(c *Ctx, n *ir.Node) (ir.Value, error) {
	if len(n.Children) > 2 && n.Children[2].Typ == ir.NodeTernalt {
		children := []*ir.Node{n.Children[0], n.Children[1]}
		if alt := n.Children[2]; len(alt.Children) > 0 {
			children = append(children, alt.Children[0])
		}
		n = &ir.Node{Typ: n.Typ, Line: n.Line, Col: n.Col, Children: children}
	}
	return compileIf(c, n)
}

// compileHash lowers a hash literal: every entry must be a pair node, else
// it is a fatal malformed-hash-literal error (spec.md §7).
func compileHash(c *Ctx, n *ir.Node) (ir.Value, error) {
	for _, entry := range n.Children {
		if entry.Typ != ir.NodePair {
			return ir.Value{}, ir.NewCompileError(entry, scopeName(c), "malformed hash literal: expected pair, got %s", entry.Name())
		}
		if _, err := CompileExp(c, entry.Children[0]); err != nil {
			return ir.Value{}, err
		}
		if _, err := CompileExp(c, entry.Children[1]); err != nil {
			return ir.Value{}, err
		}
	}
	return ir.Subexpr(ir.TypeObject), nil
}

// compileIndex/bindex: index computes [a + i*4] (32-bit slot), bindex
// computes [a + i] (byte). Both produce indirect Values valid as both
// reads and assignment targets.
func compileIndex(c *Ctx, n *ir.Node, byteIndex bool) (ir.Value, error) {
	base, err := CompileExp(c, n.Children[0])
	if err != nil {
		return ir.Value{}, err
	}
	var result ir.Value
	c.Em.WithRegister(func(baseReg string) {
		loadIntoReg(c, baseReg, base)
		idx, ierr := CompileExp(c, n.Children[1])
		if ierr != nil {
			err = ierr
			return
		}
		c.Em.WithRegister(func(idxReg string) {
			loadIntoReg(c, idxReg, idx)
			if !byteIndex {
				c.Em.Arith("mul", idxReg, "$4")
			}
			c.Em.Arith("add", baseReg, idxReg)
		})
		if byteIndex {
			result = ir.Value{Kind: ir.ValIndirect8, Reg: baseReg, Type: ir.TypeObject}
		} else {
			result = ir.Value{Kind: ir.ValIndirect, Reg: baseReg, Type: ir.TypeObject}
		}
	})
	return result, err
}

// compileIncr lowers the increment form: read, add one, write back.
func compileIncr(c *Ctx, n *ir.Node) (ir.Value, error) {
	target := n.Children[0]
	v, err := getArg(c, target, true)
	if err != nil {
		return ir.Value{}, err
	}
	loadIntoResult(c, v)
	c.Em.Arith("add", c.Em.ResultReg(), "$1")
	storeResultInto(c, v)
	return ir.Subexpr(ir.TypeUnspecified), nil
}

// compileStackframe emits a bare frame-window marker used by closures that
// need to address their own stack window without a full let scope.
func compileStackframe(c *Ctx, n *ir.Node) (ir.Value, error) {
	var v ir.Value
	var err error
	c.Em.WithStack(len(n.Children)*4, func() {
		v, err = compileSeq(c, n.Children)
	})
	return v, err
}

// compileDeref lowers a raw pointer dereference of its single operand.
func compileDeref(c *Ctx, n *ir.Node) (ir.Value, error) {
	base, err := CompileExp(c, n.Children[0])
	if err != nil {
		return ir.Value{}, err
	}
	var result ir.Value
	c.Em.WithRegister(func(reg string) {
		loadIntoReg(c, reg, base)
		result = ir.Value{Kind: ir.ValIndirect, Reg: reg, Type: ir.TypeObject}
	})
	return result, nil
}
