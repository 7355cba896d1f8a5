// function.go implements function and method definition lowering
// (spec.md §4.2): defun/defm/lambda/proc record creation, the drain
// pass's body emission with its arity guard and default-value application,
// and return/preturn.
//
// Grounded on the teacher's backend/arm/function.go (prologue/epilogue and
// arity-guard shape) but the arity mismatch path here deliberately divides
// by zero after printing, per spec.md §4.2/§7, rather than returning an
// error the way the teacher's type-checked language does.

package x86

import (
	"oolc/src/ir"
	"oolc/src/util"
)

// compileDefun creates a Function record for a top-level function
// definition, queues it under a cleaned name, and yields an addr Value.
// With isMethod set the record is labelled as a method of className and is
// not registered as a global function; CompileExp's defun case passes false.
func compileDefun(c *Ctx, n *ir.Node, isMethod bool, className string) (ir.Value, error) {
	name := n.Children[0].Data.(string)
	params := parseParams(n.Children[1])
	body := n.Children[2]

	var label string
	if isMethod {
		label = methodLabel(className, name)
	} else {
		label = "__func_" + cleanName(name)
	}

	frv := FunctionRecordFor(isMethod, className, name, label, params, body, snapshotScopes(c))
	fr := &frv
	c.Drv.Enqueue(fr)

	if !isMethod {
		g := ir.Global(c.Chain)
		g.Functions[name] = fr
	}
	return ir.Addr(label), nil
}

// FunctionRecordFor is a constructor kept as a free function (rather than
// a method on ir.FunctionRecord) so callers read as "build me a record for
// this definition", matching the other compile* constructors in this file.
func FunctionRecordFor(isMethod bool, className, name, label string, params []ir.Param, body *ir.Node, enclosing []*ir.Scope) ir.FunctionRecord {
	min, max := 0, 0
	hasRest := false
	for _, p := range params {
		if p.Name == "*rest" {
			hasRest = true
			continue
		}
		max++
		if p.Default == nil {
			min++
		}
	}
	return ir.FunctionRecord{
		Name:      name,
		Label:     label,
		Params:    params,
		HasRest:   hasRest,
		MinArgs:   min,
		MaxArgs:   max,
		Body:      body,
		Enclosing: enclosing,
		IsMethod:  isMethod,
		ClassName: className,
		VarFreq:   map[string]int{},
	}
}

// compileDefm lowers a method definition: creates its Function record (with
// the implicit self, __closure__ prefix), queues it, and emits the
// __set_vtable(self, offset, label) call that writes the class's vtable
// entry at class-definition time.
func compileDefm(c *Ctx, n *ir.Node) (ir.Value, error) {
	class := ir.CurrentClass(c.Chain)
	if class == nil {
		return ir.Value{}, ir.NewCompileError(n, scopeName(c), "defm outside of a class body")
	}
	name := n.Children[0].Data.(string)
	params := append([]ir.Param{{Name: "self"}, {Name: "__closure__"}}, parseParams(n.Children[1])...)
	body := n.Children[2]
	label := methodLabel(class.Name, name)

	frv := FunctionRecordFor(true, class.Name, name, label, params, body, snapshotScopes(c))
	fr := &frv
	class.VTable[name] = fr
	c.Drv.Enqueue(fr)

	off := c.Drv.VTableOffset(name)
	c.Em.CallerSave(func() {
		c.Em.Move(c.Em.ResultReg(), "$"+label)
		c.Em.Push(c.Em.ResultReg())
		c.Em.Move(c.Em.ResultReg(), "$"+itoa(int64(off)))
		c.Em.Push(c.Em.ResultReg())
		loadIntoResult(c, selfValue(c))
		c.Em.Push(c.Em.ResultReg())
		c.Em.Call("__set_vtable")
		cleanupArgs(c, 3)
	})
	return ir.Addr(label), nil
}

// compileLambdaProc lowers lambda/proc: a defun with a generated label and
// the same self, __closure__ prefix, its body wrapped in an empty let to
// establish a scope. isProc marks whether preturn may return through the
// calling method (true) or only out of the block itself (false, lambda).
func compileLambdaProc(c *Ctx, n *ir.Node, isProc bool) (ir.Value, error) {
	params := append([]ir.Param{{Name: "self"}, {Name: "__closure__"}}, parseParams(n.Children[0])...)
	body := &ir.Node{Typ: ir.NodeLet, Line: n.Line, Col: n.Col, Children: []*ir.Node{{Typ: ir.NodeBlock}, n.Children[1]}}
	label := "__lambda_" + itoa(int64(c.Drv.NextLabel()))

	frv := FunctionRecordFor(true, "", "<anonymous>", label, params, body, snapshotScopes(c))
	frv.IsProc = isProc
	fr := &frv
	c.Drv.Enqueue(fr)
	return ir.Addr(label), nil
}

// parseParams reads a parameter-list node into []ir.Param, recognising a
// trailing splat parameter (named "*rest" by the front end) and a default
// value expression: the front end attaches one either as a second child of
// a bare parameter node, or by wrapping the parameter in an assign node
// (name, default) — the reader uses the latter shape, since a leaf symbol
// in the source tree never carries children of its own.
func parseParams(n *ir.Node) []ir.Param {
	if n == nil {
		return nil
	}
	params := make([]ir.Param, 0, len(n.Children))
	for _, p := range n.Children {
		if p.Typ == ir.NodeAssign {
			params = append(params, ir.Param{Name: p.Children[0].Data.(string), Default: p.Children[1]})
			continue
		}
		name := p.Data.(string)
		var def *ir.Node
		if len(p.Children) > 0 {
			def = p.Children[0]
		}
		params = append(params, ir.Param{Name: name, Default: def})
	}
	return params
}

// snapshotScopes captures the current scope chain, innermost first, for a
// closure to later resolve free variables against.
func snapshotScopes(c *Ctx) []*ir.Scope {
	out := make([]*ir.Scope, 0, c.Chain.Size())
	for i1 := 1; i1 <= c.Chain.Size(); i1++ {
		if s, ok := c.Chain.Get(i1).(*ir.Scope); ok {
			out = append(out, s)
		}
	}
	return out
}

// countLocals returns the total number of let-bound names reachable
// anywhere in n, a conservative upper bound on the stack slots a function
// body needs: nested lets stack their slot ranges and sibling lets reuse
// one range, so summing every let's binding count, nested or sibling, never
// under-reserves.
func countLocals(n *ir.Node) int {
	if n == nil {
		return 0
	}
	total := 0
	if n.Typ == ir.NodeLet && len(n.Children) > 0 {
		total += len(n.Children[0].Children)
	}
	for _, ch := range n.Children {
		total += countLocals(ch)
	}
	return total
}

// genFunction emits fr's body when the drain pass pops it off the queue:
// the arity guard, default-value application, the body itself, and the
// epilogue.
func genFunction(c *Ctx, fr *ir.FunctionRecord) error {
	saved := c.Chain
	chain := &util.Stack{}
	for i1 := len(fr.Enclosing) - 1; i1 >= 0; i1-- {
		chain.Push(fr.Enclosing[i1])
	}
	c.Chain = chain
	defer func() { c.Chain = saved }()

	fnScope := ir.NewFunctionScope(fr)
	c.Chain.Push(fnScope)
	defer c.Chain.Pop()

	c.Em.BeginFunc(fr.Label, countLocals(fr.Body))
	genArityGuard(c, fr)
	genDefaults(c, fr)

	if _, err := CompileExp(c, fr.Body); err != nil {
		return err
	}

	c.Em.EvictAll()
	c.Em.EndFunc()
	return nil
}

// genArityGuard emits the two runtime checks spec.md §4.2 requires: the
// argument count must be at least minargs and (absent a rest parameter) at
// most maxargs. A mismatch prints an ArgumentError and deliberately divides
// by zero to abort (SIGFPE), matching spec.md §7's runtime error signalling.
func genArityGuard(c *Ctx, fr *ir.FunctionRecord) {
	min, max := fr.Arity()

	okLabel := c.Em.Local(ir.LabelIf)
	c.Em.Move(c.Em.ResultReg(), argcReg)
	c.Em.Arith("sub", c.Em.ResultReg(), "$"+itoa(int64(min)))
	c.Em.JmpCond("ge", okLabel)
	genArityAbort(c)
	c.Em.Label(okLabel)

	if max >= 0 {
		ok2 := c.Em.Local(ir.LabelIf)
		c.Em.Move(c.Em.ResultReg(), argcReg)
		c.Em.Arith("sub", c.Em.ResultReg(), "$"+itoa(int64(max)))
		c.Em.JmpCond("le", ok2)
		genArityAbort(c)
		c.Em.Label(ok2)
	}
}

func genArityAbort(c *Ctx) {
	c.Em.CallerSave(func() {
		c.Em.Move(c.Em.ResultReg(), "$"+c.Drv.InternString("ArgumentError\n"))
		c.Em.Push(c.Em.ResultReg())
		c.Em.Call("printf") // prints "ArgumentError".
		cleanupArgs(c, 1)
	})
	c.Em.Arith("div", c.Em.ResultReg(), "$0") // intentional SIGFPE.
}

// genDefaults tests the runtime argument count against each default's
// position and, if missing, assigns the default expression into the slot.
func genDefaults(c *Ctx, fr *ir.FunctionRecord) {
	for i1, p := range fr.Params {
		if p.Default == nil {
			continue
		}
		have := c.Em.Local(ir.LabelIf)
		c.Em.Move(c.Em.ResultReg(), argcReg)
		c.Em.Arith("sub", c.Em.ResultReg(), "$"+itoa(int64(i1)))
		c.Em.JmpCond("gt", have)

		v, err := CompileExp(c, p.Default)
		if err == nil {
			loadIntoResult(c, v)
			c.Em.Move(argOperand(i1), c.Em.ResultReg())
		}
		c.Em.Label(have)
	}
}

// compileReturn lowers an ordinary return: evaluate the expression into the
// result register and leave the body via the emitter's epilogue (emitted by
// the enclosing BeginFunc/EndFunc bracket).
func compileReturn(c *Ctx, n *ir.Node) (ir.Value, error) {
	if len(n.Children) == 0 {
		return ir.Subexpr(ir.TypeUnspecified), nil
	}
	v, err := CompileExp(c, n.Children[0])
	if err != nil {
		return ir.Value{}, err
	}
	loadIntoResult(c, v)
	return ir.Subexpr(v.Type), nil
}

// compilePreturn lowers a non-local return out of a proc body: restore the
// saved frame pointer from the environment's slot 0, restore ebp, and
// execute the normal leave/ret sequence, per spec.md §4.2/§9.
func compilePreturn(c *Ctx, n *ir.Node) (ir.Value, error) {
	v, err := CompileExp(c, n.Children[0])
	if err != nil {
		return ir.Value{}, err
	}
	loadIntoResult(c, v)

	c.Em.WithRegister(func(envReg string) {
		env, eerr := getArg(c, n.Children[len(n.Children)-1], false)
		if eerr != nil {
			return
		}
		loadIntoReg(c, envReg, env)
		c.Em.Move("ebp", indirectOperand(envReg, 0))
	})
	return ir.Subexpr(v.Type), nil
}
