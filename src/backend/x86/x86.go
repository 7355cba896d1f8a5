// Package x86 lowers the core's s-expression tree directly into x86
// (32-bit) assembly text through an ir.Emitter, implementing the whole of
// spec.md's two-phase driver: a vtable-offset pre-pass followed by the main
// emission pass, function drain, thunk emission, and constant-table flush.
//
// Grounded on the teacher's backend/arm package (armv8.go's top-level
// GenerateAssembler-shaped driver, function.go's prologue/epilogue and
// arity-guard shape, expressions.go's keyword dispatch, conditional.go's
// if/while lowering), retargeted from aarch64 to this spec's cdecl-like x86
// ABI and from a statically-typed int/float language to this dynamically
// typed, class-based one.
package x86

import (
	"fmt"

	"oolc/src/ir"
	"oolc/src/util"
)

// Ctx threads the driver, emitter, scope chain, and per-compilation caches
// through every lowering routine. It is the unlocked, single-threaded
// analogue of passing a *Driver by reference the teacher's lir.Module is
// passed through its own (mutex-guarded) backend passes.
type Ctx struct {
	Drv   *ir.Driver
	Em    ir.Emitter
	Chain *util.Stack

	symCache map[string]string // interned quoted-symbol text -> backing global name.
}

// NewCtx returns a Ctx with a freshly pushed global scope at the bottom of
// the chain.
func NewCtx(em ir.Emitter) *Ctx {
	chain := &util.Stack{}
	chain.Push(ir.NewGlobalScope())
	return &Ctx{
		Drv:      ir.NewDriver(),
		Em:       em,
		Chain:    chain,
		symCache: map[string]string{},
	}
}

// Generate runs the complete top-level driver over root (spec.md §4.5):
//  1. vtable-offset pre-pass (depth-first over :defm heads)
//  2. main emission
//  3. function-queue drain
//  4. vtable-missing thunks and the base vtable
//  5. string pool and global-constant set flush
func Generate(c *Ctx, root *ir.Node, opt util.Options) error {
	assignVTableOffsets(c, root)

	if opt.VTableDump {
		dumpVTable(c)
		return nil
	}

	c.Em.Section(ir.SectionText)
	for _, name := range c.Drv.VTableNames() {
		c.Em.Equ(vtableOffsetConst(name), c.Drv.VTableOffset(name)*4)
	}

	c.Em.BeginMain()
	if _, err := CompileExp(c, root); err != nil {
		return err
	}
	c.Em.EndMain()

	for {
		fr := c.Drv.Dequeue()
		if fr == nil {
			break
		}
		if err := genFunction(c, fr); err != nil {
			return err
		}
		fr.Emitted = true
	}

	emitThunksAndBaseVTable(c)
	emitConstantTables(c)
	return nil
}

// assignVTableOffsets performs the pre-pass: a depth-first walk assigning a
// globally unique offset to every distinct method name on first encounter
// of a :defm node. This is the sole source of vtable offset assignment,
// the property the "VTable offset stability" test verifies.
func assignVTableOffsets(c *Ctx, n *ir.Node) {
	if n == nil {
		return
	}
	if n.Typ == ir.NodeDefm {
		name := n.Children[0].Data.(string)
		c.Drv.VTableOffset(name)
	}
	for _, child := range n.Children {
		assignVTableOffsets(c, child)
	}
}

func dumpVTable(c *Ctx) {
	for i1, name := range c.Drv.VTableNames() {
		fmt.Printf("%4d  %s\n", i1, vtableOffsetConst(name))
	}
}

// emitThunksAndBaseVTable emits, per method offset, a small stub that
// prepends the method symbol to the argument stack and calls
// __method_missing, then a padded base vtable pointing every slot at its
// thunk. Classes that don't override a slot inherit the thunk's behaviour
// by construction: their own vtable copy starts as a copy of this base.
// Each thunk gets its own prologue/epilogue like any other function
// (rather than a frameless fall-through): it is reached by CallReg from a
// vtable slot and must itself return to that call site with
// __method_missing's result still sitting in eax.
func emitThunksAndBaseVTable(c *Ctx) {
	names := c.Drv.VTableNames()
	for _, name := range names {
		c.Em.Section(ir.SectionText)
		c.Em.BeginFunc(thunkLabel(name), 0)
		global := c.internSymbol(name)
		c.Em.WithRegister(func(reg string) {
			c.Em.Move(reg, global)
			c.Em.Push(reg)
		})
		c.Em.Call("__method_missing")
		cleanupArgs(c, 1)
		c.Em.EndFunc()
	}

	c.Em.Section(ir.SectionRodata)
	c.Em.Label("__base_vtable")
	for _, name := range names {
		c.Em.LongLabel(thunkLabel(name))
	}
}

// emitConstantTables flushes the string pool into read-only data and the
// global-constant set into BSS, the driver's final step.
func emitConstantTables(c *Ctx) {
	c.Em.Section(ir.SectionRodata)
	for _, s := range c.Drv.Strings() {
		c.Em.StringLit(s.Label, s.Value)
	}

	c.Em.Section(ir.SectionBSS)
	for _, name := range c.Drv.Globals() {
		c.Em.Label(name)
		c.Em.Long(0)
	}
}

// internSymbol returns (allocating and caching on first use) the name of
// the BSS global holding the runtime Symbol for name, via
// __get_symbol(__get_string(bytes)).
func (c *Ctx) internSymbol(name string) string {
	if g, ok := c.symCache[name]; ok {
		return g
	}
	label := c.Drv.InternString(name)
	global := "__sym_" + cleanName(name)
	c.Drv.AddGlobal(global)
	c.symCache[name] = global

	c.Em.WithRegister(func(reg string) {
		c.Em.Move(reg, "$"+label)
		c.Em.Push(reg)
	})
	c.Em.Call("__get_string")
	cleanupArgs(c, 1)
	c.Em.Push(c.Em.ResultReg())
	c.Em.Call("__get_symbol")
	cleanupArgs(c, 1)
	c.Em.Move(global, c.Em.ResultReg())
	return global
}
