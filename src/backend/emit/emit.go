// Package emit provides the x86 (32-bit) implementation of the ir.Emitter
// contract: section switches, main/func block prologues and epilogues,
// directives, instructions, stack-window helpers, and the register cache.
//
// Grounded on the teacher's util.Writer (buffered, flush-on-close output)
// for the text sink, and on backend/regfile's RegisterFile abstraction for
// the shape of the register cache, retargeted from the teacher's aarch64
// register file to the x86 32-bit general-purpose set.
package emit

import (
	"fmt"

	"oolc/src/ir"
	"oolc/src/util"
)

// scratch is the pool of general-purpose registers available to the cache.
// eax is reserved for the result register, esi for self, ebp/esp for the
// frame, per spec.md §6's cdecl-like ABI.
var scratch = []string{"ebx", "ecx", "edx", "edi"}

type cacheEntry struct {
	name  string // the slot's identity for EvictRegsFor: "lvar3", "arg0", "self", ...
	slot  ir.Value
	dirty bool
}

// Emitter is the x86 implementation of ir.Emitter.
type Emitter struct {
	w       util.Writer
	section ir.Section
	debug   bool

	frameLocals int // number of local slots reserved in the current function.
	inMain      bool

	cache    map[string]cacheEntry // register name -> what it holds.
	lru      []string              // scratch registers in least-recently-used order, front = next victim.
}

// New returns an Emitter writing through w. debug enables LineNo/Include
// annotation of the output.
func New(w util.Writer, debug bool) *Emitter {
	return &Emitter{
		w:     w,
		debug: debug,
		cache: map[string]cacheEntry{},
		lru:   append([]string(nil), scratch...),
	}
}

// Close flushes and closes the Emitter's own writer. New takes w by value,
// so a caller's separate copy of it never observes what this Emitter wrote;
// this is the only way to drain that output once generation finishes.
func (e *Emitter) Close() {
	e.w.Close()
}

// ResultReg returns eax, the fixed result register.
func (e *Emitter) ResultReg() string { return "eax" }

// SelfReg returns esi, the fixed receiver register.
func (e *Emitter) SelfReg() string { return "esi" }

// Section switches the current output section.
func (e *Emitter) Section(s ir.Section) {
	if e.section == s {
		return
	}
	e.section = s
	switch s {
	case ir.SectionText:
		e.w.WriteString(".text\n")
	case ir.SectionRodata:
		e.w.WriteString(".section .rodata\n")
	case ir.SectionBSS:
		e.w.WriteString(".bss\n")
	}
}

// BeginMain emits the entrypoint label and its prologue.
func (e *Emitter) BeginMain() {
	e.Section(ir.SectionText)
	e.w.WriteString(".globl main\n")
	e.w.Label("main")
	e.prologue()
	e.inMain = true
}

// EndMain emits main's epilogue. main always returns 0 to the C runtime.
func (e *Emitter) EndMain() {
	e.w.WriteString("\tmovl\t$0, %eax\n")
	e.epilogue()
	e.inMain = false
}

// BeginFunc emits label's prologue, reserving frameSize 4-byte local slots.
func (e *Emitter) BeginFunc(label string, frameSize int) {
	e.Section(ir.SectionText)
	e.w.Label(label)
	e.prologue()
	e.frameLocals = frameSize
	if frameSize > 0 {
		e.w.Write("\tsubl\t$%d, %%esp\n", frameSize*4)
	}
}

// EndFunc emits the function's epilogue.
func (e *Emitter) EndFunc() {
	e.epilogue()
	e.frameLocals = 0
}

func (e *Emitter) prologue() {
	e.w.WriteString("\tpushl\t%ebp\n")
	e.w.WriteString("\tmovl\t%esp, %ebp\n")
}

func (e *Emitter) epilogue() {
	e.w.WriteString("\tleave\n")
	e.w.WriteString("\tret\n")
}

// Long emits a 32-bit literal into the current section.
func (e *Emitter) Long(value int64) {
	e.w.Write("\t.long\t%d\n", value)
}

// LongLabel emits a 32-bit pointer to label.
func (e *Emitter) LongLabel(label string) {
	e.w.Write("\t.long\t%s\n", label)
}

// StringLit emits a NUL-terminated byte string constant under label.
func (e *Emitter) StringLit(label, value string) {
	e.w.Label(label)
	e.w.Write("\t.asciz\t%q\n", value)
}

// Label emits a bare label definition.
func (e *Emitter) Label(name string) {
	e.w.Label(name)
}

// Local mints and emits nothing; it returns a fresh label name of kind.
func (e *Emitter) Local(kind ir.LabelKind) string {
	return util.NewLabel(int(kind))
}

// Equ emits a symbolic assembler constant.
func (e *Emitter) Equ(name string, value int) {
	e.w.Write("\t.equ\t%s, %d\n", name, value)
}

// Call emits a direct call.
func (e *Emitter) Call(label string) {
	e.w.Write("\tcall\t%s\n", label)
}

// CallReg emits an indirect call through reg.
func (e *Emitter) CallReg(reg string) {
	e.w.Write("\tcall\t*%%%s\n", reg)
}

// Jmp emits an unconditional jump.
func (e *Emitter) Jmp(label string) {
	e.w.Write("\tjmp\t%s\n", label)
}

// JmpIfZero emits a conditional jump taken when reg is zero.
func (e *Emitter) JmpIfZero(reg, label string) {
	e.w.Write("\ttestl\t%%%s, %%%s\n", reg, reg)
	e.w.Write("\tjz\t%s\n", label)
}

// JmpIfNotZero emits a conditional jump taken when reg is non-zero.
func (e *Emitter) JmpIfNotZero(reg, label string) {
	e.w.Write("\ttestl\t%%%s, %%%s\n", reg, reg)
	e.w.Write("\tjnz\t%s\n", label)
}

var condSuffix = map[string]string{
	"gt": "jg", "lt": "jl", "ge": "jge", "le": "jle", "eq": "je", "ne": "jne",
}

// JmpCond emits a conditional jump for the named relation, assuming a
// preceding cmpl has set the flags.
func (e *Emitter) JmpCond(cond, label string) {
	ins, ok := condSuffix[cond]
	if !ok {
		panic(fmt.Sprintf("emit: unknown condition %q", cond))
	}
	e.w.Write("\t%s\t%s\n", ins, label)
}

// Move emits dst := src.
func (e *Emitter) Move(dst, src string) {
	e.w.Write("\tmovl\t%s, %s\n", operand(src), operand(dst))
}

var arithIns = map[string]string{
	"add": "addl", "sub": "subl", "mul": "imull", "div": "idivl",
	"and": "andl", "or": "orl", "xor": "xorl",
}

// Arith emits dst := dst OP src.
func (e *Emitter) Arith(op, dst, src string) {
	ins, ok := arithIns[op]
	if !ok {
		panic(fmt.Sprintf("emit: unknown arithmetic op %q", op))
	}
	e.w.Write("\t%s\t%s, %s\n", ins, operand(src), operand(dst))
}

// Push emits a stack push of reg.
func (e *Emitter) Push(reg string) {
	e.w.Write("\tpushl\t%%%s\n", reg)
}

// Pop emits a stack pop into reg.
func (e *Emitter) Pop(reg string) {
	e.w.Write("\tpopl\t%%%s\n", reg)
}

// operand renders a bare register name as %reg, leaving anything already
// formatted (immediates, memory operands) untouched.
func operand(s string) string {
	if s == "" {
		return s
	}
	for _, r := range scratch {
		if s == r {
			return "%" + s
		}
	}
	switch s {
	case "eax", "esi", "edi", "ebp", "esp":
		return "%" + s
	}
	return s
}

// WithStack reserves n bytes of stack for the duration of fn.
func (e *Emitter) WithStack(n int, fn func()) {
	if n > 0 {
		e.w.Write("\tsubl\t$%d, %%esp\n", n)
	}
	fn()
	if n > 0 {
		e.w.Write("\taddl\t$%d, %%esp\n", n)
	}
}

// WithLocal reserves one local slot for the duration of fn.
func (e *Emitter) WithLocal(fn func(slot ir.Value)) {
	slot := e.frameLocals
	e.frameLocals++
	fn(ir.Value{Kind: ir.ValLocal, Slot: slot, Type: ir.TypeObject})
}

// WithRegister obtains a scratch register not presently cache-resident for
// the duration of fn.
func (e *Emitter) WithRegister(fn func(reg string)) {
	reg := e.evictOldest()
	fn(reg)
}

// CallerSave spills every dirty cached register before fn runs. Per
// spec.md §5, every call site must save caller-saved registers before the
// call; this is that discipline, enforced in one place rather than at
// every call site.
func (e *Emitter) CallerSave(fn func()) {
	saved := make([]string, 0, len(e.cache))
	for reg, ent := range e.cache {
		if ent.dirty {
			e.spill(reg, ent)
		}
		saved = append(saved, reg)
	}
	for _, reg := range saved {
		e.Push(reg)
	}
	fn()
	for i1 := len(saved) - 1; i1 >= 0; i1-- {
		e.Pop(saved[i1])
	}
}

// CacheReg asks the cache to hold slot's value in a register, loading it if
// not already resident. At most one dirty cached register exists at a time
// per spec.md §5; a second dirty request spills the first.
func (e *Emitter) CacheReg(name string, slot ir.Value, dirty bool) ir.Value {
	for reg, ent := range e.cache {
		if ent.name == name {
			if dirty {
				e.markOnlyDirty(reg)
				ent.dirty = true
				e.cache[reg] = ent
			}
			return ir.Value{Kind: ir.ValReg, Reg: reg, Type: slot.Type}
		}
	}

	reg := e.evictOldest()
	e.w.Write("\tmovl\t%s, %%%s\n", slotOperand(slot), reg)
	if dirty {
		e.markOnlyDirty(reg)
	}
	e.cache[reg] = cacheEntry{name: name, slot: slot, dirty: dirty}
	e.touch(reg)
	return ir.Value{Kind: ir.ValReg, Reg: reg, Type: slot.Type}
}

func (e *Emitter) markOnlyDirty(keep string) {
	for reg, ent := range e.cache {
		if reg != keep && ent.dirty {
			e.spill(reg, ent)
			ent.dirty = false
			e.cache[reg] = ent
		}
	}
}

// evictOldest spills (if dirty) and returns the least-recently-used scratch
// register, making it available for a new binding.
func (e *Emitter) evictOldest() string {
	if len(e.lru) == 0 {
		e.lru = append([]string(nil), scratch...)
	}
	reg := e.lru[0]
	e.lru = e.lru[1:]
	if ent, ok := e.cache[reg]; ok {
		if ent.dirty {
			e.spill(reg, ent)
		}
		delete(e.cache, reg)
	}
	return reg
}

func (e *Emitter) touch(reg string) {
	for i1, r := range e.lru {
		if r == reg {
			e.lru = append(e.lru[:i1], e.lru[i1+1:]...)
			break
		}
	}
	e.lru = append(e.lru, reg)
}

func (e *Emitter) spill(reg string, ent cacheEntry) {
	e.w.Write("\tmovl\t%%%s, %s\n", reg, slotOperand(ent.slot))
}

// slotOperand renders a memory-resident Value as an x86 addressing-mode
// operand relative to the frame (locals/args via %ebp) or self (ivars via
// %esi).
func slotOperand(v ir.Value) string {
	switch v.Kind {
	case ir.ValLocal:
		return fmt.Sprintf("-%d(%%ebp)", (v.Slot+1)*4)
	case ir.ValArg:
		return fmt.Sprintf("%d(%%ebp)", 8+v.Slot*4)
	case ir.ValIvar:
		return fmt.Sprintf("%d(%%esi)", v.Slot*4)
	case ir.ValInt:
		return fmt.Sprintf("$%d", v.Int)
	case ir.ValAddr:
		return fmt.Sprintf("$%s", v.Name)
	case ir.ValGlobal:
		return v.Name
	case ir.ValReg:
		return "%" + v.Reg
	default:
		panic(fmt.Sprintf("emit: cannot address value of kind %d", v.Kind))
	}
}

// EvictAll spills every dirty cached register and clears the cache wholesale,
// used at if/while/let boundaries where arm-local state cannot be safely
// reused across branches.
func (e *Emitter) EvictAll() {
	for reg, ent := range e.cache {
		if ent.dirty {
			e.spill(reg, ent)
		}
	}
	e.cache = map[string]cacheEntry{}
	e.lru = append([]string(nil), scratch...)
}

// EvictRegsFor spills and clears only the cache entry bound to name, used to
// force a reload of self after a call to a non-self target.
func (e *Emitter) EvictRegsFor(name string) {
	for reg, ent := range e.cache {
		if ent.name == name {
			if ent.dirty {
				e.spill(reg, ent)
			}
			delete(e.cache, reg)
			e.touch(reg)
		}
	}
}

// LineNo annotates subsequent output with a source position comment.
func (e *Emitter) LineNo(line, col int) {
	if e.debug {
		e.w.Write("\t# line %d:%d\n", line, col)
	}
}

// Include annotates subsequent output with a source file name comment.
func (e *Emitter) Include(file string) {
	if e.debug {
		e.w.Write("\t# file %s\n", file)
	}
}
