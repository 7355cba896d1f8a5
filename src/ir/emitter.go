// emitter.go declares the Emitter contract spec.md §6 hands the core: a
// thin sink for section switches, block forms, directives, instructions,
// stack-window helpers, and the register cache. The core only calls
// through this interface; backend/emit supplies the x86 implementation and
// ir/llvm supplies the alternate LLVM-IR implementation.

package ir

// Section identifies one of the three output sections the core ever
// switches into.
type Section int

const (
	SectionText Section = iota
	SectionRodata
	SectionBSS
)

// LabelKind selects which control-flow label shape Local should mint.
type LabelKind int

const (
	LabelIf LabelKind = iota
	LabelIfElse
	LabelIfEnd
	LabelIfElseEnd
	LabelWhileHead
	LabelWhileEnd
	LabelAndEnd
	LabelOrEnd
	LabelCaseNext
	LabelCaseEnd
	LabelLocal
)

// Emitter is the assembly sink the core's lowering routines drive. Every
// method call is synchronous: the core is single-threaded, so the emitter
// never needs to be safe for concurrent use from multiple lowering calls
// (its own ambient output plumbing may still be concurrent underneath).
type Emitter interface {
	// Section switches the current output section.
	Section(s Section)

	// BeginMain/EndMain bracket the program entrypoint, emitting whatever
	// prologue/epilogue the ABI requires.
	BeginMain()
	EndMain()

	// BeginFunc/EndFunc bracket a function or method body under label,
	// reserving frameSize 4-byte local slots of stack space.
	BeginFunc(label string, frameSize int)
	EndFunc()

	// Long emits a 32-bit literal into the current section.
	Long(value int64)
	// LongLabel emits a 32-bit pointer to label into the current section,
	// used to build vtables and other pointer tables.
	LongLabel(label string)
	// StringLit emits a NUL-terminated byte string under label into rodata.
	StringLit(label, value string)
	// Label emits a bare label definition.
	Label(name string)
	// Local mints a fresh, unique label name of the given kind without
	// emitting it; Label places it.
	Local(kind LabelKind) string
	// Equ emits a `.equ name, value` symbolic constant.
	Equ(name string, value int)

	// Call emits a direct call to label.
	Call(label string)
	// CallReg emits an indirect call through the address held in reg.
	CallReg(reg string)
	// Jmp emits an unconditional jump to label.
	Jmp(label string)
	// JmpIfZero/JmpIfNotZero emit a conditional jump testing reg against zero.
	JmpIfZero(reg, label string)
	JmpIfNotZero(reg, label string)
	// JmpCond emits a conditional jump for one of "gt","lt","ge","le","eq","ne".
	JmpCond(cond, label string)

	// Move emits dst := src between two registers, or a register and an
	// immediate/memory operand rendered as src.
	Move(dst, src string)
	// Arith emits dst := dst OP src for op in "add","sub","mul","div",
	// "and","or","xor".
	Arith(op, dst, src string)
	// Push/Pop emit a stack push/pop of reg.
	Push(reg string)
	Pop(reg string)

	// WithStack reserves n bytes of stack window for the duration of fn,
	// releasing it when fn returns normally (not if fn panics).
	WithStack(n int, fn func())
	// WithLocal reserves one local slot for the duration of fn and returns
	// the Value addressing it.
	WithLocal(fn func(slot Value))
	// WithRegister obtains a scratch register for the duration of fn.
	WithRegister(fn func(reg string))
	// CallerSave spills every caller-saved register the cache currently
	// holds dirty before fn runs, and is responsible for the reload
	// discipline the call convention requires around every call site.
	CallerSave(fn func())

	// CacheReg asks the emitter to cache slot's value in a register.
	// dirty marks the register for spill-on-evict because slot is the
	// target of a store, not only a read. The returned Value is always of
	// kind ValReg.
	CacheReg(name string, slot Value, dirty bool) Value
	// EvictAll spills every dirty cached register and clears the cache,
	// used wholesale at if/while/let boundaries.
	EvictAll()
	// EvictRegsFor spills and clears only the cache entries bound to name,
	// used to force a reload of self after a call to a non-self target.
	EvictRegsFor(name string)

	// LineNo annotates subsequent output with a source position, a no-op
	// unless debug annotation is enabled.
	LineNo(line, col int)
	// Include annotates subsequent output with a source file name.
	Include(file string)

	// ResultReg returns the architecture's fixed result register name (eax).
	ResultReg() string
	// SelfReg returns the architecture's fixed receiver register name (esi).
	SelfReg() string
}
