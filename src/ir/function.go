// function.go defines FunctionRecord, the artifact defun/defm/lambda/proc
// lowering produces: parameters, defaults, rest-flag, body, and the
// enclosing scope snapshot a closure captures.

package ir

// Param is one formal parameter: its name and, if any, the expression
// lowered to compute its default value when the caller omits it.
type Param struct {
	Name    string
	Default *Node
}

// FunctionRecord is the definition-time artifact for defun, defm, lambda,
// and proc forms. It is created when the defining form is lowered and
// retained until the driver's drain pass emits its body.
type FunctionRecord struct {
	Name    string // Source-level name, uncleaned.
	Label   string // Cleaned, assembler-safe label: __func_<name>, __method_<Class>_<name>, or a generated lambda label.
	Params  []Param
	HasRest bool // Trailing splat argument.
	MinArgs int
	MaxArgs int // Meaningless if HasRest.

	Body      *Node
	Enclosing []*Scope // Snapshot of the scope chain at definition time, innermost first.

	IsMethod   bool // defm, lambda and proc (self, __closure__ prefix), vs. defun.
	ClassName  string
	IsProc     bool // proc bodies support non-local preturn; lambda bodies do not.

	// VarFreq carries the rewriter's per-variable usage-frequency metadata.
	// Nothing reads it: the register cache evicts in least-recently-used
	// order without consulting it.
	VarFreq map[string]int

	Emitted bool // Set once the drain pass has emitted this record's body.
}

// Arity returns the record's minimum and maximum accepted argument counts,
// the two values the runtime arity guard compares against. For a rest
// parameter, max is -1 (unbounded).
func (fr *FunctionRecord) Arity() (min, max int) {
	if fr.HasRest {
		return fr.MinArgs, -1
	}
	return fr.MinArgs, fr.MaxArgs
}
