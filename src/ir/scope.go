// scope.go implements the lexical scope chain: a stack of Scope frames
// walked inward-to-outward on every name lookup. Grounded on the teacher's
// ir/validate.go GetEntry/util.Stack walk, but the lookup itself resolves
// dynamically-typed Values rather than statically-typed Symbol entries, and
// an unresolved name is never an error here — it becomes possible_callm.

package ir

import "oolc/src/util"

// ScopeKind selects which of Scope's variant fields are meaningful.
type ScopeKind int

const (
	// ScopeGlobal owns top-level constants, global functions, the class registry.
	ScopeGlobal ScopeKind = iota
	// ScopeClass owns a class's name, superclass, ivar map, vtable, ivar constants.
	ScopeClass
	// ScopeFunction owns a function/method's formal argument positions.
	ScopeFunction
	// ScopeLocalLet owns a flat block of let-bound locals.
	ScopeLocalLet
	// ScopeSexp is a transparent pass-through scope used to suppress rewrites.
	ScopeSexp
)

// ClassInfo is the per-class data a ScopeClass frame owns.
type ClassInfo struct {
	Name       string
	Super      string
	Ivars      map[string]int  // ivar name -> slot, source order, inherited base included.
	IvarSeq    []string        // ivar names in assignment order, for slot numbering.
	VTable     map[string]*FunctionRecord // method name -> record, this class's own definitions only.
	IvarConst  map[string]Value // class-level constants declared via @@-style ivar-of-class forms.
}

// Scope is one frame of the lexical chain. Only the fields relevant to Kind
// are populated; this mirrors ir.Node's single-struct-many-leaf-kinds shape.
type Scope struct {
	Kind ScopeKind

	// ScopeGlobal
	Constants map[string]Value
	Functions map[string]*FunctionRecord
	Classes   map[string]*ClassInfo

	// ScopeClass
	Class *ClassInfo

	// ScopeFunction
	Func *FunctionRecord

	// ScopeLocalLet
	Locals    map[string]int
	NextLocal int
	Base      int // starting slot index, continuing any enclosing let scope's count.
}

// NewGlobalScope returns a freshly initialised global scope frame.
func NewGlobalScope() *Scope {
	return &Scope{
		Kind:      ScopeGlobal,
		Constants: map[string]Value{},
		Functions: map[string]*FunctionRecord{},
		Classes:   map[string]*ClassInfo{},
	}
}

// NewClassScope returns a class scope frame for the named class.
func NewClassScope(ci *ClassInfo) *Scope {
	return &Scope{Kind: ScopeClass, Class: ci}
}

// NewFunctionScope returns a function scope frame for fr.
func NewFunctionScope(fr *FunctionRecord) *Scope {
	return &Scope{Kind: ScopeFunction, Func: fr}
}

// NewLetScope returns an empty local-let scope frame whose slot numbering
// starts at base, continuing the count of any enclosing let scope within
// the same function rather than colliding with it.
func NewLetScope(base int) *Scope {
	return &Scope{Kind: ScopeLocalLet, Locals: map[string]int{}, Base: base}
}

// NextLocalBase returns the slot a newly entered let scope should begin
// numbering at: the sum of slots already claimed by any enclosing let
// scopes within the same function. Nested lets are live simultaneously (the
// inner body executes while the outer let's bindings are still in scope),
// so their slots must not overlap. Sibling lets that never nest start at the
// same base: the earlier one has already been popped off the chain when the
// later one is entered, so they reuse the same slot range.
func NextLocalBase(chain *util.Stack) int {
	base := 0
	for i1 := 1; i1 <= chain.Size(); i1++ {
		s, ok := chain.Get(i1).(*Scope)
		if !ok {
			continue
		}
		if s.Kind == ScopeLocalLet {
			base += s.NextLocal
		}
		if s.Kind == ScopeFunction {
			break
		}
	}
	return base
}

// NewSexpScope returns a transparent pass-through scope frame.
func NewSexpScope() *Scope {
	return &Scope{Kind: ScopeSexp}
}

// Define binds name within this scope frame, returning the Value a later
// lookup of name in this frame will produce.
func (s *Scope) Define(name string) Value {
	switch s.Kind {
	case ScopeGlobal:
		if _, ok := s.Constants[name]; !ok {
			s.Constants[name] = Value{Kind: ValGlobal, Name: name, Type: TypeObject}
		}
		return s.Constants[name]
	case ScopeFunction:
		for i1, p := range s.Func.Params {
			if p.Name == name {
				return Value{Kind: ValArg, Slot: i1, Type: TypeObject}
			}
		}
	case ScopeLocalLet:
		if slot, ok := s.Locals[name]; ok {
			return Value{Kind: ValLocal, Slot: s.Base + slot, Type: TypeObject}
		}
		slot := s.NextLocal
		s.Locals[name] = slot
		s.NextLocal++
		return Value{Kind: ValLocal, Slot: s.Base + slot, Type: TypeObject}
	case ScopeClass:
		if slot, ok := s.Class.Ivars[name]; ok {
			return Value{Kind: ValIvar, Slot: slot, Type: TypeObject}
		}
		slot := len(s.Class.IvarSeq)
		s.Class.Ivars[name] = slot
		s.Class.IvarSeq = append(s.Class.IvarSeq, name)
		return Value{Kind: ValIvar, Slot: slot, Type: TypeObject}
	}
	return Value{}
}

// lookupLocal attempts to resolve name within this single frame, without
// walking outward. ScopeSexp never owns anything; it is transparent.
func (s *Scope) lookupLocal(name string) (Value, bool) {
	switch s.Kind {
	case ScopeGlobal:
		if v, ok := s.Constants[name]; ok {
			return v, true
		}
		if fr, ok := s.Functions[name]; ok {
			return Value{Kind: ValAddr, Name: fr.Label, Type: TypeObject}, true
		}
		if _, ok := s.Classes[name]; ok {
			return Value{Kind: ValGlobal, Name: name, Type: TypeObject}, true
		}
	case ScopeClass:
		if slot, ok := s.Class.Ivars[name]; ok {
			return Value{Kind: ValIvar, Slot: slot, Type: TypeObject}, true
		}
		if v, ok := s.Class.IvarConst[name]; ok {
			return v, true
		}
	case ScopeFunction:
		for i1, p := range s.Func.Params {
			if p.Name == name {
				return Value{Kind: ValArg, Slot: i1, Type: TypeObject}, true
			}
		}
	case ScopeLocalLet:
		if slot, ok := s.Locals[name]; ok {
			return Value{Kind: ValLocal, Slot: s.Base + slot, Type: TypeObject}, true
		}
	case ScopeSexp:
		// Transparent: nothing owned here.
	}
	return Value{}, false
}

// Resolve walks the scope chain inward-to-outward (top of the stack first)
// looking for name. The first owning frame wins. If no frame owns the name
// it is not an error here: callers (get_arg) turn the miss into
// possible_callm on read, or a promoted global constant on write.
func Resolve(chain *util.Stack, name string) (Value, bool) {
	for i1 := 1; i1 <= chain.Size(); i1++ {
		e := chain.Get(i1)
		if e == nil {
			continue
		}
		if s, ok := e.(*Scope); ok {
			if v, found := s.lookupLocal(name); found {
				return v, true
			}
		}
	}
	return Value{}, false
}

// Global returns the ScopeGlobal frame at the bottom of chain, which every
// chain must carry, per the driver's invariant that the global scope is
// pushed once and never popped.
func Global(chain *util.Stack) *Scope {
	e := chain.Get(chain.Size())
	s, _ := e.(*Scope)
	return s
}

// CurrentClass walks outward from the top of chain looking for the nearest
// enclosing class scope, used by defm/super/ivar lowering.
func CurrentClass(chain *util.Stack) *ClassInfo {
	for i1 := 1; i1 <= chain.Size(); i1++ {
		if s, ok := chain.Get(i1).(*Scope); ok && s.Kind == ScopeClass {
			return s.Class
		}
	}
	return nil
}

// CurrentFunction walks outward from the top of chain looking for the
// nearest enclosing function scope, used by preturn/arity lowering.
func CurrentFunction(chain *util.Stack) *FunctionRecord {
	for i1 := 1; i1 <= chain.Size(); i1++ {
		if s, ok := chain.Get(i1).(*Scope); ok && s.Kind == ScopeFunction {
			return s.Func
		}
	}
	return nil
}
