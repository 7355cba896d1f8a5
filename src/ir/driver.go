// driver.go defines Driver, the top-level owner of the compilation's
// shared, append-only state: the vtable offset map, the string-constant
// pool, the global-constant set, and the function-definition queue.
//
// Grounded on the accumulate-then-flush shape of the teacher's lir.Module/
// lir.Global/lir.String (one id-keyed collection each, flushed once at the
// end), but deliberately NOT mutex-guarded: spec.md §5 states the core is
// single-threaded and synchronous, so the locking the teacher applies to
// its own module/validate/backend layer is dropped here.

package ir

import "sort"

// Driver owns everything the whole program's lowering accumulates and the
// top-level driver flushes once at the end of compilation.
type Driver struct {
	vtableOffsets map[string]int // method name -> globally unique slot.
	vtableOrder   []string       // first-encounter order, for deterministic dumps.

	stringPool  map[string]string // literal bytes -> interned label.
	stringOrder []string          // insertion order, for deterministic emission.

	globals map[string]bool // bare names assigned at top level or used as class names.
	globalOrder []string

	queue []*FunctionRecord // function/method bodies awaiting the drain pass.

	labelSeq int // counter backing fresh lambda/proc labels.
}

// NewDriver returns an empty Driver ready to receive a compilation's state.
func NewDriver() *Driver {
	return &Driver{
		vtableOffsets: map[string]int{},
		stringPool:    map[string]string{},
		globals:       map[string]bool{},
	}
}

// VTableOffset returns the globally unique slot for method name, assigning
// the next free slot (first-encounter order) if this is the first time name
// has been seen. This is the core of the "VTable offset stability" testable
// property: offset assignment is purely a function of first-encounter order
// in the pre-pass's depth-first traversal.
func (d *Driver) VTableOffset(name string) int {
	if off, ok := d.vtableOffsets[name]; ok {
		return off
	}
	off := len(d.vtableOrder)
	d.vtableOffsets[name] = off
	d.vtableOrder = append(d.vtableOrder, name)
	return off
}

// VTableSize returns the number of distinct method names assigned an offset
// so far; it is also the required width of every class's vtable array.
func (d *Driver) VTableSize() int {
	return len(d.vtableOrder)
}

// VTableNames returns method names in first-encounter (offset) order.
func (d *Driver) VTableNames() []string {
	out := make([]string, len(d.vtableOrder))
	copy(out, d.vtableOrder)
	return out
}

// InternString returns the label of the pool slot holding s, interning a
// fresh one on first occurrence. Identical byte-string literals always
// share the same label; distinct literals never collide.
func (d *Driver) InternString(s string) string {
	if label, ok := d.stringPool[s]; ok {
		return label
	}
	label := d.newStringLabel(len(d.stringOrder))
	d.stringPool[s] = label
	d.stringOrder = append(d.stringOrder, s)
	return label
}

func (d *Driver) newStringLabel(n int) string {
	return "__str_" + itoaBase36(n)
}

// Strings returns the interned literals and their labels in insertion order.
func (d *Driver) Strings() []struct {
	Label string
	Value string
} {
	out := make([]struct {
		Label string
		Value string
	}, len(d.stringOrder))
	for i1, s := range d.stringOrder {
		out[i1].Label = d.stringPool[s]
		out[i1].Value = s
	}
	return out
}

// AddGlobal records name in the global-constant set if it is not already
// present. Every bare name assigned at the top level, or used as a class
// name, must pass through here exactly once.
func (d *Driver) AddGlobal(name string) {
	if !d.globals[name] {
		d.globals[name] = true
		d.globalOrder = append(d.globalOrder, name)
	}
}

// Globals returns the recorded global-constant names in insertion order
// (globalOrder), unsorted, so BSS emission is deterministic regardless of
// map iteration order.
func (d *Driver) Globals() []string {
	out := make([]string, len(d.globalOrder))
	copy(out, d.globalOrder)
	return out
}

// sortedGlobalsForDump returns globals in lexical order. Nothing in the
// repository calls it.
func (d *Driver) sortedGlobalsForDump() []string {
	out := d.Globals()
	sort.Strings(out)
	return out
}

// Enqueue adds fr to the function-definition queue. Definitions added during
// the drain pass itself (closures created while lowering an already-queued
// body) re-enter the same queue and are picked up on a later iteration.
func (d *Driver) Enqueue(fr *FunctionRecord) {
	d.queue = append(d.queue, fr)
}

// Dequeue pops and returns the next unemitted function record, or nil if the
// queue is empty. The drain loop must call this repeatedly until it returns
// nil, re-checking after every iteration since Enqueue may grow the queue
// mid-drain.
func (d *Driver) Dequeue() *FunctionRecord {
	for len(d.queue) > 0 {
		fr := d.queue[0]
		d.queue = d.queue[1:]
		if !fr.Emitted {
			return fr
		}
	}
	return nil
}

// NextLabel returns a fresh, globally unique numeric suffix, used for
// lambda/proc labels that have no source name to clean.
func (d *Driver) NextLabel() int {
	n := d.labelSeq
	d.labelSeq++
	return n
}

const base36Digits = "0123456789abcdefghijklmnopqrstuvwxyz"

// itoaBase36 renders n in base 36, used to keep generated string-pool
// labels short.
func itoaBase36(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [16]byte
	i1 := len(buf)
	for n > 0 {
		i1--
		buf[i1] = base36Digits[n%36]
		n /= 36
	}
	return string(buf[i1:])
}
