package ir

import "testing"

// TestVTableOffsetStability checks the property driver.go documents: offset
// assignment is purely a function of first-encounter order, is idempotent
// on repeat lookups of the same name, and never collides across names.
func TestVTableOffsetStability(t *testing.T) {
	d := NewDriver()

	speak := d.VTableOffset("speak")
	eat := d.VTableOffset("eat")
	if speak != 0 || eat != 1 {
		t.Fatalf("first-encounter offsets = %d, %d, want 0, 1", speak, eat)
	}

	if got := d.VTableOffset("speak"); got != speak {
		t.Fatalf("repeat lookup of speak = %d, want %d", got, speak)
	}

	sleep := d.VTableOffset("sleep")
	if sleep != 2 {
		t.Fatalf("sleep offset = %d, want 2", sleep)
	}

	if d.VTableOffset("eat") != eat {
		t.Fatalf("eat offset changed after a later name was assigned")
	}

	if size := d.VTableSize(); size != 3 {
		t.Fatalf("VTableSize() = %d, want 3", size)
	}

	want := []string{"speak", "eat", "sleep"}
	got := d.VTableNames()
	if len(got) != len(want) {
		t.Fatalf("VTableNames() = %v, want %v", got, want)
	}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("VTableNames()[%d] = %q, want %q", i, got[i], name)
		}
	}
}

// TestInternStringDedup checks that identical literals share a label and
// distinct literals never collide, in first-insertion order.
func TestInternStringDedup(t *testing.T) {
	d := NewDriver()

	a1 := d.InternString("hello")
	b := d.InternString("world")
	a2 := d.InternString("hello")

	if a1 != a2 {
		t.Fatalf("same literal interned twice got distinct labels %q, %q", a1, a2)
	}
	if a1 == b {
		t.Fatalf("distinct literals collided on label %q", a1)
	}

	strs := d.Strings()
	if len(strs) != 2 {
		t.Fatalf("Strings() returned %d entries, want 2", len(strs))
	}
	if strs[0].Value != "hello" || strs[0].Label != a1 {
		t.Fatalf("Strings()[0] = %+v, want Label=%s Value=hello", strs[0], a1)
	}
	if strs[1].Value != "world" || strs[1].Label != b {
		t.Fatalf("Strings()[1] = %+v, want Label=%s Value=world", strs[1], b)
	}
}

// TestAddGlobalDedup checks that AddGlobal is idempotent and preserves
// insertion order.
func TestAddGlobalDedup(t *testing.T) {
	d := NewDriver()
	d.AddGlobal("Animal")
	d.AddGlobal("Kernel")
	d.AddGlobal("Animal")

	want := []string{"Animal", "Kernel"}
	got := d.Globals()
	if len(got) != len(want) {
		t.Fatalf("Globals() = %v, want %v", got, want)
	}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("Globals()[%d] = %q, want %q", i, got[i], name)
		}
	}
}

// TestDequeueOrderAndEmittedSkip checks that Dequeue drains in FIFO order,
// that records enqueued mid-drain are picked up on a later call, and that a
// record already marked Emitted is skipped rather than returned twice.
func TestDequeueOrderAndEmittedSkip(t *testing.T) {
	d := NewDriver()
	first := &FunctionRecord{Name: "first"}
	second := &FunctionRecord{Name: "second"}
	d.Enqueue(first)
	d.Enqueue(second)

	got := d.Dequeue()
	if got != first {
		t.Fatalf("Dequeue() = %v, want first", got)
	}
	first.Emitted = true

	third := &FunctionRecord{Name: "third"}
	d.Enqueue(third)

	got = d.Dequeue()
	if got != second {
		t.Fatalf("Dequeue() = %v, want second", got)
	}

	got = d.Dequeue()
	if got != third {
		t.Fatalf("Dequeue() = %v, want third", got)
	}

	if got := d.Dequeue(); got != nil {
		t.Fatalf("Dequeue() on an empty queue = %v, want nil", got)
	}
}

// TestNextLabelMonotonic checks NextLabel hands out a fresh, increasing
// suffix on every call.
func TestNextLabelMonotonic(t *testing.T) {
	d := NewDriver()
	seen := map[int]bool{}
	prev := -1
	for i := 0; i < 5; i++ {
		n := d.NextLabel()
		if seen[n] {
			t.Fatalf("NextLabel() returned %d twice", n)
		}
		if n <= prev {
			t.Fatalf("NextLabel() = %d, not greater than previous %d", n, prev)
		}
		seen[n] = true
		prev = n
	}
}
