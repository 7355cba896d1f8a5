package frontend

import (
	"testing"

	"oolc/src/ir"
)

func TestReadAtoms(t *testing.T) {
	cases := []struct {
		src  string
		typ  ir.NodeType
		data interface{}
	}{
		{"42", ir.NodeInt, int64(42)},
		{"-7", ir.NodeInt, int64(-7)},
		{"3.5", ir.NodeFloat, 3.5},
		{`"hi\n"`, ir.NodeString, "hi\n"},
		{":foo", ir.NodeQuotedSymbol, "foo"},
		{"bar", ir.NodeSymbol, "bar"},
		{"true", ir.NodeTrue, nil},
		{"false", ir.NodeFalse, nil},
		{"nil", ir.NodeNil, nil},
		{"self", ir.NodeSelf, nil},
	}
	for _, tc := range cases {
		n, err := Read("t.vsl", tc.src)
		if err != nil {
			t.Fatalf("Read(%q) error: %s", tc.src, err)
		}
		if n.Typ != tc.typ {
			t.Fatalf("Read(%q).Typ = %v, want %v", tc.src, n.Typ, tc.typ)
		}
		if tc.data != nil && n.Data != tc.data {
			t.Fatalf("Read(%q).Data = %v, want %v", tc.src, n.Data, tc.data)
		}
	}
}

func TestReadListDispatchesHeadKeyword(t *testing.T) {
	n, err := Read("t.vsl", "(add 1 2)")
	if err != nil {
		t.Fatalf("Read error: %s", err)
	}
	if n.Typ != ir.NodeAdd {
		t.Fatalf("head type = %v, want NodeAdd", n.Typ)
	}
	if len(n.Children) != 2 {
		t.Fatalf("len(Children) = %d, want 2", len(n.Children))
	}
	if n.Children[0].Data.(int64) != 1 || n.Children[1].Data.(int64) != 2 {
		t.Fatalf("children data = %v, %v, want 1, 2", n.Children[0].Data, n.Children[1].Data)
	}
}

func TestReadNestedFormAndPosition(t *testing.T) {
	n, err := Read("t.vsl", "(do\n  (class Animal nil))")
	if err != nil {
		t.Fatalf("Read error: %s", err)
	}
	if n.Typ != ir.NodeDo {
		t.Fatalf("root type = %v, want NodeDo", n.Typ)
	}
	if len(n.Children) != 1 || n.Children[0].Typ != ir.NodeClass {
		t.Fatalf("do body = %v, want one NodeClass child", n.Children)
	}
	class := n.Children[0]
	if class.Line != 2 {
		t.Fatalf("class.Line = %d, want 2 (second source line)", class.Line)
	}
	if class.Children[0].Data.(string) != "Animal" {
		t.Fatalf("class name = %v, want Animal", class.Children[0].Data)
	}
	if class.Children[1].Typ != ir.NodeNil {
		t.Fatalf("superclass operand = %v, want NodeNil", class.Children[1].Typ)
	}
}

func TestReadComment(t *testing.T) {
	n, err := Read("t.vsl", "; a leading comment\n42 ; trailing\n")
	if err != nil {
		t.Fatalf("Read error: %s", err)
	}
	if n.Typ != ir.NodeInt || n.Data.(int64) != 42 {
		t.Fatalf("Read() = %v, want int(42)", n)
	}
}

func TestReadErrors(t *testing.T) {
	cases := []string{
		"",                 // empty source
		"()",               // list has no head keyword
		"(add 1 2",         // unterminated form
		"(bogus-form 1 2)", // unknown form head
		"42 43",            // trailing input after top-level expression
		`"unterminated`,    // unterminated string literal
	}
	for _, src := range cases {
		if _, err := Read("t.vsl", src); err == nil {
			t.Fatalf("Read(%q) succeeded, want an error", src)
		}
	}
}
