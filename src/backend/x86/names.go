// names.go implements the cleaned-name scheme spec.md §4.2 requires:
// operators and punctuation in a source identifier are rewritten so the
// result is safe to use as an assembler label.

package x86

import (
	"strings"

	"oolc/src/backend/xtoa"
)

var punctuationNames = map[byte]string{
	'?':  "__Q",
	'!':  "__B",
	'=':  "__eq",
	'+':  "__plus",
	'-':  "__minus",
	'*':  "__star",
	'/':  "__slash",
	'<':  "__lt",
	'>':  "__gt",
	'[':  "__NDX",
	']':  "",
	'@':  "__at",
	':':  "__cln",
}

// cleanName rewrites name so it is safe as an assembler label: known
// operator punctuation maps to a fixed mnemonic (?  -> __Q, == -> __eq,
// [] -> __NDX, ...), anything else non-alphanumeric becomes __<hex> of its
// byte value.
func cleanName(name string) string {
	var b strings.Builder
	for i1 := 0; i1 < len(name); i1++ {
		c := name[i1]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			b.WriteByte(c)
		case c == '=' && i1+1 < len(name) && name[i1+1] == '=':
			b.WriteString("__eq")
			i1++
		default:
			if rep, ok := punctuationNames[c]; ok {
				b.WriteString(rep)
			} else {
				b.WriteString("__")
				b.WriteString(xtoa.ItoAHex(int(c)))
			}
		}
	}
	if b.Len() == 0 {
		return "__empty"
	}
	return b.String()
}

// methodLabel returns the internal label a method's body is emitted under.
func methodLabel(class, method string) string {
	return "__method_" + class + "_" + cleanName(method)
}

// vtableOffsetConst returns the symbolic constant name for a method's
// globally assigned vtable offset.
func vtableOffsetConst(method string) string {
	return "__voff__" + cleanName(method)
}

// thunkLabel returns the label of a method's method_missing thunk.
func thunkLabel(method string) string {
	return "__vtable_missing_thunk_" + cleanName(method)
}
