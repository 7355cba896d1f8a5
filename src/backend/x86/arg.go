// arg.go implements get_arg (spec.md §4.1): mapping a raw leaf node to a
// Value, resolving identifiers through the scope chain, interning string
// and symbol literals, and promoting unresolved write targets to globals.

package x86

import (
	"oolc/src/ir"
)

// getArg maps leaf n to a Value. save marks the resolution as a write
// target: an unresolved name promotes to a new global constant rather than
// becoming a possible_callm, and a resolved local/argument is cached dirty.
func getArg(c *Ctx, n *ir.Node, save bool) (ir.Value, error) {
	switch n.Typ {
	case ir.NodeInt:
		return ir.Imm(n.Data.(int64)), nil

	case ir.NodeFloat:
		// Float literals are truncated to integers here — an open question
		// in spec.md §9 flags this as almost certainly a placeholder; this
		// lowering preserves that exact (surprising) behaviour rather than
		// guessing a fuller numeric tower.
		return ir.Imm(int64(n.Data.(float64))), nil

	case ir.NodeString:
		label := c.Drv.InternString(n.Data.(string))
		return ir.Addr(label), nil

	case ir.NodeQuotedSymbol:
		global := c.internSymbol(n.Data.(string))
		return ir.Value{Kind: ir.ValGlobal, Name: global, Type: ir.TypeObject}, nil

	case ir.NodeTrue:
		return getArgConstant(c, "true"), nil
	case ir.NodeFalse:
		return getArgConstant(c, "false"), nil
	case ir.NodeNil:
		return getArgConstant(c, "nil"), nil

	case ir.NodeSelf:
		return ir.Value{Kind: ir.ValReg, Reg: c.Em.SelfReg(), Type: ir.TypeObject}, nil

	case ir.NodeSymbol:
		name := n.Data.(string)
		if v, ok := ir.Resolve(c.Chain, name); ok {
			switch v.Kind {
			case ir.ValLocal, ir.ValArg, ir.ValIvar:
				return c.Em.CacheReg(name, v, save), nil
			default:
				return v, nil
			}
		}
		if save {
			g := ir.Global(c.Chain)
			g.Define(name)
			c.Drv.AddGlobal(name)
			return ir.Value{Kind: ir.ValGlobal, Name: name, Type: ir.TypeObject}, nil
		}
		return ir.PossibleCallm(name), nil

	default:
		return ir.Value{}, ir.NewCompileError(n, scopeName(c), "unknown leaf in argument resolution: %s", n.Name())
	}
}

// getArgConstant resolves one of the well-known global constants
// true/false/nil via the global-constant registry, registering it on first
// use the same way any other bare global name is registered.
func getArgConstant(c *Ctx, name string) ir.Value {
	g := ir.Global(c.Chain)
	v := g.Define(name)
	c.Drv.AddGlobal(name)
	return v
}

// scopeName renders the innermost scope kind for error messages.
func scopeName(c *Ctx) string {
	if c.Chain.Size() == 0 {
		return "<no scope>"
	}
	s, _ := c.Chain.Peek().(*ir.Scope)
	if s == nil {
		return "<malformed scope>"
	}
	switch s.Kind {
	case ir.ScopeGlobal:
		return "global"
	case ir.ScopeClass:
		return "class " + s.Class.Name
	case ir.ScopeFunction:
		return "function " + s.Func.Name
	case ir.ScopeLocalLet:
		return "let"
	case ir.ScopeSexp:
		return "sexp"
	default:
		return "<unknown scope>"
	}
}
