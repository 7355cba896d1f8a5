// class.go implements class/module lowering (spec.md §4.4): resolving or
// creating the class's scope, computing its inherited instance size,
// emitting __new_class_object, writing the instance-size/name slots, and
// lowering the body in class scope.
//
// module is aliased to class, per spec.md §9's explicit open question: the
// semantics of an included module's constant lookup are unspecified, so
// this keeps the simplest faithful reading — a module is just a class whose
// instances are never constructed — rather than guessing richer behaviour.

package x86

import (
	"oolc/src/ir"
)

// classObjectSize is the fixed header width of a class object itself:
// class pointer, instance_size, name, superclass pointer (spec.md §6).
const classObjectSize = 4

// compileClass lowers (:class, Name, Super, body...).
func compileClass(c *Ctx, n *ir.Node) (ir.Value, error) {
	name := n.Children[0].Data.(string)
	superName := superclassName(n.Children[1])
	body := n.Children[2:]

	g := ir.Global(c.Chain)
	ci, exists := g.Classes[name]
	if !exists {
		ci = &ir.ClassInfo{
			Name:      name,
			Super:     superName,
			Ivars:     map[string]int{},
			VTable:    map[string]*ir.FunctionRecord{},
			IvarConst: map[string]ir.Value{},
		}
		if sup, ok := g.Classes[superName]; ok && name != "Class" && name != "Kernel" {
			for _, iv := range sup.IvarSeq {
				ci.Ivars[iv] = sup.Ivars[iv]
				ci.IvarSeq = append(ci.IvarSeq, iv)
			}
		}
		g.Classes[name] = ci
	}
	c.Drv.AddGlobal(name)
	if superName != "" {
		c.Drv.AddGlobal(superName)
	}

	instSize := len(ci.IvarSeq)

	var superVal ir.Value
	if superName != "" {
		superVal = ir.Value{Kind: ir.ValGlobal, Name: superName, Type: ir.TypeObject}
	} else {
		superVal = getArgConstant(c, "nil")
	}

	// __new_class_object(klass_size, Super, ssize): cdecl pushes right to
	// left, so ssize is pushed first and klass_size last. Each push adjusts
	// esp on its own; do not also wrap the sequence in WithStack, or the
	// reservation and the pushes double-account the same bytes.
	c.Em.CallerSave(func() {
		loadIntoResult(c, ir.Imm(int64(instSize)))
		c.Em.Push(c.Em.ResultReg())
		loadIntoResult(c, superVal)
		c.Em.Push(c.Em.ResultReg())
		loadIntoResult(c, ir.Imm(int64(classObjectSize)))
		c.Em.Push(c.Em.ResultReg())
		c.Em.Call("__new_class_object")
		cleanupArgs(c, 3)
	})
	c.Em.Move(name, c.Em.ResultReg())

	nameLabel := c.Drv.InternString(name)
	c.Em.WithRegister(func(reg string) {
		// name's global slot was just written above; read its content (the
		// fresh class object pointer), not its address.
		c.Em.Move(reg, name)
		c.Em.Move(indirectOperand(reg, 1*4), "$"+itoa(int64(instSize)))
		c.Em.Move(indirectOperand(reg, 2*4), "$"+nameLabel)
	})

	c.Chain.Push(ir.NewClassScope(ci))
	_, err := compileSeq(c, body)
	c.Chain.Pop()
	if err != nil {
		return ir.Value{}, err
	}
	return ir.Addr(name), nil
}

// superclassName reads a class form's superclass operand, which is either
// a bare symbol or a nil leaf for a root class (Class, Kernel).
func superclassName(n *ir.Node) string {
	if n == nil || n.Typ != ir.NodeSymbol {
		return ""
	}
	return n.Data.(string)
}
