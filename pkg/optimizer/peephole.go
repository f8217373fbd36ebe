package optimizer

import (
	"strconv"

	"github.com/xplshn/tacc/pkg/ir"
)

// Peephole applies identity and strength-reduction rules one instruction at a time and
// collapses `a = b; c = a` into `c = b` when the temporary a is not read again.
type Peephole struct {
	SymbolicOnly bool
}

func (Peephole) Name() string { return "peephole" }

func (p Peephole) Apply(prog *ir.Program) *ir.Program {
	lastRead := make(map[string]int)
	for i, in := range prog.Instrs {
		for _, u := range in.Uses() {
			lastRead[u] = i
		}
	}

	consts := newConstants(p.SymbolicOnly)
	out := make([]ir.Instruction, 0, prog.Len())
	for i := 0; i < len(prog.Instrs); i++ {
		in := prog.Instrs[i]

		if in.Op == ir.OpAssign && in.Arg1 == in.Result {
			continue
		}
		if in.Op == ir.OpAssign && ir.IsTemp(in.Result) && i+1 < len(prog.Instrs) {
			next := prog.Instrs[i+1]
			if next.Op == ir.OpAssign && next.Arg1 == in.Result && lastRead[in.Result] <= i+1 {
				in = ir.Assign(in.Arg1, next.Result)
				i++
			}
		}
		if in.Op.IsBinary() {
			in = p.simplify(in, consts)
		}

		consts.observe(in)
		out = append(out, in)
	}
	return prog.Derive(out)
}

// simplify applies the first matching rule; a and b are the operands with tracked constants substituted
func (p Peephole) simplify(in ir.Instruction, consts *constants) ir.Instruction {
	a, b := consts.value(in.Arg1), consts.value(in.Arg2)
	switch in.Op {
	case ir.OpAdd:
		if b == "0" {
			return ir.Assign(in.Arg1, in.Result)
		}
		if a == "0" {
			return ir.Assign(in.Arg2, in.Result)
		}
	case ir.OpMul:
		if b == "1" {
			return ir.Assign(in.Arg1, in.Result)
		}
		if a == "1" {
			return ir.Assign(in.Arg2, in.Result)
		}
		if a == "0" || b == "0" {
			return ir.Assign("0", in.Result)
		}
		if k, ok := ir.PowerOfTwo(b); ok {
			return ir.Binary(ir.OpShl, in.Arg1, strconv.Itoa(k), in.Result)
		}
		if k, ok := ir.PowerOfTwo(a); ok {
			return ir.Binary(ir.OpShl, in.Arg2, strconv.Itoa(k), in.Result)
		}
	case ir.OpSub:
		if b == "0" {
			return ir.Assign(in.Arg1, in.Result)
		}
	case ir.OpDiv:
		if b == "1" {
			return ir.Assign(in.Arg1, in.Result)
		}
	}
	return in
}
