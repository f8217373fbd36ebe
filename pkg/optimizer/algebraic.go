package optimizer

import "github.com/xplshn/tacc/pkg/ir"

// Algebraic rewrites x - x to 0 and x / x to 1. The latter does not check x for zero;
// literal operands are left to ConstFold.
type Algebraic struct{}

func (Algebraic) Name() string { return "algebraic" }

func (Algebraic) Apply(prog *ir.Program) *ir.Program {
	out := make([]ir.Instruction, 0, prog.Len())
	for _, in := range prog.Instrs {
		if in.Arg1 == in.Arg2 && in.Arg1 != "" && !ir.IsLiteral(in.Arg1) {
			switch in.Op {
			case ir.OpSub:
				in = ir.Assign("0", in.Result)
			case ir.OpDiv:
				in = ir.Assign("1", in.Result)
			}
		}
		out = append(out, in)
	}
	return prog.Derive(out)
}
