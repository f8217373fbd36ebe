package optimizer

import "github.com/xplshn/tacc/pkg/ir"

type exprKey struct {
	op     ir.Op
	a1, a2 string
}

// CSE replaces a binary operation already computed in the same region with a copy of the earlier result
type CSE struct{}

func (CSE) Name() string { return "cse" }

func (CSE) Apply(prog *ir.Program) *ir.Program {
	memo := make(map[exprKey]string)
	// forget drops every entry that reads or produced name
	forget := func(name string) {
		for k, res := range memo {
			if k.a1 == name || k.a2 == name || res == name {
				delete(memo, k)
			}
		}
	}

	out := make([]ir.Instruction, 0, prog.Len())
	for _, in := range prog.Instrs {
		switch {
		case in.Op.IsBarrier():
			clear(memo)
		case in.Op == ir.OpCall:
			for k, res := range memo {
				if ir.IsVar(k.a1) || ir.IsVar(k.a2) || ir.IsVar(res) {
					delete(memo, k)
				}
			}
			forget(in.Result)
		case in.Op.IsBinary():
			key := exprKey{in.Op, in.Arg1, in.Arg2}
			prev, hit := memo[key]
			if hit {
				in = ir.Assign(prev, in.Result)
			}
			forget(in.Result)
			if !hit && in.Result != in.Arg1 && in.Result != in.Arg2 {
				memo[key] = in.Result
			}
		case in.Result != "":
			forget(in.Result)
		}
		out = append(out, in)
	}
	return prog.Derive(out)
}
