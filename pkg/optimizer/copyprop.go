package optimizer

import "github.com/xplshn/tacc/pkg/ir"

// CopyProp substitutes the source of `dest = src` for later reads of dest until either name is written again
type CopyProp struct{}

func (CopyProp) Name() string { return "copy-prop" }

func (CopyProp) Apply(prog *ir.Program) *ir.Program {
	copies := make(map[string]string)
	lookup := func(s string) string {
		if src, ok := copies[s]; ok {
			return src
		}
		return s
	}
	forget := func(name string) {
		delete(copies, name)
		for dest, src := range copies {
			if src == name {
				delete(copies, dest)
			}
		}
	}

	out := make([]ir.Instruction, 0, prog.Len())
	for _, in := range prog.Instrs {
		if in.Op.IsBarrier() {
			clear(copies)
			out = append(out, in)
			continue
		}

		in = in.MapUses(lookup)
		if in.Op == ir.OpCall {
			for dest, src := range copies {
				if ir.IsVar(dest) || ir.IsVar(src) {
					delete(copies, dest)
				}
			}
		}
		if in.Result != "" {
			forget(in.Result)
			if in.Op == ir.OpAssign && !ir.IsLiteral(in.Arg1) && in.Arg1 != in.Result {
				copies[in.Result] = in.Arg1
			}
		}
		out = append(out, in)
	}
	return prog.Derive(out)
}
