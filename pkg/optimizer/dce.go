package optimizer

import "github.com/xplshn/tacc/pkg/ir"

// DCE drops instructions that can never execute, those following a return or goto up to
// the next label or function marker, and instructions whose temporary result is never read.
// Liveness is propagated backward from the instructions that must stay until nothing new
// becomes live.
type DCE struct{}

func (DCE) Name() string { return "dce" }

// mustKeep reports whether in stays regardless of liveness: it has an effect or writes a user name
func mustKeep(in ir.Instruction) bool {
	switch in.Op {
	case ir.OpLabel, ir.OpGoto, ir.OpIf, ir.OpIfFalse, ir.OpBeginFunc, ir.OpEndFunc,
		ir.OpCall, ir.OpParam, ir.OpPrint, ir.OpReturn:
		return true
	}
	return !ir.IsTemp(in.Result)
}

func (DCE) Apply(prog *ir.Program) *ir.Program {
	keep := make([]bool, prog.Len())
	live := make(map[string]bool)
	var worklist []string
	markLive := func(in ir.Instruction) {
		for _, u := range in.Uses() {
			if !live[u] {
				live[u] = true
				worklist = append(worklist, u)
			}
		}
	}

	defs := make(map[string][]int)
	reachable := true
	for i, in := range prog.Instrs {
		switch in.Op {
		case ir.OpLabel, ir.OpBeginFunc, ir.OpEndFunc:
			reachable = true
		}
		if !reachable {
			continue
		}
		if in.Op == ir.OpReturn || in.Op == ir.OpGoto {
			reachable = false
		}

		if mustKeep(in) {
			keep[i] = true
			markLive(in)
		} else {
			defs[in.Result] = append(defs[in.Result], i)
		}
	}

	for len(worklist) > 0 {
		name := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, i := range defs[name] {
			if !keep[i] {
				keep[i] = true
				markLive(prog.Instrs[i])
			}
		}
	}

	out := make([]ir.Instruction, 0, prog.Len())
	for i, in := range prog.Instrs {
		if keep[i] {
			out = append(out, in)
		}
	}
	return prog.Derive(out)
}
