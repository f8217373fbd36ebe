package optimizer

import (
	"strconv"

	"github.com/xplshn/tacc/pkg/ir"
)

// Fold evaluates op over two integer literals with the same semantics as execution.
// It refuses non-literals and anything ir.Eval rejects, such as division by zero.
func Fold(op ir.Op, a, b string) (string, bool) {
	x, err := strconv.ParseInt(a, 10, 64)
	if err != nil {
		return "", false
	}
	y, err := strconv.ParseInt(b, 10, 64)
	if err != nil {
		return "", false
	}
	v, err := ir.Eval(op, x, y)
	if err != nil {
		return "", false
	}
	return strconv.FormatInt(v, 10), true
}

// constants tracks names holding a known literal inside one straight-line region
type constants struct {
	values       map[string]string
	symbolicOnly bool
}

func newConstants(symbolicOnly bool) *constants {
	return &constants{values: make(map[string]string), symbolicOnly: symbolicOnly}
}

func (c *constants) reset() { clear(c.values) }

// value returns the literal behind s when one is known, otherwise s
func (c *constants) value(s string) string {
	if v, ok := c.values[s]; ok {
		return v
	}
	return s
}

// observe updates the facts after in has executed
func (c *constants) observe(in ir.Instruction) {
	switch {
	case in.Op.IsBarrier():
		c.reset()
		return
	case in.Op == ir.OpCall:
		for name := range c.values {
			if ir.IsVar(name) {
				delete(c.values, name)
			}
		}
	}
	if in.Result == "" {
		return
	}
	src := c.value(in.Arg1)
	delete(c.values, in.Result)
	if in.Op != ir.OpAssign || (c.symbolicOnly && ir.IsVar(in.Result)) {
		return
	}
	if ir.IsLiteral(src) {
		c.values[in.Result] = src
	}
}

// ConstFold replaces binary operations over known constants with their value
type ConstFold struct {
	SymbolicOnly bool
}

func (ConstFold) Name() string { return "const-fold" }

func (p ConstFold) Apply(prog *ir.Program) *ir.Program {
	consts := newConstants(p.SymbolicOnly)
	out := make([]ir.Instruction, 0, prog.Len())
	for _, in := range prog.Instrs {
		if in.Op.IsBinary() {
			if v, ok := Fold(in.Op, consts.value(in.Arg1), consts.value(in.Arg2)); ok {
				in = ir.Assign(v, in.Result)
			}
		}
		consts.observe(in)
		out = append(out, in)
	}
	return prog.Derive(out)
}
