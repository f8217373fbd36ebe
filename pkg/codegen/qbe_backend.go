package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xplshn/tacc/pkg/config"
	"github.com/xplshn/tacc/pkg/ir"
)

const printFmtLabel = "tacc_fmt_int"

var qbeOps = map[ir.Op]string{
	ir.OpAdd: "add",
	ir.OpSub: "sub",
	ir.OpMul: "mul",
	ir.OpDiv: "div",
	ir.OpShl: "shl",
	ir.OpLt:  "csltl",
	ir.OpGt:  "csgtl",
	ir.OpLe:  "cslel",
	ir.OpGe:  "csgel",
	ir.OpEq:  "ceql",
	ir.OpNe:  "cnel",
}

// qbeBackend lowers TAC to QBE IL. Every value is a 64-bit "l"; user variables become
// QBE temporaries that are assigned more than once, which QBE turns into SSA itself.
type qbeBackend struct {
	out        *strings.Builder
	inFunc     bool
	terminated bool
	pending    []string
	nextID     int
	usesPrint  bool
}

func NewQBEBackend() Backend { return &qbeBackend{} }

// GenerateIR returns the QBE IL for prog without running QBE on it
func (b *qbeBackend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	var body strings.Builder
	*b = qbeBackend{out: &body}

	for _, in := range prog.Instrs {
		if err := b.genInstr(prog, in); err != nil {
			return "", err
		}
	}
	if b.inFunc {
		return "", fmt.Errorf("qbe: function without end_func")
	}

	var sb strings.Builder
	if b.usesPrint {
		fmt.Fprintf(&sb, "data $%s = { b %s, b 0 }\n", printFmtLabel, strconv.Quote("%ld\n"))
	}
	sb.WriteString(body.String())
	return sb.String(), nil
}

func (b *qbeBackend) line(format string, args ...interface{}) {
	b.out.WriteString("\t")
	fmt.Fprintf(b.out, format, args...)
	b.out.WriteString("\n")
	b.terminated = false
}

// jump writes a block terminator; anything after it needs a fresh block
func (b *qbeBackend) jump(format string, args ...interface{}) {
	b.line(format, args...)
	b.terminated = true
}

func (b *qbeBackend) label(name string) {
	fmt.Fprintf(b.out, "@%s\n", name)
	b.terminated = false
}

func (b *qbeBackend) fresh(prefix string) string {
	name := fmt.Sprintf("%s.%d", prefix, b.nextID)
	b.nextID++
	return name
}

// reopen starts an unreachable block so instructions after a terminator stay well formed
func (b *qbeBackend) reopen() {
	if b.terminated {
		b.label(b.fresh("b"))
	}
}

func formatQBEValue(v string) string {
	if ir.IsLiteral(v) {
		return v
	}
	return "%" + v
}

func (b *qbeBackend) genInstr(prog *ir.Program, in ir.Instruction) error {
	if in.Op == ir.OpBeginFunc {
		if b.inFunc {
			return fmt.Errorf("qbe: nested function '%s'", in.Arg1)
		}
		params := prog.Signatures[in.Arg1]
		formatted := make([]string, len(params))
		for i, p := range params {
			formatted[i] = "l %" + p
		}
		fmt.Fprintf(b.out, "\nexport function l $%s(%s) {\n", in.Arg1, strings.Join(formatted, ", "))
		b.label("start")
		b.inFunc = true
		b.pending = nil
		return nil
	}
	if !b.inFunc {
		return fmt.Errorf("qbe: '%s' outside of any function", in)
	}

	switch in.Op {
	case ir.OpEndFunc:
		if !b.terminated {
			b.jump("ret 0")
		}
		b.out.WriteString("}\n")
		b.inFunc = false
		return nil
	case ir.OpLabel:
		b.label(in.Arg1)
		return nil
	}

	b.reopen()
	switch in.Op {
	case ir.OpAssign:
		b.line("%s =l copy %s", formatQBEValue(in.Result), formatQBEValue(in.Arg1))
	case ir.OpParam:
		b.pending = append(b.pending, "l "+formatQBEValue(in.Arg1))
	case ir.OpCall:
		args := b.pending
		b.pending = nil
		call := fmt.Sprintf("call $%s(%s)", in.Arg1, strings.Join(args, ", "))
		if in.Result != "" {
			b.line("%s =l %s", formatQBEValue(in.Result), call)
		} else {
			b.line("%s", call)
		}
	case ir.OpReturn:
		if in.Arg1 == "" {
			b.jump("ret 0")
		} else {
			b.jump("ret %s", formatQBEValue(in.Arg1))
		}
	case ir.OpPrint:
		b.usesPrint = true
		b.line("call $printf(l $%s, ..., l %s)", printFmtLabel, formatQBEValue(in.Arg1))
	case ir.OpGoto:
		b.jump("jmp @%s", in.Arg1)
	case ir.OpIf, ir.OpIfFalse:
		cond := formatQBEValue(in.Arg1)
		if ir.IsLiteral(in.Arg1) {
			cond = "%" + b.fresh("c")
			b.line("%s =l copy %s", cond, in.Arg1)
		}
		next := b.fresh("b")
		if in.Op == ir.OpIf {
			b.jump("jnz %s, @%s, @%s", cond, in.Arg2, next)
		} else {
			b.jump("jnz %s, @%s, @%s", cond, next, in.Arg2)
		}
		b.label(next)
	default:
		op, ok := qbeOps[in.Op]
		if !ok {
			return fmt.Errorf("qbe: no lowering for opcode '%s'", in.Op)
		}
		b.line("%s =l %s %s, %s", formatQBEValue(in.Result), op, formatQBEValue(in.Arg1), formatQBEValue(in.Arg2))
	}
	return nil
}
