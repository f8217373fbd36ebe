package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xplshn/tacc/pkg/config"
	"github.com/xplshn/tacc/pkg/ir"
	"github.com/xplshn/tacc/pkg/util"
)

var asmMnemonics = map[ir.Op]string{
	ir.OpAdd: "ADD",
	ir.OpSub: "SUB",
	ir.OpMul: "MUL",
	ir.OpDiv: "DIV",
	ir.OpLt:  "SLT",
	ir.OpGt:  "SGT",
	ir.OpLe:  "SLE",
	ir.OpGe:  "SGE",
	ir.OpEq:  "SEQ",
	ir.OpNe:  "SNE",
}

// asmBackend emits a symbolic register-machine listing. Registers come from a fixed pool
// that is reset per function; there is no spilling, so once the pool is exhausted every
// further name shares R0.
type asmBackend struct {
	cfg       *config.Config
	lines     []string
	regs      map[string]string
	next      int
	poolSize  int
	fn        string
	exhausted bool
}

func NewAsmBackend() Backend { return &asmBackend{} }

func (b *asmBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	lines, err := GenerateAssembly(prog, cfg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return &buf, nil
}

// GenerateAssembly lowers prog into assembly lines, one mnemonic per line
func GenerateAssembly(prog *ir.Program, cfg *config.Config) ([]string, error) {
	b := &asmBackend{cfg: cfg, poolSize: cfg.Registers}
	if b.poolSize <= 0 {
		b.poolSize = config.DefaultRegisters
	}
	b.reset("")
	for _, in := range prog.Instrs {
		if err := b.genInstr(in); err != nil {
			return nil, err
		}
	}
	return b.lines, nil
}

func (b *asmBackend) emit(format string, args ...interface{}) {
	b.lines = append(b.lines, fmt.Sprintf(format, args...))
}

func (b *asmBackend) reset(fn string) {
	b.regs = make(map[string]string)
	b.next = 0
	b.fn = fn
	b.exhausted = false
}

func (b *asmBackend) allocReg(name string) string {
	if reg, ok := b.regs[name]; ok {
		return reg
	}
	if b.next < b.poolSize {
		reg := fmt.Sprintf("R%d", b.next)
		b.next++
		b.regs[name] = reg
		return reg
	}
	if !b.exhausted {
		b.exhausted = true
		util.Warn(b.cfg, config.WarnRegisterPressure, "'%s' needs more than %d registers; extra values share R0", b.fn, b.poolSize)
	}
	return "R0"
}

// operand returns an immediate for literals, otherwise the name's register, loading it on first use
func (b *asmBackend) operand(v string) string {
	if ir.IsLiteral(v) {
		return v
	}
	if reg, ok := b.regs[v]; ok {
		return reg
	}
	reg := b.allocReg(v)
	b.emit("  LOAD %s, %s", reg, v)
	return reg
}

func (b *asmBackend) genInstr(in ir.Instruction) error {
	switch in.Op {
	case ir.OpBeginFunc:
		b.reset(in.Arg1)
		b.emit("%s:", in.Arg1)
		b.emit("  ENTER")
	case ir.OpEndFunc:
		b.emit("  LEAVE")
		b.emit("  RETURN")
	case ir.OpAssign:
		dest := b.allocReg(in.Result)
		if ir.IsLiteral(in.Arg1) {
			b.emit("  LOAD %s, %s", dest, in.Arg1)
		} else {
			b.emit("  MOVE %s, %s", dest, b.operand(in.Arg1))
		}
		if !ir.IsTemp(in.Result) {
			b.emit("  STORE %s, %s", dest, in.Result)
		}
	case ir.OpShl:
		dest := b.allocReg(in.Result)
		b.emit("  SHL %s, %s, %s", dest, b.operand(in.Arg1), in.Arg2)
	case ir.OpParam:
		b.emit("  PARAM %s", b.operand(in.Arg1))
	case ir.OpCall:
		b.emit("  CALL %s", in.Arg1)
		if in.Result != "" {
			b.emit("  GETRET %s", b.allocReg(in.Result))
		}
	case ir.OpReturn:
		if in.Arg1 == "" {
			b.emit("  RET")
		} else {
			b.emit("  RET %s", b.operand(in.Arg1))
		}
	case ir.OpPrint:
		b.emit("  PRINT %s", b.operand(in.Arg1))
	case ir.OpLabel:
		b.emit("%s:", in.Arg1)
	case ir.OpGoto:
		b.emit("  JMP %s", in.Arg1)
	case ir.OpIf:
		b.emit("  JNZ %s, %s", b.operand(in.Arg1), in.Arg2)
	case ir.OpIfFalse:
		b.emit("  JZ %s, %s", b.operand(in.Arg1), in.Arg2)
	default:
		mnemonic, ok := asmMnemonics[in.Op]
		if !ok {
			return fmt.Errorf("asm: no lowering for opcode '%s'", in.Op)
		}
		dest := b.allocReg(in.Result)
		a1 := b.operand(in.Arg1)
		a2 := b.operand(in.Arg2)
		b.emit("  %s %s, %s, %s", mnemonic, dest, a1, a2)
	}
	return nil
}

// FormatAssembly joins lines and separates functions with a blank line
func FormatAssembly(lines []string) string {
	var sb strings.Builder
	for i, l := range lines {
		if i > 0 && strings.HasSuffix(l, ":") && i+1 < len(lines) && lines[i+1] == "  ENTER" {
			sb.WriteByte('\n')
		}
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}
