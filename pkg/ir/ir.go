// Package ir defines the three-address code (TAC) program shared by the generator, the optimizer and the backends
package ir

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

type Op string

const (
	OpAssign    Op = "assign"
	OpAdd       Op = "+"
	OpSub       Op = "-"
	OpMul       Op = "*"
	OpDiv       Op = "/"
	OpShl       Op = "<<"
	OpLt        Op = "<"
	OpGt        Op = ">"
	OpLe        Op = "<="
	OpGe        Op = ">="
	OpEq        Op = "=="
	OpNe        Op = "!="
	OpParam     Op = "param"
	OpCall      Op = "call"
	OpReturn    Op = "return"
	OpPrint     Op = "print"
	OpLabel     Op = "label"
	OpGoto      Op = "goto"
	OpIf        Op = "if"
	OpIfFalse   Op = "iffalse"
	OpBeginFunc Op = "begin_func"
	OpEndFunc   Op = "end_func"
)

// IsBinary reports whether op reads Arg1 and Arg2 and writes Result
func (op Op) IsBinary() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpShl, OpLt, OpGt, OpLe, OpGe, OpEq, OpNe:
		return true
	}
	return false
}

// IsBarrier reports whether op ends a straight-line region: facts tracked across it are unsound
func (op Op) IsBarrier() bool {
	return op == OpLabel || op == OpBeginFunc || op == OpEndFunc
}

var (
	ErrDivByZero  = errors.New("division by zero")
	ErrShiftRange = errors.New("shift count out of range")
)

// Eval applies the binary operator op to x and y. Division truncates toward zero,
// comparisons yield 1 or 0, and shifts accept counts 0 through 63.
func Eval(op Op, x, y int64) (int64, error) {
	switch op {
	case OpAdd:
		return x + y, nil
	case OpSub:
		return x - y, nil
	case OpMul:
		return x * y, nil
	case OpDiv:
		if y == 0 {
			return 0, ErrDivByZero
		}
		return x / y, nil
	case OpShl:
		if y < 0 || y > 63 {
			return 0, fmt.Errorf("%w: %d", ErrShiftRange, y)
		}
		return x << y, nil
	case OpLt:
		return boolInt(x < y), nil
	case OpGt:
		return boolInt(x > y), nil
	case OpLe:
		return boolInt(x <= y), nil
	case OpGe:
		return boolInt(x >= y), nil
	case OpEq:
		return boolInt(x == y), nil
	case OpNe:
		return boolInt(x != y), nil
	}
	return 0, fmt.Errorf("'%s' is not a binary operator", op)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Instruction is a value type. Passes copy and rewrite it, never mutate one they were handed.
//
// Operand placement per opcode:
//
//	assign, binary ops   Arg1 [Arg2] -> Result
//	param, print, return Arg1 (return may omit it)
//	call                 Arg1 = callee, Args = arguments, Result = temporary
//	label, goto          Arg1 = label
//	if, iffalse          Arg1 = condition, Arg2 = label
//	begin_func, end_func Arg1 = function name
type Instruction struct {
	Op     Op
	Arg1   string
	Arg2   string
	Args   []string
	Result string
}

func Assign(src, dest string) Instruction { return Instruction{Op: OpAssign, Arg1: src, Result: dest} }
func Binary(op Op, a, b, dest string) Instruction {
	return Instruction{Op: op, Arg1: a, Arg2: b, Result: dest}
}

func (in Instruction) String() string {
	switch in.Op {
	case OpAssign:
		return fmt.Sprintf("%s = %s", in.Result, in.Arg1)
	case OpCall:
		return fmt.Sprintf("%s = call %s(%s)", in.Result, in.Arg1, strings.Join(in.Args, ", "))
	case OpParam, OpPrint, OpGoto, OpBeginFunc, OpEndFunc:
		return fmt.Sprintf("%s %s", in.Op, in.Arg1)
	case OpReturn:
		if in.Arg1 == "" {
			return "return"
		}
		return "return " + in.Arg1
	case OpLabel:
		return in.Arg1 + ":"
	case OpIf, OpIfFalse:
		return fmt.Sprintf("%s %s goto %s", in.Op, in.Arg1, in.Arg2)
	}
	if in.Op.IsBinary() {
		return fmt.Sprintf("%s = %s %s %s", in.Result, in.Arg1, in.Op, in.Arg2)
	}
	return fmt.Sprintf("TAC(%s, %s, %s, %s)", in.Op, in.Arg1, in.Arg2, in.Result)
}

// Quad renders the instruction as an (op, arg1, arg2, result) tuple
func (in Instruction) Quad() string {
	dash := func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	}
	arg2 := in.Arg2
	if in.Op == OpCall {
		arg2 = "[" + strings.Join(in.Args, " ") + "]"
	}
	return fmt.Sprintf("(%-10s, %-8s, %-8s, %-8s)", in.Op, dash(in.Arg1), dash(arg2), dash(in.Result))
}

// Uses returns the value operands the instruction reads. Labels and callee names are not values.
func (in Instruction) Uses() []string {
	var uses []string
	add := func(s string) {
		if s != "" && !IsLiteral(s) {
			uses = append(uses, s)
		}
	}
	switch in.Op {
	case OpAssign, OpParam, OpPrint, OpReturn, OpIf, OpIfFalse:
		add(in.Arg1)
	case OpCall:
		for _, a := range in.Args {
			add(a)
		}
	default:
		if in.Op.IsBinary() {
			add(in.Arg1)
			add(in.Arg2)
		}
	}
	return uses
}

// MapUses returns a copy of in with every value operand passed through f
func (in Instruction) MapUses(f func(string) string) Instruction {
	out := in
	switch in.Op {
	case OpAssign, OpParam, OpPrint, OpReturn, OpIf, OpIfFalse:
		if in.Arg1 != "" {
			out.Arg1 = f(in.Arg1)
		}
	case OpCall:
		out.Args = make([]string, len(in.Args))
		for i, a := range in.Args {
			out.Args[i] = f(a)
		}
	default:
		if in.Op.IsBinary() {
			out.Arg1, out.Arg2 = f(in.Arg1), f(in.Arg2)
		}
	}
	return out
}

// Program is an ordered instruction list plus read-only metadata
type Program struct {
	Instrs []Instruction
	// Signatures maps each function to its parameter names, in order.
	Signatures map[string][]string
}

func NewProgram() *Program { return &Program{Signatures: make(map[string][]string)} }

// Derive builds a new program over instrs that shares p's metadata
func (p *Program) Derive(instrs []Instruction) *Program {
	return &Program{Instrs: instrs, Signatures: p.Signatures}
}

func (p *Program) Len() int { return len(p.Instrs) }

func (p *Program) Emit(in Instruction) { p.Instrs = append(p.Instrs, in) }

// Lines renders the TAC listing, one instruction per line
func (p *Program) Lines() []string {
	lines := make([]string, len(p.Instrs))
	for i, in := range p.Instrs {
		lines[i] = in.String()
	}
	return lines
}

// QuadLines renders the quadruple listing with instruction indexes
func (p *Program) QuadLines() []string {
	lines := make([]string, len(p.Instrs))
	for i, in := range p.Instrs {
		lines[i] = fmt.Sprintf("%3d: %s", i, in.Quad())
	}
	return lines
}

func (p *Program) String() string {
	var sb strings.Builder
	for i, in := range p.Instrs {
		fmt.Fprintf(&sb, "%3d: %s\n", i, in)
	}
	return sb.String()
}

// Fingerprint hashes the listing, so two programs with equal text compare equal
func (p *Program) Fingerprint() uint64 {
	h := xxhash.New()
	for _, in := range p.Instrs {
		h.WriteString(in.String())
		h.WriteString("\n")
	}
	return h.Sum64()
}

// Func is one begin_func..end_func slice of a program. Instructions outside any function form a chunk with an empty Name.
type Func struct {
	Name   string
	Instrs []Instruction
}

// Funcs splits the program at function boundaries, preserving order
func (p *Program) Funcs() []Func {
	var funcs []Func
	var cur *Func
	flush := func() {
		if cur != nil && len(cur.Instrs) > 0 {
			funcs = append(funcs, *cur)
		}
		cur = nil
	}
	for _, in := range p.Instrs {
		switch {
		case in.Op == OpBeginFunc:
			flush()
			cur = &Func{Name: in.Arg1}
			cur.Instrs = append(cur.Instrs, in)
		case in.Op == OpEndFunc && cur != nil && cur.Name != "":
			cur.Instrs = append(cur.Instrs, in)
			flush()
		default:
			if cur == nil {
				cur = &Func{}
			}
			cur.Instrs = append(cur.Instrs, in)
		}
	}
	flush()
	return funcs
}

// Join concatenates per-function slices back into one program
func (p *Program) Join(funcs []Func) *Program {
	var n int
	for _, f := range funcs {
		n += len(f.Instrs)
	}
	instrs := make([]Instruction, 0, n)
	for _, f := range funcs {
		instrs = append(instrs, f.Instrs...)
	}
	return p.Derive(instrs)
}

// IsLiteral reports whether s is an integer literal, optionally signed
func IsLiteral(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// IsTemp reports whether s names a compiler temporary: 't' followed by digits
func IsTemp(s string) bool {
	if len(s) < 2 || s[0] != 't' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsVar reports whether s is a user-named variable, neither a literal nor a temporary
func IsVar(s string) bool { return s != "" && !IsLiteral(s) && !IsTemp(s) }

// PowerOfTwo returns k when s is a literal equal to 2^k with k >= 1
func PowerOfTwo(s string) (int, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 1 || n&(n-1) != 0 {
		return 0, false
	}
	k := 0
	for n > 1 {
		n >>= 1
		k++
	}
	return k, true
}
