// Package interp executes a TAC program directly, one activation record per call.
//
// Statements outside any function run first against the global frame, then main is called.
// A function sees its own locals first and the globals after that; assigning a name that is
// not yet local but exists globally updates the global.
package interp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xplshn/tacc/pkg/ir"
)

const (
	DefaultMaxSteps = 1_000_000
	DefaultMaxDepth = 1000
)

var (
	ErrNoMain        = errors.New("no 'main' function")
	ErrUndefined     = errors.New("undefined name")
	ErrUnknownFunc   = errors.New("unknown function")
	ErrUnknownLabel  = errors.New("unknown label")
	ErrArity         = errors.New("wrong number of arguments")
	ErrStackOverflow = errors.New("call stack overflow")
)

// StepLimitError stops a program that executed more than Limit instructions
type StepLimitError struct {
	Limit int64
}

func (e StepLimitError) Error() string {
	return fmt.Sprintf("step limit exceeded (%d instructions)", e.Limit)
}

// Frame is the activation record of one call
type Frame struct {
	Func string
	vars map[string]int64
	ret  int    // pc to resume at in the caller, -1 for the entry call
	dest string // caller temporary receiving the return value
}

type Machine struct {
	prog *ir.Program
	out  io.Writer

	MaxSteps int64 // 0 disables the limit
	MaxDepth int

	funcs  map[string]int // begin_func index
	ends   map[string]int // end_func index
	labels map[string]int

	globals map[string]int64
	frames  []*Frame
	pending []int64
	steps   int64
	exit    int64
}

func New(prog *ir.Program, out io.Writer) *Machine {
	return &Machine{prog: prog, out: out, MaxSteps: DefaultMaxSteps, MaxDepth: DefaultMaxDepth}
}

// Steps returns the number of instructions executed by the last Run
func (m *Machine) Steps() int64 { return m.steps }

func (m *Machine) index() {
	m.funcs = make(map[string]int)
	m.ends = make(map[string]int)
	m.labels = make(map[string]int)
	for i, in := range m.prog.Instrs {
		switch in.Op {
		case ir.OpBeginFunc:
			m.funcs[in.Arg1] = i
		case ir.OpEndFunc:
			m.ends[in.Arg1] = i
		case ir.OpLabel:
			m.labels[in.Arg1] = i
		}
	}
}

// Run executes the program and returns the value main returned
func (m *Machine) Run(ctx context.Context) (int64, error) {
	m.index()
	start, ok := m.funcs["main"]
	if !ok {
		return 0, ErrNoMain
	}
	m.globals = make(map[string]int64)
	m.frames, m.pending = nil, nil
	m.steps, m.exit = 0, 0

	if err := m.loop(ctx, 0); err != nil {
		return 0, err
	}
	m.frames = append(m.frames, &Frame{Func: "main", vars: make(map[string]int64), ret: -1})
	if err := m.loop(ctx, start+1); err != nil {
		return 0, err
	}
	return m.exit, nil
}

// loop runs from pc until the global statements end or the entry call returns
func (m *Machine) loop(ctx context.Context, pc int) error {
	instrs := m.prog.Instrs
	for {
		if pc >= len(instrs) {
			if len(m.frames) == 0 {
				return nil
			}
			return fmt.Errorf("'%s' runs past the end of the program", m.top().Func)
		}
		m.steps++
		if m.MaxSteps > 0 && m.steps > m.MaxSteps {
			return StepLimitError{Limit: m.MaxSteps}
		}
		if m.steps%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		in := instrs[pc]
		switch {
		case in.Op == ir.OpBeginFunc:
			if len(m.frames) == 0 {
				end, ok := m.ends[in.Arg1]
				if !ok {
					return fmt.Errorf("function '%s' has no end_func", in.Arg1)
				}
				pc = end + 1
				continue
			}
		case in.Op == ir.OpEndFunc || in.Op == ir.OpReturn:
			var v int64
			if in.Op == ir.OpReturn && in.Arg1 != "" {
				var err error
				if v, err = m.value(in.Arg1); err != nil {
					return err
				}
			}
			if len(m.frames) == 0 {
				return nil
			}
			f := m.frames[len(m.frames)-1]
			m.frames = m.frames[:len(m.frames)-1]
			if f.ret < 0 {
				m.exit = v
				return nil
			}
			if f.dest != "" {
				m.set(f.dest, v)
			}
			pc = f.ret
			continue
		case in.Op == ir.OpAssign:
			v, err := m.value(in.Arg1)
			if err != nil {
				return err
			}
			m.set(in.Result, v)
		case in.Op.IsBinary():
			x, err := m.value(in.Arg1)
			if err != nil {
				return err
			}
			y, err := m.value(in.Arg2)
			if err != nil {
				return err
			}
			v, err := ir.Eval(in.Op, x, y)
			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			m.set(in.Result, v)
		case in.Op == ir.OpParam:
			v, err := m.value(in.Arg1)
			if err != nil {
				return err
			}
			m.pending = append(m.pending, v)
		case in.Op == ir.OpCall:
			start, ok := m.funcs[in.Arg1]
			if !ok {
				return fmt.Errorf("%w '%s'", ErrUnknownFunc, in.Arg1)
			}
			params := m.prog.Signatures[in.Arg1]
			if len(params) != len(m.pending) {
				return fmt.Errorf("%w: '%s' takes %d, got %d", ErrArity, in.Arg1, len(params), len(m.pending))
			}
			if len(m.frames) >= m.MaxDepth {
				return fmt.Errorf("%w calling '%s' (depth %d)", ErrStackOverflow, in.Arg1, m.MaxDepth)
			}
			f := &Frame{Func: in.Arg1, vars: make(map[string]int64, len(params)), ret: pc + 1, dest: in.Result}
			for i, p := range params {
				f.vars[p] = m.pending[i]
			}
			m.pending = m.pending[:0]
			m.frames = append(m.frames, f)
			pc = start + 1
			continue
		case in.Op == ir.OpPrint:
			v, err := m.value(in.Arg1)
			if err != nil {
				return err
			}
			fmt.Fprintln(m.out, v)
		case in.Op == ir.OpLabel:
		case in.Op == ir.OpGoto:
			target, ok := m.labels[in.Arg1]
			if !ok {
				return fmt.Errorf("%w '%s'", ErrUnknownLabel, in.Arg1)
			}
			pc = target
			continue
		case in.Op == ir.OpIf || in.Op == ir.OpIfFalse:
			c, err := m.value(in.Arg1)
			if err != nil {
				return err
			}
			if (c != 0) == (in.Op == ir.OpIf) {
				target, ok := m.labels[in.Arg2]
				if !ok {
					return fmt.Errorf("%w '%s'", ErrUnknownLabel, in.Arg2)
				}
				pc = target
				continue
			}
		default:
			return fmt.Errorf("cannot execute %s", in)
		}
		pc++
	}
}

func (m *Machine) top() *Frame {
	if len(m.frames) == 0 {
		return nil
	}
	return m.frames[len(m.frames)-1]
}

func (m *Machine) value(s string) (int64, error) {
	if ir.IsLiteral(s) {
		return strconv.ParseInt(s, 10, 64)
	}
	if f := m.top(); f != nil {
		if v, ok := f.vars[s]; ok {
			return v, nil
		}
	}
	if v, ok := m.globals[s]; ok {
		return v, nil
	}
	where := "global scope"
	if f := m.top(); f != nil {
		where = "'" + f.Func + "'"
	}
	return 0, fmt.Errorf("%w '%s' in %s", ErrUndefined, s, where)
}

func (m *Machine) set(name string, v int64) {
	f := m.top()
	if f == nil {
		m.globals[name] = v
		return
	}
	if _, local := f.vars[name]; !local {
		if _, global := m.globals[name]; global {
			m.globals[name] = v
			return
		}
	}
	f.vars[name] = v
}

// Capture runs prog with the default limits and returns the printed values, one per line
func Capture(ctx context.Context, prog *ir.Program) ([]string, int64, error) {
	var out bytes.Buffer
	exit, err := New(prog, &out).Run(ctx)
	if err != nil {
		return nil, 0, err
	}
	text := strings.TrimSuffix(out.String(), "\n")
	if text == "" {
		return nil, exit, nil
	}
	return strings.Split(text, "\n"), exit, nil
}
