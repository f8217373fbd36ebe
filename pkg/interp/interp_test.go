package interp

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/tacc/pkg/ast"
	"github.com/xplshn/tacc/pkg/compiler"
	"github.com/xplshn/tacc/pkg/config"
	"github.com/xplshn/tacc/pkg/ir"
)

func build(sigs map[string][]string, instrs ...ir.Instruction) *ir.Program {
	p := ir.NewProgram()
	for name, params := range sigs {
		p.Signatures[name] = params
	}
	p.Instrs = instrs
	return p
}

func begin(f string) ir.Instruction { return ir.Instruction{Op: ir.OpBeginFunc, Arg1: f} }
func end(f string) ir.Instruction   { return ir.Instruction{Op: ir.OpEndFunc, Arg1: f} }
func ret(v string) ir.Instruction   { return ir.Instruction{Op: ir.OpReturn, Arg1: v} }
func show(v string) ir.Instruction  { return ir.Instruction{Op: ir.OpPrint, Arg1: v} }
func param(v string) ir.Instruction { return ir.Instruction{Op: ir.OpParam, Arg1: v} }
func call(f, dest string, args ...string) ir.Instruction {
	return ir.Instruction{Op: ir.OpCall, Arg1: f, Args: args, Result: dest}
}

func addProgram() *ir.Program {
	return build(map[string][]string{"add": {"a", "b"}, "main": {}},
		begin("add"),
		ir.Binary(ir.OpAdd, "a", "b", "t0"),
		ret("t0"),
		end("add"),
		begin("main"),
		ir.Assign("2", "x"),
		param("x"),
		param("40"),
		call("add", "t1", "x", "40"),
		show("t1"),
		ret("7"),
		end("main"),
	)
}

func TestRunCallsWithActivationRecords(t *testing.T) {
	var out bytes.Buffer
	m := New(addProgram(), &out)
	exit, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), exit)
	assert.Equal(t, "42\n", out.String())
	assert.Equal(t, int64(10), m.Steps())
}

func TestRunLoopsAndBranches(t *testing.T) {
	// i = 0; s = 0; L0: t0 = i < 5; iffalse t0 goto L1; s = s + i; i = i + 1; goto L0; L1: print s
	prog := build(map[string][]string{"main": {}},
		begin("main"),
		ir.Assign("0", "i"),
		ir.Assign("0", "s"),
		ir.Instruction{Op: ir.OpLabel, Arg1: "L0"},
		ir.Binary(ir.OpLt, "i", "5", "t0"),
		ir.Instruction{Op: ir.OpIfFalse, Arg1: "t0", Arg2: "L1"},
		ir.Binary(ir.OpAdd, "s", "i", "t1"),
		ir.Assign("t1", "s"),
		ir.Binary(ir.OpAdd, "i", "1", "t2"),
		ir.Assign("t2", "i"),
		ir.Instruction{Op: ir.OpGoto, Arg1: "L0"},
		ir.Instruction{Op: ir.OpLabel, Arg1: "L1"},
		ir.Instruction{Op: ir.OpIf, Arg1: "s", Arg2: "L2"},
		show("0"),
		ir.Instruction{Op: ir.OpLabel, Arg1: "L2"},
		show("s"),
		end("main"),
	)
	lines, exit, err := Capture(context.Background(), prog)
	require.NoError(t, err)
	assert.Equal(t, []string{"10"}, lines)
	assert.Zero(t, exit)
}

func TestRunGlobalsBeforeMain(t *testing.T) {
	prog := build(map[string][]string{"main": {}, "bump": {}},
		ir.Assign("5", "g"),
		begin("bump"),
		ir.Binary(ir.OpAdd, "g", "1", "t0"),
		ir.Assign("t0", "g"),
		end("bump"),
		begin("main"),
		call("bump", "t1"),
		show("g"),
		end("main"),
	)
	lines, _, err := Capture(context.Background(), prog)
	require.NoError(t, err)
	assert.Equal(t, []string{"6"}, lines)
}

func TestRunErrors(t *testing.T) {
	inMain := func(body ...ir.Instruction) *ir.Program {
		instrs := append([]ir.Instruction{begin("main")}, body...)
		return build(map[string][]string{"main": {}, "one": {"a"}}, append(instrs, end("main"), begin("one"), ret("a"), end("one"))...)
	}
	cases := []struct {
		name string
		prog *ir.Program
		want error
	}{
		{"no main", build(nil, begin("f"), end("f")), ErrNoMain},
		{"undefined", inMain(show("ghost")), ErrUndefined},
		{"unknown function", inMain(call("nope", "t0")), ErrUnknownFunc},
		{"arity", inMain(param("1"), param("2"), call("one", "t0", "1", "2")), ErrArity},
		{"unknown label", inMain(ir.Instruction{Op: ir.OpGoto, Arg1: "L9"}), ErrUnknownLabel},
		{"division", inMain(ir.Binary(ir.OpDiv, "1", "0", "t0")), ir.ErrDivByZero},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Capture(context.Background(), tc.prog)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRunLimits(t *testing.T) {
	spin := build(map[string][]string{"main": {}},
		begin("main"),
		ir.Instruction{Op: ir.OpLabel, Arg1: "L0"},
		ir.Instruction{Op: ir.OpGoto, Arg1: "L0"},
		end("main"),
	)
	m := New(spin, &bytes.Buffer{})
	m.MaxSteps = 100
	_, err := m.Run(context.Background())
	var limit StepLimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, int64(100), limit.Limit)

	recurse := build(map[string][]string{"main": {}},
		begin("main"),
		call("main", "t0"),
		end("main"),
	)
	m = New(recurse, &bytes.Buffer{})
	m.MaxDepth = 16
	_, err = m.Run(context.Background())
	require.ErrorIs(t, err, ErrStackOverflow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m = New(spin, &bytes.Buffer{})
	_, err = m.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

// Every fixture must print the same values and return the same code with and without the optimizer.
func TestOptimizerPreservesBehavior(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "testdata", "*"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		if filepath.Base(path)[0] == '.' {
			continue
		}
		t.Run(filepath.Base(path), func(t *testing.T) {
			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()
			root, err := ast.Decode(f, ast.FormatForPath(path))
			require.NoError(t, err)

			cfg := config.NewConfig()
			cfg.Stderr = &bytes.Buffer{}
			res, err := compiler.Compile(root, cfg)
			require.NoError(t, err)
			if !res.Success {
				t.Skip("fixture has semantic errors")
			}

			ctx := context.Background()
			plain, plainExit, err := Capture(ctx, res.IR)
			require.NoError(t, err)
			opt, optExit, err := Capture(ctx, res.Optimized)
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(plain, opt), "printed values differ (-unoptimized +optimized)")
			assert.Equal(t, plainExit, optExit)
		})
	}
}
