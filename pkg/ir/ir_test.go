package ir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Program {
	p := NewProgram()
	p.Signatures["add"] = []string{"a", "b"}
	for _, in := range []Instruction{
		{Op: OpBeginFunc, Arg1: "add"},
		Binary(OpAdd, "a", "b", "t0"),
		{Op: OpReturn, Arg1: "t0"},
		{Op: OpEndFunc, Arg1: "add"},
		{Op: OpBeginFunc, Arg1: "main"},
		{Op: OpParam, Arg1: "2"},
		{Op: OpParam, Arg1: "x"},
		{Op: OpCall, Arg1: "add", Args: []string{"2", "x"}, Result: "t1"},
		{Op: OpLabel, Arg1: "L0"},
		{Op: OpIfFalse, Arg1: "t1", Arg2: "L0"},
		{Op: OpGoto, Arg1: "L0"},
		Assign("t1", "y"),
		{Op: OpPrint, Arg1: "y"},
		{Op: OpReturn},
		{Op: OpEndFunc, Arg1: "main"},
	} {
		p.Emit(in)
	}
	return p
}

func TestListing(t *testing.T) {
	want := []string{
		"begin_func add",
		"t0 = a + b",
		"return t0",
		"end_func add",
		"begin_func main",
		"param 2",
		"param x",
		"t1 = call add(2, x)",
		"L0:",
		"iffalse t1 goto L0",
		"goto L0",
		"y = t1",
		"print y",
		"return",
		"end_func main",
	}
	if diff := cmp.Diff(want, sample().Lines()); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestQuad(t *testing.T) {
	assert.Equal(t, "(+         , a       , b       , t0      )", Binary(OpAdd, "a", "b", "t0").Quad())
	assert.Equal(t, "(return    , -       , -       , -       )", Instruction{Op: OpReturn}.Quad())
	lines := sample().QuadLines()
	assert.Equal(t, "  7: (call      , add     , [2 x]   , t1      )", lines[7])
}

func TestUsesSkipsLabelsAndCallee(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Binary(OpAdd, "a", "b", "t0").Uses())
	assert.Equal(t, []string{"x"}, Instruction{Op: OpCall, Arg1: "f", Args: []string{"2", "x"}}.Uses())
	assert.Equal(t, []string{"c"}, Instruction{Op: OpIf, Arg1: "c", Arg2: "L1"}.Uses())
	assert.Empty(t, Instruction{Op: OpGoto, Arg1: "L1"}.Uses())
	assert.Empty(t, Instruction{Op: OpReturn}.Uses())
}

func TestMapUsesCopies(t *testing.T) {
	call := Instruction{Op: OpCall, Arg1: "f", Args: []string{"a", "b"}, Result: "t0"}
	out := call.MapUses(func(s string) string { return s + "'" })
	assert.Equal(t, []string{"a'", "b'"}, out.Args)
	assert.Equal(t, "f", out.Arg1)
	assert.Equal(t, []string{"a", "b"}, call.Args, "input instruction must be untouched")

	jump := Instruction{Op: OpIf, Arg1: "c", Arg2: "L0"}.MapUses(func(string) string { return "1" })
	assert.Equal(t, "L0", jump.Arg2)
	assert.Equal(t, "1", jump.Arg1)
}

func TestFuncsAndJoin(t *testing.T) {
	p := sample()
	funcs := p.Funcs()
	require.Len(t, funcs, 2)
	assert.Equal(t, "add", funcs[0].Name)
	assert.Len(t, funcs[0].Instrs, 4)
	assert.Equal(t, "main", funcs[1].Name)

	joined := p.Join(funcs)
	assert.Equal(t, p.Fingerprint(), joined.Fingerprint())
	assert.Equal(t, p.Signatures["add"], joined.Signatures["add"])

	loose := NewProgram()
	loose.Emit(Instruction{Op: OpPrint, Arg1: "1"})
	loose.Emit(Instruction{Op: OpBeginFunc, Arg1: "f"})
	loose.Emit(Instruction{Op: OpEndFunc, Arg1: "f"})
	lf := loose.Funcs()
	require.Len(t, lf, 2)
	assert.Equal(t, "", lf[0].Name)
}

func TestFingerprintChangesWithText(t *testing.T) {
	a, b := sample(), sample()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	b.Instrs[1] = Binary(OpSub, "a", "b", "t0")
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestNameClassification(t *testing.T) {
	assert.True(t, IsLiteral("42"))
	assert.True(t, IsLiteral("-7"))
	assert.False(t, IsLiteral("x"))
	assert.False(t, IsLiteral(""))

	assert.True(t, IsTemp("t0"))
	assert.True(t, IsTemp("t15"))
	assert.False(t, IsTemp("t"))
	assert.False(t, IsTemp("total"))

	assert.True(t, IsVar("x"))
	assert.False(t, IsVar("t3"))
	assert.False(t, IsVar("3"))
}

func TestPowerOfTwo(t *testing.T) {
	for in, want := range map[string]int{"2": 1, "8": 3, "1024": 10} {
		k, ok := PowerOfTwo(in)
		require.True(t, ok, in)
		assert.Equal(t, want, k, in)
	}
	for _, in := range []string{"0", "1", "6", "-8", "x"} {
		_, ok := PowerOfTwo(in)
		assert.False(t, ok, in)
	}
}

func TestEval(t *testing.T) {
	cases := []struct {
		op   Op
		x, y int64
		want int64
	}{
		{OpAdd, 2, 3, 5},
		{OpSub, 2, 3, -1},
		{OpMul, -4, 3, -12},
		{OpDiv, -7, 2, -3},
		{OpShl, 3, 4, 48},
		{OpLt, 1, 2, 1},
		{OpGe, 1, 2, 0},
		{OpEq, 5, 5, 1},
		{OpNe, 5, 5, 0},
	}
	for _, tc := range cases {
		got, err := Eval(tc.op, tc.x, tc.y)
		require.NoError(t, err, "%d %s %d", tc.x, tc.op, tc.y)
		assert.Equal(t, tc.want, got, "%d %s %d", tc.x, tc.op, tc.y)
	}

	_, err := Eval(OpDiv, 1, 0)
	require.ErrorIs(t, err, ErrDivByZero)
	_, err = Eval(OpShl, 1, 64)
	require.ErrorIs(t, err, ErrShiftRange)
	_, err = Eval(OpShl, 1, -1)
	require.ErrorIs(t, err, ErrShiftRange)
	_, err = Eval(OpPrint, 1, 1)
	require.Error(t, err)
}
