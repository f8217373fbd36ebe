package typeChecker

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/tacc/pkg/ast"
	"github.com/xplshn/tacc/pkg/config"
)

func num(v int64) *ast.Node { return ast.NewNumber(0, v) }
func id(name string) *ast.Node { return ast.NewIdent(0, name) }
func ret(e *ast.Node) *ast.Node { return ast.NewReturn(0, e) }
func param(name string) *ast.Node { return ast.NewParam(0, name, "") }
func fn(name string, params []*ast.Node, body ...*ast.Node) *ast.Node {
	return ast.NewFuncDecl(0, name, params, body, "")
}
func decl(name string, v *ast.Node) *ast.Node { return ast.NewDeclAssign(0, name, "", v) }
func bin(op string, l, r *ast.Node) *ast.Node { return ast.NewBinaryOp(0, op, l, r) }
func call(name string, args ...*ast.Node) *ast.Node {
	return ast.NewFuncCall(0, name, args)
}

func check(t *testing.T, stmts ...*ast.Node) *Result {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Stderr = &bytes.Buffer{}
	res, err := NewTypeChecker(cfg).Check(ast.NewProgram(stmts))
	require.NoError(t, err)
	return res
}

func TestValidProgram(t *testing.T) {
	res := check(t,
		fn("add", []*ast.Node{param("a"), param("b")}, ret(bin("+", id("a"), id("b")))),
		fn("main", nil,
			decl("x", call("add", num(1), num(2))),
			ast.NewIf(0, bin("<", id("x"), num(10)), []*ast.Node{ast.NewPrint(0, id("x"))}, nil),
			ret(num(0)),
		),
	)
	require.True(t, res.OK, res.Messages())
	assert.Empty(t, res.Errors)

	add := res.Table.Lookup("add", false)
	require.NotNil(t, add)
	assert.Len(t, add.Params, 2)

	scope := res.Table.Scope("add")
	require.NotNil(t, scope)
	syms := scope.List()
	require.Len(t, syms, 2)
	assert.True(t, syms[1].IsParam)
	assert.Equal(t, 1, syms[1].Offset)
}

func TestUndeclaredFunction(t *testing.T) {
	res := check(t, fn("main", nil, decl("x", call("missing", num(1))), ret(id("x"))))
	require.False(t, res.OK)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, ErrUndeclared, res.Errors[0].Kind)
	assert.Equal(t, "missing", res.Errors[0].Name)
	assert.Contains(t, res.Messages()[0], "missing")
}

func TestCollectsEveryError(t *testing.T) {
	res := check(t,
		fn("f", []*ast.Node{param("a"), param("a")}, ret(id("a"))),
		fn("f", nil, ret(num(0))),
		fn("main", nil,
			decl("x", num(1)),
			decl("x", num(2)),
			ast.NewAssign(0, "y", num(3)),
			ast.NewPrint(0, call("f", num(1), num(2), num(3))),
			ast.NewPrint(0, call("x")),
		),
	)
	require.False(t, res.OK)

	var kinds []ErrorKind
	for _, e := range res.Errors {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []ErrorKind{
		ErrDuplicate,     // parameter a
		ErrDuplicate,     // function f
		ErrDuplicate,     // variable x
		ErrUndeclared,    // y
		ErrArity,         // f(1, 2, 3)
		ErrNotFunction,   // x()
		ErrMissingReturn, // main
	}, kinds)
	assert.Equal(t, "Parameter 'a' duplicated", res.Errors[0].Msg)
	assert.Equal(t, "'f' expects 2 arguments, got 3", res.Errors[4].Msg)
	assert.Equal(t, "Function 'main' must contain a 'return'", res.Errors[6].Msg)
}

func TestUnknownTypesDoNotCascade(t *testing.T) {
	res := check(t, fn("main", nil,
		decl("x", bin("+", id("nope"), num(1))),
		ast.NewWhile(0, id("ghost"), nil),
		ret(num(0)),
	))
	require.Len(t, res.Errors, 2)
	assert.Equal(t, ErrUndeclared, res.Errors[0].Kind)
	assert.Equal(t, ErrUndeclared, res.Errors[1].Kind)
}

func TestFunctionValuesAreTypeErrors(t *testing.T) {
	res := check(t,
		fn("g", nil, ret(num(1))),
		fn("h", []*ast.Node{param("p")}, ret(id("p"))),
		fn("main", nil,
			decl("x", id("g")),
			ast.NewIf(0, id("g"), nil, nil),
			ast.NewPrint(0, bin("+", id("g"), num(1))),
			ast.NewPrint(0, call("h", id("g"))),
			ret(num(0)),
		),
	)
	var kinds []ErrorKind
	for _, e := range res.Errors {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []ErrorKind{ErrTypeMismatch, ErrCondition, ErrTypeMismatch, ErrTypeMismatch}, kinds)
	assert.Equal(t, "IF condition must be int", res.Errors[1].Msg)
	assert.Equal(t, "Argument 1: expected 'int', got 'function'", res.Errors[3].Msg)
}

func TestReturnPresenceIsTextual(t *testing.T) {
	// a return nested in an if does not count; one at top level does even if unreachable
	res := check(t, fn("f", nil, ast.NewIf(0, num(1), []*ast.Node{ret(num(1))}, nil)))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, ErrMissingReturn, res.Errors[0].Kind)

	res = check(t, fn("g", nil, ast.NewWhile(0, num(0), nil), ret(num(0))))
	assert.True(t, res.OK)
}

func TestReturnOutsideFunction(t *testing.T) {
	res := check(t, ret(num(0)))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, ErrReturnOutsideFunc, res.Errors[0].Kind)
}

func TestForScopesAndCondition(t *testing.T) {
	res := check(t, fn("main", nil,
		ast.NewFor(0, decl("i", num(0)), bin("<", id("i"), num(3)),
			ast.NewAssign(0, "i", bin("+", id("i"), num(1))),
			[]*ast.Node{ast.NewPrint(0, id("i"))}),
		ret(num(0)),
	))
	assert.True(t, res.OK, res.Messages())
}

func TestRecursionIsVisible(t *testing.T) {
	res := check(t, fn("fact", []*ast.Node{param("n")},
		ret(bin("*", id("n"), call("fact", bin("-", id("n"), num(1)))))))
	assert.True(t, res.OK, res.Messages())
}

func TestWarnings(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.NewConfig()
	cfg.Stderr = &buf
	_, err := NewTypeChecker(cfg).Check(ast.NewProgram([]*ast.Node{
		fn("main", nil, decl("t1", bin("/", num(4), num(0))), ret(num(0))),
	}))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[-Wdiv-by-zero]")
	assert.Contains(t, buf.String(), "[-Wreserved-name]")
}

func TestUnsupportedNode(t *testing.T) {
	bogus := &ast.Node{Type: ast.NodeType(999)}
	_, err := NewTypeChecker(config.NewConfig()).Check(ast.NewProgram([]*ast.Node{bogus}))
	require.ErrorIs(t, err, ast.ErrUnsupportedNode)
}
