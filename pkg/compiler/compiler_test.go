package compiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/tacc/pkg/ast"
	"github.com/xplshn/tacc/pkg/config"
)

func quietConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Stderr = &bytes.Buffer{}
	return cfg
}

const scenarioJSON = `{
  "kind": "program",
  "body": [
    {"kind": "function", "name": "main", "body": [
      {"kind": "decl_assign", "name": "x", "value": {"kind": "binop", "op": "+", "left": {"kind": "number", "value": 5}, "right": {"kind": "number", "value": 3}}},
      {"kind": "decl_assign", "name": "y", "value": {"kind": "binop", "op": "*", "left": {"kind": "id", "name": "x"}, "right": {"kind": "number", "value": 1}}},
      {"kind": "decl_assign", "name": "z", "value": {"kind": "binop", "op": "+", "left": {"kind": "id", "name": "y"}, "right": {"kind": "number", "value": 0}}},
      {"kind": "print", "value": {"kind": "id", "name": "z"}},
      {"kind": "return", "value": 0}
    ]}
  ]
}`

func TestCompileScenario(t *testing.T) {
	root, err := ast.Decode(strings.NewReader(scenarioJSON), ast.FormatJSON)
	require.NoError(t, err)

	res, err := Compile(root, quietConfig())
	require.NoError(t, err)
	require.True(t, res.Success, res.Errors)
	assert.Empty(t, res.Errors)

	assert.Equal(t, 10, res.IR.Len())
	wantOpt := []string{
		"begin_func main",
		"x = 8",
		"y = 8",
		"z = 8",
		"print z",
		"return 0",
		"end_func main",
	}
	if diff := cmp.Diff(wantOpt, res.Optimized.Lines()); diff != "" {
		t.Errorf("optimized IR mismatch (-want +got):\n%s", diff)
	}
	assert.LessOrEqual(t, res.Optimized.Len(), res.IR.Len())
	assert.Equal(t, "main:", res.Assembly[0])
	assert.Contains(t, res.Assembly, "  PRINT R2")
	assert.True(t, res.Stats.Converged)

	main := res.Table.Scope("main")
	require.NotNil(t, main)
	assert.Len(t, main.List(), 3)
}

func TestCompileUndeclaredFunctionStopsBeforeIR(t *testing.T) {
	root := ast.NewProgram([]*ast.Node{
		ast.NewFuncDecl(1, "main", nil, []*ast.Node{
			ast.NewDeclAssign(2, "x", "", ast.NewFuncCall(2, "missing", []*ast.Node{ast.NewNumber(2, 1)})),
			ast.NewReturn(3, ast.NewIdent(3, "x")),
		}, ""),
	})
	res, err := Compile(root, quietConfig())
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "missing")
	assert.Equal(t, 2, res.Diagnostics[0].Line)
	assert.NotNil(t, res.Table)
	assert.Nil(t, res.IR)
	assert.Nil(t, res.Optimized)
	assert.Nil(t, res.Assembly)
	assert.Nil(t, res.Stats)
}

func TestCompileUnsupportedNode(t *testing.T) {
	_, err := Compile(ast.NewProgram([]*ast.Node{{Type: ast.NodeType(999)}}), quietConfig())
	require.ErrorIs(t, err, ast.ErrUnsupportedNode)
}

func TestCompileWithoutOptimizer(t *testing.T) {
	root, err := ast.Decode(strings.NewReader(scenarioJSON), ast.FormatJSON)
	require.NoError(t, err)
	cfg := quietConfig()
	cfg.SetFeature(config.FeatOpt, false)

	res, err := Compile(root, cfg)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, res.IR.Lines(), res.Optimized.Lines())
}

func TestCompileNilEntries(t *testing.T) {
	body := []*ast.Node{nil, ast.NewReturn(2, ast.NewNumber(2, 0))}
	res, err := Compile(ast.NewProgram([]*ast.Node{ast.NewFuncDecl(1, "main", nil, body, "")}), quietConfig())
	require.NoError(t, err)
	assert.True(t, res.Success, res.Errors)

	params := []*ast.Node{nil}
	_, err = Compile(ast.NewProgram([]*ast.Node{ast.NewFuncDecl(1, "main", params, body, "")}), quietConfig())
	require.ErrorIs(t, err, ast.ErrNullNode)
}
