package codegen

import (
	"fmt"
	"strconv"

	"github.com/xplshn/tacc/pkg/ast"
	"github.com/xplshn/tacc/pkg/config"
	"github.com/xplshn/tacc/pkg/ir"
	"github.com/xplshn/tacc/pkg/util"
)

// Context lowers one AST into TAC. Temporary and label counters belong to the Context,
// so independent compilations never share names.
type Context struct {
	prog        *ir.Program
	tempCount   int
	labelCount  int
	currentFunc string
	cfg         *config.Config
}

func NewContext(cfg *config.Config) *Context {
	return &Context{prog: ir.NewProgram(), cfg: cfg}
}

func (ctx *Context) newTemp() string {
	t := "t" + strconv.Itoa(ctx.tempCount)
	ctx.tempCount++
	return t
}

func (ctx *Context) newLabel() string {
	l := "L" + strconv.Itoa(ctx.labelCount)
	ctx.labelCount++
	return l
}

func (ctx *Context) emit(in ir.Instruction) { ctx.prog.Emit(in) }

func (ctx *Context) emitLabel(l string) { ctx.emit(ir.Instruction{Op: ir.OpLabel, Arg1: l}) }

// GenerateIR lowers root, which must already have passed semantic analysis
func (ctx *Context) GenerateIR(root *ast.Node) (*ir.Program, error) {
	if err := ctx.codegenStmt(root); err != nil {
		return nil, err
	}
	return ctx.prog, nil
}

func (ctx *Context) codegenStmts(stmts []*ast.Node) error {
	returned := false
	for _, s := range stmts {
		if returned && s != nil {
			util.Warn(ctx.cfg, config.WarnUnreachableCode, "statement after 'return' in '%s' is never executed", ctx.currentFunc)
			returned = false // one warning per run of dead statements
		}
		if err := ctx.codegenStmt(s); err != nil {
			return err
		}
		if s != nil && s.Type == ast.Return {
			returned = true
		}
	}
	return nil
}

func (ctx *Context) codegenStmt(node *ast.Node) error {
	if node == nil {
		return nil
	}
	switch d := node.Data.(type) {
	case ast.ProgramNode:
		return ctx.codegenStmts(d.Stmts)
	case ast.FuncDeclNode:
		return ctx.codegenFuncDecl(d)
	case ast.DeclAssignNode:
		return ctx.codegenAssign(d.Name, d.Value)
	case ast.AssignNode:
		return ctx.codegenAssign(d.Name, d.Value)
	case ast.ReturnNode:
		if d.Expr == nil {
			ctx.emit(ir.Instruction{Op: ir.OpReturn})
			return nil
		}
		v, err := ctx.codegenExpr(d.Expr)
		if err != nil {
			return err
		}
		ctx.emit(ir.Instruction{Op: ir.OpReturn, Arg1: v})
	case ast.PrintNode:
		v, err := ctx.codegenExpr(d.Expr)
		if err != nil {
			return err
		}
		ctx.emit(ir.Instruction{Op: ir.OpPrint, Arg1: v})
	case ast.IfNode:
		return ctx.codegenIf(d)
	case ast.WhileNode:
		return ctx.codegenLoop(nil, d.Cond, nil, d.Body)
	case ast.ForNode:
		return ctx.codegenLoop(d.Init, d.Cond, d.Incr, d.Body)
	case ast.NumberNode, ast.IdentNode, ast.BinaryOpNode, ast.FuncCallNode:
		_, err := ctx.codegenExpr(node)
		return err
	default:
		return fmt.Errorf("codegen: %w %s", ast.ErrUnsupportedNode, node.Type)
	}
	return nil
}

func (ctx *Context) codegenFuncDecl(d ast.FuncDeclNode) error {
	params := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		params = append(params, p.Data.(ast.ParamNode).Name)
	}
	ctx.prog.Signatures[d.Name] = params

	prevFunc := ctx.currentFunc
	ctx.currentFunc = d.Name
	defer func() { ctx.currentFunc = prevFunc }()

	ctx.emit(ir.Instruction{Op: ir.OpBeginFunc, Arg1: d.Name})
	if err := ctx.codegenStmts(d.Body); err != nil {
		return err
	}
	ctx.emit(ir.Instruction{Op: ir.OpEndFunc, Arg1: d.Name})
	return nil
}

func (ctx *Context) codegenAssign(name string, value *ast.Node) error {
	v, err := ctx.codegenExpr(value)
	if err != nil {
		return err
	}
	ctx.emit(ir.Assign(v, name))
	return nil
}

// codegenIf emits:
//
//	if c goto Lt; goto Lf; Lt: then; goto Le; Lf: else; Le:
//
// and drops the jump over the else branch and Le when there is none.
func (ctx *Context) codegenIf(d ast.IfNode) error {
	c, err := ctx.codegenExpr(d.Cond)
	if err != nil {
		return err
	}
	lTrue, lFalse := ctx.newLabel(), ctx.newLabel()
	ctx.emit(ir.Instruction{Op: ir.OpIf, Arg1: c, Arg2: lTrue})
	ctx.emit(ir.Instruction{Op: ir.OpGoto, Arg1: lFalse})
	ctx.emitLabel(lTrue)
	if err := ctx.codegenStmts(d.ThenBody); err != nil {
		return err
	}

	if len(d.ElseBody) == 0 {
		ctx.emitLabel(lFalse)
		return nil
	}

	lEnd := ctx.newLabel()
	ctx.emit(ir.Instruction{Op: ir.OpGoto, Arg1: lEnd})
	ctx.emitLabel(lFalse)
	if err := ctx.codegenStmts(d.ElseBody); err != nil {
		return err
	}
	ctx.emitLabel(lEnd)
	return nil
}

// codegenLoop lowers while (init and incr nil) and for loops:
//
//	init; Lh: c = cond; iffalse c goto Lx; body; incr; goto Lh; Lx:
//
// A for loop without a condition loops until a return.
func (ctx *Context) codegenLoop(init, cond, incr *ast.Node, body []*ast.Node) error {
	if err := ctx.codegenStmt(init); err != nil {
		return err
	}
	lHead, lExit := ctx.newLabel(), ctx.newLabel()
	ctx.emitLabel(lHead)
	if cond != nil {
		c, err := ctx.codegenExpr(cond)
		if err != nil {
			return err
		}
		ctx.emit(ir.Instruction{Op: ir.OpIfFalse, Arg1: c, Arg2: lExit})
	}
	if err := ctx.codegenStmts(body); err != nil {
		return err
	}
	if err := ctx.codegenStmt(incr); err != nil {
		return err
	}
	ctx.emit(ir.Instruction{Op: ir.OpGoto, Arg1: lHead})
	ctx.emitLabel(lExit)
	return nil
}

// codegenExpr returns the operand holding the expression's value: a literal, a name or a fresh temporary
func (ctx *Context) codegenExpr(node *ast.Node) (string, error) {
	if node == nil {
		return "", fmt.Errorf("codegen: missing expression in '%s'", ctx.currentFunc)
	}
	switch d := node.Data.(type) {
	case ast.NumberNode:
		return strconv.FormatInt(d.Value, 10), nil
	case ast.IdentNode:
		return d.Name, nil
	case ast.BinaryOpNode:
		left, err := ctx.codegenExpr(d.Left)
		if err != nil {
			return "", err
		}
		right, err := ctx.codegenExpr(d.Right)
		if err != nil {
			return "", err
		}
		t := ctx.newTemp()
		ctx.emit(ir.Binary(ir.Op(d.Op), left, right, t))
		return t, nil
	case ast.FuncCallNode:
		// evaluate every argument before the first param so nested calls cannot interleave
		args := make([]string, len(d.Args))
		for i, a := range d.Args {
			v, err := ctx.codegenExpr(a)
			if err != nil {
				return "", err
			}
			args[i] = v
		}
		for _, a := range args {
			ctx.emit(ir.Instruction{Op: ir.OpParam, Arg1: a})
		}
		t := ctx.newTemp()
		ctx.emit(ir.Instruction{Op: ir.OpCall, Arg1: d.Name, Args: args, Result: t})
		return t, nil
	}
	return "", fmt.Errorf("codegen: %w %s in expression", ast.ErrUnsupportedNode, node.Type)
}
