package typeChecker

import (
	"errors"
	"fmt"

	"github.com/xplshn/tacc/pkg/ast"
	"github.com/xplshn/tacc/pkg/config"
	"github.com/xplshn/tacc/pkg/ir"
	"github.com/xplshn/tacc/pkg/symtab"
	"github.com/xplshn/tacc/pkg/util"
)

type ErrorKind int

const (
	ErrDuplicate ErrorKind = iota
	ErrUndeclared
	ErrTypeMismatch
	ErrArity
	ErrNotFunction
	ErrMissingReturn
	ErrCondition
	ErrReturnOutsideFunc
)

var errorKindNames = [...]string{
	ErrDuplicate:         "duplicate",
	ErrUndeclared:        "undeclared",
	ErrTypeMismatch:      "type-mismatch",
	ErrArity:             "arity",
	ErrNotFunction:       "not-a-function",
	ErrMissingReturn:     "missing-return",
	ErrCondition:         "condition",
	ErrReturnOutsideFunc: "return-outside-function",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is one semantic violation. Name is the offending identifier when there is one.
type Error struct {
	Kind ErrorKind
	Name string
	Line int
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

type Result struct {
	OK     bool
	Errors []*Error
	Table  *symtab.Table
}

// Messages returns the error texts in the order they were found
func (r *Result) Messages() []string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Msg
	}
	return msgs
}

// unknown marks an expression whose type could not be inferred; it never triggers further errors
const unknown = ""

type TypeChecker struct {
	table       *symtab.Table
	cfg         *config.Config
	errors      []*Error
	currentFunc string
}

func NewTypeChecker(cfg *config.Config) *TypeChecker {
	return &TypeChecker{table: symtab.New(), cfg: cfg}
}

// Check walks the whole tree once. Semantic violations are collected in the Result;
// the returned error is reserved for trees the checker cannot walk at all.
func (tc *TypeChecker) Check(root *ast.Node) (*Result, error) {
	tc.errors = nil
	if err := tc.checkNode(root); err != nil {
		return nil, err
	}
	return &Result{OK: len(tc.errors) == 0, Errors: tc.errors, Table: tc.table}, nil
}

func (tc *TypeChecker) report(kind ErrorKind, node *ast.Node, name, format string, args ...interface{}) {
	e := &Error{Kind: kind, Name: name, Msg: fmt.Sprintf(format, args...)}
	if node != nil {
		e.Line = node.Line
	}
	tc.errors = append(tc.errors, e)
}

func (tc *TypeChecker) declare(node *ast.Node, name, typ string, isParam bool, kind string) {
	if ir.IsTemp(name) {
		util.Warn(tc.cfg, config.WarnReservedName, "%s '%s' looks like a compiler temporary and may be optimized away", kind, name)
	}
	if _, err := tc.table.Insert(name, typ, isParam); err != nil {
		if errors.Is(err, symtab.ErrRedeclared) {
			if isParam {
				tc.report(ErrDuplicate, node, name, "Parameter '%s' duplicated", name)
			} else {
				tc.report(ErrDuplicate, node, name, "Variable '%s' already declared", name)
			}
		}
	}
}

func (tc *TypeChecker) checkNode(node *ast.Node) error {
	if node == nil {
		return nil
	}
	switch d := node.Data.(type) {
	case ast.ProgramNode:
		return tc.checkStmts(d.Stmts)
	case ast.FuncDeclNode:
		return tc.checkFuncDecl(node, d)
	case ast.DeclAssignNode:
		// the name is not visible inside its own initializer
		valType, err := tc.checkExpr(d.Value)
		if err != nil {
			return err
		}
		if tc.table.Lookup(d.Name, true) != nil {
			tc.report(ErrDuplicate, node, d.Name, "Variable '%s' already declared", d.Name)
			return nil
		}
		if valType != unknown && valType != d.Type {
			tc.report(ErrTypeMismatch, node, d.Name, "Type mismatch assigning to '%s'", d.Name)
		}
		tc.declare(node, d.Name, d.Type, false, "variable")
	case ast.AssignNode:
		valType, err := tc.checkExpr(d.Value)
		if err != nil {
			return err
		}
		sym := tc.table.Lookup(d.Name, false)
		if sym == nil {
			tc.report(ErrUndeclared, node, d.Name, "Variable '%s' not declared", d.Name)
			return nil
		}
		if valType != unknown && valType != sym.Type {
			tc.report(ErrTypeMismatch, node, d.Name, "Type mismatch assigning to '%s'", d.Name)
		}
	case ast.ReturnNode:
		if tc.currentFunc == "" {
			tc.report(ErrReturnOutsideFunc, node, "", "'return' outside function")
		}
		_, err := tc.checkExpr(d.Expr)
		return err
	case ast.PrintNode:
		_, err := tc.checkExpr(d.Expr)
		return err
	case ast.IfNode:
		if err := tc.checkCond(node, d.Cond, "IF"); err != nil {
			return err
		}
		if err := tc.checkStmts(d.ThenBody); err != nil {
			return err
		}
		return tc.checkStmts(d.ElseBody)
	case ast.WhileNode:
		if err := tc.checkCond(node, d.Cond, "WHILE"); err != nil {
			return err
		}
		return tc.checkStmts(d.Body)
	case ast.ForNode:
		if err := tc.checkNode(d.Init); err != nil {
			return err
		}
		if d.Cond != nil {
			if err := tc.checkCond(node, d.Cond, "FOR"); err != nil {
				return err
			}
		}
		if err := tc.checkStmts(d.Body); err != nil {
			return err
		}
		return tc.checkNode(d.Incr)
	case ast.NumberNode, ast.IdentNode, ast.BinaryOpNode, ast.FuncCallNode:
		// expression statement
		_, err := tc.checkExpr(node)
		return err
	default:
		return fmt.Errorf("type checker: %w %s", ast.ErrUnsupportedNode, node.Type)
	}
	return nil
}

func (tc *TypeChecker) checkStmts(stmts []*ast.Node) error {
	for _, s := range stmts {
		if err := tc.checkNode(s); err != nil {
			return err
		}
	}
	return nil
}

func (tc *TypeChecker) checkFuncDecl(node *ast.Node, d ast.FuncDeclNode) error {
	params := make([]symtab.ParamInfo, 0, len(d.Params))
	for i, p := range d.Params {
		if p == nil {
			return fmt.Errorf("type checker: parameter %d of '%s': %w", i, d.Name, ast.ErrNullNode)
		}
		pd, ok := p.Data.(ast.ParamNode)
		if !ok {
			return fmt.Errorf("type checker: %w %s in parameter list of '%s'", ast.ErrUnsupportedNode, p.Type, d.Name)
		}
		params = append(params, symtab.ParamInfo{Name: pd.Name, Type: pd.Type})
	}

	if _, err := tc.table.InsertFunc(d.Name, params); err != nil {
		tc.report(ErrDuplicate, node, d.Name, "Function '%s' already declared", d.Name)
	}

	// the body of a duplicate is still checked so its own errors surface
	tc.table.EnterScope(d.Name)
	prevFunc := tc.currentFunc
	tc.currentFunc = d.Name
	defer func() {
		tc.currentFunc = prevFunc
		tc.table.ExitScope()
	}()

	for i, p := range d.Params {
		tc.declare(p, params[i].Name, params[i].Type, true, "parameter")
	}

	hasReturn := false
	for _, stmt := range d.Body {
		if err := tc.checkNode(stmt); err != nil {
			return err
		}
		if stmt != nil && stmt.Type == ast.Return {
			hasReturn = true
		}
	}
	if !hasReturn {
		tc.report(ErrMissingReturn, node, d.Name, "Function '%s' must contain a 'return'", d.Name)
	}
	return nil
}

func (tc *TypeChecker) checkCond(stmt, cond *ast.Node, what string) error {
	typ, err := tc.checkExpr(cond)
	if err != nil {
		return err
	}
	if typ != unknown && typ != ast.TypeInt {
		tc.report(ErrCondition, stmt, "", "%s condition must be int", what)
	}
	return nil
}

// checkExpr infers the type of an expression, or unknown after an error
func (tc *TypeChecker) checkExpr(node *ast.Node) (string, error) {
	if node == nil {
		return unknown, nil
	}
	switch d := node.Data.(type) {
	case ast.NumberNode:
		return ast.TypeInt, nil
	case ast.IdentNode:
		sym := tc.table.Lookup(d.Name, false)
		if sym == nil {
			tc.report(ErrUndeclared, node, d.Name, "Variable '%s' not declared", d.Name)
			return unknown, nil
		}
		return sym.Type, nil
	case ast.BinaryOpNode:
		left, err := tc.checkExpr(d.Left)
		if err != nil {
			return unknown, err
		}
		right, err := tc.checkExpr(d.Right)
		if err != nil {
			return unknown, err
		}
		if left != unknown && right != unknown && left != right {
			tc.report(ErrTypeMismatch, node, "", "Incompatible types: %s and %s", left, right)
		}
		if d.Op == "/" && d.Right.Type == ast.Number && d.Right.Data.(ast.NumberNode).Value == 0 {
			util.Warn(tc.cfg, config.WarnDivByZero, "division by literal zero in '%s'", tc.currentFunc)
		}
		if left != unknown {
			return left, nil
		}
		if right != unknown {
			return right, nil
		}
		return ast.TypeInt, nil
	case ast.FuncCallNode:
		return tc.checkCall(node, d)
	}
	return unknown, fmt.Errorf("type checker: %w %s in expression", ast.ErrUnsupportedNode, node.Type)
}

func (tc *TypeChecker) checkCall(node *ast.Node, d ast.FuncCallNode) (string, error) {
	argTypes := make([]string, len(d.Args))
	for i, arg := range d.Args {
		typ, err := tc.checkExpr(arg)
		if err != nil {
			return unknown, err
		}
		argTypes[i] = typ
	}

	sym := tc.table.Lookup(d.Name, false)
	if sym == nil {
		tc.report(ErrUndeclared, node, d.Name, "Function '%s' not declared", d.Name)
		return ast.TypeInt, nil
	}
	if sym.Type != symtab.FuncType {
		tc.report(ErrNotFunction, node, d.Name, "'%s' is not a function", d.Name)
		return ast.TypeInt, nil
	}

	if len(sym.Params) != len(d.Args) {
		tc.report(ErrArity, node, d.Name, "'%s' expects %d arguments, got %d", d.Name, len(sym.Params), len(d.Args))
	}
	for i, typ := range argTypes {
		if i >= len(sym.Params) {
			break
		}
		if want := sym.Params[i].Type; typ != unknown && typ != want {
			tc.report(ErrTypeMismatch, node, d.Name, "Argument %d: expected '%s', got '%s'", i+1, want, typ)
		}
	}
	return ast.TypeInt, nil
}
