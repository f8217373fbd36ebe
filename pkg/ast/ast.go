// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"errors"
	"fmt"
)

// ErrUnsupportedNode is returned by every tree walker that meets a node kind it has no arm for
var ErrUnsupportedNode = errors.New("unsupported node kind")

// ErrNullNode is returned by Decode for a null entry in a statement, parameter or argument list
var ErrNullNode = errors.New("null node")

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	Number NodeType = iota
	Ident
	BinaryOp
	FuncCall

	// Statements
	Program
	FuncDecl
	Param
	DeclAssign
	Assign
	Return
	Print
	If
	While
	For
)

var nodeTypeNames = map[NodeType]string{
	Number:     "number",
	Ident:      "id",
	BinaryOp:   "binop",
	FuncCall:   "call",
	Program:    "program",
	FuncDecl:   "function",
	Param:      "parameter",
	DeclAssign: "decl_assign",
	Assign:     "assign",
	Return:     "return",
	Print:      "print",
	If:         "if",
	While:      "while",
	For:        "for",
}

func (t NodeType) String() string {
	if name, ok := nodeTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// ParseNodeType maps a kind tag such as "decl_assign" to its NodeType
func ParseNodeType(kind string) (NodeType, bool) {
	for t, name := range nodeTypeNames {
		if name == kind {
			return t, true
		}
	}
	return 0, false
}

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type   NodeType
	Line   int
	Parent *Node
	Data   interface{}
}

// Semantic type names. The language only has integers; functions are the other symbol kind.
const (
	TypeInt      = "int"
	TypeFunction = "function"
)

// --- Node Data Structs ---
type NumberNode struct{ Value int64 }
type IdentNode struct{ Name string }
type BinaryOpNode struct{ Op string; Left, Right *Node }
type FuncCallNode struct{ Name string; Args []*Node }
type ProgramNode struct{ Stmts []*Node }
type FuncDeclNode struct {
	Name       string
	Params     []*Node
	Body       []*Node
	ReturnType string
}
type ParamNode struct{ Name, Type string }
type DeclAssignNode struct{ Name, Type string; Value *Node }
type AssignNode struct{ Name string; Value *Node }
type ReturnNode struct{ Expr *Node }
type PrintNode struct{ Expr *Node }
type IfNode struct{ Cond *Node; ThenBody, ElseBody []*Node }
type WhileNode struct{ Cond *Node; Body []*Node }
type ForNode struct{ Init, Cond, Incr *Node; Body []*Node }

// --- Node Constructors ---

func newNode(line int, nodeType NodeType, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Line: line, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func adopt(parent *Node, children []*Node) {
	for _, c := range children {
		if c != nil {
			c.Parent = parent
		}
	}
}

func NewNumber(line int, value int64) *Node {
	return newNode(line, Number, NumberNode{Value: value})
}
func NewIdent(line int, name string) *Node {
	return newNode(line, Ident, IdentNode{Name: name})
}
func NewBinaryOp(line int, op string, left, right *Node) *Node {
	return newNode(line, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}
func NewFuncCall(line int, name string, args []*Node) *Node {
	node := newNode(line, FuncCall, FuncCallNode{Name: name, Args: args})
	adopt(node, args)
	return node
}
func NewProgram(stmts []*Node) *Node {
	node := newNode(0, Program, ProgramNode{Stmts: stmts})
	adopt(node, stmts)
	return node
}
func NewFuncDecl(line int, name string, params []*Node, body []*Node, returnType string) *Node {
	if returnType == "" {
		returnType = TypeInt
	}
	node := newNode(line, FuncDecl, FuncDeclNode{Name: name, Params: params, Body: body, ReturnType: returnType})
	adopt(node, params)
	adopt(node, body)
	return node
}
func NewParam(line int, name, typ string) *Node {
	if typ == "" {
		typ = TypeInt
	}
	return newNode(line, Param, ParamNode{Name: name, Type: typ})
}
func NewDeclAssign(line int, name, typ string, value *Node) *Node {
	if typ == "" {
		typ = TypeInt
	}
	return newNode(line, DeclAssign, DeclAssignNode{Name: name, Type: typ, Value: value}, value)
}
func NewAssign(line int, name string, value *Node) *Node {
	return newNode(line, Assign, AssignNode{Name: name, Value: value}, value)
}
func NewReturn(line int, expr *Node) *Node {
	return newNode(line, Return, ReturnNode{Expr: expr}, expr)
}
func NewPrint(line int, expr *Node) *Node {
	return newNode(line, Print, PrintNode{Expr: expr}, expr)
}
func NewIf(line int, cond *Node, thenBody, elseBody []*Node) *Node {
	node := newNode(line, If, IfNode{Cond: cond, ThenBody: thenBody, ElseBody: elseBody}, cond)
	adopt(node, thenBody)
	adopt(node, elseBody)
	return node
}
func NewWhile(line int, cond *Node, body []*Node) *Node {
	node := newNode(line, While, WhileNode{Cond: cond, Body: body}, cond)
	adopt(node, body)
	return node
}
func NewFor(line int, init, cond, incr *Node, body []*Node) *Node {
	node := newNode(line, For, ForNode{Init: init, Cond: cond, Incr: incr, Body: body}, init, cond, incr)
	adopt(node, body)
	return node
}

// IsComparison reports whether op yields a 0/1 truth value
func IsComparison(op string) bool {
	switch op {
	case "<", ">", "<=", ">=", "==", "!=":
		return true
	}
	return false
}

// IsBinaryOp reports whether op is accepted in a binop node
func IsBinaryOp(op string) bool {
	switch op {
	case "+", "-", "*", "/":
		return true
	}
	return IsComparison(op)
}
