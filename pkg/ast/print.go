package ast

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes an indented outline of the tree, one node per line
func Fprint(w io.Writer, node *Node) {
	fprint(w, node, 0)
}

func fprint(w io.Writer, node *Node, depth int) {
	if node == nil {
		return
	}
	prefix := strings.Repeat("  ", depth)
	list := func(label string, nodes []*Node) {
		if len(nodes) == 0 {
			return
		}
		fmt.Fprintf(w, "%s  %s:\n", prefix, label)
		for _, n := range nodes {
			fprint(w, n, depth+2)
		}
	}

	switch d := node.Data.(type) {
	case ProgramNode:
		fmt.Fprintf(w, "%sPROGRAM\n", prefix)
		for _, s := range d.Stmts {
			fprint(w, s, depth+1)
		}
	case FuncDeclNode:
		fmt.Fprintf(w, "%sFUNCTION %s\n", prefix, d.Name)
		list("PARAMS", d.Params)
		list("BODY", d.Body)
	case ParamNode:
		fmt.Fprintf(w, "%s%s %s\n", prefix, d.Type, d.Name)
	case DeclAssignNode:
		fmt.Fprintf(w, "%sDECL_ASSIGN %s %s =\n", prefix, d.Type, d.Name)
		fprint(w, d.Value, depth+1)
	case AssignNode:
		fmt.Fprintf(w, "%sASSIGN %s =\n", prefix, d.Name)
		fprint(w, d.Value, depth+1)
	case ReturnNode:
		fmt.Fprintf(w, "%sRETURN\n", prefix)
		fprint(w, d.Expr, depth+1)
	case PrintNode:
		fmt.Fprintf(w, "%sPRINT\n", prefix)
		fprint(w, d.Expr, depth+1)
	case BinaryOpNode:
		fmt.Fprintf(w, "%sBINOP %s\n", prefix, d.Op)
		fprint(w, d.Left, depth+1)
		fprint(w, d.Right, depth+1)
	case NumberNode:
		fmt.Fprintf(w, "%sNUMBER %d\n", prefix, d.Value)
	case IdentNode:
		fmt.Fprintf(w, "%sID %s\n", prefix, d.Name)
	case FuncCallNode:
		fmt.Fprintf(w, "%sCALL %s\n", prefix, d.Name)
		list("ARGS", d.Args)
	case IfNode:
		fmt.Fprintf(w, "%sIF\n", prefix)
		fprint(w, d.Cond, depth+1)
		list("THEN", d.ThenBody)
		list("ELSE", d.ElseBody)
	case WhileNode:
		fmt.Fprintf(w, "%sWHILE\n", prefix)
		fprint(w, d.Cond, depth+1)
		list("BODY", d.Body)
	case ForNode:
		fmt.Fprintf(w, "%sFOR\n", prefix)
		if d.Init != nil {
			list("INIT", []*Node{d.Init})
		}
		if d.Cond != nil {
			list("COND", []*Node{d.Cond})
		}
		if d.Incr != nil {
			list("INCR", []*Node{d.Incr})
		}
		list("BODY", d.Body)
	default:
		fmt.Fprintf(w, "%s<%s>\n", prefix, node.Type)
	}
}
