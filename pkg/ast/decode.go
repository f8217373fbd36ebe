package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// wireNode is the on-disk shape of a node. The same struct serves JSON and YAML documents.
type wireNode struct {
	Kind   string      `json:"kind" yaml:"kind"`
	Line   int         `json:"line,omitempty" yaml:"line,omitempty"`
	Name   string      `json:"name,omitempty" yaml:"name,omitempty"`
	Type   string      `json:"type,omitempty" yaml:"type,omitempty"`
	Op     string      `json:"op,omitempty" yaml:"op,omitempty"`
	Value  *wireValue  `json:"value,omitempty" yaml:"value,omitempty"`
	Left   *wireNode   `json:"left,omitempty" yaml:"left,omitempty"`
	Right  *wireNode   `json:"right,omitempty" yaml:"right,omitempty"`
	Cond   *wireNode   `json:"cond,omitempty" yaml:"cond,omitempty"`
	Init   *wireNode   `json:"init,omitempty" yaml:"init,omitempty"`
	Incr   *wireNode   `json:"incr,omitempty" yaml:"incr,omitempty"`
	Params []*wireNode `json:"params,omitempty" yaml:"params,omitempty"`
	Args   []*wireNode `json:"args,omitempty" yaml:"args,omitempty"`
	Body   []*wireNode `json:"body,omitempty" yaml:"body,omitempty"`
	Then   []*wireNode `json:"then,omitempty" yaml:"then,omitempty"`
	Else   []*wireNode `json:"else,omitempty" yaml:"else,omitempty"`
}

// wireValue is either an integer literal (number nodes) or a child expression.
type wireValue struct {
	num  *int64
	node *wireNode
}

func (v *wireValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		v.node = &wireNode{}
		return json.Unmarshal(data, v.node)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("value must be an integer or a node, got %s", data)
	}
	v.num = &n
	return nil
}

func (v *wireValue) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		v.node = &wireNode{}
		return value.Decode(v.node)
	case yaml.ScalarNode:
		n, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: value must be an integer or a node, got %q", value.Line, value.Value)
		}
		v.num = &n
		return nil
	}
	return fmt.Errorf("line %d: value must be an integer or a node", value.Line)
}

// Format selects the document syntax understood by Decode
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatForPath picks the decoder from a file extension, defaulting to JSON
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Decode reads one AST document. A root without a kind but with a body is taken as a program.
func Decode(r io.Reader, format Format) (*Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var root wireNode
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &root)
	default:
		err = json.Unmarshal(data, &root)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding AST: %w", err)
	}
	if root.Kind == "" && len(root.Body) > 0 {
		root.Kind = "program"
	}
	return root.build()
}

func (w *wireNode) build() (*Node, error) {
	if w == nil {
		return nil, nil
	}
	kind, ok := ParseNodeType(w.Kind)
	if !ok {
		return nil, fmt.Errorf("line %d: %w %q", w.Line, ErrUnsupportedNode, w.Kind)
	}

	switch kind {
	case Program:
		stmts, err := buildList(w.Body)
		if err != nil {
			return nil, err
		}
		return NewProgram(stmts), nil
	case FuncDecl:
		params, err := buildList(w.Params)
		if err != nil {
			return nil, err
		}
		body, err := buildList(w.Body)
		if err != nil {
			return nil, err
		}
		return NewFuncDecl(w.Line, w.Name, params, body, w.Type), nil
	case Param:
		return NewParam(w.Line, w.Name, w.Type), nil
	case DeclAssign, Assign, Return, Print:
		expr, err := w.child()
		if err != nil {
			return nil, err
		}
		switch kind {
		case DeclAssign:
			return NewDeclAssign(w.Line, w.Name, w.Type, expr), nil
		case Assign:
			return NewAssign(w.Line, w.Name, expr), nil
		case Return:
			return NewReturn(w.Line, expr), nil
		default:
			return NewPrint(w.Line, expr), nil
		}
	case BinaryOp:
		if !IsBinaryOp(w.Op) {
			return nil, fmt.Errorf("line %d: unknown binary operator %q", w.Line, w.Op)
		}
		left, err := w.Left.build()
		if err != nil {
			return nil, err
		}
		right, err := w.Right.build()
		if err != nil {
			return nil, err
		}
		if left == nil || right == nil {
			return nil, fmt.Errorf("line %d: binop %q needs both operands", w.Line, w.Op)
		}
		return NewBinaryOp(w.Line, w.Op, left, right), nil
	case Number:
		if w.Value == nil || w.Value.num == nil {
			return nil, fmt.Errorf("line %d: number node without an integer value", w.Line)
		}
		return NewNumber(w.Line, *w.Value.num), nil
	case Ident:
		return NewIdent(w.Line, w.Name), nil
	case FuncCall:
		args, err := buildList(w.Args)
		if err != nil {
			return nil, err
		}
		return NewFuncCall(w.Line, w.Name, args), nil
	case If:
		cond, err := w.Cond.build()
		if err != nil {
			return nil, err
		}
		thenBody, err := buildList(w.Then)
		if err != nil {
			return nil, err
		}
		elseBody, err := buildList(w.Else)
		if err != nil {
			return nil, err
		}
		return NewIf(w.Line, cond, thenBody, elseBody), nil
	case While:
		cond, err := w.Cond.build()
		if err != nil {
			return nil, err
		}
		body, err := buildList(w.Body)
		if err != nil {
			return nil, err
		}
		return NewWhile(w.Line, cond, body), nil
	case For:
		var parts [3]*Node
		for i, p := range []*wireNode{w.Init, w.Cond, w.Incr} {
			n, err := p.build()
			if err != nil {
				return nil, err
			}
			parts[i] = n
		}
		body, err := buildList(w.Body)
		if err != nil {
			return nil, err
		}
		return NewFor(w.Line, parts[0], parts[1], parts[2], body), nil
	}
	return nil, fmt.Errorf("line %d: %w %q", w.Line, ErrUnsupportedNode, w.Kind)
}

func (w *wireNode) child() (*Node, error) {
	if w.Value == nil {
		return nil, nil
	}
	if w.Value.node == nil {
		// `value: 5` on a statement is shorthand for a number node
		return NewNumber(w.Line, *w.Value.num), nil
	}
	return w.Value.node.build()
}

func buildList(ws []*wireNode) ([]*Node, error) {
	if len(ws) == 0 {
		return nil, nil
	}
	nodes := make([]*Node, 0, len(ws))
	for i, w := range ws {
		if w == nil {
			return nil, fmt.Errorf("entry %d: %w", i, ErrNullNode)
		}
		n, err := w.build()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
