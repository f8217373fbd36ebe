// Package symtab implements the nested-scope symbol table used by semantic analysis
package symtab

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrRedeclared = errors.New("already declared in this scope")
	ErrExitGlobal = errors.New("cannot exit the global scope")
)

const (
	GlobalScope = "global"
	FuncType    = "function"
)

// ParamInfo describes one declared parameter of a function symbol
type ParamInfo struct {
	Name string
	Type string
}

type Symbol struct {
	Name    string
	Type    string
	Scope   string
	Offset  int
	IsParam bool
	Params  []ParamInfo
}

type Scope struct {
	ID      int
	Name    string
	Parent  int // -1 for the global scope
	Level   int
	Symbols map[string]*Symbol
	Order   []string
	Closed  bool
	offset  int
}

// Table is an arena of scopes. Scopes are never freed: exiting one only closes it.
type Table struct {
	scopes []*Scope
	stack  []int
}

func New() *Table {
	t := &Table{}
	t.push(GlobalScope)
	return t
}

func (t *Table) push(name string) *Scope {
	parent, level := -1, 0
	if len(t.stack) > 0 {
		cur := t.Current()
		parent, level = cur.ID, cur.Level+1
	}
	s := &Scope{
		ID:      len(t.scopes),
		Name:    name,
		Parent:  parent,
		Level:   level,
		Symbols: make(map[string]*Symbol),
	}
	t.scopes = append(t.scopes, s)
	t.stack = append(t.stack, s.ID)
	return s
}

func (t *Table) Current() *Scope { return t.scopes[t.stack[len(t.stack)-1]] }

// EnterScope opens a child of the current scope and makes it current
func (t *Table) EnterScope(name string) *Scope { return t.push(name) }

func (t *Table) ExitScope() error {
	if len(t.stack) == 1 {
		return ErrExitGlobal
	}
	t.Current().Closed = true
	t.stack = t.stack[:len(t.stack)-1]
	return nil
}

// Insert declares name in the current scope with the next free offset
func (t *Table) Insert(name, typ string, isParam bool) (*Symbol, error) {
	s := t.Current()
	if _, exists := s.Symbols[name]; exists {
		return nil, fmt.Errorf("'%s' %w '%s'", name, ErrRedeclared, s.Name)
	}
	sym := &Symbol{Name: name, Type: typ, Scope: s.Name, Offset: s.offset, IsParam: isParam}
	s.offset++
	s.Symbols[name] = sym
	s.Order = append(s.Order, name)
	return sym, nil
}

// InsertFunc declares a function symbol together with its parameter list
func (t *Table) InsertFunc(name string, params []ParamInfo) (*Symbol, error) {
	sym, err := t.Insert(name, FuncType, false)
	if err != nil {
		return nil, err
	}
	sym.Params = append([]ParamInfo(nil), params...)
	return sym, nil
}

// Lookup walks from the current scope to the global scope. It returns nil when name is unknown.
func (t *Table) Lookup(name string, currentOnly bool) *Symbol {
	for id := t.Current().ID; id >= 0; id = t.scopes[id].Parent {
		if sym, ok := t.scopes[id].Symbols[name]; ok {
			return sym
		}
		if currentOnly {
			break
		}
	}
	return nil
}

// Scopes returns every scope ever opened, global first
func (t *Table) Scopes() []*Scope { return t.scopes }

// Scope returns the first scope opened under name, open or closed
func (t *Table) Scope(name string) *Scope {
	for _, s := range t.scopes {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// List returns a scope's symbols in declaration order
func (s *Scope) List() []*Symbol {
	out := make([]*Symbol, 0, len(s.Order))
	for _, name := range s.Order {
		out = append(out, s.Symbols[name])
	}
	return out
}

// Fprint writes a human-readable dump of every scope
func (t *Table) Fprint(w io.Writer) {
	for _, s := range t.scopes {
		fmt.Fprintf(w, "%sscope %s (level %d)\n", strings.Repeat("  ", s.Level), s.Name, s.Level)
		for _, sym := range s.List() {
			var extra []string
			if sym.IsParam {
				extra = append(extra, "[PARAM]")
			}
			if sym.Type == FuncType {
				extra = append(extra, fmt.Sprintf("params=%d", len(sym.Params)))
			}
			line := fmt.Sprintf("%s  %-12s %-9s offset=%d", strings.Repeat("  ", s.Level), sym.Name, sym.Type, sym.Offset)
			if len(extra) > 0 {
				line += " " + strings.Join(extra, " ")
			}
			fmt.Fprintln(w, line)
		}
	}
}
