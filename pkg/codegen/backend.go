package codegen

import (
	"bytes"
	"fmt"

	"github.com/xplshn/tacc/pkg/config"
	"github.com/xplshn/tacc/pkg/ir"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes a TAC program and a configuration, and produces the target
	// assembly or intermediate language as a byte buffer.
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
}

// IRDumper is implemented by backends that have a textual intermediate form of their own
type IRDumper interface {
	GenerateIR(prog *ir.Program, cfg *config.Config) (string, error)
}

// NewBackend returns the backend registered under name: "asm" or "qbe"
func NewBackend(name string) (Backend, error) {
	switch name {
	case "asm":
		return NewAsmBackend(), nil
	case "qbe":
		return NewQBEBackend(), nil
	}
	return nil, fmt.Errorf("unknown backend '%s'", name)
}
