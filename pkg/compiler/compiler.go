// Package compiler runs the whole pipeline over one AST: semantic analysis, TAC generation,
// optimization and assembly generation.
package compiler

import (
	"context"
	"fmt"

	"github.com/xplshn/tacc/pkg/ast"
	"github.com/xplshn/tacc/pkg/codegen"
	"github.com/xplshn/tacc/pkg/config"
	"github.com/xplshn/tacc/pkg/ir"
	"github.com/xplshn/tacc/pkg/optimizer"
	"github.com/xplshn/tacc/pkg/symtab"
	"github.com/xplshn/tacc/pkg/typeChecker"
	"github.com/xplshn/tacc/pkg/util"
)

// Result holds every artifact produced. Fields after a failed phase stay nil.
type Result struct {
	Success     bool
	Errors      []string
	Diagnostics []*typeChecker.Error
	Table       *symtab.Table
	IR          *ir.Program
	Optimized   *ir.Program
	Assembly    []string
	Stats       *optimizer.Stats
}

func Compile(root *ast.Node, cfg *config.Config) (*Result, error) {
	return CompileContext(context.Background(), root, cfg)
}

// CompileContext is Compile with a context for the optimizer. Semantic errors are reported
// in the Result; the returned error means a phase could not run at all.
func CompileContext(ctx context.Context, root *ast.Node, cfg *config.Config) (*Result, error) {
	util.Info(cfg, "semantic analysis")
	checked, err := typeChecker.NewTypeChecker(cfg).Check(root)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Errors:      checked.Messages(),
		Diagnostics: checked.Errors,
		Table:       checked.Table,
	}
	if !checked.OK {
		return res, nil
	}

	util.Info(cfg, "generating TAC")
	res.IR, err = codegen.NewContext(cfg).GenerateIR(root)
	if err != nil {
		return nil, fmt.Errorf("IR generation: %w", err)
	}

	util.Info(cfg, "optimizing %d instructions", res.IR.Len())
	res.Optimized, res.Stats, err = optimizer.Optimize(ctx, res.IR, cfg)
	if err != nil {
		return nil, fmt.Errorf("optimization: %w", err)
	}

	util.Info(cfg, "generating assembly")
	res.Assembly, err = codegen.GenerateAssembly(res.Optimized, cfg)
	if err != nil {
		return nil, fmt.Errorf("assembly generation: %w", err)
	}
	res.Success = true
	return res, nil
}
