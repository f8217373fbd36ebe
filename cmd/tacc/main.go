package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/xplshn/tacc/pkg/ast"
	"github.com/xplshn/tacc/pkg/cli"
	"github.com/xplshn/tacc/pkg/codegen"
	"github.com/xplshn/tacc/pkg/compiler"
	"github.com/xplshn/tacc/pkg/config"
	"github.com/xplshn/tacc/pkg/interp"
	"github.com/xplshn/tacc/pkg/util"
)

func main() {
	app := cli.NewApp("tacc")
	app.Synopsis = "[options] <ast.json|ast.yaml>"
	app.Description = "A compiler back end for a small integer language: semantic analysis, three-address code, a fixed-point optimizer and register-machine assembly."
	app.Repository = "https://github.com/xplshn/tacc"

	var (
		outFile     string
		emit        string
		target      string
		verbose     bool
		dumpAST     bool
		dumpSymbols bool
		jobs        int
		rounds      int
		registers   int
		maxSteps    int
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file> (stdout by default, a.out for native).", "file")
	fs.String(&emit, "emit", "e", "asm", "Select the output: ir, quad, asm, run, qbe or native.", "kind")
	fs.String(&target, "target", "t", "", "Set the QBE target ABI (host by default).", "target")
	fs.Bool(&verbose, "verbose", "v", false, "Report each compilation phase.")
	fs.Bool(&dumpAST, "dump-ast", "", false, "Print an outline of the input tree.")
	fs.Bool(&dumpSymbols, "dump-symbols", "", false, "Print the symbol table after analysis.")
	fs.Int(&jobs, "jobs", "j", 1, "Optimize up to <n> functions in parallel.", "n")
	fs.Int(&rounds, "rounds", "", config.DefaultMaxRounds, "Stop the optimizer after <n> rounds.", "n")
	fs.Int(&registers, "registers", "", config.DefaultRegisters, "Size of the assembly register pool.", "n")
	fs.Int(&maxSteps, "max-steps", "", config.DefaultMaxSteps, "Abort --emit run after <n> instructions (0 for no limit).", "n")

	cfg := config.NewConfig()
	cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		if len(inputFiles) != 1 {
			util.Error(cfg, "expected exactly one input file, got %d", len(inputFiles))
			return fmt.Errorf("bad arguments")
		}
		cfg.Verbose = verbose
		cfg.Jobs = jobs
		cfg.MaxRounds = rounds
		cfg.Registers = registers
		cfg.MaxSteps = int64(maxSteps)
		cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target)

		root, err := readAST(inputFiles[0])
		if err != nil {
			util.Error(cfg, "%v", err)
			return err
		}
		if dumpAST {
			ast.Fprint(os.Stdout, root)
		}

		res, err := compiler.Compile(root, cfg)
		if err != nil {
			util.Error(cfg, "%s: %v", inputFiles[0], err)
			return err
		}
		if dumpSymbols {
			res.Table.Fprint(os.Stdout)
		}
		if !res.Success {
			for _, d := range res.Diagnostics {
				if d.Line > 0 {
					util.Error(cfg, "%s:%d: %s", inputFiles[0], d.Line, d.Msg)
				} else {
					util.Error(cfg, "%s: %s", inputFiles[0], d.Msg)
				}
			}
			return fmt.Errorf("%d semantic error(s)", len(res.Errors))
		}
		util.Info(cfg, "optimizer: %d -> %d instructions in %d round(s)", res.IR.Len(), res.Optimized.Len(), res.Stats.Rounds)

		if err := emitOutput(res, cfg, emit, outFile); err != nil {
			util.Error(cfg, "%v", err)
			return err
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func readAST(path string) (*ast.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not read file '%s': %w", path, err)
	}
	defer f.Close()
	root, err := ast.Decode(f, ast.FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return root, nil
}

func emitOutput(res *compiler.Result, cfg *config.Config, emit, outFile string) error {
	var out bytes.Buffer
	switch emit {
	case "ir":
		out.WriteString("# TAC\n")
		out.WriteString(res.IR.String())
		out.WriteString("\n# optimized TAC\n")
		out.WriteString(res.Optimized.String())
	case "quad":
		for _, l := range res.Optimized.QuadLines() {
			out.WriteString(l)
			out.WriteByte('\n')
		}
	case "asm":
		out.WriteString(codegen.FormatAssembly(res.Assembly))
	case "run":
		m := interp.New(res.Optimized, &out)
		m.MaxSteps = cfg.MaxSteps
		code, err := m.Run(context.Background())
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		util.Info(cfg, "main returned %d after %d steps", code, m.Steps())
	case "qbe":
		backend, err := codegen.NewBackend("qbe")
		if err != nil {
			return err
		}
		il, err := backend.(codegen.IRDumper).GenerateIR(res.Optimized, cfg)
		if err != nil {
			return fmt.Errorf("QBE IL generation failed: %w", err)
		}
		out.WriteString(il)
	case "native":
		backend, err := codegen.NewBackend("qbe")
		if err != nil {
			return err
		}
		asm, err := backend.Generate(res.Optimized, cfg)
		if err != nil {
			return fmt.Errorf("backend code generation failed: %w", err)
		}
		if outFile == "" {
			outFile = "a.out"
		}
		util.Info(cfg, "linking to create '%s'", outFile)
		return assembleAndLink(outFile, asm.String())
	default:
		return fmt.Errorf("unknown --emit kind '%s' (want ir, quad, asm, run, qbe or native)", emit)
	}

	var w io.Writer = os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	_, err := out.WriteTo(w)
	return err
}

func assembleAndLink(outFile, mainAsm string) error {
	asmFile, err := os.CreateTemp("", "tacc-main-*.s")
	if err != nil {
		return fmt.Errorf("failed to create temp file for asm: %w", err)
	}
	defer os.Remove(asmFile.Name())
	if _, err := asmFile.WriteString(mainAsm); err != nil {
		return fmt.Errorf("failed to write to temp file for asm: %w", err)
	}
	asmFile.Close()

	cmd := exec.Command("cc", "-no-pie", "-o", outFile, asmFile.Name())
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("cc command failed: %w\nOutput:\n%s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
