package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/xplshn/tacc/pkg/ast"
	"github.com/xplshn/tacc/pkg/codegen"
	"github.com/xplshn/tacc/pkg/compiler"
	"github.com/xplshn/tacc/pkg/config"
	"github.com/xplshn/tacc/pkg/interp"
)

// Golden is the recorded outcome of compiling one fixture
type Golden struct {
	SourceHash string   `json:"source_hash"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors,omitempty"`
	IR         []string `json:"ir,omitempty"`
	Optimized  []string `json:"optimized,omitempty"`
	Assembly   []string `json:"assembly,omitempty"`
	Rounds     int      `json:"rounds,omitempty"`
	Output     []string `json:"output,omitempty"`
	Exit       int64    `json:"exit,omitempty"`
}

// errBehaviorChanged means the optimized program printed or returned something else
var errBehaviorChanged = errors.New("optimizer changed program behavior")

type FileTestResult struct {
	File    string `json:"file"`
	Status  string `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string `json:"message,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

func goldenPath(fixture, dir string) string {
	name := "." + filepath.Base(fixture) + ".json"
	if dir != "" {
		return filepath.Join(dir, name)
	}
	return filepath.Join(filepath.Dir(fixture), name)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

// compileFixture runs the whole pipeline in-process
func compileFixture(path string, cfg *config.Config) (*Golden, *compiler.Result, error) {
	hash, err := hashFile(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	root, err := ast.Decode(f, ast.FormatForPath(path))
	if err != nil {
		return nil, nil, err
	}

	res, err := compiler.Compile(root, cfg)
	if err != nil {
		return nil, nil, err
	}

	g := &Golden{SourceHash: hash, Success: res.Success, Errors: res.Errors}
	if res.Success {
		g.IR = res.IR.Lines()
		g.Optimized = res.Optimized.Lines()
		g.Assembly = res.Assembly
		g.Rounds = res.Stats.Rounds
		if g.Output, g.Exit, err = execute(res); err != nil {
			return g, res, err
		}
	}
	return g, res, nil
}

// execute runs both listings and returns what the unoptimized one printed
func execute(res *compiler.Result) ([]string, int64, error) {
	ctx := context.Background()
	want, wantExit, err := interp.Capture(ctx, res.IR)
	if err != nil {
		return nil, 0, fmt.Errorf("running TAC: %w", err)
	}
	got, gotExit, err := interp.Capture(ctx, res.Optimized)
	if err != nil {
		return nil, 0, fmt.Errorf("running optimized TAC: %w", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" || wantExit != gotExit {
		return nil, 0, fmt.Errorf("%w: exit %d vs %d\n%s", errBehaviorChanged, wantExit, gotExit, diff)
	}
	return want, wantExit, nil
}

func writeGolden(path string, g *Golden) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func readGolden(path string) (*Golden, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g Golden
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("could not parse golden file %s: %w", path, err)
	}
	return &g, nil
}

// compareGolden reports every section of got that differs from want
func compareGolden(file string, want, got *Golden) *FileTestResult {
	if want.SourceHash != got.SourceHash {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Fixture changed since its golden file was generated; regenerate it"}
	}

	var diffs strings.Builder
	sections := []struct {
		name      string
		want, got interface{}
	}{
		{"success", want.Success, got.Success},
		{"errors", want.Errors, got.Errors},
		{"TAC", want.IR, got.IR},
		{"optimized TAC", want.Optimized, got.Optimized},
		{"assembly", want.Assembly, got.Assembly},
		{"rounds", want.Rounds, got.Rounds},
		{"output", want.Output, got.Output},
		{"exit code", want.Exit, got.Exit},
	}
	for _, s := range sections {
		if diff := cmp.Diff(s.want, s.got, cmpopts.EquateEmpty()); diff != "" {
			fmt.Fprintf(&diffs, "%s mismatch (-golden +got):\n%s", s.name, diff)
		}
	}
	if diffs.Len() > 0 {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Output differs from golden file", Diff: diffs.String()}
	}
	return &FileTestResult{File: file, Status: "PASS", Message: "Matches golden file"}
}

// assembleQBE checks that the optimized program also lowers through QBE
func assembleQBE(res *compiler.Result, cfg *config.Config) error {
	backend, err := codegen.NewBackend("qbe")
	if err != nil {
		return err
	}
	_, err = backend.Generate(res.Optimized, cfg)
	return err
}
