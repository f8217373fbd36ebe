// tactest compiles every fixture in-process and checks each pipeline stage against the
// golden file recorded next to it
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/xplshn/tacc/pkg/cli"
	"github.com/xplshn/tacc/pkg/config"
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

type options struct {
	testFiles  string
	skipFiles  []string
	generate   bool
	dir        string
	outputJSON string
	jobs       int
	verbose    bool
	checkQBE   bool
}

func main() {
	log.SetFlags(0)

	app := cli.NewApp("tactest")
	app.Synopsis = "[options]"
	app.Description = "Golden-file test runner for the tacc pipeline."
	app.Repository = "https://github.com/xplshn/tacc"

	opts := options{}
	fs := app.FlagSet
	fs.String(&opts.testFiles, "test-files", "", "testdata/*.json testdata/*.yaml", "Glob pattern(s) for fixtures to test (space-separated).", "globs")
	fs.List(&opts.skipFiles, "skip", "", nil, "Skip <file>. May be repeated.", "file")
	fs.Bool(&opts.generate, "generate", "g", false, "Write golden files instead of comparing against them.")
	fs.String(&opts.dir, "dir", "", "", "Directory to store/read golden JSON files (defaults to the fixture's dir).", "dir")
	fs.String(&opts.outputJSON, "output", "o", ".test_results.json", "Output file for the JSON test report.", "file")
	fs.Int(&opts.jobs, "jobs", "j", 4, "Number of parallel test jobs.", "n")
	fs.Bool(&opts.verbose, "verbose", "v", false, "Enable verbose logging.")
	fs.Bool(&opts.checkQBE, "qbe", "", false, "Also lower each optimized program through QBE.")

	app.Action = func(args []string) error {
		if len(args) > 0 {
			opts.testFiles = strings.Join(args, " ")
		}
		files, err := expandGlobPatterns(opts.testFiles)
		if err != nil {
			log.Printf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
			return err
		}
		if len(files) == 0 {
			log.Println("No test files found matching the pattern(s).")
			return nil
		}

		results := runSuite(files, opts)
		printSummary(results, opts.verbose)
		if opts.generate {
			return nil
		}
		resultsMap, err := writeJSONReport(results, opts)
		if err != nil {
			log.Printf("%s[ERROR]%s %v\n", cRed, cNone, err)
		}
		if hasFailures(resultsMap) {
			return fmt.Errorf("test failures")
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// runSuite tests files on opts.jobs workers and returns the results sorted by file
func runSuite(files []string, opts options) []*FileTestResult {
	skipList := make(map[string]bool)
	for _, f := range opts.skipFiles {
		if abs, err := filepath.Abs(f); err == nil {
			skipList[abs] = true
		}
		skipList[f] = true
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for range max(opts.jobs, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(file, opts)
			}
		}()
	}

	// Feed the tasks channel, skipping fixtures with identical content
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})
	return allResults
}

func testFile(file string, opts options) *FileTestResult {
	cfg := config.NewConfig()
	cfg.Stderr = io.Discard

	got, res, err := compileFixture(file, cfg)
	if errors.Is(err, errBehaviorChanged) {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Optimized and unoptimized programs disagree", Diff: err.Error()}
	}
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
	}
	if opts.checkQBE && res.Success {
		if err := assembleQBE(res, cfg); err != nil {
			return &FileTestResult{File: file, Status: "FAIL", Message: "QBE rejected the optimized program", Diff: err.Error()}
		}
	}

	goldenFile := goldenPath(file, opts.dir)
	if opts.generate {
		if err := writeGolden(goldenFile, got); err != nil {
			return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to write golden file %s: %v", goldenFile, err)}
		}
		return &FileTestResult{File: file, Status: "PASS", Message: "Golden file written to " + goldenFile}
	}

	if _, err := os.Stat(goldenFile); err != nil {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Missing golden file " + goldenFile + "; run with --generate to record it"}
	}
	want, err := readGolden(goldenFile)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
	}
	return compareGolden(file, want, got)
}

func printSummary(results []*FileTestResult, verbose bool) {
	var passed, failed, skipped, errored int
	for _, result := range results {
		if verbose || result.Status != "PASS" {
			fmt.Println("----------------------------------------------------------------------")
			fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)
		}
		switch result.Status {
		case "PASS":
			passed++
			if verbose {
				fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
			}
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Print(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

// writeJSONReport saves the results under a file lock so parallel runs sharing a
// report directory do not interleave their writes
func writeJSONReport(results []*FileTestResult, opts options) (TestSuiteResults, error) {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		return resultsMap, fmt.Errorf("failed to marshal results to JSON: %w", err)
	}

	outputFile := opts.outputJSON
	if opts.dir != "" {
		if err := os.MkdirAll(opts.dir, 0755); err != nil {
			return resultsMap, fmt.Errorf("failed to create dir %s: %w", opts.dir, err)
		}
		outputFile = filepath.Join(opts.dir, opts.outputJSON)
	}

	lock := flock.New(outputFile + ".lock")
	if err := lock.Lock(); err != nil {
		return resultsMap, fmt.Errorf("failed to lock %s: %w", outputFile, err)
	}
	defer lock.Unlock()

	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		return resultsMap, fmt.Errorf("failed to write JSON report to %s: %w", outputFile, err)
	}
	fmt.Printf("Full test report saved to %s\n", outputFile)
	return resultsMap, nil
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			// golden files and reports are hidden
			if strings.HasPrefix(filepath.Base(file), ".") {
				continue
			}
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
