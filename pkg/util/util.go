package util

import (
	"fmt"
	"io"
	"os"

	"github.com/xplshn/tacc/pkg/config"
)

const (
	cRed    = "\033[31m"
	cYellow = "\033[33m"
	cCyan   = "\033[36m"
	cNone   = "\033[0m"
)

func stream(cfg *config.Config) io.Writer {
	if cfg == nil || cfg.Stderr == nil {
		return os.Stderr
	}
	return cfg.Stderr
}

// Warn prints a formatted warning message if the corresponding warning is enabled
func Warn(cfg *config.Config, wt config.Warning, format string, args ...interface{}) {
	if cfg == nil || !cfg.IsWarningEnabled(wt) {
		return
	}
	w := stream(cfg)
	fmt.Fprintf(w, "tacc: %swarning:%s ", cYellow, cNone)
	fmt.Fprintf(w, format, args...)
	fmt.Fprintf(w, " [-W%s]\n", cfg.Warnings[wt].Name)
}

// Error prints a formatted error message
func Error(cfg *config.Config, format string, args ...interface{}) {
	w := stream(cfg)
	fmt.Fprintf(w, "tacc: %serror:%s ", cRed, cNone)
	fmt.Fprintf(w, format, args...)
	fmt.Fprintln(w)
}

// Fatal prints an error message and exits the program
func Fatal(cfg *config.Config, format string, args ...interface{}) {
	Error(cfg, format, args...)
	os.Exit(1)
}

// Info prints a progress line when verbose output is on
func Info(cfg *config.Config, format string, args ...interface{}) {
	if cfg == nil || !cfg.Verbose {
		return
	}
	w := stream(cfg)
	fmt.Fprintf(w, "tacc: %sinfo:%s ", cCyan, cNone)
	fmt.Fprintf(w, format, args...)
	fmt.Fprintln(w)
}
