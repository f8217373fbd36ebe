package util

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xplshn/tacc/pkg/config"
)

func TestWarnRespectsSwitch(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.NewConfig()
	cfg.Stderr = &buf

	Warn(cfg, config.WarnDivByZero, "division by zero in '%s'", "main")
	assert.Contains(t, buf.String(), "division by zero in 'main' [-Wdiv-by-zero]")

	buf.Reset()
	cfg.SetWarning(config.WarnDivByZero, false)
	Warn(cfg, config.WarnDivByZero, "silent")
	assert.Empty(t, buf.String())
}

func TestInfoOnlyWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.NewConfig()
	cfg.Stderr = &buf

	Info(cfg, "optimizing")
	assert.Empty(t, buf.String())

	cfg.Verbose = true
	Info(cfg, "optimizing %d functions", 2)
	assert.Contains(t, buf.String(), "optimizing 2 functions")

	buf.Reset()
	Error(cfg, "bad input")
	assert.Contains(t, buf.String(), "error:")
}
