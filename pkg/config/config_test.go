package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/tacc/pkg/cli"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, DefaultMaxRounds, cfg.MaxRounds)
	assert.Equal(t, DefaultRegisters, cfg.Registers)
	for f := Feature(0); f < FeatCount; f++ {
		info, ok := cfg.Features[f]
		require.True(t, ok, "feature %d has no entry", f)
		assert.Equal(t, f, cfg.FeatureMap[info.Name])
	}
	for w := Warning(0); w < WarnCount; w++ {
		info, ok := cfg.Warnings[w]
		require.True(t, ok, "warning %d has no entry", w)
		assert.Equal(t, w, cfg.WarningMap[info.Name])
	}
	assert.False(t, cfg.IsFeatureEnabled(FeatSymbolicOnly))
	assert.True(t, cfg.PassEnabled(FeatDCE))
}

func TestPassEnabledHonorsMasterSwitch(t *testing.T) {
	cfg := NewConfig()
	cfg.SetFeature(FeatOpt, false)
	assert.True(t, cfg.IsFeatureEnabled(FeatCSE))
	assert.False(t, cfg.PassEnabled(FeatCSE))
}

func TestApplyFlag(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.ApplyFlag("-Fno-peephole"))
	assert.False(t, cfg.IsFeatureEnabled(FeatPeephole))
	require.NoError(t, cfg.ApplyFlag("-Fsymbolic-only"))
	assert.True(t, cfg.IsFeatureEnabled(FeatSymbolicOnly))

	require.NoError(t, cfg.ApplyFlag("-Wno-all"))
	for w := Warning(0); w < WarnCount; w++ {
		assert.False(t, cfg.IsWarningEnabled(w))
	}
	require.NoError(t, cfg.ApplyFlag("-Wround-cap"))
	assert.True(t, cfg.IsWarningEnabled(WarnRoundCap))

	require.ErrorContains(t, cfg.ApplyFlag("-Wbogus"), "unknown warning")
	require.ErrorContains(t, cfg.ApplyFlag("-Fbogus"), "unknown feature")
	require.ErrorContains(t, cfg.ApplyFlag("-x"), "unrecognized flag")
}

func TestSetupFlagGroups(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("t")
	cfg.SetupFlagGroups(fs)

	require.NoError(t, fs.Parse([]string{"-Fno-cse", "-Wno-all", "-Wround-cap", "in.json"}))
	assert.False(t, cfg.IsFeatureEnabled(FeatCSE))
	assert.True(t, cfg.IsFeatureEnabled(FeatDCE))
	assert.True(t, cfg.IsWarningEnabled(WarnRoundCap))
	assert.False(t, cfg.IsWarningEnabled(WarnExtra))
	assert.Equal(t, []string{"in.json"}, fs.Args())

	require.ErrorContains(t, fs.Parse([]string{"-Fbogus"}), "unknown feature")
}

func TestSetTargetDefaultsToHost(t *testing.T) {
	cfg := NewConfig()
	cfg.SetTarget("linux", "amd64", "")
	assert.NotEmpty(t, cfg.BackendTarget)

	cfg.SetTarget("linux", "amd64", "rv64")
	assert.Equal(t, "rv64", cfg.BackendTarget)
}
