package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/tacc/pkg/cli"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatOpt Feature = iota
	FeatCSE
	FeatConstFold
	FeatAlgebraic
	FeatPeephole
	FeatCopyProp
	FeatDCE
	FeatSymbolicOnly
	FeatCount
)

type Warning int

const (
	WarnDivByZero Warning = iota
	WarnReservedName
	WarnUnreachableCode
	WarnRoundCap
	WarnRegisterPressure
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

const (
	DefaultMaxRounds = 5
	DefaultRegisters = 10
	DefaultMaxSteps  = 1_000_000
)

type Config struct {
	Features      map[Feature]Info
	Warnings      map[Warning]Info
	FeatureMap    map[string]Feature
	WarningMap    map[string]Warning
	MaxRounds     int
	Registers     int
	MaxSteps      int64 // instruction budget for --emit run
	Jobs          int
	Verbose       bool
	BackendTarget string
	Stderr        io.Writer
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		MaxRounds:  DefaultMaxRounds,
		Registers:  DefaultRegisters,
		MaxSteps:   DefaultMaxSteps,
		Jobs:       1,
		Stderr:     os.Stderr,
	}

	features := map[Feature]Info{
		FeatOpt:          {"opt", true, "Run the optimizer at all."},
		FeatCSE:          {"cse", true, "Reuse identical expressions already computed in the block."},
		FeatConstFold:    {"const-fold", true, "Evaluate operations whose operands are known constants."},
		FeatAlgebraic:    {"algebraic", true, "Rewrite `x - x` to 0 and `x / x` to 1."},
		FeatPeephole:     {"peephole", true, "Remove identities, shift by powers of two, collapse copy chains."},
		FeatCopyProp:     {"copy-prop", true, "Replace uses of a copy with its source."},
		FeatDCE:          {"dce", true, "Drop temporaries whose value is never used."},
		FeatSymbolicOnly: {"symbolic-only", false, "Never substitute the value of user-declared variables."},
	}

	warnings := map[Warning]Info{
		WarnDivByZero:        {"div-by-zero", true, "Warn on division by a literal zero."},
		WarnReservedName:     {"reserved-name", true, "Warn when a name looks like a compiler temporary (t0, t1, ...)."},
		WarnUnreachableCode:  {"unreachable-code", true, "Warn about statements following a return."},
		WarnRoundCap:         {"round-cap", false, "Warn when the optimizer stops at the round cap before converging."},
		WarnRegisterPressure: {"register-pressure", true, "Warn when a function needs more registers than the pool holds."},
		WarnExtra:            {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget selects the QBE target, defaulting to the host
func (c *Config) SetTarget(goos, goarch, qbeTarget string) {
	if qbeTarget == "" {
		c.BackendTarget = libqbe.DefaultTarget(goos, goarch)
		return
	}
	c.BackendTarget = qbeTarget

	switch c.BackendTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
	default:
		fmt.Fprintf(c.Stderr, "tacc: warning: unrecognized or unsupported QBE target '%s'.\n", c.BackendTarget)
	}
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

// PassEnabled reports whether an individual optimization runs, honoring the master switch
func (c *Config) PassEnabled(ft Feature) bool {
	return c.IsFeatureEnabled(FeatOpt) && c.IsFeatureEnabled(ft)
}

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyFlag handles one -W/-Wno-/-F/-Fno- style switch. Unknown names are reported, not fatal.
func (c *Config) ApplyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name, isWarning = strings.TrimPrefix(trimmed, "W"), true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
	default:
		return fmt.Errorf("unrecognized flag '%s'", flag)
	}
	if isNo {
		name = strings.TrimPrefix(name, "no-")
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return nil
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
			return nil
		}
		return fmt.Errorf("unknown warning '%s'", name)
	}
	if f, ok := c.FeatureMap[name]; ok {
		c.SetFeature(f, enable)
		return nil
	}
	return fmt.Errorf("unknown feature '%s'", name)
}

// SetupFlagGroups registers the -F<name> optimizer switches and the -W<name> warning switches
// on fs. They take effect while parsing, in command-line order.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) {
	features := make([]cli.Switch, FeatCount)
	for i := range FeatCount {
		info := c.Features[i]
		features[i] = cli.Switch{Name: info.Name, Usage: info.Description, On: info.Enabled}
	}
	warnings := make([]cli.Switch, WarnCount)
	for i := range WarnCount {
		info := c.Warnings[i]
		warnings[i] = cli.Switch{Name: info.Name, Usage: info.Description, On: info.Enabled}
	}

	fs.AddSwitches(&cli.Switches{Title: "Optimizer", Prefix: "F", Items: features, Apply: c.ApplyFlag})
	fs.AddSwitches(&cli.Switches{Title: "Warnings", Prefix: "W", All: true, Items: warnings, Apply: c.ApplyFlag})
}
