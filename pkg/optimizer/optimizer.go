// Package optimizer rewrites TAC programs with a fixed sequence of local passes, repeated
// until a round stops shrinking the program or the round cap is hit.
//
// Every pass reads its input and builds a new program; nothing is edited in place.
package optimizer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/xplshn/tacc/pkg/config"
	"github.com/xplshn/tacc/pkg/ir"
	"github.com/xplshn/tacc/pkg/util"
)

type Pass interface {
	Name() string
	// Apply returns a program no longer than prog
	Apply(prog *ir.Program) *ir.Program
}

type Stats struct {
	Initial   int
	Counts    []int // instruction count after each round
	Rounds    int
	Converged bool
}

// Passes returns the enabled passes in their fixed order
func Passes(cfg *config.Config) []Pass {
	symbolic := cfg.IsFeatureEnabled(config.FeatSymbolicOnly)
	all := []struct {
		ft   config.Feature
		pass Pass
	}{
		{config.FeatCSE, CSE{}},
		{config.FeatConstFold, ConstFold{SymbolicOnly: symbolic}},
		{config.FeatAlgebraic, Algebraic{}},
		{config.FeatPeephole, Peephole{SymbolicOnly: symbolic}},
		{config.FeatCopyProp, CopyProp{}},
		{config.FeatDCE, DCE{}},
	}
	var passes []Pass
	for _, p := range all {
		if cfg.PassEnabled(p.ft) {
			passes = append(passes, p.pass)
		}
	}
	return passes
}

// Optimize runs the pass schedule over prog. With cfg.Jobs > 1 each function gets its own
// schedule on a worker and the results are joined back in source order.
func Optimize(ctx context.Context, prog *ir.Program, cfg *config.Config) (*ir.Program, *Stats, error) {
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = config.DefaultMaxRounds
	}
	passes := Passes(cfg)
	if len(passes) == 0 {
		return prog, &Stats{Initial: prog.Len(), Converged: true}, nil
	}

	var (
		out   *ir.Program
		stats *Stats
		err   error
	)
	if cfg.Jobs > 1 {
		out, stats, err = optimizeParallel(ctx, prog, passes, maxRounds, cfg.Jobs)
	} else {
		out, stats, err = schedule(ctx, prog, passes, maxRounds)
	}
	if err != nil {
		return nil, nil, err
	}

	for i, n := range stats.Counts {
		util.Info(cfg, "optimizer round %d: %d instructions", i+1, n)
	}
	if !stats.Converged {
		util.Warn(cfg, config.WarnRoundCap, "optimizer stopped after %d rounds while the program was still shrinking", stats.Rounds)
	}
	return out, stats, nil
}

// schedule applies every pass once per round and stops at the first round that does not shrink the program
func schedule(ctx context.Context, prog *ir.Program, passes []Pass, maxRounds int) (*ir.Program, *Stats, error) {
	stats := &Stats{Initial: prog.Len()}
	prev := prog.Len()
	for stats.Rounds < maxRounds {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for _, p := range passes {
			prog = p.Apply(prog)
		}
		stats.Rounds++
		stats.Counts = append(stats.Counts, prog.Len())
		if prog.Len() >= prev {
			stats.Converged = true
			break
		}
		prev = prog.Len()
	}
	return prog, stats, nil
}

func optimizeParallel(ctx context.Context, prog *ir.Program, passes []Pass, maxRounds, jobs int) (*ir.Program, *Stats, error) {
	funcs := prog.Funcs()
	results := make([]*Stats, len(funcs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i := range funcs {
		g.Go(func() error {
			out, st, err := schedule(ctx, prog.Derive(funcs[i].Instrs), passes, maxRounds)
			if err != nil {
				return err
			}
			funcs[i].Instrs = out.Instrs
			results[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	stats := &Stats{Initial: prog.Len(), Converged: true}
	for _, st := range results {
		stats.Rounds = max(stats.Rounds, st.Rounds)
		stats.Converged = stats.Converged && st.Converged
	}
	// a function that stopped early keeps contributing its final count
	stats.Counts = make([]int, stats.Rounds)
	for _, st := range results {
		for r := range stats.Counts {
			stats.Counts[r] += st.Counts[min(r, len(st.Counts)-1)]
		}
	}
	return prog.Join(funcs), stats, nil
}
