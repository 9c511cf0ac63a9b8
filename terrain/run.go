package terrain

import (
	"context"
	"fmt"
	"time"
)

// Options configures a full analysis run.
type Options struct {
	Analyze AnalyzeOptions
	Walk    WalkOptions
}

// Run classifies every cell of g and then walks every saddle to the summits
// it separates. On cancellation the partial result is returned together with
// the context error.
func Run(ctx context.Context, g Grid, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := &Result{Started: time.Now()}

	summits, saddles := NewAnalyzer(g, opts.Analyze).Analyze()
	res.Summits = summits
	res.Saddles = saddles
	res.ClassifyDuration = time.Since(res.Started)

	walkStart := time.Now()
	linkers, stalls, err := NewWalker(g, summits, saddles, opts.Walk).Run(ctx)
	res.Linkers = linkers
	res.Stalls = stalls
	res.WalkDuration = time.Since(walkStart)
	if err != nil {
		return res, fmt.Errorf("walk interrupted: %w", err)
	}
	return res, nil
}
