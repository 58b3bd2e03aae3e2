package checker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"thirdwatch.dev/watch/internal/model"
)

// Summary aggregates one batch run for logging and the CLI exit report.
type Summary struct {
	Checked    int
	Changed    int
	Skipped    int
	Failed     int
	Suppressed int
	Notified   int // successful, non-deduplicated channel deliveries
	Results    []RunResult
}

// RunBatch runs the pipeline over every dependency with bounded parallelism.
// Each dependency gets its own timeout when one is given. Failures stay in
// their slot of the summary; the batch always runs to completion.
func (r *Runner) RunBatch(ctx context.Context, deps []model.WatchedDependency, concurrency int, timeout time.Duration) Summary {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]RunResult, len(deps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, dep := range deps {
		g.Go(func() error {
			runCtx := gctx
			if timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(gctx, timeout)
				defer cancel()
			}
			results[i] = r.Run(runCtx, dep)
			return nil
		})
	}
	// Workers never return errors; failures are per-result.
	_ = g.Wait()

	summary := Summary{Checked: len(deps), Results: results}
	for i := range results {
		res := &results[i]
		switch {
		case res.Check.Err != nil:
			summary.Failed++
		case res.Check.Skipped:
			summary.Skipped++
		case res.Check.Event != nil:
			summary.Changed++
		}
		if res.Suppressed {
			summary.Suppressed++
		}
		for _, n := range res.Notifications {
			if n.Success && !n.Deduplicated {
				summary.Notified++
			}
		}
	}
	return summary
}
