package lifecycle

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/entrhq/harness/pkg/logging"
)

// RunOptions controls Run.
type RunOptions struct {
	// Parallelism caps concurrently running classes; values below 1 mean 1
	Parallelism int

	// Filter selects tests; nil runs everything
	Filter *Filter
}

// Run executes classes on their own workers, at most opts.Parallelism at a
// time. Each class gets a fresh Worker and so its own session.
//
// Worker IDs are worker-<n> for the n-th selected class, not per goroutine
// slot: a worker's identity is its class, and retry state and logs are keyed
// by it. Runners that want one worker per slot should call RunClass on a
// reused Worker instead.
func (o *Orchestrator) Run(ctx context.Context, classes []Class, opts RunOptions) *Report {
	ctx, span := startSpan(ctx, "lifecycle.run")
	defer span.End()

	classes = opts.Filter.Apply(classes)
	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	report := &Report{
		RunID:     logging.GetRunID(),
		StartTime: time.Now(),
		Classes:   make([]ClassResult, len(classes)),
	}
	if layered, ok := o.config.(interface{ Env() string }); ok {
		report.Env = layered.Env()
	}

	o.logger.Infof("running %d classes with parallelism %d", len(classes), parallelism)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, class := range classes {
		i, class := i, class
		g.Go(func() error {
			w := o.NewWorker(fmt.Sprintf("worker-%d", i+1))
			report.Classes[i] = o.RunClass(ctx, w, class)
			return nil // failures are reported, not propagated
		})
	}
	_ = g.Wait()

	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)
	report.Summary = Summarize(report.Classes)

	o.logger.Infof("run finished: %d passed, %d failed, %d skipped", report.Summary.Passed, report.Summary.Failed, report.Summary.Skipped)
	return report
}
