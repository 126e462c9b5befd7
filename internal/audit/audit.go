// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit checks a reference list: each citation is reconciled and
// reported by a bounded pool of workers, and results come back in input
// order. A run always produces a report, partial when the run timed out.
package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/citecheck/internal/reconcile"
	"github.com/pdiddy/citecheck/internal/report"
	"github.com/pdiddy/citecheck/pkg/types"
)

const defaultWorkers = 4

// Auditor runs citations through the engine and reporter.
type Auditor struct {
	engine   *reconcile.Engine
	reporter *report.Reporter
	workers  int
	timeout  time.Duration
	diag     io.Writer
	now      func() time.Time
}

// New returns an auditor. Zero workers selects the default pool size and
// zero timeout disables the run deadline.
func New(engine *reconcile.Engine, reporter *report.Reporter, cfg types.RunConfig, diag io.Writer) *Auditor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if reporter == nil {
		reporter = report.New(engine.Toolkit())
	}
	if diag == nil {
		diag = io.Discard
	}
	return &Auditor{
		engine:   engine,
		reporter: reporter,
		workers:  workers,
		timeout:  cfg.Timeout,
		diag:     diag,
		now:      time.Now,
	}
}

// Run checks every citation. Citations not finished when the deadline
// passes are reported unverifiable with every source unavailable.
func (a *Auditor) Run(ctx context.Context, citations []types.Citation) types.RunResult {
	run := types.RunResult{RunID: uuid.NewString(), StartedAt: a.now().UTC()}
	fmt.Fprintf(a.diag, "run %s: checking %d citations with %d workers\n", run.RunID, len(citations), a.workers)

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	results := make([]types.CitationResult, len(citations))
	finished := make([]bool, len(citations))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, c := range citations {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			v := a.engine.Reconcile(ctx, i, c)
			// Verdicts computed after the deadline reflect cancelled
			// lookups, not provider answers.
			if ctx.Err() != nil && !v.IsMatch() && v.Status != types.StatusMalformed {
				return nil
			}
			results[i] = types.CitationResult{
				Index:         i,
				Citation:      c,
				Verdict:       v,
				Discrepancies: a.reporter.Report(c, v),
			}
			finished[i] = true
			return nil
		})
	}
	_ = g.Wait()

	for i, c := range citations {
		if finished[i] {
			continue
		}
		v := types.MatchVerdict{
			CitationIndex: i,
			Consulted:     a.engine.Sources(),
			Unavailable:   a.engine.Sources(),
			Status:        types.StatusUnverifiable,
		}
		if err := reconcile.Validate(c); err != nil {
			v = types.MatchVerdict{CitationIndex: i, Malformed: err.Error(), Status: types.StatusMalformed}
		}
		results[i] = types.CitationResult{
			Index:         i,
			Citation:      c,
			Verdict:       v,
			Discrepancies: a.reporter.Report(c, v),
		}
	}

	run.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
	if run.TimedOut {
		fmt.Fprintf(a.diag, "warning: run %s timed out after %s\n", run.RunID, a.timeout)
	}
	run.Results = results
	run.Summary = types.Summarize(results)
	run.Duration = a.now().Sub(run.StartedAt)
	return run
}
