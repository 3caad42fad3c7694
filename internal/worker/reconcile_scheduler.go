package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hyperengineering/estimator/internal/reconcile"
)

// Reconciler is the reconciliation entry point driven by the scheduler.
type Reconciler interface {
	Reconcile(ctx context.Context) reconcile.Result
}

// ReconcileScheduler runs template reconciliation on a cron schedule.
// Overlapping runs are skipped.
type ReconcileScheduler struct {
	reconciler Reconciler
	spec       string
	schedule   cron.Schedule
}

// NewReconcileScheduler parses a standard cron expression or descriptor
// (e.g. "0 3 * * *", "@hourly", "@every 30m").
func NewReconcileScheduler(r Reconciler, spec string) (*ReconcileScheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse reconcile schedule %q: %w", spec, err)
	}
	return &ReconcileScheduler{reconciler: r, spec: spec, schedule: schedule}, nil
}

// Next returns the next activation after t.
func (s *ReconcileScheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run starts the scheduler. It blocks until ctx is cancelled and waits for a
// running pass to finish before returning.
func (s *ReconcileScheduler) Run(ctx context.Context) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		s.runOnce(ctx)
	}))

	slog.Info("reconcile scheduler started",
		"component", "worker",
		"worker", "reconcile-scheduler",
		"schedule", s.spec,
		"next_run", s.Next(time.Now()).Format(time.RFC3339),
	)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()

	slog.Info("reconcile scheduler stopped",
		"component", "worker",
		"worker", "reconcile-scheduler",
		"reason", "context_cancelled",
	)
}

func (s *ReconcileScheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	res := s.reconciler.Reconcile(ctx)
	if res.Err != nil {
		// The reconciler has already logged the failure.
		return
	}
	slog.Debug("scheduled reconcile finished",
		"component", "worker",
		"worker", "reconcile-scheduler",
		"inserted", res.Inserted,
		"activated", res.Activated,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
