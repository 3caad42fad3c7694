// Package reconcile keeps the persisted template table in step with the
// catalog's default templates without overwriting customizations.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/estimator/internal/catalog"
	"github.com/hyperengineering/estimator/internal/store"
	"github.com/hyperengineering/estimator/internal/types"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultLockTTL bounds how long a crashed holder can block other processes.
const DefaultLockTTL = 2 * time.Minute

// Result summarises one reconciliation pass. Err carries the error that
// stopped the pass early; the counts reflect work done before it.
type Result struct {
	Inserted  int   `json:"inserted"`
	Activated int   `json:"activated"`
	Complete  bool  `json:"complete"`
	Err       error `json:"-"`
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLocker sets the cross-process lock. Defaults to NoopLocker.
func WithLocker(l Locker) Option {
	return func(r *Reconciler) { r.locker = l }
}

// WithLockTTL sets the lock expiry.
func WithLockTTL(ttl time.Duration) Option {
	return func(r *Reconciler) {
		if ttl > 0 {
			r.lockTTL = ttl
		}
	}
}

// WithActor sets created_by for inserted rows.
func WithActor(actor string) Option {
	return func(r *Reconciler) {
		if actor != "" {
			r.actor = actor
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// Reconciler ensures every default template has an active row in the store.
type Reconciler struct {
	store    store.TemplateStore
	registry *catalog.Registry
	state    *State
	locker   Locker
	lockTTL  time.Duration
	actor    string
	now      func() time.Time

	seed   singleflight.Group
	passMu chan struct{}
}

// New creates a Reconciler. state is shared with whoever owns process bootstrap.
func New(st store.TemplateStore, registry *catalog.Registry, state *State, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    st,
		registry: registry,
		state:    state,
		locker:   NoopLocker{},
		lockTTL:  DefaultLockTTL,
		actor:    types.SystemActor,
		now:      func() time.Time { return time.Now().UTC() },
		passMu:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the seeding state this reconciler records into.
func (r *Reconciler) State() *State {
	return r.state
}

// EnsureSeeded runs a pass unless one has already completed in this process.
// Concurrent callers share a single pass. ran is false when the state was
// already Completed.
func (r *Reconciler) EnsureSeeded(ctx context.Context) (res Result, ran bool) {
	if r.state.Done() {
		return Result{Complete: true}, false
	}

	v, _, _ := r.seed.Do("seed", func() (any, error) {
		if r.state.Done() {
			return Result{Complete: true}, nil
		}
		return r.Reconcile(ctx), nil
	})
	return v.(Result), true
}

// Reconcile walks the registry in declared order. Missing templates are
// inserted, inactive ones re-activated, active ones left untouched. The first
// persistence error stops the pass and is reported in Result.Err.
func (r *Reconciler) Reconcile(ctx context.Context) Result {
	select {
	case r.passMu <- struct{}{}:
		defer func() { <-r.passMu }()
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}

	start := time.Now()
	release, err := r.locker.Acquire(ctx, r.lockTTL)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrLockHeld) {
			level = slog.LevelInfo
		}
		slog.Log(ctx, level, "reconcile skipped",
			"component", "reconciler",
			"action", "acquire_lock",
			"error", err,
		)
		return Result{Err: err}
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("reconcile lock release failed",
				"component", "reconciler",
				"action", "release_lock",
				"error", err,
			)
		}
	}()

	var res Result
	for _, tmpl := range r.registry.Templates() {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}
		if err := r.reconcileOne(ctx, tmpl, &res); err != nil {
			res.Err = err
			break
		}
	}

	if res.Err != nil {
		slog.Error("reconcile stopped",
			"component", "reconciler",
			"action", "reconcile",
			"inserted", res.Inserted,
			"activated", res.Activated,
			"error", res.Err,
		)
		return res
	}

	res.Complete = true
	r.state.MarkCompleted(r.now())
	slog.Info("reconcile completed",
		"component", "reconciler",
		"action", "reconcile",
		"templates", r.registry.Len(),
		"inserted", res.Inserted,
		"activated", res.Activated,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}

func (r *Reconciler) reconcileOne(ctx context.Context, tmpl catalog.DefaultTemplate, res *Result) error {
	id := tmpl.JobType.ID

	existing, err := r.store.GetTemplate(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		err := r.store.InsertTemplate(ctx, r.newRow(tmpl))
		if errors.Is(err, store.ErrDuplicateTemplate) {
			slog.Debug("template inserted concurrently",
				"component", "reconciler",
				"action", "insert",
				"job_type_id", id,
			)
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert %s: %w", id, err)
		}
		res.Inserted++
		slog.Debug("template inserted",
			"component", "reconciler",
			"action", "insert",
			"job_type_id", id,
		)
	case err != nil:
		return fmt.Errorf("get %s: %w", id, err)
	case !existing.IsActive:
		if err := r.store.SetTemplateActive(ctx, id, true); err != nil {
			return fmt.Errorf("activate %s: %w", id, err)
		}
		res.Activated++
		slog.Debug("template activated",
			"component", "reconciler",
			"action", "activate",
			"job_type_id", id,
		)
	}
	return nil
}

func (r *Reconciler) newRow(tmpl catalog.DefaultTemplate) types.TemplateRow {
	now := r.now()
	jt := tmpl.JobType
	return types.TemplateRow{
		ID:            ulid.Make().String(),
		JobTypeID:     jt.ID,
		TradeID:       tmpl.TradeID,
		TradeName:     tmpl.TradeName,
		JobTypeName:   jt.Name,
		BaseScope:     jt.BaseScope,
		ScopeSections: jt.ScopeSections,
		Options:       jt.Options,
		BasePriceLow:  jt.BasePriceRange.Low,
		BasePriceHigh: jt.BasePriceRange.High,
		EstimatedDays: jt.EstimatedDays,
		Warranty:      jt.Warranty,
		Exclusions:    jt.Exclusions,
		IsDefault:     true,
		IsActive:      true,
		CreatedBy:     r.actor,
		UsageCount:    0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
