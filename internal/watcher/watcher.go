// Package watcher implements the failure watcher (C7): it periodically
// scans Failed jobs and either schedules a backoff-delayed retry or
// dead-letters the job once its retry budget is exhausted, alerting on
// the latter with a per-job cooldown.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rezkam/mono/internal/alert"
	"github.com/rezkam/mono/internal/core"
	"github.com/rezkam/mono/internal/domain"
	"github.com/rezkam/mono/internal/errs"
	"github.com/rezkam/mono/internal/ptr"
	"github.com/rezkam/mono/internal/queue"
)

// Config controls the watcher's cadence and backoff curve.
type Config struct {
	// ScanInterval is the sleep between sweeps.
	ScanInterval time.Duration
	// InitialBackoff and MaxBackoff bound the exponential retry delay.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.ScanInterval <= 0 {
		c.ScanInterval = 60 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 60 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Hour
	}
	return c
}

// Watcher rescans Failed jobs and advances them to Pending (with a
// backoff-delayed scheduled_at) or DeadLettered.
type Watcher struct {
	store  core.Storage
	queue  *queue.Queue
	alerts *alert.Manager
	cfg    Config
}

// New constructs a Watcher over store and queue with cfg (zero values
// take the documented defaults). alerts may be nil to disable alerting.
func New(store core.Storage, q *queue.Queue, alerts *alert.Manager, cfg Config) *Watcher {
	return &Watcher{store: store, queue: q, alerts: alerts, cfg: cfg.withDefaults()}
}

// Run blocks, sweeping on ScanInterval until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			slog.ErrorContext(ctx, "watcher sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce sweeps every Failed job once.
func (w *Watcher) RunOnce(ctx context.Context) error {
	failed, err := w.store.ListByStatus(ctx, domain.StatusFailed)
	if err != nil {
		return errs.Transient("list failed jobs", err)
	}

	for _, job := range failed {
		if err := w.processOne(ctx, job); err != nil {
			slog.WarnContext(ctx, "failed to process failed job", "job_id", job.ID, "error", err)
		}
	}
	return nil
}

func (w *Watcher) processOne(ctx context.Context, job domain.Job) error {
	if job.ExhaustedRetries() {
		return w.deadLetter(ctx, job)
	}
	return w.scheduleRetry(ctx, job)
}

func (w *Watcher) deadLetter(ctx context.Context, job domain.Job) error {
	now := time.Now().UTC()
	if err := job.MarkDeadLettered(now); err != nil {
		return errs.Validation("dead-letter transition", err)
	}

	if err := w.store.UpdateJob(ctx, job.ID, domain.UpdateJobParams{
		UpdateMask: []string{"status"},
		Status:     ptr.To(domain.StatusDeadLettered),
	}); err != nil {
		return errs.Transient("persist dead-letter", err)
	}

	if err := w.queue.PushDeadLetter(ctx, string(job.Kind), job.ID); err != nil {
		slog.ErrorContext(ctx, "failed to push to dead letter queue", "job_id", job.ID, "error", errs.Transient("push dead letter", err))
	}

	if w.alerts != nil {
		w.alerts.Notify(ctx, job.ID, fmt.Sprintf(
			"job %s dead-lettered after %d/%d retries (kind=%s)", job.ID, job.Retries, job.MaxRetries, job.Kind))
	}
	return nil
}

func (w *Watcher) scheduleRetry(ctx context.Context, job domain.Job) error {
	delay := computeBackoff(job.Retries, w.cfg.InitialBackoff, w.cfg.MaxBackoff)
	now := time.Now().UTC()
	scheduledAt := now.Add(delay)

	if err := job.MarkPendingForRetry(now, scheduledAt); err != nil {
		return errs.Validation("retry transition", err)
	}

	if err := w.store.UpdateJob(ctx, job.ID, domain.UpdateJobParams{
		UpdateMask:  []string{"status", "scheduled_at"},
		Status:      ptr.To(domain.StatusPending),
		ScheduledAt: ptr.To(scheduledAt),
	}); err != nil {
		return errs.Transient("persist retry", err)
	}
	return nil
}
