// Package populator implements the queue populator (C5): an
// independent loop that fetches due jobs from the durable store and
// pushes them onto the priority dispatch queue, stamping enqueued_at
// for observability.
package populator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/rezkam/mono/internal/core"
	"github.com/rezkam/mono/internal/domain"
	"github.com/rezkam/mono/internal/ptr"
	"github.com/rezkam/mono/internal/queue"
)

// Config controls the populator's cadence and back-pressure policy.
type Config struct {
	// PollInterval is the sleep between fetch cycles.
	PollInterval time.Duration
	// BatchSize bounds how many due jobs are fetched per cycle.
	BatchSize int
	// QueueName is the priority queue due jobs are pushed onto.
	QueueName string
	// HighWaterMark is the queue depth above which a cycle's enqueues
	// are skipped (back-pressure sampling, spec's SHOULD). Zero
	// disables the check.
	HighWaterMark int64
	// SampleRate bounds how often the queue depth is sampled, so
	// back-pressure checks don't themselves become a bottleneck.
	SampleRate rate.Limit
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.QueueName == "" {
		c.QueueName = "default"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 1
	}
	return c
}

// Populator drains due jobs from the store into the dispatch queue.
type Populator struct {
	store   core.Storage
	queue   *queue.Queue
	cfg     Config
	limiter *rate.Limiter
}

// New constructs a Populator over store and queue with cfg (zero
// values take the documented defaults).
func New(store core.Storage, q *queue.Queue, cfg Config) *Populator {
	cfg = cfg.withDefaults()
	return &Populator{store: store, queue: q, cfg: cfg, limiter: rate.NewLimiter(cfg.SampleRate, 1)}
}

// Run blocks, polling on PollInterval until ctx is cancelled.
func (p *Populator) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := p.RunOnce(ctx); err != nil {
			slog.ErrorContext(ctx, "populator cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce fetches due jobs and enqueues each, unless back-pressure
// sampling finds the target queue already above its high-water mark.
func (p *Populator) RunOnce(ctx context.Context) error {
	if p.cfg.HighWaterMark > 0 && p.limiter.Allow() {
		depth, err := p.queue.Len(ctx, p.cfg.QueueName)
		if err != nil {
			slog.WarnContext(ctx, "failed to sample queue depth", "error", err)
		} else if depth >= p.cfg.HighWaterMark {
			slog.WarnContext(ctx, "queue depth at or above high-water mark, skipping cycle",
				"queue", p.cfg.QueueName, "depth", depth, "high_water_mark", p.cfg.HighWaterMark)
			return nil
		}
	}

	dueJobs, err := p.store.ListDue(ctx, time.Now().UTC(), p.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("fetch due jobs: %w", err)
	}

	for _, job := range dueJobs {
		if err := p.queue.Push(ctx, p.cfg.QueueName, job.ID, int(job.Priority)); err != nil {
			slog.ErrorContext(ctx, "failed to push job to queue", "job_id", job.ID, "error", err)
			continue
		}
		if err := p.stampEnqueued(ctx, job.ID); err != nil {
			slog.ErrorContext(ctx, "failed to stamp enqueued_at", "job_id", job.ID, "error", err)
		}
	}
	return nil
}

// stampEnqueued records enqueued_at without changing status — status
// stays Pending (an idempotent no-op transition) so a duplicate
// enqueue from the materializer is harmless (spec allows both C4 and
// C5 to enqueue the same id; the executor's lock is the source of
// truth for single execution).
func (p *Populator) stampEnqueued(ctx context.Context, jobID string) error {
	now := time.Now().UTC()
	return p.store.UpdateJob(ctx, jobID, domain.UpdateJobParams{
		UpdateMask: []string{"enqueued_at"},
		EnqueuedAt: ptr.To(now),
	})
}
