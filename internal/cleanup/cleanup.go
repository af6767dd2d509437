// Package cleanup implements the cleanup loop (C8): an orphan reaper
// that reclaims Running rows whose lock has silently expired, and an
// archiver that moves old terminal rows out of the hot table, each on
// its own independent cadence.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/multierr"

	"github.com/rezkam/mono/internal/core"
	"github.com/rezkam/mono/internal/domain"
	"github.com/rezkam/mono/internal/errs"
	"github.com/rezkam/mono/internal/ptr"
	"github.com/rezkam/mono/internal/storage/archive"
)

// Config controls both sweeps' cadence and thresholds.
type Config struct {
	// OrphanInterval is the sleep between orphan sweeps.
	OrphanInterval time.Duration
	// OrphanMaxAge is how long a row may sit in Running before the
	// reaper assumes its executor crashed and the lock has expired.
	OrphanMaxAge time.Duration
	// ArchiveInterval is the sleep between archiver sweeps.
	ArchiveInterval time.Duration
	// Retention is how long a terminal row stays in the hot table
	// before the archiver sweeps it.
	Retention time.Duration
}

func (c Config) withDefaults() Config {
	if c.OrphanInterval <= 0 {
		c.OrphanInterval = time.Hour
	}
	if c.OrphanMaxAge <= 0 {
		c.OrphanMaxAge = time.Hour
	}
	if c.ArchiveInterval <= 0 {
		c.ArchiveInterval = 24 * time.Hour
	}
	if c.Retention <= 0 {
		c.Retention = 30 * 24 * time.Hour
	}
	return c
}

// Cleanup runs the orphan reaper and archiver sweeps.
type Cleanup struct {
	store core.Storage
	sink  archive.Sink
	cfg   Config
}

// New constructs a Cleanup over store and sink (the archival
// destination) with cfg (zero values take the documented defaults).
// sink may be nil to disable archival uploads; rows are still marked
// archived in the store.
func New(store core.Storage, sink archive.Sink, cfg Config) *Cleanup {
	return &Cleanup{store: store, sink: sink, cfg: cfg.withDefaults()}
}

// Run blocks, driving both sweeps on their own tickers until ctx is
// cancelled.
func (c *Cleanup) Run(ctx context.Context) error {
	orphanTicker := time.NewTicker(c.cfg.OrphanInterval)
	defer orphanTicker.Stop()
	archiveTicker := time.NewTicker(c.cfg.ArchiveInterval)
	defer archiveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-orphanTicker.C:
			if err := c.ReapOrphans(ctx); err != nil {
				slog.ErrorContext(ctx, "orphan reaper sweep failed", "error", err)
			}
		case <-archiveTicker.C:
			if err := c.ArchiveOld(ctx); err != nil {
				slog.ErrorContext(ctx, "archiver sweep failed", "error", err)
			}
		}
	}
}

// ReapOrphans marks every Running row older than OrphanMaxAge as
// Failed with reason "orphaned": a worker crash after lock acquisition
// but before outcome write leaves a Running row whose lock has since
// expired, and this restores it to the normal failure path where the
// watcher picks it up for retry or dead-lettering.
func (c *Cleanup) ReapOrphans(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-c.cfg.OrphanMaxAge)
	orphans, err := c.store.ListByStatusAndTime(ctx, domain.StatusRunning, cutoff)
	if err != nil {
		return errs.Transient("list orphaned jobs", err)
	}

	var aggErr error
	for _, job := range orphans {
		now := time.Now().UTC()
		if err := job.MarkFailed(now, "orphaned"); err != nil {
			aggErr = multierr.Append(aggErr, fmt.Errorf("job %s: %w", job.ID, errs.Validation("orphan transition", err)))
			continue
		}
		if err := c.store.UpdateJob(ctx, job.ID, domain.UpdateJobParams{
			UpdateMask: []string{"status", "finished_at", "last_error"},
			Status:     ptr.To(domain.StatusFailed),
			FinishedAt: job.FinishedAt,
			LastError:  job.LastError,
		}); err != nil {
			aggErr = multierr.Append(aggErr, fmt.Errorf("job %s: %w", job.ID, errs.Transient("update orphan", err)))
		}
	}
	return aggErr
}

// ArchiveOld uploads every terminal row older than Retention to sink
// (when configured) and marks it archived in the store.
func (c *Cleanup) ArchiveOld(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-c.cfg.Retention)
	rows, err := c.store.ListOlderThan(ctx, cutoff)
	if err != nil {
		return errs.Transient("list archivable jobs", err)
	}

	var aggErr error
	for i := range rows {
		job := rows[i]
		if c.sink != nil {
			if err := c.sink.Archive(ctx, &job); err != nil {
				aggErr = multierr.Append(aggErr, fmt.Errorf("job %s: %w", job.ID, errs.Transient("archive upload", err)))
				continue
			}
		}
		if err := c.store.UpdateJob(ctx, job.ID, domain.UpdateJobParams{
			UpdateMask: []string{"archived"},
			Archived:   ptr.To(true),
		}); err != nil {
			aggErr = multierr.Append(aggErr, fmt.Errorf("job %s: %w", job.ID, errs.Transient("mark archived", err)))
		}
	}
	return aggErr
}
