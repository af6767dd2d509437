// Package materializer implements the recurrence materializer (C4): it
// scans active templates and expands their cron schedules into
// concrete job rows covering a rolling look-ahead window.
package materializer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rezkam/mono/internal/core"
	"github.com/rezkam/mono/internal/domain"
	"github.com/rezkam/mono/internal/ptr"
	"github.com/rezkam/mono/internal/queue"
)

// Config controls the materializer's cadence and batching.
type Config struct {
	// LookAhead is how far past now each cycle materializes, per
	// template (overridden per-template by Template.SyncHorizonDays).
	LookAhead time.Duration
	// CycleInterval is the sleep between scans. Must be < LookAhead to
	// guarantee no fire instant is ever skipped between cycles.
	CycleInterval time.Duration
	// BatchSize is the chunk size the candidate rows are processed in.
	// Each row is still created by its own CreateJob call; there is no
	// multi-row insert.
	BatchSize int
	// QueueName is the priority queue newly materialized jobs are
	// pushed onto.
	QueueName string
}

func (c Config) withDefaults() Config {
	if c.LookAhead <= 0 {
		c.LookAhead = 24 * time.Hour
	}
	if c.CycleInterval <= 0 {
		c.CycleInterval = 60 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.QueueName == "" {
		c.QueueName = "default"
	}
	return c
}

// standardParser accepts both 5-field (minute resolution) and 6-field
// (optional leading seconds) cron expressions, per the "vetted cron
// library honoring 5- and 6-field forms" requirement.
var standardParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Materializer expands active templates into job rows.
type Materializer struct {
	store core.Storage
	queue *queue.Queue
	cfg   Config
}

// New constructs a Materializer over store and queue with cfg (zero
// values take the documented defaults).
func New(store core.Storage, q *queue.Queue, cfg Config) *Materializer {
	return &Materializer{store: store, queue: q, cfg: cfg.withDefaults()}
}

// Run blocks, materializing on CycleInterval until ctx is cancelled.
func (m *Materializer) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		if err := m.RunOnce(ctx); err != nil {
			slog.ErrorContext(ctx, "materialization cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs one materialization pass over every active template.
func (m *Materializer) RunOnce(ctx context.Context) error {
	templates, err := m.store.ListActiveTemplates(ctx)
	if err != nil {
		return fmt.Errorf("list active templates: %w", err)
	}

	now := time.Now().UTC()
	for _, tpl := range templates {
		if err := m.processTemplate(ctx, tpl, now); err != nil {
			slog.WarnContext(ctx, "failed to materialize template", "template_id", tpl.ID, "error", err)
		}
	}
	return nil
}

func (m *Materializer) processTemplate(ctx context.Context, tpl domain.Template, now time.Time) error {
	lookAhead := m.cfg.LookAhead
	if tpl.SyncHorizonDays != nil {
		lookAhead = time.Duration(*tpl.SyncHorizonDays) * 24 * time.Hour
	}
	endTime := now.Add(lookAhead)

	instants, err := fireInstants(tpl, endTime)
	if err != nil {
		return fmt.Errorf("expand cron for template %s: %w", tpl.ID, err)
	}
	if len(instants) == 0 {
		return nil
	}

	jobs := dedupJobs(tpl, instants)
	newMark := tpl.LastMaterializedUntil
	for start := 0; start < len(jobs); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(jobs) {
			end = len(jobs)
		}
		batch := jobs[start:end]
		for i := range batch {
			id, err := m.store.CreateJob(ctx, &batch[i])
			if err != nil {
				return fmt.Errorf("create materialized job for template %s: %w", tpl.ID, err)
			}
			if err := m.queue.Push(ctx, m.cfg.QueueName, id, int(batch[i].Priority)); err != nil {
				slog.WarnContext(ctx, "failed to queue materialized job", "job_id", id, "error", err)
			}
			if batch[i].ScheduledAt.After(newMark) {
				newMark = batch[i].ScheduledAt
			}
		}
	}

	return m.store.UpdateTemplate(ctx, tpl.ID, domain.UpdateTemplateParams{
		UpdateMask:            []string{"last_materialized_until"},
		LastMaterializedUntil: &newMark,
	})
}

// fireInstants iterates the template's cron schedule strictly after
// its high-water mark, up to and including endTime. The schedule is
// evaluated against the template's IANA zone; robfig/cron's Schedule
// walks wall-clock time in that location, so a skipped local hour
// naturally yields no instant and a repeated local hour naturally
// yields exactly one — no extra DST logic is needed here.
func fireInstants(tpl domain.Template, endTime time.Time) ([]time.Time, error) {
	schedule, err := standardParser.Parse(tpl.Cron)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", tpl.Cron, err)
	}

	loc := time.UTC
	if tpl.Timezone != "" {
		loaded, err := time.LoadLocation(tpl.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", tpl.Timezone, err)
		}
		loc = loaded
	}

	from := tpl.LastMaterializedUntil
	if from.IsZero() {
		from = time.Now().UTC()
	}

	var instants []time.Time
	cursor := from.In(loc)
	for {
		next := schedule.Next(cursor)
		if next.IsZero() || next.UTC().After(endTime) {
			break
		}
		instants = append(instants, next.UTC())
		cursor = next
	}
	return instants, nil
}

// dedupJobs keys candidates by (template_id, instant-truncated-to-second)
// and drops collisions within this cycle, then synthesizes one job per
// surviving instant.
func dedupJobs(tpl domain.Template, instants []time.Time) []domain.Job {
	seen := make(map[time.Time]struct{}, len(instants))
	jobs := make([]domain.Job, 0, len(instants))
	templateID := tpl.ID

	for _, instant := range instants {
		truncated := instant.Truncate(time.Second)
		if _, dup := seen[truncated]; dup {
			continue
		}
		seen[truncated] = struct{}{}

		jobs = append(jobs, domain.Job{
			Kind:        domain.KindRecurring,
			Status:      domain.StatusPending,
			Priority:    tpl.Priority,
			ScheduledAt: truncated,
			Payload:     tpl.Payload.Clone(),
			ParentID:    ptr.To(templateID),
			MaxRetries:  tpl.MaxRetries,
		})
	}
	return jobs
}
