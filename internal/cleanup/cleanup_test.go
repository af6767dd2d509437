package cleanup_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rezkam/mono/internal/cleanup"
	"github.com/rezkam/mono/internal/domain"
	"github.com/rezkam/mono/internal/ptr"
	"github.com/rezkam/mono/internal/storage/memstore"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	archived []string
}

func (s *recordingSink) Archive(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived = append(s.archived, job.ID)
	return nil
}

func (s *recordingSink) Get(context.Context, string) (*domain.Job, error)  { return nil, domain.ErrNotFound }
func (s *recordingSink) List(context.Context) ([]*domain.Job, error)       { return nil, nil }

func runningJobOlderThan(t *testing.T, store *memstore.Store, age time.Duration) string {
	t.Helper()
	ctx := context.Background()
	id, err := store.CreateJob(ctx, &domain.Job{
		Kind:        domain.KindOneTime,
		ScheduledAt: time.Now().UTC(),
		Payload:     domain.Payload{Command: "echo"},
	})
	require.NoError(t, err)

	started := time.Now().UTC().Add(-age)
	require.NoError(t, store.UpdateJob(ctx, id, domain.UpdateJobParams{
		UpdateMask: []string{"status", "started_at"},
		Status:     ptr.To(domain.StatusRunning),
		StartedAt:  &started,
	}))
	return id
}

func TestReapOrphans_MarksStaleRunningJobsFailed(t *testing.T) {
	store := memstore.New()
	id := runningJobOlderThan(t, store, 2*time.Hour)

	// The reaper judges staleness by updated_at, which UpdateJob has just
	// set to now; wait past a short OrphanMaxAge so the row is stale.
	time.Sleep(5 * time.Millisecond)

	c := cleanup.New(store, nil, cleanup.Config{OrphanMaxAge: time.Millisecond})
	require.NoError(t, c.ReapOrphans(context.Background()))

	job, err := store.GetJob(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, job.Status)
	require.NotNil(t, job.LastError)
	require.Equal(t, "orphaned", *job.LastError)
}

func TestReapOrphans_LeavesFreshRunningJobsAlone(t *testing.T) {
	store := memstore.New()
	id := runningJobOlderThan(t, store, time.Minute)

	c := cleanup.New(store, nil, cleanup.Config{OrphanMaxAge: time.Hour})
	require.NoError(t, c.ReapOrphans(context.Background()))

	job, err := store.GetJob(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRunning, job.Status)
}

func TestArchiveOld_UploadsAndMarksArchived(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	id, err := store.CreateJob(ctx, &domain.Job{
		Kind:        domain.KindOneTime,
		ScheduledAt: time.Now().UTC(),
		Payload:     domain.Payload{Command: "echo"},
	})
	require.NoError(t, err)
	require.NoError(t, store.UpdateJob(ctx, id, domain.UpdateJobParams{
		UpdateMask: []string{"status", "finished_at"},
		Status:     ptr.To(domain.StatusCompleted),
		FinishedAt: ptr.To(time.Now().UTC()),
	}))

	time.Sleep(5 * time.Millisecond)

	sink := &recordingSink{}
	c := cleanup.New(store, sink, cleanup.Config{Retention: time.Millisecond})
	require.NoError(t, c.ArchiveOld(ctx))

	require.Contains(t, sink.archived, id)

	job, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	require.True(t, job.Archived)
}
