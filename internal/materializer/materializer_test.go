package materializer_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rezkam/mono/internal/domain"
	"github.com/rezkam/mono/internal/materializer"
	"github.com/rezkam/mono/internal/queue"
	"github.com/rezkam/mono/internal/storage/memstore"
	"github.com/stretchr/testify/require"
)

func newTestMaterializer(t *testing.T, cfg materializer.Config) (*materializer.Materializer, *memstore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := memstore.New()
	return materializer.New(store, queue.New(client), cfg), store
}

func TestRunOnce_MaterializesDueFireInstants(t *testing.T) {
	m, store := newTestMaterializer(t, materializer.Config{
		LookAhead:     2 * time.Hour,
		CycleInterval: time.Minute,
		BatchSize:     10,
		QueueName:     "default",
	})

	ctx := context.Background()
	tplID, err := store.CreateTemplate(ctx, &domain.Template{
		Cron:       "* * * * *",
		Timezone:   "UTC",
		Payload:    domain.Payload{Command: "echo", Args: []string{"hi"}},
		Priority:   domain.PriorityDefault,
		MaxRetries: 3,
		Active:     true,
	})
	require.NoError(t, err)

	require.NoError(t, m.RunOnce(ctx))

	jobs, err := store.ListByStatus(ctx, domain.StatusPending)
	require.NoError(t, err)
	require.NotEmpty(t, jobs)
	for _, job := range jobs {
		require.Equal(t, domain.KindRecurring, job.Kind)
		require.NotNil(t, job.ParentID)
		require.Equal(t, tplID, *job.ParentID)
	}

	tpl, err := store.GetTemplate(ctx, tplID)
	require.NoError(t, err)
	require.False(t, tpl.LastMaterializedUntil.IsZero())
}

func TestRunOnce_InactiveTemplateIsSkipped(t *testing.T) {
	m, store := newTestMaterializer(t, materializer.Config{})
	ctx := context.Background()

	_, err := store.CreateTemplate(ctx, &domain.Template{
		Cron:     "* * * * *",
		Timezone: "UTC",
		Payload:  domain.Payload{Command: "echo"},
		Active:   false,
	})
	require.NoError(t, err)

	require.NoError(t, m.RunOnce(ctx))

	jobs, err := store.ListByStatus(ctx, domain.StatusPending)
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestRunOnce_SecondCycleDoesNotRematerializePastMark(t *testing.T) {
	m, store := newTestMaterializer(t, materializer.Config{
		LookAhead:     2 * time.Hour,
		CycleInterval: time.Minute,
		BatchSize:     10,
		QueueName:     "default",
	})
	ctx := context.Background()

	tplID, err := store.CreateTemplate(ctx, &domain.Template{
		Cron:     "* * * * *",
		Timezone: "UTC",
		Payload:  domain.Payload{Command: "echo"},
		Active:   true,
	})
	require.NoError(t, err)

	require.NoError(t, m.RunOnce(ctx))
	first, err := store.ListByStatus(ctx, domain.StatusPending)
	require.NoError(t, err)
	firstCount := len(first)
	require.NotZero(t, firstCount)

	require.NoError(t, m.RunOnce(ctx))
	second, err := store.ListByStatus(ctx, domain.StatusPending)
	require.NoError(t, err)
	require.Equal(t, firstCount, len(second), "second cycle before the window advances should add nothing new")

	tpl, err := store.GetTemplate(ctx, tplID)
	require.NoError(t, err)
	require.False(t, tpl.LastMaterializedUntil.IsZero())
}
