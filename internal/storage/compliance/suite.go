// Package compliance holds a shared table of behavioral assertions run
// against every core.Storage implementation, so Postgres and memstore
// cannot silently diverge in semantics.
package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/rezkam/mono/internal/core"
	"github.com/rezkam/mono/internal/domain"
	"github.com/rezkam/mono/internal/ptr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayload() domain.Payload {
	return domain.Payload{Command: "echo", Args: []string{"hello"}}
}

// RunStorageComplianceTest runs a standard set of tests against a
// core.Storage implementation. setup returns a fresh instance and a
// teardown func invoked after each subtest.
func RunStorageComplianceTest(t *testing.T, setup func() (core.Storage, func())) {
	t.Run("CreateAndGetJob", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		job := &domain.Job{
			Kind:        domain.KindOneTime,
			Status:      domain.StatusPending,
			ScheduledAt: time.Now().UTC(),
			Payload:     samplePayload(),
			MaxRetries:  3,
		}

		id, err := store.CreateJob(ctx, job)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		fetched, err := store.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, fetched.ID)
		assert.Equal(t, domain.StatusPending, fetched.Status)
		assert.Equal(t, "echo", fetched.Payload.Command)
	})

	t.Run("UpdateJobAppliesMaskedFields", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		job := &domain.Job{
			Kind:        domain.KindOneTime,
			Status:      domain.StatusPending,
			ScheduledAt: time.Now().UTC(),
			Payload:     samplePayload(),
		}
		id, err := store.CreateJob(ctx, job)
		require.NoError(t, err)

		err = store.UpdateJob(ctx, id, domain.UpdateJobParams{
			UpdateMask: []string{"status"},
			Status:     ptr.To(domain.StatusRunning),
		})
		require.NoError(t, err)

		fetched, err := store.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRunning, fetched.Status)
	})

	t.Run("UpdateJobRejectsInvalidMask", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		job := &domain.Job{Kind: domain.KindOneTime, Status: domain.StatusPending, ScheduledAt: time.Now().UTC(), Payload: samplePayload()}
		id, err := store.CreateJob(ctx, job)
		require.NoError(t, err)

		err = store.UpdateJob(ctx, id, domain.UpdateJobParams{UpdateMask: []string{"not_a_field"}})
		assert.Error(t, err)
	})

	t.Run("ListDueReturnsOnlyDuePendingJobs", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()
		now := time.Now().UTC()

		due := &domain.Job{Kind: domain.KindOneTime, Status: domain.StatusPending, ScheduledAt: now.Add(-time.Minute), Payload: samplePayload()}
		future := &domain.Job{Kind: domain.KindOneTime, Status: domain.StatusPending, ScheduledAt: now.Add(time.Hour), Payload: samplePayload()}
		dueID, err := store.CreateJob(ctx, due)
		require.NoError(t, err)
		_, err = store.CreateJob(ctx, future)
		require.NoError(t, err)

		jobs, err := store.ListDue(ctx, now, 10)
		require.NoError(t, err)

		ids := make(map[string]bool)
		for _, j := range jobs {
			ids[j.ID] = true
		}
		assert.True(t, ids[dueID])
	})

	t.Run("DeleteJobRemovesRow", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		job := &domain.Job{Kind: domain.KindOneTime, Status: domain.StatusPending, ScheduledAt: time.Now().UTC(), Payload: samplePayload()}
		id, err := store.CreateJob(ctx, job)
		require.NoError(t, err)

		require.NoError(t, store.DeleteJob(ctx, id))

		_, err = store.GetJob(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("GetNonExistentJob", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		_, err := store.GetJob(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("CreateAndGetTemplate", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		tpl := &domain.Template{
			Cron:    "0 * * * *",
			Payload: samplePayload(),
			Active:  true,
		}
		id, err := store.CreateTemplate(ctx, tpl)
		require.NoError(t, err)

		fetched, err := store.GetTemplate(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "0 * * * *", fetched.Cron)
		assert.True(t, fetched.Active)
	})

	t.Run("ListActiveTemplatesExcludesInactive", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		active := &domain.Template{Cron: "0 * * * *", Payload: samplePayload(), Active: true}
		inactive := &domain.Template{Cron: "0 * * * *", Payload: samplePayload(), Active: false}
		activeID, err := store.CreateTemplate(ctx, active)
		require.NoError(t, err)
		inactiveID, err := store.CreateTemplate(ctx, inactive)
		require.NoError(t, err)

		templates, err := store.ListActiveTemplates(ctx)
		require.NoError(t, err)

		ids := make(map[string]bool)
		for _, tpl := range templates {
			ids[tpl.ID] = true
		}
		assert.True(t, ids[activeID])
		assert.False(t, ids[inactiveID])
	})

	t.Run("DeleteTemplateDoesNotTouchMaterializedJobs", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		tpl := &domain.Template{Cron: "0 * * * *", Payload: samplePayload(), Active: true}
		tplID, err := store.CreateTemplate(ctx, tpl)
		require.NoError(t, err)

		job := &domain.Job{
			Kind:        domain.KindRecurring,
			Status:      domain.StatusPending,
			ScheduledAt: time.Now().UTC(),
			Payload:     samplePayload(),
			ParentID:    &tplID,
		}
		jobID, err := store.CreateJob(ctx, job)
		require.NoError(t, err)

		require.NoError(t, store.DeleteTemplate(ctx, tplID))

		fetched, err := store.GetJob(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, tplID, *fetched.ParentID)
	})
}
