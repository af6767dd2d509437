package alert_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rezkam/mono/internal/alert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingChannel) Send(_ context.Context, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

func (r *recordingChannel) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func TestNotify_SendsToAllChannels(t *testing.T) {
	a, b := &recordingChannel{}, &recordingChannel{}
	m := alert.NewManager(time.Hour, a, b)

	m.Notify(context.Background(), "job-1", "job-1 failed")

	require.Equal(t, 1, a.count())
	require.Equal(t, 1, b.count())
}

func TestNotify_SuppressesWithinCooldown(t *testing.T) {
	ch := &recordingChannel{}
	m := alert.NewManager(time.Hour, ch)

	m.Notify(context.Background(), "job-1", "first")
	m.Notify(context.Background(), "job-1", "second")

	require.Equal(t, 1, ch.count())
}

func TestNotify_DifferentKeysAreIndependent(t *testing.T) {
	ch := &recordingChannel{}
	m := alert.NewManager(time.Hour, ch)

	m.Notify(context.Background(), "job-1", "first")
	m.Notify(context.Background(), "job-2", "second")

	require.Equal(t, 2, ch.count())
}
