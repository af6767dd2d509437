// Package lock implements the per-job distributed mutex (C2): a
// Redis-backed keyed lock with TTL-based auto-release and a
// compare-and-delete safer release.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript compares the stored owner token before deleting, so a
// caller can never release a lock it no longer holds (e.g. after TTL
// rollover handed it to another worker). This is the "safer release"
// original_source/scheduler_core/src/cache/redis.rs left commented out.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Locker is a keyed mutex with expiry backed by Redis.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

// New wraps an existing Redis client as a Locker.
func New(client *redis.Client) *Locker {
	return &Locker{client: client, script: redis.NewScript(releaseScript)}
}

func key(jobID string) string {
	return "scheduler_lock:" + jobID
}

// Acquire attempts a SET key owner NX PX ttl. It returns true iff the
// key was created by this call (I3): at most one holder exists for a
// job id at any instant. owner should encode a per-worker identifier
// (uuid + hostname) so a safer Release can be proven against it.
func (l *Locker) Acquire(ctx context.Context, jobID, owner string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key(jobID), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", jobID, err)
	}
	return ok, nil
}

// Release deletes the lock iff it is still held by owner. Release is
// best-effort: a no-op return (false, nil) means the lock had already
// expired or was claimed by another owner, neither of which is an
// error — TTL is the correctness floor, not this call.
func (l *Locker) Release(ctx context.Context, jobID, owner string) (bool, error) {
	result, err := l.script.Run(ctx, l.client, []string{key(jobID)}, owner).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("release lock %s: %w", jobID, err)
	}
	return result == 1, nil
}
