// Package queue implements the Redis-backed dispatch queues (C3): a
// priority sorted set per queue name, a FIFO dead-letter list per job
// kind, and an in-flight membership set. The executor removes a job
// from that set once it records an outcome; no loop adds to it, and
// the populator enqueues without consulting it.
package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Queue wraps a Redis client with the scheduler's queue key conventions.
type Queue struct {
	client *redis.Client
}

// New wraps an existing Redis client as a Queue.
func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func priorityKey(name string) string   { return "jobs:" + name }
func deadLetterKey(kind string) string { return "dead_letter:" + kind }
func inFlightKey() string              { return "jobs:in_flight" }

// Push adds jobID to the named priority queue, ranked by priority
// (higher priority pops first via Pop's ZPOPMAX).
func (q *Queue) Push(ctx context.Context, queueName, jobID string, priority int) error {
	if err := q.client.ZAdd(ctx, priorityKey(queueName), redis.Z{Score: float64(priority), Member: jobID}).Err(); err != nil {
		return fmt.Errorf("push %s to queue %s: %w", jobID, queueName, err)
	}
	return nil
}

// Pop removes and returns the highest-priority job id from the named
// queue. It returns ("", nil) when the queue is empty.
func (q *Queue) Pop(ctx context.Context, queueName string) (string, error) {
	result, err := q.client.ZPopMax(ctx, priorityKey(queueName), 1).Result()
	if err != nil {
		return "", fmt.Errorf("pop from queue %s: %w", queueName, err)
	}
	if len(result) == 0 {
		return "", nil
	}
	jobID, ok := result[0].Member.(string)
	if !ok {
		return "", fmt.Errorf("pop from queue %s: unexpected member type %T", queueName, result[0].Member)
	}
	return jobID, nil
}

// Len reports the number of pending entries in the named priority queue.
func (q *Queue) Len(ctx context.Context, queueName string) (int64, error) {
	n, err := q.client.ZCard(ctx, priorityKey(queueName)).Result()
	if err != nil {
		return 0, fmt.Errorf("len queue %s: %w", queueName, err)
	}
	return n, nil
}

// PushDeadLetter appends jobID to the FIFO dead-letter list for kind.
func (q *Queue) PushDeadLetter(ctx context.Context, kind, jobID string) error {
	if err := q.client.LPush(ctx, deadLetterKey(kind), jobID).Err(); err != nil {
		return fmt.Errorf("push %s to dead letter %s: %w", jobID, kind, err)
	}
	return nil
}

// PopDeadLetter removes and returns the oldest dead-lettered job id for
// kind. It returns ("", nil) when the list is empty.
func (q *Queue) PopDeadLetter(ctx context.Context, kind string) (string, error) {
	jobID, err := q.client.RPop(ctx, deadLetterKey(kind)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("pop dead letter %s: %w", kind, err)
	}
	return jobID, nil
}

// MarkInFlight records jobID in the in-flight set. Returns false if it
// was already marked.
func (q *Queue) MarkInFlight(ctx context.Context, jobID string) (bool, error) {
	added, err := q.client.SAdd(ctx, inFlightKey(), jobID).Result()
	if err != nil {
		return false, fmt.Errorf("mark in-flight %s: %w", jobID, err)
	}
	return added > 0, nil
}

// ClearInFlight removes jobID from the in-flight set, called once the
// executor has recorded a terminal outcome for it.
func (q *Queue) ClearInFlight(ctx context.Context, jobID string) error {
	if err := q.client.SRem(ctx, inFlightKey(), jobID).Err(); err != nil {
		return fmt.Errorf("clear in-flight %s: %w", jobID, err)
	}
	return nil
}

// IsInFlight reports whether jobID is currently marked dispatched.
func (q *Queue) IsInFlight(ctx context.Context, jobID string) (bool, error) {
	ok, err := q.client.SIsMember(ctx, inFlightKey(), jobID).Result()
	if err != nil {
		return false, fmt.Errorf("check in-flight %s: %w", jobID, err)
	}
	return ok, nil
}
