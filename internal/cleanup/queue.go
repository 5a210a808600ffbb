// Package cleanup retries deletion of media that could not be removed inline.
//
// References land here when a best-effort delete fails or when a record write
// fails after its media was already saved. A Worker drains the queue with
// backoff, so every queued reference is deleted at least once or dropped
// after MaxAttempts with an error log.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// QueueKey is the sorted set of pending references scored by next attempt (unix ms).
	QueueKey = "media:cleanup"
	// AttemptsKey is the hash of failed attempt counts per reference.
	AttemptsKey = "media:cleanup:attempts"
)

// Item is a reference waiting for deletion.
type Item struct {
	Ref      string
	Attempts int
}

// Queue is a Redis-backed retry queue of media references.
type Queue struct {
	client *redis.Client
	now    func() time.Time
}

// NewQueue creates a queue on the given client.
func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client, now: time.Now}
}

// Enqueue schedules ref for immediate deletion.
// Enqueuing a reference that is already queued keeps its existing schedule.
func (q *Queue) Enqueue(ctx context.Context, ref string) error {
	if ref == "" {
		return errors.New("cleanup: empty reference")
	}

	pipe := q.client.TxPipeline()
	pipe.ZAddNX(ctx, QueueKey, redis.Z{Score: float64(q.now().UnixMilli()), Member: ref})
	pipe.HSetNX(ctx, AttemptsKey, ref, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue cleanup: %w", err)
	}
	return nil
}

// Due returns up to limit references whose next attempt is at or before now.
func (q *Queue) Due(ctx context.Context, now time.Time, limit int) ([]Item, error) {
	refs, err := q.client.ZRangeByScore(ctx, QueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read due cleanup: %w", err)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	counts, err := q.client.HMGet(ctx, AttemptsKey, refs...).Result()
	if err != nil {
		return nil, fmt.Errorf("read cleanup attempts: %w", err)
	}

	items := make([]Item, len(refs))
	for i, ref := range refs {
		items[i] = Item{Ref: ref}
		if s, ok := counts[i].(string); ok {
			items[i].Attempts, _ = strconv.Atoi(s)
		}
	}
	return items, nil
}

// Reschedule records a failed attempt and moves ref to at.
func (q *Queue) Reschedule(ctx context.Context, ref string, attempts int, at time.Time) error {
	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, QueueKey, redis.Z{Score: float64(at.UnixMilli()), Member: ref})
	pipe.HSet(ctx, AttemptsKey, ref, attempts)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reschedule cleanup: %w", err)
	}
	return nil
}

// Complete removes ref from the queue.
func (q *Queue) Complete(ctx context.Context, ref string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, QueueKey, ref)
	pipe.HDel(ctx, AttemptsKey, ref)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("complete cleanup: %w", err)
	}
	return nil
}

// Depth returns the number of queued references.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, QueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("cleanup queue depth: %w", err)
	}
	return n, nil
}
