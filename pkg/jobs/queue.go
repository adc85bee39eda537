// Package jobs implements the background job queue that conversation
// summarization and artifact-refresh work is dispatched onto, so neither
// ever blocks the request that triggered it. Uses the standard
// redis/go-redis/v9 client construction idiom (NewClient + Ping on
// startup, redis.Nil for "not found").
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Kind names a background job's type.
type Kind string

const (
	KindConversationSummary Kind = "conversation_summary"
	KindArtifactRefresh     Kind = "artifact_refresh"
)

// queueKey is the single Redis sorted set all jobs are enqueued onto,
// scored by enqueue time so Pop always returns the oldest pending job.
const queueKey = "screenplay:jobs"

// Job is one unit of background work. DedupeKey identifies work that should
// never be queued twice concurrently (e.g. "summary:<conversation_id>") —
// Enqueue is a no-op if a job with the same DedupeKey is already pending.
type Job struct {
	Kind      Kind           `json:"kind"`
	DedupeKey string         `json:"dedupe_key"`
	Payload   map[string]any `json:"payload"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}

// Queue is a Redis sorted-set priority queue. It satisfies
// pkg/conversation.JobQueue's Enqueue shape.
type Queue struct {
	client *redis.Client
}

// New connects to addr and verifies the connection with a ping.
func New(addr string) (*Queue, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Queue{client: client}, nil
}

// Close releases the underlying Redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}

// Enqueue adds a job scored by the current time, deduplicated by
// dedupeKey: if a pending job with the same member already exists, this is
// a no-op rather than a second, redundant entry.
func (q *Queue) Enqueue(ctx context.Context, kind, dedupeKey string, payload map[string]any) error {
	exists, err := q.client.ZScore(ctx, queueKey, dedupeKey).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("check dedupe: %w", err)
	}
	if err == nil && exists != 0 {
		return nil
	}

	job := Job{Kind: Kind(kind), DedupeKey: dedupeKey, Payload: payload, EnqueuedAt: time.Now()}
	encoded, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.HSet(ctx, queueKey+":payloads", dedupeKey, encoded).Err(); err != nil {
		return fmt.Errorf("store payload: %w", err)
	}
	if err := q.client.ZAdd(ctx, queueKey, redis.Z{Score: float64(job.EnqueuedAt.UnixNano()), Member: dedupeKey}).Err(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Pop removes and returns the oldest pending job, or ok=false if the queue
// is empty.
func (q *Queue) Pop(ctx context.Context) (job Job, ok bool, err error) {
	members, err := q.client.ZPopMin(ctx, queueKey, 1).Result()
	if err != nil {
		return Job{}, false, fmt.Errorf("pop: %w", err)
	}
	if len(members) == 0 {
		return Job{}, false, nil
	}
	dedupeKey, _ := members[0].Member.(string)

	encoded, err := q.client.HGet(ctx, queueKey+":payloads", dedupeKey).Result()
	if err != nil {
		if err == redis.Nil {
			return Job{}, false, nil
		}
		return Job{}, false, fmt.Errorf("fetch payload: %w", err)
	}
	if err := q.client.HDel(ctx, queueKey+":payloads", dedupeKey).Err(); err != nil {
		return Job{}, false, fmt.Errorf("clear payload: %w", err)
	}

	if err := json.Unmarshal([]byte(encoded), &job); err != nil {
		return Job{}, false, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, true, nil
}

// Len reports how many jobs are pending.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, queueKey).Result()
}
