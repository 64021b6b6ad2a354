// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kimlj/Multiwordle-sub000/internal/analytics"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list finished-game summaries are pushed to.
const DefaultQueueName = "multiwordle_summaries"

// ErrBadPayload marks a queue entry that could not be decoded. The entry is consumed.
var ErrBadPayload = errors.New("invalid summary payload")

// Connect opens a Redis client and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// SummaryQueue is a Redis list of finished-game summaries. The game server pushes,
// the historian pops.
type SummaryQueue struct {
	rdb  redis.Cmdable
	name string
}

// NewSummaryQueue wraps rdb. An empty name selects DefaultQueueName.
func NewSummaryQueue(rdb redis.Cmdable, name string) *SummaryQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &SummaryQueue{rdb: rdb, name: name}
}

// Name returns the list key.
func (q *SummaryQueue) Name() string { return q.name }

// Record serializes s and pushes it to the tail of the queue.
func (q *SummaryQueue) Record(ctx context.Context, s analytics.Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the next summary. It returns nil, nil when the queue
// stayed empty.
func (q *SummaryQueue) Pop(ctx context.Context, timeout time.Duration) (*analytics.Summary, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", q.name, err)
	}
	// res[0] is the list name and res[1] the payload.
	if len(res) < 2 {
		return nil, nil
	}
	var s analytics.Summary
	if err := json.Unmarshal([]byte(res[1]), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return &s, nil
}

// Len returns the number of queued summaries.
func (q *SummaryQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.name).Result()
}
