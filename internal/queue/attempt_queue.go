package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// ErrEmpty is returned by Pop when nothing arrived before the timeout.
var ErrEmpty = errors.New("queue empty")

// AttemptQueue is a Redis list of finished attempts waiting to be written to
// PostgreSQL.
type AttemptQueue struct {
	rdb *redis.Client
	key string
}

// NewAttemptQueue uses the configured persist_attempts_queue list.
func NewAttemptQueue(rdb *redis.Client) *AttemptQueue {
	return &AttemptQueue{rdb: rdb, key: config.WorkerKey.PersistAttemptsQueue}
}

// Push appends an attempt to the tail of the queue.
func (q *AttemptQueue) Push(ctx context.Context, a *model.Attempt) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("push attempt: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for the next attempt. It returns ErrEmpty when
// the wait elapsed. A payload that cannot be decoded is dropped and
// reported as an error.
func (q *AttemptQueue) Pop(ctx context.Context, timeout time.Duration) (*model.Attempt, error) {
	item, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, err
	}
	if len(item) < 2 {
		return nil, ErrEmpty
	}

	var a model.Attempt
	if err := json.Unmarshal([]byte(item[1]), &a); err != nil {
		return nil, fmt.Errorf("decode attempt: %w", err)
	}
	return &a, nil
}

// Len reports how many attempts are waiting.
func (q *AttemptQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
