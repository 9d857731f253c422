package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/queue"
)

const (
	AttemptBatchSize    = 50
	AttemptBatchTimeout = 2 * time.Second
	AttemptPollTimeout  = 1 * time.Second

	shutdownFlushTimeout = 10 * time.Second
	popErrorBackoff      = 500 * time.Millisecond
)

// AttemptSource is the queue the worker drains. Push is used to requeue
// attempts that could not be written.
type AttemptSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*model.Attempt, error)
	Push(ctx context.Context, a *model.Attempt) error
}

// AttemptStore persists attempts.
type AttemptStore interface {
	InsertBatch(ctx context.Context, attempts []model.Attempt) error
	Insert(ctx context.Context, a *model.Attempt) error
}

// AttemptWorker consumes persist_attempts_queue and writes finished quiz
// attempts to PostgreSQL in batches.
type AttemptWorker struct {
	source AttemptSource
	store  AttemptStore
	log    zerolog.Logger

	batchSize    int
	batchTimeout time.Duration
	pollTimeout  time.Duration
}

// NewAttemptWorker creates a new AttemptWorker.
func NewAttemptWorker(source AttemptSource, store AttemptStore, log zerolog.Logger) *AttemptWorker {
	return &AttemptWorker{
		source:       source,
		store:        store,
		log:          logger.Component(log, "attempt_worker"),
		batchSize:    AttemptBatchSize,
		batchTimeout: AttemptBatchTimeout,
		pollTimeout:  AttemptPollTimeout,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is cancelled, then flushes what it holds. Call in a
// goroutine.
func (w *AttemptWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AttemptWorker started")

	batch := make([]model.Attempt, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
			w.flushSafe(flushCtx, batch)
			cancel()
			return
		default:
		}

		a, err := w.source.Pop(ctx, w.pollTimeout)
		switch {
		case err == nil:
			batch = append(batch, *a)
		case errors.Is(err, queue.ErrEmpty), ctx.Err() != nil:
		default:
			w.log.Error().Err(err).Msg("Pop error")
			sleepCtx(ctx, popErrorBackoff)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert with single-row fallback
// ----------------------------------------------------------------

func (w *AttemptWorker) flushSafe(ctx context.Context, batch []model.Attempt) {
	if len(batch) == 0 {
		return
	}

	err := w.store.InsertBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Attempts persisted")
		return
	}

	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Batch insert failed, using fallback")
	for i := range batch {
		a := &batch[i]
		if err := w.store.Insert(ctx, a); err != nil {
			w.log.Error().Err(err).
				Str("attempt_id", a.ID.String()).
				Msg("Insert failed, requeueing")
			if err := w.source.Push(context.WithoutCancel(ctx), a); err != nil {
				w.log.Error().Err(err).
					Str("attempt_id", a.ID.String()).
					Msg("Requeue failed, attempt lost")
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
