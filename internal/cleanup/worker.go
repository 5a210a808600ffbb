package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/daybook/daybook/internal/media"
	"github.com/daybook/daybook/internal/metrics"
)

const (
	// DefaultBatchSize is the number of references to process per poll.
	DefaultBatchSize = 50
	// DefaultPollInterval is the time between polls for due references.
	DefaultPollInterval = 30 * time.Second
)

// Deleter removes stored media by reference.
type Deleter interface {
	Delete(ctx context.Context, ref string) error
}

// Result summarizes one pass over the queue.
type Result struct {
	Deleted int
	Retried int
	Dropped int
}

// Worker drains the cleanup queue.
type Worker struct {
	queue        *Queue
	store        Deleter
	logger       *slog.Logger
	metrics      metrics.Recorder
	batchSize    int
	pollInterval time.Duration
	maxAttempts  int
	now          func() time.Time
	started      bool
}

// NewWorker creates a cleanup worker.
func NewWorker(queue *Queue, store Deleter, logger *slog.Logger, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		queue:        queue,
		store:        store,
		logger:       logger.With("component", "cleanup.worker"),
		metrics:      recorder,
		batchSize:    DefaultBatchSize,
		pollInterval: DefaultPollInterval,
		maxAttempts:  DefaultMaxAttempts,
		now:          time.Now,
	}
}

// Run starts the worker loop. Blocks until context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.started {
		return errors.New("worker already started")
	}
	w.started = true

	w.logger.Info("cleanup worker started", "poll_interval", w.pollInterval.String())

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cleanup worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("cleanup pass failed", "error", err)
			}
		}
	}
}

// RunOnce processes one batch of due references.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	var res Result

	items, err := w.queue.Due(ctx, w.now(), w.batchSize)
	if err != nil {
		return res, fmt.Errorf("get due references: %w", err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		outcome, err := w.process(ctx, item)
		if err != nil {
			return res, err
		}
		switch outcome {
		case metrics.CleanupDeleted:
			res.Deleted++
		case metrics.CleanupRetried:
			res.Retried++
		case metrics.CleanupDropped:
			res.Dropped++
		}
		w.metrics.IncMediaCleanup(outcome)
	}

	w.updateQueueDepth(ctx)
	return res, nil
}

// process attempts one delete and returns the cleanup status it produced.
func (w *Worker) process(ctx context.Context, item Item) (string, error) {
	deleteErr := w.store.Delete(ctx, item.Ref)
	if deleteErr == nil {
		w.logger.Info("media_cleanup_succeeded", "ref", item.Ref, "attempts", item.Attempts+1)
		return metrics.CleanupDeleted, w.queue.Complete(ctx, item.Ref)
	}

	if errors.Is(deleteErr, media.ErrNotManaged) {
		w.logger.Error("media_cleanup_dropped", "ref", item.Ref, "reason", "not store-managed")
		return metrics.CleanupDropped, w.queue.Complete(ctx, item.Ref)
	}

	attempts := item.Attempts + 1
	if IsExhausted(attempts, w.maxAttempts) {
		w.logger.Error("media_cleanup_dropped",
			"ref", item.Ref,
			"attempts", attempts,
			"error", deleteErr,
		)
		return metrics.CleanupDropped, w.queue.Complete(ctx, item.Ref)
	}

	next := w.now().Add(NextRetryDelay(item.Attempts))
	w.logger.Warn("media_cleanup_failed",
		"ref", item.Ref,
		"attempt", attempts,
		"next_attempt_at", next,
		"error", deleteErr,
	)
	return metrics.CleanupRetried, w.queue.Reschedule(ctx, item.Ref, attempts, next)
}

func (w *Worker) updateQueueDepth(ctx context.Context) {
	depth, err := w.queue.Depth(ctx)
	if err != nil {
		w.logger.Warn("failed to get queue depth", "error", err)
		return
	}
	w.metrics.SetCleanupQueueDepth(depth)
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetPollInterval overrides the default poll interval.
func (w *Worker) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		w.pollInterval = interval
	}
}

// SetMaxAttempts overrides how many failed deletes are tolerated.
func (w *Worker) SetMaxAttempts(n int) {
	if n > 0 {
		w.maxAttempts = n
	}
}
