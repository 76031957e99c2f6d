// Package batcher accumulates items and flushes them in size-bounded,
// rate-limited batches.
package batcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// Batcher buffers items and flushes them when the batch fills or the
// interval elapses. Flush errors are logged and the batch is dropped.
type Batcher[T any] struct {
	flush    func(context.Context, []T) error
	in       chan T
	size     int
	interval time.Duration
	limiter  ratelimit.Limiter
	logger   *zap.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopping chan struct{}
}

// New constructs a Batcher flushing at most rps batches per second.
func New[T any](logger *zap.Logger, flush func(context.Context, []T) error, size int, interval time.Duration, rps int) *Batcher[T] {
	return &Batcher[T]{
		flush:    flush,
		in:       make(chan T, size*2),
		size:     size,
		interval: interval,
		limiter:  ratelimit.New(rps),
		logger:   logger,
		stopping: make(chan struct{}),
	}
}

// Start launches the background flush loop.
func (b *Batcher[T]) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.run(ctx)
}

// Stop drains queued items, flushes them, and waits for the loop to exit.
func (b *Batcher[T]) Stop() {
	b.stopOnce.Do(func() { close(b.stopping) })
	b.wg.Wait()
}

// Add queues one item. It fails once the batcher is stopping or the
// context is done.
func (b *Batcher[T]) Add(ctx context.Context, item T) error {
	select {
	case <-b.stopping:
		return context.Canceled
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case b.in <- item:
		return nil
	}
}

func (b *Batcher[T]) run(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	batch := make([]T, 0, b.size)

	for {
		select {
		case <-ctx.Done():
			b.drain(ctx, batch)
			return

		case <-b.stopping:
			b.drain(ctx, batch)
			return

		case item := <-b.in:
			batch = append(batch, item)
			if len(batch) >= b.size {
				b.flushBatch(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			b.flushBatch(ctx, batch)
			batch = batch[:0]
		}
	}
}

// drain empties the input channel into batch and flushes the remainder.
func (b *Batcher[T]) drain(ctx context.Context, batch []T) {
	for {
		select {
		case item := <-b.in:
			batch = append(batch, item)
			if len(batch) >= b.size {
				b.flushBatch(ctx, batch)
				batch = batch[:0]
			}
		default:
			b.flushBatch(ctx, batch)
			return
		}
	}
}

func (b *Batcher[T]) flushBatch(ctx context.Context, batch []T) {
	if len(batch) == 0 {
		return
	}

	b.limiter.Take()
	if err := b.flush(ctx, batch); err != nil {
		b.logger.Error("batch not flushed", zap.Int("size", len(batch)), zap.Error(err))
		return
	}
	b.logger.Debug("batch flushed", zap.Int("size", len(batch)))
}
