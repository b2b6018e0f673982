package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/iho/commissions/internal/infrastructure/metrics"
)

// ChunkWriter persists large record sets as bounded, paced chunks.
// Chunks already written stay committed when a later chunk fails.
type ChunkWriter struct {
	size    int
	pacing  time.Duration
	retrier Retrier
	metrics *metrics.Metrics
}

// NewChunkWriter creates a ChunkWriter. Non-positive sizes fall back to DefaultWriteBatchSize.
// retrier and m may be nil.
func NewChunkWriter(size int, pacing time.Duration, retrier Retrier, m *metrics.Metrics) *ChunkWriter {
	if size <= 0 {
		size = DefaultWriteBatchSize
	}
	if pacing < 0 {
		pacing = 0
	}
	return &ChunkWriter{size: size, pacing: pacing, retrier: retrier, metrics: m}
}

// Size returns the maximum chunk length.
func (w *ChunkWriter) Size() int {
	return w.size
}

// WriteInChunks submits items to write in chunks of at most w.Size(), pausing between chunks.
// It stops at the first failed chunk or when ctx is done.
func WriteInChunks[T any](ctx context.Context, w *ChunkWriter, target string, items []T, write func(context.Context, []T) error) error {
	for start := 0; start < len(items); start += w.size {
		if start > 0 {
			if err := w.pause(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+w.size, len(items))
		chunk := items[start:end]

		err := w.retry(ctx, func() error { return write(ctx, chunk) })
		w.observe(target, len(chunk), err)
		if err != nil {
			return fmt.Errorf("write %s records %d-%d: %w", target, start, end, err)
		}
	}
	return nil
}

func (w *ChunkWriter) pause(ctx context.Context) error {
	if w.pacing == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(w.pacing)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *ChunkWriter) retry(ctx context.Context, op func() error) error {
	if w.retrier == nil {
		return op()
	}
	return w.retrier.Retry(ctx, op)
}

func (w *ChunkWriter) observe(target string, n int, err error) {
	if w.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	w.metrics.ChunkWrites.WithLabelValues(target, status).Inc()
	w.metrics.ChunkSize.Observe(float64(n))
}
