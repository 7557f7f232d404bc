package session

import (
	"log/slog"

	"github.com/pawtrack/walkstream/errors"
	"github.com/pawtrack/walkstream/metric"
	"github.com/pawtrack/walkstream/pkg/buffer"
	"github.com/pawtrack/walkstream/track"
)

// batcher accumulates validated samples until a flush is due. It is owned by
// the session event loop and is not safe for concurrent use.
//
// The backing ring buffer doubles as offline retention: when the transport is
// down samples keep accumulating, and once capacity is reached the oldest are
// evicted first.
type batcher struct {
	buf       buffer.Buffer[track.Sample]
	batchSize int
	logger    *slog.Logger
}

func newBatcher(cfg Config, sessionID string, registry *metric.MetricsRegistry, logger *slog.Logger) (*batcher, error) {
	b := &batcher{
		batchSize: cfg.BatchSize,
		logger:    logger,
	}

	// Metrics are namespaced per session so several sessions (or a recreated
	// one) can share a registry.
	buf, err := buffer.NewRing[track.Sample](cfg.RetentionCapacity,
		buffer.WithOverflowPolicy[track.Sample](buffer.DropOldest),
		buffer.WithDropCallback[track.Sample](func(s track.Sample) {
			b.logger.Debug("sample evicted, retention exceeded", "sample", s.ID)
		}),
		buffer.WithMetrics[track.Sample](registry, "session_"+sessionID+"_buffer"),
	)
	if err != nil {
		return nil, errors.WrapFatal(err, "batcher", "newBatcher", "create retention buffer")
	}
	b.buf = buf
	return b, nil
}

// add appends a sample in arrival order. Eviction of the oldest sample on
// overflow is handled by the ring buffer.
func (b *batcher) add(s track.Sample) {
	if err := b.buf.Write(s); err != nil {
		b.logger.Error("sample write failed", "error", err)
	}
}

// full reports whether at least one complete batch is pending.
func (b *batcher) full() bool {
	return b.buf.Size() >= b.batchSize
}

// pending returns the number of buffered samples.
func (b *batcher) pending() int {
	return b.buf.Size()
}

// next removes and returns up to one batch of samples in arrival order.
func (b *batcher) next() []track.Sample {
	return b.buf.ReadBatch(b.batchSize)
}

// stats exposes the underlying buffer statistics.
func (b *batcher) stats() *buffer.Statistics {
	return b.buf.Stats()
}

func (b *batcher) close() {
	if err := b.buf.Close(); err != nil {
		b.logger.Debug("buffer close failed", "error", err)
	}
}
