// Package buffer provides a generic, thread-safe ring buffer used to retain
// location samples while the transport is unavailable.
//
// The buffer never blocks the writer: when full it either evicts the oldest
// item (FIFO retention, the streaming default) or drops the new one.
// Statistics are always collected; Prometheus metrics are optional via
// WithMetrics().
package buffer

import (
	"github.com/pawtrack/walkstream/metric"
)

// Buffer is a generic bounded buffer parameterized by item type T.
type Buffer[T any] interface {
	// Write adds an item. Behavior when full depends on the overflow policy.
	Write(item T) error

	// Read retrieves and removes one item.
	// Returns the zero value and false if the buffer is empty.
	Read() (T, bool)

	// ReadBatch retrieves and removes up to max items in FIFO order.
	ReadBatch(max int) []T

	// Peek retrieves the oldest item without removing it.
	Peek() (T, bool)

	// Size returns the current number of items.
	Size() int

	// Capacity returns the maximum number of items the buffer can hold.
	Capacity() int

	// IsFull reports whether the buffer is at capacity.
	IsFull() bool

	// IsEmpty reports whether the buffer contains no items.
	IsEmpty() bool

	// Clear removes all items.
	Clear()

	// Stats returns buffer statistics (always available for observability).
	Stats() *Statistics

	// Close shuts down the buffer and releases resources.
	Close() error
}

// OverflowPolicy defines behavior when the buffer reaches capacity.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest item to make room (FIFO retention).
	DropOldest OverflowPolicy = iota

	// DropNewest drops the incoming item when the buffer is full.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// DropCallback is called with each item dropped due to the overflow policy.
type DropCallback[T any] func(item T)

// Option configures buffer behavior using the functional options pattern.
type Option[T any] func(*options[T])

type options[T any] struct {
	overflowPolicy OverflowPolicy
	dropCallback   DropCallback[T]
	metricsReg     *metric.MetricsRegistry
	metricsPrefix  string
}

// WithOverflowPolicy sets the overflow behavior. Defaults to DropOldest.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(opts *options[T]) {
		opts.overflowPolicy = policy
	}
}

// WithDropCallback sets a callback invoked with each dropped item.
func WithDropCallback[T any](callback DropCallback[T]) Option[T] {
	return func(opts *options[T]) {
		opts.dropCallback = callback
	}
}

// WithMetrics enables Prometheus metrics export for buffer statistics.
// Ignored if registry is nil or prefix is empty.
func WithMetrics[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(opts *options[T]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

func applyOptions[T any](opts ...Option[T]) *options[T] {
	o := &options[T]{
		overflowPolicy: DropOldest,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// NewRing creates a ring buffer with the specified capacity.
// Returns an error if metrics registration fails when metrics are requested.
func NewRing[T any](capacity int, opts ...Option[T]) (Buffer[T], error) {
	return newRing(capacity, applyOptions(opts...))
}
