package buffer

import (
	"sync"

	"github.com/pawtrack/walkstream/errors"
)

// ring is a thread-safe ring buffer with configurable overflow policies.
type ring[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	stats    *Statistics
	metrics  *ringMetrics
	opts     *options[T]
	closed   bool
}

func newRing[T any](capacity int, opts *options[T]) (*ring[T], error) {
	if capacity <= 0 {
		capacity = 1
	}

	var metrics *ringMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newRingMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "newRing", "metrics registration")
		}
	}

	return &ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		metrics:  metrics,
		opts:     opts,
	}, nil
}

// Write adds an item according to the overflow policy. Never blocks.
func (r *ring[T]) Write(item T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.WrapInvalid(errors.ErrTerminated, "Buffer", "Write", "buffer closed")
	}

	if r.size == r.capacity {
		r.stats.Overflow()
		r.stats.Drop()
		if r.metrics != nil {
			r.metrics.recordOverflow()
			r.metrics.recordDrop()
		}

		switch r.opts.overflowPolicy {
		case DropOldest:
			dropped := r.items[r.tail]
			r.tail = (r.tail + 1) % r.capacity
			r.size--
			if r.opts.dropCallback != nil {
				// Invoke outside the lock to avoid deadlock
				defer r.opts.dropCallback(dropped)
			}

		case DropNewest:
			if r.opts.dropCallback != nil {
				defer r.opts.dropCallback(item)
			}
			return nil
		}
	}

	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.size++

	r.stats.Write()
	r.stats.UpdateSize(int64(r.size))
	if r.metrics != nil {
		r.metrics.recordWrite(r.size, r.capacity)
	}

	return nil
}

// Read retrieves and removes the oldest item.
func (r *ring[T]) Read() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}

	item := r.items[r.tail]
	r.items[r.tail] = zero // clear for GC
	r.tail = (r.tail + 1) % r.capacity
	r.size--

	r.stats.Read()
	r.stats.UpdateSize(int64(r.size))
	if r.metrics != nil {
		r.metrics.recordRead(r.size, r.capacity)
	}

	return item, true
}

// ReadBatch retrieves and removes up to max items in FIFO order.
func (r *ring[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return nil
	}

	readCount := max
	if readCount > r.size {
		readCount = r.size
	}

	result := make([]T, readCount)
	var zero T
	for i := 0; i < readCount; i++ {
		result[i] = r.items[r.tail]
		r.items[r.tail] = zero
		r.tail = (r.tail + 1) % r.capacity
		r.size--
		r.stats.Read()
	}

	r.stats.UpdateSize(int64(r.size))
	if r.metrics != nil {
		r.metrics.updateSize(r.size, r.capacity)
	}

	return result
}

// Peek retrieves the oldest item without removing it.
func (r *ring[T]) Peek() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}

	r.stats.Peek()
	if r.metrics != nil {
		r.metrics.recordPeek()
	}

	return r.items[r.tail], true
}

// Size returns the current number of items.
func (r *ring[T]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Capacity returns the maximum number of items. Immutable, no lock needed.
func (r *ring[T]) Capacity() int {
	return r.capacity
}

// IsFull reports whether the buffer is at capacity.
func (r *ring[T]) IsFull() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size == r.capacity
}

// IsEmpty reports whether the buffer contains no items.
func (r *ring[T]) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size == 0
}

// Clear removes all items, invoking the drop callback for each.
func (r *ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opts.dropCallback != nil {
		toDrop := make([]T, r.size)
		for i := 0; i < r.size; i++ {
			toDrop[i] = r.items[(r.tail+i)%r.capacity]
		}
		defer func() {
			for _, item := range toDrop {
				r.opts.dropCallback(item)
			}
		}()
	}

	var zero T
	for i := 0; i < r.capacity; i++ {
		r.items[i] = zero
	}
	r.head = 0
	r.tail = 0
	r.size = 0

	r.stats.UpdateSize(0)
	if r.metrics != nil {
		r.metrics.updateSize(0, r.capacity)
	}
}

// Stats returns buffer statistics.
func (r *ring[T]) Stats() *Statistics {
	return r.stats
}

// Close shuts down the buffer and releases its metric registrations.
// Subsequent writes fail. Idempotent.
func (r *ring[T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.metrics != nil {
		r.metrics.unregister()
	}
	return nil
}
