// Package ring provides the fixed-capacity buffer between sample capture
// and aggregation. Producers run inline on the profiled threads and must
// never block or allocate, so the buffer is a bounded lock-free ring in the
// Vyukov queue shape: every slot carries a sequence number that tells
// producers and consumers whose turn it is.
package ring

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

var (
	ErrCapacityTooSmall = errors.New("ring capacity must be at least 2")
)

type slot[T any] struct {
	seq atomic.Uint64
	val T
}

// Ring is a bounded multi-producer multi-consumer queue. Push never blocks:
// on overflow the new record is dropped and counted, records already
// enqueued are never displaced.
type Ring[T any] struct {
	mask  uint64
	slots []slot[T]

	_       [8]uint64 // keep the hot counters on separate cache lines
	enqueue atomic.Uint64
	_       [8]uint64
	dequeue atomic.Uint64
	_       [8]uint64
	dropped atomic.Uint64
}

// New creates a ring with the given capacity, rounded up to a power of two.
func New[T any](capacity int) (*Ring[T], error) {
	if capacity < 2 {
		return nil, ErrCapacityTooSmall
	}

	size := uint64(2)
	for size < uint64(capacity) {
		size <<= 1
	}

	r := &Ring[T]{
		mask:  size - 1,
		slots: make([]slot[T], size),
	}
	for i := range r.slots {
		r.slots[i].seq.Store(uint64(i))
	}

	return r, nil
}

// Push enqueues v. It returns false when the ring is full, after
// incrementing the drop counter.
func (r *Ring[T]) Push(v T) bool {
	for {
		pos := r.enqueue.Load()
		s := &r.slots[pos&r.mask]
		seq := s.seq.Load()

		switch {
		case seq == pos:
			if r.enqueue.CompareAndSwap(pos, pos+1) {
				s.val = v
				s.seq.Store(pos + 1)

				return true
			}
		case seq < pos:
			// The slot still holds an unconsumed record: the ring is
			// full. Drop the newest.
			r.dropped.Add(1)

			return false
		default:
			// Another producer claimed the slot first, retry.
		}
	}
}

// Pop dequeues the oldest record. It returns false when the ring is empty.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	for {
		pos := r.dequeue.Load()
		s := &r.slots[pos&r.mask]
		seq := s.seq.Load()

		switch {
		case seq == pos+1:
			if r.dequeue.CompareAndSwap(pos, pos+1) {
				v := s.val
				s.val = zero
				s.seq.Store(pos + r.mask + 1)

				return v, true
			}
		case seq <= pos:
			return zero, false
		default:
			// A producer is mid-publish on a later slot, retry.
		}
	}
}

// Len reports how many records are currently enqueued.
func (r *Ring[T]) Len() int {
	head := r.dequeue.Load()
	tail := r.enqueue.Load()
	if tail < head {
		return 0
	}

	return int(tail - head)
}

// Capacity reports the fixed ring capacity.
func (r *Ring[T]) Capacity() int {
	return len(r.slots)
}

// Dropped reports how many records were dropped on overflow.
func (r *Ring[T]) Dropped() uint64 {
	return r.dropped.Load()
}
