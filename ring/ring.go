package ring

import (
	"context"
	"fmt"
	"sync"

	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/internal/options"
	"github.com/arloliu/ringwire/sequence"
)

// Buffer is a sequenced ring of capacity slots.
//
// Set takes the write lock; Get, Sequence and Wait take the read lock, so a
// reader never observes a slot while it is being stored.
type Buffer[T any] struct {
	mu       sync.RWMutex
	slots    []T
	tracker  *sequence.Tracker
	capacity int64
	released int64         // highest sequence the consumer is done with
	notify   chan struct{} // closed and replaced when contiguity or release advances
	recycle  func(dst, src T) T
}

// New creates a ring with capacity slots.
//
// Parameters:
//   - capacity: Number of slots, the most sequences in flight past the release fence
//   - opts: Optional settings such as WithRecycle
//
// Returns:
//   - *Buffer[T]: Empty ring, contiguous and released sequences at sequence.None
//   - error: errs.ErrConfiguration if capacity is not positive
func New[T any](capacity int, opts ...Option[T]) (*Buffer[T], error) {
	tracker, err := sequence.NewTracker(capacity)
	if err != nil {
		return nil, err
	}

	var cfg config[T]
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	return &Buffer[T]{
		slots:    make([]T, capacity),
		tracker:  tracker,
		capacity: int64(capacity),
		released: sequence.None,
		notify:   make(chan struct{}),
		recycle:  cfg.recycle,
	}, nil
}

// Capacity returns the number of slots.
func (b *Buffer[T]) Capacity() int {
	return int(b.capacity)
}

// Set stores item in the slot seq maps to and records seq in the tracker.
//
// It fails with errs.ErrSequenceWrap when seq would overwrite a slot the
// consumer has not released, and with errs.ErrStaleSequence when seq is
// already contiguous. A failed Set leaves the ring unchanged.
//
// Parameters:
//   - seq: Sequence number of item, any order above the contiguous sequence
//   - item: Value to store; copied into the slot when a recycler is set
//
// Returns:
//   - error: errs.ErrSequenceWrap, errs.ErrStaleSequence, or nil
func (b *Buffer[T]) Set(seq int64, item T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if seq > b.released+b.capacity {
		return fmt.Errorf("%w: sequence %d would overwrite unreleased slot, released through %d, capacity %d",
			errs.ErrSequenceWrap, seq, b.released, b.capacity)
	}
	if err := b.tracker.Check(seq); err != nil {
		return err
	}

	idx := seq % b.capacity
	if b.recycle != nil {
		b.slots[idx] = b.recycle(b.slots[idx], item)
	} else {
		b.slots[idx] = item
	}

	before := b.tracker.Contiguous()
	if err := b.tracker.Set(seq); err != nil {
		return err
	}
	if b.tracker.Contiguous() != before {
		b.broadcast()
	}

	return nil
}

// Get returns the current occupant of the slot seq maps to. Callers only ask
// for sequences reported contiguous and not yet released. A negative seq
// returns the zero value.
func (b *Buffer[T]) Get(seq int64) T {
	if seq < 0 {
		var zero T
		return zero
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.slots[seq%b.capacity]
}

// Sequence returns the highest contiguous sequence, or sequence.None.
func (b *Buffer[T]) Sequence() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.tracker.HighestContiguousSequence()
}

// Wait blocks until the contiguous sequence is greater than after, and
// returns it. It returns the current contiguous sequence and ctx.Err() when
// ctx is done first.
func (b *Buffer[T]) Wait(ctx context.Context, after int64) (int64, error) {
	for {
		b.mu.RLock()
		seq := b.tracker.HighestContiguousSequence()
		ch := b.notify
		b.mu.RUnlock()

		if seq > after {
			return seq, nil
		}

		select {
		case <-ctx.Done():
			return seq, ctx.Err()
		case <-ch:
		}
	}
}

// Release marks every sequence through seq as drained, freeing their slots
// for later sequences. It never moves backwards or past the contiguous
// sequence.
func (b *Buffer[T]) Release(seq int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if hc := b.tracker.Contiguous(); seq > hc {
		seq = hc
	}
	if seq <= b.released {
		return
	}
	b.released = seq
	b.broadcast()
}

// Released returns the highest released sequence, or sequence.None.
func (b *Buffer[T]) Released() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.released
}

// WaitWritable blocks until seq can be stored without overwriting an
// unreleased slot. It returns ctx.Err() when ctx is done first.
func (b *Buffer[T]) WaitWritable(ctx context.Context, seq int64) error {
	for {
		b.mu.RLock()
		writable := seq <= b.released+b.capacity
		ch := b.notify
		b.mu.RUnlock()

		if writable {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// broadcast wakes every waiter. Callers hold the write lock.
func (b *Buffer[T]) broadcast() {
	close(b.notify)
	b.notify = make(chan struct{})
}
