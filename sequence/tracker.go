package sequence

import (
	"fmt"
	"math/bits"
	"sync/atomic"

	"github.com/arloliu/ringwire/errs"
)

// None is the contiguous sequence of a tracker that has recorded nothing.
const None int64 = -1

// Tracker records sequences into a presence bitmap indexed by
// sequence mod capacity and advances the highest contiguous sequence
// greedily as gaps fill.
//
// Bits of sequences that became contiguous are cleared as the contiguous
// sequence advances, so the bitmap only ever holds sequences of the pending
// window (contiguous, contiguous+capacity] and two pending sequences never
// share an index.
//
// A Tracker is not safe for concurrent mutation; the owner serializes Set.
// HighestContiguousSequence may run concurrently with other readers.
type Tracker struct {
	capacity          int64
	present           []uint64     // presence bitmap, one bit per slot
	highestSeen       int64        // max sequence ever recorded
	highestContiguous int64        // all sequences 0..highestContiguous are recorded
	highwaterMark     atomic.Int64 // last contiguous value handed to an observer
}

// NewTracker creates a tracker over a window of capacity sequences.
//
// Parameters:
//   - capacity: Window size; sets may run at most capacity past the contiguous sequence
//
// Returns:
//   - *Tracker: Tracker with nothing recorded (contiguous sequence None)
//   - error: errs.ErrConfiguration if capacity is not positive
func NewTracker(capacity int) (*Tracker, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: tracker capacity must be positive, got %d", errs.ErrConfiguration, capacity)
	}

	t := &Tracker{
		capacity:          int64(capacity),
		present:           make([]uint64, (capacity+63)/64),
		highestSeen:       None,
		highestContiguous: None,
	}
	t.highwaterMark.Store(None)

	return t, nil
}

// Capacity returns the size of the window.
func (t *Tracker) Capacity() int {
	return int(t.capacity)
}

// Check reports whether seq may be recorded without changing any state.
//
// It returns errs.ErrSequenceWrap when seq lies more than capacity past the
// contiguous sequence and errs.ErrStaleSequence when seq is already
// contiguous (including negative sequences).
func (t *Tracker) Check(seq int64) error {
	if seq <= t.highestContiguous {
		return fmt.Errorf("%w: sequence %d is not after contiguous sequence %d",
			errs.ErrStaleSequence, seq, t.highestContiguous)
	}
	if seq > t.highestContiguous+t.capacity {
		return fmt.Errorf("%w: sequence %d exceeds contiguous sequence %d by more than capacity %d",
			errs.ErrSequenceWrap, seq, t.highestContiguous, t.capacity)
	}

	return nil
}

// Set records seq and advances the contiguous sequence through every
// consecutive recorded sequence. Recording a pending sequence twice is a no-op.
//
// Parameters:
//   - seq: Sequence number to record
//
// Returns:
//   - error: errs.ErrSequenceWrap or errs.ErrStaleSequence as reported by Check
func (t *Tracker) Set(seq int64) error {
	if err := t.Check(seq); err != nil {
		return err
	}

	if seq > t.highestSeen {
		t.highestSeen = seq
	}
	t.mark(t.index(seq))

	if seq == t.highestContiguous+1 {
		t.advance()
	}

	return nil
}

// advance moves the contiguous sequence forward while the next sequence is
// present, clearing each bit it passes.
func (t *Tracker) advance() {
	for {
		next := t.highestContiguous + 1
		idx := t.index(next)
		if !t.marked(idx) {
			return
		}
		t.clear(idx)
		t.highestContiguous = next
	}
}

// HighestContiguousSequence returns the highest sequence N such that every
// sequence 0..N has been recorded, or None.
//
// The returned value is also recorded as the high-water mark: observing the
// contiguous boundary is what entitles the observer to consume up to it.
func (t *Tracker) HighestContiguousSequence() int64 {
	hc := t.highestContiguous
	for {
		mark := t.highwaterMark.Load()
		if hc <= mark || t.highwaterMark.CompareAndSwap(mark, hc) {
			return hc
		}
	}
}

// Contiguous returns the contiguous sequence without recording a high-water mark.
func (t *Tracker) Contiguous() int64 {
	return t.highestContiguous
}

// HighestSequenceSeen returns the highest sequence ever recorded, or None.
func (t *Tracker) HighestSequenceSeen() int64 {
	return t.highestSeen
}

// HighwaterMark returns the last contiguous sequence handed to an observer.
func (t *Tracker) HighwaterMark() int64 {
	return t.highwaterMark.Load()
}

// Pending returns the number of recorded sequences that are not yet contiguous.
func (t *Tracker) Pending() int {
	n := 0
	for _, w := range t.present {
		n += bits.OnesCount64(w)
	}

	return n
}

// IsSet reports whether seq has been recorded. Contiguous sequences are
// always recorded; sequences outside the window never are.
func (t *Tracker) IsSet(seq int64) bool {
	if seq < 0 {
		return false
	}
	if seq <= t.highestContiguous {
		return true
	}
	if seq > t.highestContiguous+t.capacity {
		return false
	}

	return t.marked(t.index(seq))
}

func (t *Tracker) index(seq int64) int64 {
	return seq % t.capacity
}

func (t *Tracker) mark(idx int64) {
	t.present[idx>>6] |= 1 << (uint64(idx) & 63)
}

func (t *Tracker) clear(idx int64) {
	t.present[idx>>6] &^= 1 << (uint64(idx) & 63)
}

func (t *Tracker) marked(idx int64) bool {
	return t.present[idx>>6]&(1<<(uint64(idx)&63)) != 0
}
