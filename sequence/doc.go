// Package sequence tracks which sequence numbers of an unbounded stream have
// been recorded and reports the highest contiguous one.
//
// A Tracker covers a bounded window of capacity sequences past the current
// contiguous sequence. Recording a sequence outside that window fails with
// errs.ErrSequenceWrap, which is how a ring buffer detects a producer that has
// outrun its consumer.
package sequence
