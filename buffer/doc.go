// Package buffer provides the positional binary buffers of the ringwire wire format.
//
// Output is a growable write buffer tracking a write position and the count of
// live bytes. Input is a fixed, non-copying read window over a byte slice that
// tracks a read position and the bytes remaining.
//
// # Wire Primitives
//
//   - bool: 1 byte, 0 or 1
//   - int32: 4 bytes, fixed width
//   - int64: 8 bytes, fixed width
//   - string, byte array: int32 length followed by the raw bytes
//
// Multi-byte integers use the wire engine (big-endian) unless a different
// engine is supplied with WithByteOrder. Both peers must agree on the engine.
//
// # Growth
//
// Every write calls EnsureCapacity first. When the free space after the write
// position is too small, the backing array is reallocated at double its size
// (repeatedly, until the write fits) and exactly Count() live bytes are copied
// forward. Position and count are preserved across growth.
//
// Reset truncates the buffer and drops any grown storage, reverting to the
// array allocated at construction. A buffer that needed to grow once will
// grow again after a reset.
//
// # Thread Safety
//
// Buffers are not safe for concurrent use. A buffer is owned by one producer
// or one consumer at a time.
package buffer
