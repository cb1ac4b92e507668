package buffer

import (
	"fmt"
	"math"

	"github.com/arloliu/ringwire/endian"
	"github.com/arloliu/ringwire/errs"
)

// DefaultOutputSize is the backing array size used when NewOutput is given a
// non-positive size.
const DefaultOutputSize = 256

// Output is a growable binary write buffer.
//
// position is the offset of the next write; count is the number of live bytes,
// which stays at its high mark when the position is moved back to rewrite a
// prefix. Bytes returns the first count bytes.
type Output struct {
	initial  []byte
	buf      []byte
	position int
	count    int
	engine   endian.EndianEngine
}

// NewOutput creates an output buffer with a backing array of size bytes.
//
// The buffer grows on demand; Reset reverts it to this initial array.
//
// Parameters:
//   - size: Initial backing array size in bytes (non-positive uses DefaultOutputSize)
//   - opts: Optional settings such as WithByteOrder
//
// Returns:
//   - *Output: Empty buffer positioned at 0
func NewOutput(size int, opts ...Option) *Output {
	if size <= 0 {
		size = DefaultOutputSize
	}
	initial := make([]byte, size)

	return &Output{
		initial: initial,
		buf:     initial,
		engine:  resolveEngine(opts),
	}
}

// EnsureCapacity guarantees at least n free bytes after the current position.
//
// When the backing array is too small it is reallocated at double its size,
// repeatedly until n bytes fit, and the Count() live bytes are copied forward.
//
// Parameters:
//   - n: Number of bytes the next write needs
func (o *Output) EnsureCapacity(n int) {
	if n <= len(o.buf)-o.position {
		return
	}

	size := len(o.buf)
	if size == 0 {
		size = DefaultOutputSize
	}
	for size-o.position < n {
		size *= 2
	}

	grown := make([]byte, size)
	copy(grown, o.buf[:o.count])
	o.buf = grown
}

func (o *Output) advance(n int) {
	o.position += n
	if o.position > o.count {
		o.count = o.position
	}
}

// WriteBool writes v as a single byte, 1 for true and 0 for false.
func (o *Output) WriteBool(v bool) {
	o.EnsureCapacity(1)
	if v {
		o.buf[o.position] = 1
	} else {
		o.buf[o.position] = 0
	}
	o.advance(1)
}

// WriteNullFlag writes the marker preceding a nullable field.
func (o *Output) WriteNullFlag(isNull bool) {
	o.WriteBool(isNull)
}

// WriteByte writes a single byte. It never fails; the error satisfies io.ByteWriter.
func (o *Output) WriteByte(c byte) error {
	o.EnsureCapacity(1)
	o.buf[o.position] = c
	o.advance(1)

	return nil
}

// WriteInt32 writes v as 4 bytes.
func (o *Output) WriteInt32(v int32) {
	o.EnsureCapacity(4)
	o.engine.PutUint32(o.buf[o.position:], uint32(v)) //nolint:gosec
	o.advance(4)
}

// WriteInt64 writes v as 8 bytes.
func (o *Output) WriteInt64(v int64) {
	o.EnsureCapacity(8)
	o.engine.PutUint64(o.buf[o.position:], uint64(v)) //nolint:gosec
	o.advance(8)
}

// WriteRaw writes p without a length prefix.
func (o *Output) WriteRaw(p []byte) {
	o.EnsureCapacity(len(p))
	copy(o.buf[o.position:], p)
	o.advance(len(p))
}

// Write implements io.Writer. It never fails.
func (o *Output) Write(p []byte) (int, error) {
	o.WriteRaw(p)
	return len(p), nil
}

// WriteByteArray writes p as an int32 length followed by the raw bytes.
func (o *Output) WriteByteArray(p []byte) error {
	if len(p) > math.MaxInt32 {
		return fmt.Errorf("%w: byte array length %d exceeds int32", errs.ErrEncoding, len(p))
	}
	o.EnsureCapacity(4 + len(p))
	o.WriteInt32(int32(len(p))) //nolint:gosec
	o.WriteRaw(p)

	return nil
}

// WriteString writes s as an int32 length followed by its UTF-8 bytes.
func (o *Output) WriteString(s string) error {
	if len(s) > math.MaxInt32 {
		return fmt.Errorf("%w: string length %d exceeds int32", errs.ErrEncoding, len(s))
	}
	o.EnsureCapacity(4 + len(s))
	o.WriteInt32(int32(len(s))) //nolint:gosec
	copy(o.buf[o.position:], s)
	o.advance(len(s))

	return nil
}

// Bytes returns the live bytes. The slice aliases the backing array and is
// invalidated by the next write or Reset.
func (o *Output) Bytes() []byte {
	return o.buf[:o.count]
}

// Clone returns a copy of the live bytes.
func (o *Output) Clone() []byte {
	out := make([]byte, o.count)
	copy(out, o.buf[:o.count])

	return out
}

// Position returns the offset of the next write.
func (o *Output) Position() int {
	return o.position
}

// SetPosition moves the write position within the live bytes, [0, Count()].
// Writes after a move overwrite in place; Count is not reduced.
func (o *Output) SetPosition(p int) error {
	if p < 0 || p > o.count {
		return fmt.Errorf("%w: position %d outside [0, %d]", errs.ErrEncoding, p, o.count)
	}
	o.position = p

	return nil
}

// Count returns the number of live bytes written so far.
func (o *Output) Count() int {
	return o.count
}

// Capacity returns the size of the current backing array.
func (o *Output) Capacity() int {
	return len(o.buf)
}

// Reset truncates the buffer and reverts to the backing array allocated at
// construction, discarding any grown storage.
func (o *Output) Reset() {
	o.position = 0
	o.count = 0
	o.buf = o.initial
}
