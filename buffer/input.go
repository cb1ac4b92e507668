package buffer

import (
	"fmt"
	"io"

	"github.com/arloliu/ringwire/endian"
	"github.com/arloliu/ringwire/errs"
)

// Input is a fixed binary read window over a byte slice. It never copies the
// wrapped slice; reads that return bytes copy them unless documented otherwise.
//
// position counts bytes consumed from the start of the window and remaining
// counts bytes left; position+remaining always equals Len().
type Input struct {
	data      []byte
	position  int
	remaining int
	engine    endian.EndianEngine
}

// NewInput wraps all of b.
func NewInput(b []byte, opts ...Option) *Input {
	return &Input{
		data:      b,
		remaining: len(b),
		engine:    resolveEngine(opts),
	}
}

// NewInputRange wraps b[offset:offset+length].
func NewInputRange(b []byte, offset, length int, opts ...Option) (*Input, error) {
	if offset < 0 || length < 0 || offset > len(b) || length > len(b)-offset {
		return nil, fmt.Errorf("%w: range [%d, %d+%d) outside %d bytes",
			errs.ErrBufferUnderflow, offset, offset, length, len(b))
	}

	return NewInput(b[offset:offset+length:offset+length], opts...), nil
}

func (in *Input) require(n int) error {
	if n < 0 || n > in.remaining {
		return fmt.Errorf("%w: need %d bytes, %d remaining", errs.ErrBufferUnderflow, n, in.remaining)
	}

	return nil
}

func (in *Input) consume(n int) []byte {
	b := in.data[in.position : in.position+n]
	in.position += n
	in.remaining -= n

	return b
}

// ReadBool reads a single byte as a bool. Values other than 0 and 1 are rejected.
func (in *Input) ReadBool() (bool, error) {
	if err := in.require(1); err != nil {
		return false, err
	}
	switch b := in.consume(1)[0]; b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: invalid bool byte 0x%02x", errs.ErrDecoding, b)
	}
}

// ReadNullFlag reads the marker preceding a nullable field.
func (in *Input) ReadNullFlag() (bool, error) {
	return in.ReadBool()
}

// ReadByte reads a single byte.
func (in *Input) ReadByte() (byte, error) {
	if err := in.require(1); err != nil {
		return 0, err
	}

	return in.consume(1)[0], nil
}

// ReadInt32 reads 4 bytes as an int32.
func (in *Input) ReadInt32() (int32, error) {
	if err := in.require(4); err != nil {
		return 0, err
	}

	return int32(in.engine.Uint32(in.consume(4))), nil //nolint:gosec
}

// ReadInt64 reads 8 bytes as an int64.
func (in *Input) ReadInt64() (int64, error) {
	if err := in.require(8); err != nil {
		return 0, err
	}

	return int64(in.engine.Uint64(in.consume(8))), nil //nolint:gosec
}

// ReadRaw reads a copy of the next n bytes.
func (in *Input) ReadRaw(n int) ([]byte, error) {
	if err := in.require(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, in.consume(n))

	return out, nil
}

// Next returns the next n bytes without copying. The slice aliases the
// wrapped data.
func (in *Input) Next(n int) ([]byte, error) {
	if err := in.require(n); err != nil {
		return nil, err
	}

	return in.consume(n), nil
}

// Read implements io.Reader. It returns io.EOF once the window is exhausted.
func (in *Input) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if in.remaining == 0 {
		return 0, io.EOF
	}
	n := min(len(p), in.remaining)
	copy(p, in.consume(n))

	return n, nil
}

func (in *Input) readLength() (int, error) {
	n, err := in.ReadInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative length prefix %d", errs.ErrDecoding, n)
	}

	return int(n), nil
}

// ReadByteArray reads an int32 length followed by that many bytes.
func (in *Input) ReadByteArray() ([]byte, error) {
	n, err := in.readLength()
	if err != nil {
		return nil, err
	}

	return in.ReadRaw(n)
}

// ReadString reads an int32 length followed by that many UTF-8 bytes.
func (in *Input) ReadString() (string, error) {
	n, err := in.readLength()
	if err != nil {
		return "", err
	}
	if err := in.require(n); err != nil {
		return "", err
	}

	return string(in.consume(n)), nil
}

// Skip discards the next n bytes.
func (in *Input) Skip(n int) error {
	if err := in.require(n); err != nil {
		return err
	}
	in.consume(n)

	return nil
}

// Position returns the number of bytes consumed from the start of the window.
func (in *Input) Position() int {
	return in.position
}

// SetPosition moves the read cursor within the window, [0, Len()].
func (in *Input) SetPosition(p int) error {
	if p < 0 || p > len(in.data) {
		return fmt.Errorf("%w: position %d outside [0, %d]", errs.ErrBufferUnderflow, p, len(in.data))
	}
	in.position = p
	in.remaining = len(in.data) - p

	return nil
}

// Remaining returns the number of unread bytes.
func (in *Input) Remaining() int {
	return in.remaining
}

// Len returns the size of the window.
func (in *Input) Len() int {
	return len(in.data)
}

// Reset rewinds the cursor to the start of the window, adding the consumed
// bytes back to the remaining count.
func (in *Input) Reset() {
	in.remaining += in.position
	in.position = 0
}
