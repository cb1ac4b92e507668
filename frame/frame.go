// Package frame wraps transport payloads in a self-describing datagram.
//
// Layout, big-endian:
//
//	uint16 magic        0x5257
//	uint8  version      1
//	uint8  compression  format.CompressionType
//	int32  topic
//	int32  length       bytes of compressed payload
//	[]byte payload
//	uint64 checksum     xxhash64 of the compressed payload
package frame

import (
	"errors"
	"fmt"

	"github.com/arloliu/ringwire/buffer"
	"github.com/arloliu/ringwire/compress"
	"github.com/arloliu/ringwire/endian"
	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/format"
	"github.com/arloliu/ringwire/internal/hash"
)

const (
	// Magic marks a ringwire frame.
	Magic uint16 = 0x5257
	// Version is the only frame version understood.
	Version uint8 = 1

	// HeaderSize is the size of the fields preceding the payload.
	HeaderSize = 2 + 1 + 1 + 4 + 4
	// TrailerSize is the size of the checksum following the payload.
	TrailerSize = 8
	// Overhead is the framing cost added to every payload.
	Overhead = HeaderSize + TrailerSize
)

// Decode failures. Each wraps errs.ErrDecoding.
var (
	// ErrShortFrame reports a datagram shorter than its header or declared length.
	ErrShortFrame = fmt.Errorf("%w: short frame", errs.ErrDecoding)
	// ErrInvalidMagic reports a datagram that does not start with Magic.
	ErrInvalidMagic = fmt.Errorf("%w: invalid frame magic", errs.ErrDecoding)
	// ErrUnsupportedVersion reports a frame version other than Version.
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported frame version", errs.ErrDecoding)
	// ErrChecksumMismatch reports a payload whose xxhash64 does not match the trailer.
	ErrChecksumMismatch = fmt.Errorf("%w: frame checksum mismatch", errs.ErrDecoding)
	// ErrTrailingBytes reports bytes left after the checksum.
	ErrTrailingBytes = fmt.Errorf("%w: trailing bytes after frame", errs.ErrDecoding)

	errNegativeLength = errors.New("negative payload length")
)

// Frame is a decoded frame.
type Frame struct {
	Topic       int32
	Compression format.CompressionType
	Payload     []byte // decompressed
}

// Encode frames payload for topic, compressing it with compression.
//
// Parameters:
//   - topic: Topic id carried in the header
//   - payload: Message bytes, may be empty
//   - compression: Codec applied to payload before the checksum is taken
//
// Returns:
//   - []byte: Complete frame, Overhead bytes plus the compressed payload
//   - error: Unknown compression type or errs.ErrEncoding on compression failure
func Encode(topic int32, payload []byte, compression format.CompressionType) ([]byte, error) {
	codec, err := compress.GetCodec(compression)
	if err != nil {
		return nil, err
	}
	body, err := codec.Compress(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: compress frame payload: %w", errs.ErrEncoding, err)
	}

	var head [4]byte
	endian.GetWireEngine().PutUint16(head[:2], Magic)
	head[2] = Version
	head[3] = byte(compression)

	out := buffer.NewOutput(Overhead + len(body))
	out.WriteRaw(head[:])
	out.WriteInt32(topic)
	if err := out.WriteByteArray(body); err != nil {
		return nil, err
	}
	out.WriteInt64(int64(hash.Checksum(body))) //nolint:gosec

	return out.Bytes(), nil
}

// Decode parses and verifies a frame produced by Encode. The returned payload
// never aliases b.
//
// Parameters:
//   - b: One complete datagram
//
// Returns:
//   - Frame: Topic, compression and decompressed payload
//   - error: ErrShortFrame, ErrInvalidMagic, ErrUnsupportedVersion, ErrChecksumMismatch,
//     ErrTrailingBytes, or a decompression failure, all wrapping errs.ErrDecoding
func Decode(b []byte) (Frame, error) {
	if len(b) < Overhead {
		return Frame{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrShortFrame, len(b), Overhead)
	}

	in := buffer.NewInput(b)
	head, err := in.Next(4)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrShortFrame, err)
	}
	if magic := endian.GetWireEngine().Uint16(head[:2]); magic != Magic {
		return Frame{}, fmt.Errorf("%w: 0x%04x", ErrInvalidMagic, magic)
	}
	if head[2] != Version {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, head[2])
	}
	compression := format.CompressionType(head[3])

	topic, err := in.ReadInt32()
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrShortFrame, err)
	}
	n, err := in.ReadInt32()
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrShortFrame, err)
	}
	if n < 0 {
		return Frame{}, fmt.Errorf("%w: %w", errs.ErrDecoding, errNegativeLength)
	}
	body, err := in.Next(int(n))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: payload: %w", ErrShortFrame, err)
	}
	sum, err := in.ReadInt64()
	if err != nil {
		return Frame{}, fmt.Errorf("%w: checksum: %w", ErrShortFrame, err)
	}
	if in.Remaining() != 0 {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrTrailingBytes, in.Remaining())
	}
	if uint64(sum) != hash.Checksum(body) { //nolint:gosec
		return Frame{}, ErrChecksumMismatch
	}

	codec, err := compress.GetCodec(compression)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", errs.ErrDecoding, err)
	}
	payload, err := codec.Decompress(body)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: decompress frame payload: %w", errs.ErrDecoding, err)
	}
	if compression == format.CompressionNone {
		payload = append([]byte(nil), payload...)
	}

	return Frame{Topic: topic, Compression: compression, Payload: payload}, nil
}
