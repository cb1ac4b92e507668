package compress

import (
	"fmt"

	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/format"
)

// MaxDecompressedSize bounds the output of a single Decompress call.
const MaxDecompressedSize = 16 * 1024 * 1024

// Compressor compresses a frame payload.
//
// The returned slice is owned by the caller and the input is not modified.
// The none codec returns its input unchanged.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor of the same algorithm.
//
// It returns an error for corrupted input or when the output would exceed
// MaxDecompressedSize.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCodec(),
	format.CompressionZstd: NewZstdCodec(),
	format.CompressionS2:   NewS2Codec(),
	format.CompressionLZ4:  NewLZ4Codec(),
}

// GetCodec returns the shared codec for compressionType.
//
// Parameters:
//   - compressionType: Compression recorded in a frame header
//
// Returns:
//   - Codec: Stateless codec safe for concurrent use
//   - error: errs.ErrConfiguration for an unknown compression type
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("%w: unsupported compression type %s (%d)",
		errs.ErrConfiguration, compressionType, uint8(compressionType))
}
