package compress

// ZstdCodec compresses payloads with Zstandard.
type ZstdCodec struct{}

var _ Codec = (*ZstdCodec)(nil)

// NewZstdCodec creates a Zstd codec.
func NewZstdCodec() ZstdCodec {
	return ZstdCodec{}
}
