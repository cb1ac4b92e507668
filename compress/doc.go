// Package compress provides the payload codecs a frame may be compressed with.
//
// Supported algorithms:
//   - None: payload is carried as is
//   - Zstd: best ratio, moderate speed
//   - S2: balanced speed and ratio
//   - LZ4: fastest decompression
//
// Every codec is stateless from the caller's point of view and safe for
// concurrent use; encoders and decoders are pooled internally.
//
// The pure Go zstd implementation from klauspost/compress is used by default.
// Building with the gozstd tag (and cgo) switches to the libzstd binding.
package compress
