// Package errs defines the error kinds surfaced by ringwire.
//
// Every error returned by the module wraps exactly one of the sentinels below,
// so callers classify failures with errors.Is regardless of the context that
// was added on the way up.
package errs

import "errors"

var (
	// ErrConfiguration reports an invalid setup: a reserved or duplicate codebook
	// id, missing translator metadata, a list kind without constructors, an
	// unknown endpoint descriptor or an invalid configuration value.
	// It is surfaced at setup time and never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrEncoding reports a failure while translating a value into bytes.
	ErrEncoding = errors.New("encoding error")

	// ErrDecoding reports malformed input while translating bytes into a value.
	ErrDecoding = errors.New("decoding error")

	// ErrBufferUnderflow reports a read past the remaining bytes of an input buffer.
	ErrBufferUnderflow = errors.New("buffer underflow")

	// ErrSequenceWrap reports a producer that has outrun the consumer by more
	// than the ring capacity. Writes beyond the window keep failing until the
	// consumer drains.
	ErrSequenceWrap = errors.New("sequence wrap violation")

	// ErrStaleSequence reports a write for a sequence that is already contiguous.
	ErrStaleSequence = errors.New("stale sequence")

	// ErrUnknownCodebookID reports a decode-time lookup of an unregistered id.
	ErrUnknownCodebookID = errors.New("unknown codebook id")

	// ErrTransport reports a failure of the messaging service.
	ErrTransport = errors.New("transport error")
)
