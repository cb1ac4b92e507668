package buffer

import (
	"github.com/arloliu/ringwire/endian"
	"github.com/arloliu/ringwire/internal/options"
)

type settings struct {
	engine endian.EndianEngine
}

// Option configures an Output or Input buffer.
type Option = options.Option[*settings]

// WithByteOrder selects the byte order of multi-byte integers.
// A nil engine keeps the wire engine.
func WithByteOrder(engine endian.EndianEngine) Option {
	return options.NoError(func(s *settings) {
		if engine != nil {
			s.engine = engine
		}
	})
}

func resolveEngine(opts []Option) endian.EndianEngine {
	s := settings{engine: endian.GetWireEngine()}
	// buffer options cannot fail
	_ = options.Apply(&s, opts...)

	return s.engine
}
