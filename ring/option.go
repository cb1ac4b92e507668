package ring

import "github.com/arloliu/ringwire/internal/options"

type config[T any] struct {
	recycle func(dst, src T) T
}

// Option configures a Buffer.
type Option[T any] = options.Option[*config[T]]

// WithRecycle makes Set copy an item into the slot's previous occupant
// instead of replacing it. fn receives the previous occupant and the new item
// and returns the value to store.
func WithRecycle[T any](fn func(dst, src T) T) Option[T] {
	return options.NoError(func(c *config[T]) {
		c.recycle = fn
	})
}

// CopyBytes is a recycler for byte slice payloads. It reuses the backing
// array of the previous occupant when its capacity allows.
func CopyBytes(dst, src []byte) []byte {
	if src == nil {
		return nil
	}

	return append(dst[:0], src...)
}
