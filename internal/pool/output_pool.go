// Package pool recycles message output buffers between encodes.
package pool

import (
	"sync"

	"github.com/arloliu/ringwire/buffer"
)

// MessageBufferDefaultSize is the initial array size of pooled message buffers.
const MessageBufferDefaultSize = 512

// OutputPool is a sync.Pool of *buffer.Output.
//
// Buffers are reset on Put. Because buffer.Output.Reset reverts to the array
// allocated at construction, a buffer that grew for one large message does
// not keep that storage alive in the pool.
type OutputPool struct {
	pool sync.Pool
}

// NewOutputPool creates a pool of output buffers of the given initial size.
func NewOutputPool(size int, opts ...buffer.Option) *OutputPool {
	return &OutputPool{
		pool: sync.Pool{
			New: func() any {
				return buffer.NewOutput(size, opts...)
			},
		},
	}
}

// Get retrieves an empty output buffer.
func (p *OutputPool) Get() *buffer.Output {
	out, _ := p.pool.Get().(*buffer.Output)
	return out
}

// Put resets out and returns it to the pool.
func (p *OutputPool) Put(out *buffer.Output) {
	if out == nil {
		return
	}
	out.Reset()
	p.pool.Put(out)
}

var messageDefaultPool = NewOutputPool(MessageBufferDefaultSize)

// GetMessageBuffer retrieves a buffer from the default message pool.
func GetMessageBuffer() *buffer.Output {
	return messageDefaultPool.Get()
}

// PutMessageBuffer returns a buffer to the default message pool.
func PutMessageBuffer(out *buffer.Output) {
	messageDefaultPool.Put(out)
}
