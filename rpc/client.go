package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arloliu/ringwire/codebook"
	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/transport"
)

var (
	// ErrTimeout is returned when no reply arrives in time.
	ErrTimeout = errors.New("rpc: call timed out")
	// ErrClosed is returned by calls on a closed Client.
	ErrClosed = errors.New("rpc: client closed")
)

// RemoteError is an error returned by the remote Handler.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "rpc: remote error: " + e.Message
}

type reply struct {
	body any
	err  error
}

// Client issues calls over a MessagingService.
type Client struct {
	book         *codebook.CodeBook
	service      transport.MessagingService
	requestTopic int32
	replyTopic   int32
	cfg          config

	pending   sync.Map // uuid.UUID -> chan reply
	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient creates a client and registers it for replyTopic on service.
func NewClient(book *codebook.CodeBook, service transport.MessagingService, requestTopic, replyTopic int32, opts ...Option) (*Client, error) {
	if book == nil || service == nil {
		return nil, fmt.Errorf("%w: rpc client needs a codebook and a messaging service", errs.ErrConfiguration)
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	c := &Client{
		book:         book,
		service:      service,
		requestTopic: requestTopic,
		replyTopic:   replyTopic,
		cfg:          cfg,
		closed:       make(chan struct{}),
	}
	if err := service.RegisterReceiver(replyTopic, transport.ReceiverFunc(c.receive)); err != nil {
		return nil, err
	}

	return c, nil
}

// Call sends request and blocks until its reply, the timeout, ctx or Close.
//
// Parameters:
//   - ctx: Bounds the wait together with the client timeout
//   - request: Value bound in the client codebook
//
// Returns:
//   - any: Decoded reply
//   - error: *RemoteError for a Handler failure, ErrTimeout wrapping the context
//     error for an expired wait, ctx.Err() on cancellation, ErrClosed after Close,
//     or an encode or send error
func (c *Client) Call(ctx context.Context, request any) (any, error) {
	select {
	case <-c.closed:
		return nil, ErrClosed
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout)
	defer cancel()

	id := uuid.New()
	ch := make(chan reply, 1)
	c.pending.Store(id, ch)
	defer c.pending.Delete(id)

	data, err := encodeEnvelope(c.book, envelope{id: id, body: request})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if err := c.service.Send(ctx, c.requestTopic, data); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case r := <-ch:
		return r.body, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}

		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrClosed
	}
}

// Close fails pending and future calls with ErrClosed.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *Client) receive(_ int32, payload []byte) {
	env, err := decodeEnvelope(c.book, payload)
	if err != nil {
		c.cfg.logger.Debug("dropping undecodable rpc reply", zap.Error(err))
		return
	}

	v, ok := c.pending.Load(env.id)
	if !ok {
		// late reply, or a reply for another client on the same topic
		return
	}
	ch, _ := v.(chan reply)

	r := reply{body: env.body}
	if env.isError {
		r = reply{err: &RemoteError{Message: env.errMsg}}
	}
	select {
	case ch <- r:
	default:
	}
}
