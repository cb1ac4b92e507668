// Package ringwire publishes typed messages in strict sequence order over an
// asynchronous messaging service.
//
// A Publisher encodes each value with a codebook into a sequenced ring; a
// background sender forwards contiguous sequences to the transport in order.
// Producers either let the Publisher number messages (Publish) or supply
// their own sequence numbers in any order (PublishAt), never both.
//
//	book := codebook.New()
//	_ = codebook.Register[Quote](book, 1025, quoteTranslator)
//	book.Seal()
//
//	pub, _ := ringwire.NewPublisher(book, svc, 7)
//	_ = pub.Start(ctx)
//	seq, _ := pub.Publish(Quote{Symbol: "ACME", Price: 1234})
//	_ = pub.Close(ctx)
//
// Lower level building blocks live in the sub packages: buffer, codebook,
// sequence, ring, sender, transport, frame and rpc.
package ringwire

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/arloliu/ringwire/codebook"
	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/internal/options"
	"github.com/arloliu/ringwire/internal/pool"
	"github.com/arloliu/ringwire/observability"
	"github.com/arloliu/ringwire/ring"
	"github.com/arloliu/ringwire/sender"
	"github.com/arloliu/ringwire/transport"
)

// DefaultCapacity is the default number of ring slots.
const DefaultCapacity = 1024

type config struct {
	capacity    int
	logger      *zap.Logger
	metrics     *observability.SenderMetrics
	senderOpts  []sender.Option
	ownsService bool
}

// Option configures a Publisher.
type Option = options.Option[*config]

// WithCapacity sets the number of ring slots, the most messages that may be
// in flight between producers and the sender.
func WithCapacity(n int) Option {
	return options.New(func(c *config) error {
		if n <= 0 {
			return fmt.Errorf("%w: capacity must be positive, got %d", errs.ErrConfiguration, n)
		}
		c.capacity = n

		return nil
	})
}

// WithLogger sets the logger of the Publisher and its sender.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithMetrics sets the sender collectors.
func WithMetrics(m *observability.SenderMetrics) Option {
	return options.NoError(func(c *config) {
		c.metrics = m
	})
}

// WithSenderOptions passes extra options to the sender, such as its
// shutdown and error policies.
func WithSenderOptions(opts ...sender.Option) Option {
	return options.NoError(func(c *config) {
		c.senderOpts = append(c.senderOpts, opts...)
	})
}

// WithServiceLifecycle makes Start and Close also start and shut down the
// messaging service.
func WithServiceLifecycle() Option {
	return options.NoError(func(c *config) {
		c.ownsService = true
	})
}

// Publisher sequences, encodes and forwards messages for one topic.
type Publisher struct {
	book    *codebook.CodeBook
	service transport.MessagingService
	ring    *ring.Buffer[[]byte]
	sender  *sender.Sender
	cfg     config

	mu   sync.Mutex
	next int64
}

// NewPublisher creates a publisher of messages encoded with book on topic.
//
// Parameters:
//   - book: Codebook binding every published type, usually sealed
//   - service: Transport the sender forwards to
//   - topic: Topic id of every message
//   - opts: Optional capacity, logger, metrics, sender options and service lifecycle
//
// Returns:
//   - *Publisher: Publisher whose sender is not started
//   - error: errs.ErrConfiguration for a nil book or service or an invalid option
func NewPublisher(book *codebook.CodeBook, service transport.MessagingService, topic int32, opts ...Option) (*Publisher, error) {
	if book == nil || service == nil {
		return nil, fmt.Errorf("%w: publisher needs a codebook and a messaging service", errs.ErrConfiguration)
	}

	cfg := config{capacity: DefaultCapacity, logger: zap.NewNop()}
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	buf, err := ring.New[[]byte](cfg.capacity, ring.WithRecycle(ring.CopyBytes))
	if err != nil {
		return nil, err
	}

	senderOpts := append([]sender.Option{
		sender.WithLogger(cfg.logger),
		sender.WithMetrics(cfg.metrics),
	}, cfg.senderOpts...)
	snd, err := sender.New(buf, service, topic, senderOpts...)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		book:    book,
		service: service,
		ring:    buf,
		sender:  snd,
		cfg:     cfg,
	}, nil
}

// Start starts the sender, and the service too under WithServiceLifecycle.
func (p *Publisher) Start(ctx context.Context) error {
	if p.cfg.ownsService {
		if err := p.service.Start(ctx); err != nil {
			return err
		}
	}

	return p.sender.Start(ctx)
}

// Close shuts the sender down under its shutdown policy, then the service
// under WithServiceLifecycle.
func (p *Publisher) Close(ctx context.Context) error {
	err := p.sender.Shutdown(ctx)
	if p.cfg.ownsService {
		err = errors.Join(err, p.service.Shutdown(ctx))
	}

	return err
}

// Publish encodes v at the next sequence and returns it. When the ring is
// full it fails with errs.ErrSequenceWrap and the sequence is not consumed.
//
// Parameters:
//   - v: Value bound in the publisher codebook
//
// Returns:
//   - int64: Sequence assigned to v, or the sequence that was refused
//   - error: errs.ErrEncoding or errs.ErrSequenceWrap
func (p *Publisher) Publish(v any) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	seq := p.next
	if err := p.PublishAt(seq, v); err != nil {
		return seq, err
	}
	p.next++

	return seq, nil
}

// PublishContext is Publish waiting for ring space until ctx is done.
func (p *Publisher) PublishContext(ctx context.Context, v any) (int64, error) {
	for {
		seq, err := p.Publish(v)
		if !errors.Is(err, errs.ErrSequenceWrap) {
			return seq, err
		}
		if err := p.ring.WaitWritable(ctx, seq); err != nil {
			return seq, err
		}
	}
}

// PublishAt encodes v at seq. Sequences may arrive in any order; the sender
// forwards each once every lower sequence has been published.
func (p *Publisher) PublishAt(seq int64, v any) error {
	out := pool.GetMessageBuffer()
	defer pool.PutMessageBuffer(out)

	if err := p.book.EncodeMessage(v, out); err != nil {
		return err
	}

	// the ring copies the payload into its slot
	return p.ring.Set(seq, out.Bytes())
}

// Sequence returns the highest contiguous published sequence.
func (p *Publisher) Sequence() int64 {
	return p.ring.Sequence()
}

// LastSent returns the highest sequence forwarded to the transport.
func (p *Publisher) LastSent() int64 {
	return p.sender.LastSent()
}

// Err returns the error the sender stopped with, if any.
func (p *Publisher) Err() error {
	return p.sender.Err()
}
