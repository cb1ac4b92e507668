// Package mem provides an in-process MessagingService. Services joined to the
// same Bus deliver every sent payload to the receivers of all running members,
// including the sender itself.
package mem

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/internal/options"
	"github.com/arloliu/ringwire/transport"
)

// Bus connects in-process services.
type Bus struct {
	mu      sync.RWMutex
	members []*Service
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

type config struct {
	logger *zap.Logger
}

// Option configures a Service.
type Option = options.Option[*config]

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	})
}

type state int

const (
	stateNew state = iota
	stateRunning
	stateClosed
)

// Service is a member of a Bus.
type Service struct {
	bus        *Bus
	dispatcher *transport.Dispatcher
	logger     *zap.Logger

	mu    sync.RWMutex
	state state
}

var _ transport.MessagingService = (*Service)(nil)

// Service creates a member of the bus. It receives nothing until started.
func (b *Bus) Service(opts ...Option) *Service {
	cfg := config{logger: zap.NewNop()}
	_ = options.Apply(&cfg, opts...)

	return &Service{
		bus:        b,
		dispatcher: transport.NewDispatcher(),
		logger:     cfg.logger,
	}
}

// New creates a standalone loopback service on its own bus.
func New(opts ...Option) *Service {
	return NewBus().Service(opts...)
}

// Start joins the bus.
func (s *Service) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateRunning:
		return nil
	case stateClosed:
		return fmt.Errorf("%w: mem service is shut down", errs.ErrTransport)
	}
	s.state = stateRunning

	s.bus.mu.Lock()
	s.bus.members = append(s.bus.members, s)
	s.bus.mu.Unlock()
	s.logger.Debug("mem service started")

	return nil
}

// Shutdown leaves the bus. Later sends fail.
func (s *Service) Shutdown(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateClosed {
		return nil
	}
	wasRunning := s.state == stateRunning
	s.state = stateClosed
	if !wasRunning {
		return nil
	}

	s.bus.mu.Lock()
	s.bus.members = slices.DeleteFunc(s.bus.members, func(m *Service) bool { return m == s })
	s.bus.mu.Unlock()
	s.logger.Debug("mem service shut down")

	return nil
}

// RegisterReceiver adds r for topic.
func (s *Service) RegisterReceiver(topic int32, r transport.Receiver) error {
	if r == nil {
		return fmt.Errorf("%w: nil receiver for topic %d", errs.ErrConfiguration, topic)
	}
	s.dispatcher.Register(topic, r)

	return nil
}

// Send delivers a copy of payload to every running member synchronously.
func (s *Service) Send(ctx context.Context, topic int32, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrTransport, err)
	}

	s.mu.RLock()
	running := s.state == stateRunning
	s.mu.RUnlock()
	if !running {
		return fmt.Errorf("%w: mem service is not running", errs.ErrTransport)
	}

	s.bus.mu.RLock()
	members := slices.Clone(s.bus.members)
	s.bus.mu.RUnlock()

	for _, m := range members {
		if !m.dispatcher.Has(topic) {
			continue
		}
		m.dispatcher.Dispatch(topic, slices.Clone(payload))
	}

	return nil
}
