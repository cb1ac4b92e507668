// Package udp implements a point-to-point MessagingService over UDP.
//
// Each Send is one datagram holding one frame (see package frame). Frames
// that fail to decode are dropped and logged at debug level.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/format"
	"github.com/arloliu/ringwire/frame"
	"github.com/arloliu/ringwire/internal/options"
	"github.com/arloliu/ringwire/transport"
)

// DefaultMaxDatagram is the largest datagram sent or received by default.
const DefaultMaxDatagram = 64 * 1024

type config struct {
	logger      *zap.Logger
	remote      string
	compression format.CompressionType
	maxDatagram int
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

// WithRemote sets the host:port every Send goes to. Without it the service
// only receives.
func WithRemote(addr string) Option {
	return options.NoError(func(c *config) {
		c.remote = addr
	})
}

// WithCompression sets the codec applied to outgoing payloads.
func WithCompression(ct format.CompressionType) Option {
	return options.New(func(c *config) error {
		if !ct.Valid() {
			return fmt.Errorf("%w: invalid compression %d", errs.ErrConfiguration, ct)
		}
		c.compression = ct

		return nil
	})
}

// WithMaxDatagram bounds the size of a framed payload.
func WithMaxDatagram(n int) Option {
	return options.New(func(c *config) error {
		if n <= frame.Overhead {
			return fmt.Errorf("%w: max datagram %d does not fit a frame", errs.ErrConfiguration, n)
		}
		c.maxDatagram = n

		return nil
	})
}

// Service is a UDP MessagingService.
type Service struct {
	listen     string
	cfg        config
	logger     *zap.Logger
	dispatcher *transport.Dispatcher

	mu      sync.RWMutex
	started bool
	closed  bool
	conn    *net.UDPConn
	raddr   *net.UDPAddr
	wg      sync.WaitGroup

	// writeMu pairs each write deadline with its write
	writeMu sync.Mutex
}

var _ transport.MessagingService = (*Service)(nil)

// New creates a service bound to listen once started.
func New(listen string, opts ...Option) (*Service, error) {
	cfg := config{
		logger:      zap.NewNop(),
		compression: format.CompressionNone,
		maxDatagram: DefaultMaxDatagram,
	}
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	return &Service{
		listen:     listen,
		cfg:        cfg,
		logger:     cfg.logger.With(zap.String("listen", listen)),
		dispatcher: transport.NewDispatcher(),
	}, nil
}

// Start binds the socket and starts the receive loop.
func (s *Service) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: udp service is shut down", errs.ErrTransport)
	}
	if s.started {
		return nil
	}

	laddr, err := net.ResolveUDPAddr("udp", s.listen)
	if err != nil {
		return fmt.Errorf("%w: resolve listen address %q: %w", errs.ErrTransport, s.listen, err)
	}
	var raddr *net.UDPAddr
	if s.cfg.remote != "" {
		raddr, err = net.ResolveUDPAddr("udp", s.cfg.remote)
		if err != nil {
			return fmt.Errorf("%w: resolve remote address %q: %w", errs.ErrTransport, s.cfg.remote, err)
		}
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("%w: listen %q: %w", errs.ErrTransport, s.listen, err)
	}

	s.conn = conn
	s.raddr = raddr
	s.started = true

	s.wg.Add(1)
	go s.readLoop(conn)

	s.logger.Info("udp service started",
		zap.Stringer("local", conn.LocalAddr()),
		zap.String("remote", s.cfg.remote),
		zap.Stringer("compression", s.cfg.compression))

	return nil
}

// Shutdown closes the socket and waits for the receive loop to exit.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	var closeErr error
	if err := conn.Close(); err != nil {
		closeErr = fmt.Errorf("%w: close socket: %w", errs.ErrTransport, err)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errs.ErrTransport, ctx.Err())
	}
	s.logger.Info("udp service shut down")

	return closeErr
}

// Addr returns the bound local address, or nil before Start.
func (s *Service) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.conn == nil {
		return nil
	}

	return s.conn.LocalAddr()
}

// RegisterReceiver adds r for topic.
func (s *Service) RegisterReceiver(topic int32, r transport.Receiver) error {
	if r == nil {
		return fmt.Errorf("%w: nil receiver for topic %d", errs.ErrConfiguration, topic)
	}
	s.dispatcher.Register(topic, r)

	return nil
}

// Send frames payload and writes it to the remote address as one datagram.
func (s *Service) Send(ctx context.Context, topic int32, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrTransport, err)
	}

	s.mu.RLock()
	conn, raddr, running := s.conn, s.raddr, s.started && !s.closed
	s.mu.RUnlock()

	if !running {
		return fmt.Errorf("%w: udp service is not running", errs.ErrTransport)
	}
	if raddr == nil {
		return fmt.Errorf("%w: udp service has no remote address", errs.ErrTransport)
	}

	b, err := frame.Encode(topic, payload, s.cfg.compression)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrTransport, err)
	}
	if len(b) > s.cfg.maxDatagram {
		return fmt.Errorf("%w: frame of %d bytes exceeds max datagram %d",
			errs.ErrTransport, len(b), s.cfg.maxDatagram)
	}

	return s.write(ctx, conn, raddr, b)
}

// write sends b with the deadline of ctx, or none when ctx has no deadline.
func (s *Service) write(ctx context.Context, conn *net.UDPConn, raddr *net.UDPAddr, b []byte) error {
	var deadline time.Time
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set write deadline: %w", errs.ErrTransport, err)
	}
	if _, err := conn.WriteToUDP(b, raddr); err != nil {
		return fmt.Errorf("%w: write to %s: %w", errs.ErrTransport, raddr, err)
	}

	return nil
}

func (s *Service) readLoop(conn *net.UDPConn) {
	defer s.wg.Done()

	buf := make([]byte, s.cfg.maxDatagram)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("udp receive loop stopped", zap.Error(err))
			}

			return
		}

		f, err := frame.Decode(buf[:n])
		if err != nil {
			s.logger.Debug("dropping undecodable datagram", zap.Stringer("from", from), zap.Error(err))
			continue
		}
		if s.dispatcher.Dispatch(f.Topic, f.Payload) == 0 {
			s.logger.Debug("no receiver for topic", zap.Int32("topic", f.Topic), zap.Stringer("from", from))
		}
	}
}
