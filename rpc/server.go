package rpc

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/arloliu/ringwire/codebook"
	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/transport"
)

// Handler answers a request with a response or an error.
type Handler interface {
	Handle(ctx context.Context, request any) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, request any) (any, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, request any) (any, error) {
	return f(ctx, request)
}

// Server answers requests arriving on a request topic.
type Server struct {
	book       *codebook.CodeBook
	service    transport.MessagingService
	replyTopic int32
	handler    Handler
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewServer creates a server and registers it for requestTopic on service.
// Each request is handled on its own goroutine.
func NewServer(book *codebook.CodeBook, service transport.MessagingService, requestTopic, replyTopic int32, handler Handler, opts ...Option) (*Server, error) {
	if book == nil || service == nil || handler == nil {
		return nil, fmt.Errorf("%w: rpc server needs a codebook, a messaging service and a handler", errs.ErrConfiguration)
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		book:       book,
		service:    service,
		replyTopic: replyTopic,
		handler:    handler,
		logger:     cfg.logger.With(zap.Int32("request_topic", requestTopic)),
		ctx:        ctx,
		cancel:     cancel,
	}
	if err := service.RegisterReceiver(requestTopic, transport.ReceiverFunc(s.receive)); err != nil {
		cancel()
		return nil, err
	}

	return s, nil
}

// Close stops accepting requests, cancels the context passed to running
// handlers and waits for them, or for ctx.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) receive(_ int32, payload []byte) {
	env, err := decodeEnvelope(s.book, payload)
	if err != nil {
		s.logger.Warn("dropping undecodable rpc request", zap.Error(err))
		return
	}
	if env.isError {
		s.logger.Debug("ignoring error envelope on request topic", zap.Stringer("id", env.id))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.serve(env)
	}()
}

func (s *Server) serve(req envelope) {
	resp, err := s.handler.Handle(s.ctx, req.body)

	out := envelope{id: req.id, body: resp}
	if err != nil {
		out = envelope{id: req.id, isError: true, errMsg: err.Error()}
	}
	data, err := encodeEnvelope(s.book, out)
	if err != nil {
		s.logger.Warn("cannot encode rpc response", zap.Stringer("id", req.id), zap.Error(err))
		data, err = encodeEnvelope(s.book, envelope{id: req.id, isError: true, errMsg: err.Error()})
		if err != nil {
			return
		}
	}

	if err := s.service.Send(s.ctx, s.replyTopic, data); err != nil {
		s.logger.Warn("cannot send rpc response", zap.Stringer("id", req.id), zap.Error(err))
	}
}
