// Package sender drains a sequenced ring into a messaging service.
//
// The drain loop blocks on the ring until the contiguous sequence passes the
// last forwarded one, then forwards every newly contiguous slot in order and
// releases it. Sends run without any ring lock held.
package sender

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/internal/options"
	"github.com/arloliu/ringwire/sequence"
	"github.com/arloliu/ringwire/transport"
)

// Source is the ring the sender drains. *ring.Buffer[[]byte] implements it.
type Source interface {
	Sequence() int64
	Get(seq int64) []byte
	Wait(ctx context.Context, after int64) (int64, error)
	Release(seq int64)
}

// ErrRunning is returned by Start when the sender is already running.
var ErrRunning = errors.New("sender already running")

// Sender forwards payloads of a Source to a MessagingService topic.
type Sender struct {
	source  Source
	service transport.MessagingService
	topic   int32
	cfg     config

	lastSent atomic.Int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
}

// New creates a sender draining source to topic on service.
//
// Parameters:
//   - source: Ring the sender waits on, reads and releases
//   - service: Transport every contiguous payload is sent to
//   - topic: Topic id of every send
//   - opts: Optional logger, metrics, shutdown and error policies
//
// Returns:
//   - *Sender: Sender with nothing forwarded yet (LastSent is sequence.None)
//   - error: errs.ErrConfiguration for a nil source or service or an invalid option
func New(source Source, service transport.MessagingService, topic int32, opts ...Option) (*Sender, error) {
	if source == nil || service == nil {
		return nil, fmt.Errorf("%w: sender needs a source and a messaging service", errs.ErrConfiguration)
	}

	cfg := config{logger: zap.NewNop(), shutdownPolicy: Flush, errorPolicy: Propagate}
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	s := &Sender{
		source:  source,
		service: service,
		topic:   topic,
		cfg:     cfg,
	}
	s.lastSent.Store(sequence.None)

	return s, nil
}

// LastSent returns the highest forwarded sequence, or sequence.None.
func (s *Sender) LastSent() int64 {
	return s.lastSent.Load()
}

// Run drains the source until ctx is done or a send fails under the
// Propagate policy.
//
// Cancellation of ctx is the shutdown signal: an in-flight send completes,
// then Flush forwards what was contiguous at that point while Discard stops.
// Run returns nil after a shutdown and an error wrapping errs.ErrTransport
// after a propagated failure.
func (s *Sender) Run(ctx context.Context) error {
	logger := s.cfg.logger.With(zap.Int32("topic", s.topic))
	logger.Info("sender started",
		zap.Stringer("shutdown_policy", s.cfg.shutdownPolicy),
		zap.Stringer("error_policy", s.cfg.errorPolicy))

	// sends outlive the shutdown signal so an in-flight forward completes
	sendCtx := context.WithoutCancel(ctx)

	for {
		last := s.lastSent.Load()
		avail, err := s.source.Wait(ctx, last)
		if err != nil {
			return s.stop(sendCtx, logger)
		}

		for seq := last + 1; seq <= avail; seq++ {
			if err := s.forward(sendCtx, logger, seq); err != nil {
				return err
			}
			if ctx.Err() != nil {
				return s.stop(sendCtx, logger)
			}
		}
	}
}

func (s *Sender) stop(sendCtx context.Context, logger *zap.Logger) error {
	last := s.lastSent.Load()
	if s.cfg.shutdownPolicy == Discard {
		logger.Info("sender stopped",
			zap.Int64("last_sent", last),
			zap.Int64("discarded", max(0, s.source.Sequence()-last)))

		return nil
	}

	target := s.source.Sequence()
	for seq := last + 1; seq <= target; seq++ {
		if err := s.forward(sendCtx, logger, seq); err != nil {
			return err
		}
	}
	logger.Info("sender stopped", zap.Int64("last_sent", s.lastSent.Load()), zap.Int64("flushed", target-last))

	return nil
}

// forward sends one sequence and advances the cursor unless the failure is propagated.
func (s *Sender) forward(ctx context.Context, logger *zap.Logger, seq int64) error {
	payload := s.source.Get(seq)

	start := time.Now()
	err := s.service.Send(ctx, s.topic, payload)
	if err == nil {
		s.cfg.metrics.ObserveSent(s.topic, seq, time.Since(start))
		s.advance(seq)

		return nil
	}

	if !errors.Is(err, errs.ErrTransport) {
		err = fmt.Errorf("%w: %w", errs.ErrTransport, err)
	}
	err = fmt.Errorf("send sequence %d on topic %d: %w", seq, s.topic, err)
	if s.cfg.onError != nil {
		s.cfg.onError(seq, err)
	}

	if s.cfg.errorPolicy == Drop {
		s.cfg.metrics.ObserveFailure(s.topic, true)
		logger.Warn("dropping message after transport failure", zap.Int64("sequence", seq), zap.Error(err))
		s.advance(seq)

		return nil
	}

	s.cfg.metrics.ObserveFailure(s.topic, false)
	logger.Error("sender stopped by transport failure", zap.Int64("sequence", seq), zap.Error(err))

	return err
}

func (s *Sender) advance(seq int64) {
	s.lastSent.Store(seq)
	s.source.Release(seq)
}

// Start runs the sender in a new goroutine. The goroutine stops when ctx is
// done, when Shutdown is called, or on a propagated send failure.
func (s *Sender) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.runErr = nil

	go func(done chan struct{}) {
		err := s.Run(runCtx)
		cancel()

		s.mu.Lock()
		s.runErr = err
		s.running = false
		s.mu.Unlock()
		close(done)
	}(s.done)

	return nil
}

// Done is closed when the goroutine started by Start exits. It is nil before
// the first Start.
func (s *Sender) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.done
}

// Err returns the error the last started run ended with.
func (s *Sender) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runErr
}

// Shutdown signals the started goroutine to stop and waits for it to apply the
// shutdown policy. It returns the run error, or ctx.Err() when ctx is done
// before the goroutine exits. Shutdown without Start returns nil.
func (s *Sender) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
