package sender

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/internal/options"
	"github.com/arloliu/ringwire/observability"
)

// ShutdownPolicy selects what happens to contiguous but unsent sequences when
// the sender is stopped.
type ShutdownPolicy int

const (
	// Flush forwards every sequence that was contiguous when shutdown began.
	Flush ShutdownPolicy = iota
	// Discard finishes the in-flight send and abandons the rest.
	Discard
)

func (p ShutdownPolicy) String() string {
	switch p {
	case Flush:
		return "flush"
	case Discard:
		return "discard"
	default:
		return "unknown"
	}
}

// ParseShutdownPolicy parses "flush" or "discard".
func ParseShutdownPolicy(s string) (ShutdownPolicy, error) {
	switch s {
	case "flush":
		return Flush, nil
	case "discard":
		return Discard, nil
	default:
		return 0, fmt.Errorf("%w: unknown shutdown policy %q", errs.ErrConfiguration, s)
	}
}

// ErrorPolicy selects what happens when the transport rejects a message.
type ErrorPolicy int

const (
	// Propagate stops the sender and returns the transport error from Run.
	// The failed sequence is neither marked sent nor released.
	Propagate ErrorPolicy = iota
	// Drop logs and counts the failure, then moves on to the next sequence.
	Drop
)

func (p ErrorPolicy) String() string {
	switch p {
	case Propagate:
		return "propagate"
	case Drop:
		return "drop"
	default:
		return "unknown"
	}
}

// ParseErrorPolicy parses "propagate" or "drop".
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch s {
	case "propagate":
		return Propagate, nil
	case "drop":
		return Drop, nil
	default:
		return 0, fmt.Errorf("%w: unknown error policy %q", errs.ErrConfiguration, s)
	}
}

type config struct {
	logger         *zap.Logger
	metrics        *observability.SenderMetrics
	shutdownPolicy ShutdownPolicy
	errorPolicy    ErrorPolicy
	onError        func(seq int64, err error)
}

// Option configures a Sender.
type Option = options.Option[*config]

// WithLogger sets the sender logger.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithMetrics sets the collectors updated by the sender.
func WithMetrics(m *observability.SenderMetrics) Option {
	return options.NoError(func(c *config) {
		c.metrics = m
	})
}

// WithShutdownPolicy sets the shutdown policy. The default is Flush.
func WithShutdownPolicy(p ShutdownPolicy) Option {
	return options.New(func(c *config) error {
		if p != Flush && p != Discard {
			return fmt.Errorf("%w: invalid shutdown policy %d", errs.ErrConfiguration, p)
		}
		c.shutdownPolicy = p

		return nil
	})
}

// WithErrorPolicy sets the transport error policy. The default is Propagate.
func WithErrorPolicy(p ErrorPolicy) Option {
	return options.New(func(c *config) error {
		if p != Propagate && p != Drop {
			return fmt.Errorf("%w: invalid error policy %d", errs.ErrConfiguration, p)
		}
		c.errorPolicy = p

		return nil
	})
}

// WithErrorHandler registers fn to observe every transport failure, whatever
// the error policy.
func WithErrorHandler(fn func(seq int64, err error)) Option {
	return options.NoError(func(c *config) {
		c.onError = fn
	})
}
