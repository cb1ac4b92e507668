package rpc

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/internal/options"
)

// DefaultTimeout bounds a Call whose context has no earlier deadline.
const DefaultTimeout = 5 * time.Second

type config struct {
	logger  *zap.Logger
	timeout time.Duration
}

// Option configures a Client or a Server.
type Option = options.Option[*config]

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithTimeout sets the per-call timeout of a Client.
func WithTimeout(d time.Duration) Option {
	return options.New(func(c *config) error {
		if d <= 0 {
			return fmt.Errorf("%w: rpc timeout must be positive, got %s", errs.ErrConfiguration, d)
		}
		c.timeout = d

		return nil
	})
}

func newConfig(opts []Option) (config, error) {
	cfg := config{logger: zap.NewNop(), timeout: DefaultTimeout}
	if err := options.Apply(&cfg, opts...); err != nil {
		return config{}, err
	}

	return cfg, nil
}
