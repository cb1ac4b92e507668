package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arloliu/ringwire"
	"github.com/arloliu/ringwire/codebook"
	"github.com/arloliu/ringwire/config"
	"github.com/arloliu/ringwire/endpoint"
	"github.com/arloliu/ringwire/observability"
	"github.com/arloliu/ringwire/sender"
	"github.com/arloliu/ringwire/transport"
	"github.com/arloliu/ringwire/transport/mem"
	"github.com/arloliu/ringwire/transport/udp"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger.With(zap.String("node", cfg.Node)))

	zap.L().Info("ringwire started", zap.String("mode", opts.Mode))
	zap.L().Debug("effective configuration", zap.Any("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx, cfg, zap.L())
	if err != nil {
		zap.L().Error("failed to create transport", zap.Error(err))
		return 1
	}

	reg := prometheus.NewRegistry()
	if opts.MetricsAddr != "" {
		srv := serveMetrics(opts.MetricsAddr, reg)
		defer func() { _ = srv.Close() }()
	}

	book := codebook.New(codebook.WithLogger(zap.L()))
	book.Seal()

	switch opts.Mode {
	case "publish":
		err = publish(ctx, cfg, opts, book, svc, reg)
	case "listen":
		err = listen(ctx, cfg, book, svc)
	default:
		err = fmt.Errorf("unknown mode %q", opts.Mode)
	}
	if err != nil {
		zap.L().Error("ringwire stopped with error", zap.Error(err))
		return 1
	}
	zap.L().Info("ringwire stopped")

	return 0
}

// newService builds the configured messaging service. A udp service without
// transport.remote resolves its peer from the endpoint table.
func newService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (transport.MessagingService, error) {
	if cfg.Transport.Kind == "mem" {
		return mem.New(mem.WithLogger(logger)), nil
	}

	remote := cfg.Transport.Remote
	if remote == "" && cfg.Endpoints.Remote != "" {
		ep, err := resolveRemote(ctx, cfg.Endpoints)
		if err != nil {
			return nil, err
		}
		remote = ep.Address()
		logger.Info("resolved remote endpoint",
			zap.String("service", ep.Service), zap.String("address", remote))
	}

	opts := []udp.Option{
		udp.WithLogger(logger),
		udp.WithCompression(cfg.Compression()),
		udp.WithMaxDatagram(cfg.Transport.MaxDatagram),
	}
	if remote != "" {
		opts = append(opts, udp.WithRemote(remote))
	}

	return udp.New(cfg.Transport.Listen, opts...)
}

func resolveRemote(ctx context.Context, cfg config.EndpointsConfig) (endpoint.Endpoint, error) {
	if cfg.File == "" {
		return endpoint.Endpoint{}, errors.New("endpoints.remote is set without endpoints.file")
	}
	table, err := endpoint.Load(cfg.File)
	if err != nil {
		return endpoint.Endpoint{}, err
	}

	return endpoint.NewResolver(table).Resolve(ctx, cfg.Remote)
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Warn("metrics server failed", zap.Error(err))
		}
	}()

	return srv
}

func senderOptions(cfg config.SenderConfig) ([]sender.Option, error) {
	shutdown, err := sender.ParseShutdownPolicy(cfg.Shutdown)
	if err != nil {
		return nil, err
	}
	onError, err := sender.ParseErrorPolicy(cfg.OnError)
	if err != nil {
		return nil, err
	}

	return []sender.Option{
		sender.WithShutdownPolicy(shutdown),
		sender.WithErrorPolicy(onError),
		sender.WithErrorHandler(func(seq int64, err error) {
			zap.L().Warn("dropped message", zap.Int64("seq", seq), zap.Error(err))
		}),
	}, nil
}

func publish(ctx context.Context, cfg *config.Config, opts Options, book *codebook.CodeBook,
	svc transport.MessagingService, reg prometheus.Registerer,
) error {
	metrics, err := observability.NewSenderMetrics(reg)
	if err != nil {
		return err
	}
	sopts, err := senderOptions(cfg.Sender)
	if err != nil {
		return err
	}

	pub, err := ringwire.NewPublisher(book, svc, cfg.Sender.Topic,
		ringwire.WithCapacity(cfg.Ring.Capacity),
		ringwire.WithLogger(zap.L()),
		ringwire.WithMetrics(metrics),
		ringwire.WithSenderOptions(sopts...),
		ringwire.WithServiceLifecycle(),
	)
	if err != nil {
		return err
	}
	if err := pub.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var publishErr error
publishing:
	for i := 0; opts.Count == 0 || i < opts.Count; i++ {
		seq, err := pub.PublishContext(ctx, fmt.Sprintf("%s message %d", cfg.Node, i))
		if err != nil {
			if ctx.Err() == nil {
				publishErr = err
			}
			break
		}
		zap.L().Debug("published", zap.Int64("seq", seq))

		select {
		case <-ctx.Done():
			break publishing
		case <-ticker.C:
		}
	}

	closeCtx, cancel := shutdownContext(cfg.Sender)
	defer cancel()

	return errors.Join(publishErr, pub.Close(closeCtx))
}

func listen(ctx context.Context, cfg *config.Config, book *codebook.CodeBook, svc transport.MessagingService) error {
	err := svc.RegisterReceiver(cfg.Sender.Topic, transport.ReceiverFunc(func(topic int32, payload []byte) {
		v, err := book.Unmarshal(payload)
		if err != nil {
			zap.L().Warn("undecodable message", zap.Int32("topic", topic), zap.Error(err))
			return
		}
		fmt.Printf("topic %d: %v\n", topic, v)
	}))
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	zap.L().Info("listening; press Ctrl+C to exit", zap.Int32("topic", cfg.Sender.Topic))
	<-ctx.Done()

	closeCtx, cancel := shutdownContext(cfg.Sender)
	defer cancel()

	return svc.Shutdown(closeCtx)
}

// shutdownContext bounds shutdown by sender.shutdown_timeout; zero waits
// without a deadline.
func shutdownContext(cfg config.SenderConfig) (context.Context, context.CancelFunc) {
	if cfg.ShutdownTimeout <= 0 {
		return context.WithCancel(context.Background())
	}

	return context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
}
