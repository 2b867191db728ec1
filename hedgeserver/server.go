package hedgeserver

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

// Server exposes a hedging client's monitoring endpoints with graceful
// shutdown, signal handling and lifecycle logging.
//
// Create a Server using New():
//
//	server := hedgeserver.New(racer,
//	    hedgeserver.WithAddr(":9090"),
//	    hedgeserver.WithServiceName("payment-service"),
//	)
//
//	if err := server.ListenAndServe(ctx); err != nil {
//	    log.Fatal(err)
//	}
type Server struct {
	httpServer *http.Server
	config     Config
	logger     zerolog.Logger
}

// New creates a monitoring server for the given snapshot source.
//
// If no logger is configured, logs go to stdout. The /ping endpoint is
// excluded from request logging.
func New(source SnapshotSource, opts ...Option) *Server {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.New(os.Stdout).With().
			Timestamp().
			Str("service", cfg.ServiceName).
			Logger()
	}

	middlewares := []Middleware{
		Recovery(logger),
		RequestID(),
		Logger(logger, "/ping"),
	}
	middlewares = append(middlewares, cfg.Middleware...)

	handler := Chain(middlewares...)(Routes(source, cfg.ServiceName))

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		config: cfg,
		logger: logger,
	}
}

// Handler returns the fully assembled handler, for mounting the
// monitoring surface inside another server instead of running this one.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the server and blocks until shutdown.
//
// The server shuts down gracefully when the provided context is
// cancelled or when SIGTERM or SIGINT is received, waiting up to
// ShutdownTimeout for in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(shutdownChan)

	serverErrChan := make(chan error, 1)

	go func() {
		s.logger.Info().
			Str("addr", s.httpServer.Addr).
			Msg("monitoring server starting")

		err := s.httpServer.ListenAndServe()

		// ErrServerClosed is expected during graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
		close(serverErrChan)
	}()

	select {
	case err := <-serverErrChan:
		if err != nil {
			s.logger.Error().Err(err).Msg("server error")
			return err
		}
		return nil
	case sig := <-shutdownChan:
		s.logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received")
	case <-ctx.Done():
		s.logger.Info().
			Err(ctx.Err()).
			Msg("context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}

	s.logger.Info().Msg("server stopped")
	return nil
}
