package hedgeserver

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":9090"

	// DefaultReadTimeout is the default maximum duration for reading the
	// entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the default maximum duration before timing
	// out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the default maximum amount of time to wait
	// for the next request when keep-alives are enabled.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the default duration to wait for in-flight
	// requests to complete during graceful shutdown.
	DefaultShutdownTimeout = 15 * time.Second
)

// Config holds the server configuration.
type Config struct {
	// Addr is the TCP address to listen on.
	Addr string

	// ServiceName identifies the service in logs and response headers.
	ServiceName string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out response writes.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	IdleTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown on exit.
	ShutdownTimeout time.Duration

	// Logger is used for request logging and lifecycle events.
	Logger zerolog.Logger

	// Middleware is applied to every request, outermost first.
	Middleware []Middleware
}

// DefaultConfig returns a Config with sane defaults and a no-op logger.
func DefaultConfig() Config {
	return Config{
		Addr:            DefaultAddr,
		ServiceName:     "hedge",
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		Logger:          zerolog.Nop(),
	}
}
