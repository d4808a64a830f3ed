package dbus

import "log/slog"

const (
	// DefaultInitialBufferCapacity is the default tail capacity of a
	// new ByteBuffer. Sized to comfortably hold a handful of small
	// method calls without a reallocation.
	DefaultInitialBufferCapacity = 4096
	// DefaultMaxMessageSize bounds the body_length a StreamDriver will
	// accept before treating the stream as malformed, guarding against
	// a peer that declares an unbounded body and never sends it
	// (spec.md §6).
	DefaultMaxMessageSize = 128 * 1024 * 1024
)

// Config configures a StreamDriver.
type Config struct {
	maxMessageSize int
	initialBufCap  int
	logger         *slog.Logger
}

// Option sets up a Config.
type Option func(*Config)

// WithMaxMessageSize caps the declared body_length a StreamDriver will
// accept. Messages above the cap are rejected as malformed instead of
// being buffered indefinitely.
func WithMaxMessageSize(n int) Option {
	return func(c *Config) {
		c.maxMessageSize = n
	}
}

// WithInitialBufferCapacity sets the initial tail capacity of the
// driver's ByteBuffer.
func WithInitialBufferCapacity(n int) Option {
	return func(c *Config) {
		c.initialBufCap = n
	}
}

// WithLogger sets the logger a StreamDriver uses for state
// transitions and rejected messages. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.logger = l
	}
}

func newConfig(opts []Option) *Config {
	c := &Config{
		maxMessageSize: DefaultMaxMessageSize,
		initialBufCap:  DefaultInitialBufferCapacity,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
