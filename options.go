package regbot

import (
	"log/slog"
	"time"

	"github.com/wagiedev/regbot/internal/config"
)

// Option configures a call or session using the functional options pattern.
type Option func(*config.Options)

// applyOptions applies functional options on top of the defaults.
func applyOptions(opts []Option) *config.Options {
	options := config.NewOptions()
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *config.Options) {
		o.Logger = logger
	}
}

// WithServerCommand sets the argv used to spawn the registration server.
// The first element is the binary, resolved via PATH when not absolute.
// If not set, the server is spawned as "regserver".
func WithServerCommand(command ...string) Option {
	return func(o *config.Options) {
		o.ServerCommand = command
	}
}

// WithLedgerPath directs the spawned server at a specific CSV ledger file.
// The path is passed to the server as "--ledger <path>" and also determines
// the resource URI that ReadLedger fetches.
func WithLedgerPath(path string) Option {
	return func(o *config.Options) {
		o.LedgerPath = path
	}
}

// WithCallTimeout bounds each blocking read on the wire: the initialize
// reply and every call reply. The default is 30 seconds.
func WithCallTimeout(timeout time.Duration) Option {
	return func(o *config.Options) {
		o.CallTimeout = timeout
	}
}

// WithStderrLimit caps the captured server stderr in bytes. Stderr beyond
// the limit is discarded rather than buffered. The default is 10MB.
func WithStderrLimit(limit int) Option {
	return func(o *config.Options) {
		o.StderrLimit = limit
	}
}

// WithTransport injects a custom transport implementation, replacing the
// subprocess transport entirely. Intended for tests and mocking; when set,
// WithServerCommand and WithLedgerPath have no effect on spawning.
func WithTransport(transport Transport) Option {
	return func(o *config.Options) {
		o.Transport = transport
	}
}
