package config

import (
	"log/slog"
	"time"
)

// DefaultCallTimeout bounds every blocking read on the wire when no
// explicit timeout is configured.
const DefaultCallTimeout = 30 * time.Second

// DefaultStderrLimit caps the captured server stderr. Capture continues
// past the limit but the buffer stops growing, so a chatty server cannot
// exhaust memory.
const DefaultStderrLimit = 10 * 1024 * 1024 // 10MB

// DefaultServerCommand returns the argv used to spawn the registration
// server when none is configured. The binary is resolved via PATH.
func DefaultServerCommand() []string {
	return []string{"regserver"}
}

// Options configures the registration SDK's protocol client.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// ServerCommand is the argv used to spawn the registration server.
	// Empty selects DefaultServerCommand.
	ServerCommand []string

	// LedgerPath, when set, is appended to the server command as
	// "--ledger <path>" so the spawned server uses that CSV file.
	LedgerPath string

	// CallTimeout bounds every blocking read: the initialize reply and
	// each call reply. Zero selects DefaultCallTimeout.
	CallTimeout time.Duration

	// StderrLimit caps the captured server stderr in bytes. Zero
	// selects DefaultStderrLimit.
	StderrLimit int

	// Transport replaces the subprocess transport entirely. When set,
	// ServerCommand and LedgerPath are ignored. Intended for tests.
	Transport Transport
}

// NewOptions returns Options with all defaults applied.
func NewOptions() *Options {
	return &Options{
		ServerCommand: DefaultServerCommand(),
		CallTimeout:   DefaultCallTimeout,
		StderrLimit:   DefaultStderrLimit,
	}
}
