// Package config provides configuration types for the registration SDK
// and the chat front end.
package config

import "context"

// Transport moves framed request and response lines between a client and
// a registration server. Implement this to substitute the subprocess
// transport in tests or to reach a server over another channel.
//
// The default implementation is subprocess.ServerTransport, which spawns
// the server command and speaks over its stdin/stdout.
type Transport interface {
	// Start launches the server side and prepares the pipes. It is
	// called once, before any send or read.
	Start(ctx context.Context) error

	// ReadResponses returns a channel of raw response lines and a
	// channel of terminal transport errors. The line channel closes
	// when the server's output reaches EOF; after that the transport
	// is unusable.
	ReadResponses(ctx context.Context) (<-chan []byte, <-chan error)

	// SendRequest writes one framed request line. A newline is
	// appended when missing. Safe for concurrent use.
	SendRequest(ctx context.Context, data []byte) error

	// Stderr returns the server stderr captured so far, for error
	// reporting after an unexpected exit.
	Stderr() string

	// CloseStdin signals end of input to the server.
	CloseStdin() error

	// Close terminates the server side. Safe to call multiple times.
	Close() error

	// IsReady reports whether the transport can accept sends.
	IsReady() bool
}
