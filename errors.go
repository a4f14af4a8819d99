package regbot

import "github.com/wagiedev/regbot/internal/errors"

// Re-export error types from internal package

// ServerUnavailableError indicates the server process produced no reply:
// it could not be spawned, exited before answering, or timed out.
type ServerUnavailableError = errors.ServerUnavailableError

// ProtocolViolationError indicates the server broke the wire contract.
type ProtocolViolationError = errors.ProtocolViolationError

// InitializeFailedError indicates the server rejected the handshake.
type InitializeFailedError = errors.InitializeFailedError

// CallFailedError indicates the server answered a request with a
// JSON-RPC error object.
type CallFailedError = errors.CallFailedError

// LedgerIOError indicates a read or write against the CSV ledger failed.
type LedgerIOError = errors.LedgerIOError

// RegbotError is the base interface for all SDK errors.
type RegbotError = errors.RegbotError

// Re-export sentinel errors from internal package.
var (
	// ErrTransportNotStarted indicates the server process has not been started.
	ErrTransportNotStarted = errors.ErrTransportNotStarted

	// ErrSessionClosed indicates the session has been closed and cannot be reused.
	ErrSessionClosed = errors.ErrSessionClosed

	// ErrRequestTimeout indicates a request timed out waiting for the server's reply.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrStdinClosed indicates the server's stdin was closed before the write completed.
	ErrStdinClosed = errors.ErrStdinClosed
)
