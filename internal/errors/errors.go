package errors

import (
	"errors"
	"fmt"
	"strings"
)

// RegbotError is the base interface for all SDK errors.
type RegbotError interface {
	error
	IsRegbotError() bool
}

// Compile-time verification that all error types implement RegbotError.
var (
	_ RegbotError = (*ServerUnavailableError)(nil)
	_ RegbotError = (*ProtocolViolationError)(nil)
	_ RegbotError = (*InitializeFailedError)(nil)
	_ RegbotError = (*CallFailedError)(nil)
	_ RegbotError = (*LedgerIOError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrTransportNotStarted indicates the server process has not been started.
	ErrTransportNotStarted = errors.New("transport not started")

	// ErrSessionClosed indicates the session has been closed and cannot be reused.
	ErrSessionClosed = errors.New("session closed: sessions are single-use, create a new one with NewSession()")

	// ErrRequestTimeout indicates a request timed out waiting for the server's reply.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrStdinClosed indicates the server's stdin was closed before the write completed.
	ErrStdinClosed = errors.New("stdin closed")
)

// ServerUnavailableError indicates the server process produced no reply:
// it could not be spawned, exited before answering, or timed out.
type ServerUnavailableError struct {
	Stderr string
	Err    error
}

func (e *ServerUnavailableError) Error() string {
	msg := "registration server unavailable"
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, stderr)
	}

	return msg
}

func (e *ServerUnavailableError) Unwrap() error {
	return e.Err
}

// IsRegbotError implements RegbotError.
func (e *ServerUnavailableError) IsRegbotError() bool { return true }

// ProtocolViolationError indicates the server wrote a line that is not a
// valid framed response. The offending line is preserved verbatim.
type ProtocolViolationError struct {
	RawLine string
	Err     error
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("protocol violation: %v", e.Err)
}

func (e *ProtocolViolationError) Unwrap() error {
	return e.Err
}

// IsRegbotError implements RegbotError.
func (e *ProtocolViolationError) IsRegbotError() bool { return true }

// InitializeFailedError indicates the server explicitly rejected the handshake.
type InitializeFailedError struct {
	Message string
}

func (e *InitializeFailedError) Error() string {
	return fmt.Sprintf("initialize failed: %s", e.Message)
}

// IsRegbotError implements RegbotError.
func (e *InitializeFailedError) IsRegbotError() bool { return true }

// CallFailedError indicates the server answered a request with an error
// object. The transport itself is healthy.
type CallFailedError struct {
	Method  string
	Code    int
	Message string
}

func (e *CallFailedError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("%s failed: %s", e.Method, e.Message)
	}

	return fmt.Sprintf("call failed: %s", e.Message)
}

// IsRegbotError implements RegbotError.
func (e *CallFailedError) IsRegbotError() bool { return true }

// LedgerIOError indicates the registration ledger could not be read or written.
type LedgerIOError struct {
	Path string
	Op   string
	Err  error
}

func (e *LedgerIOError) Error() string {
	return fmt.Sprintf("ledger %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *LedgerIOError) Unwrap() error {
	return e.Err
}

// IsRegbotError implements RegbotError.
func (e *LedgerIOError) IsRegbotError() bool { return true }
