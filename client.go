package regbot

import (
	"context"

	"github.com/wagiedev/regbot/internal/protocol"
)

// Session provides a stateful interface that keeps one registration
// server process alive across many calls.
//
// Unlike the one-shot Call function, a Session performs the spawn and
// protocol handshake once and then multiplexes calls over the same
// process. Calls from multiple goroutines are safe and may be in flight
// concurrently.
//
// Lifecycle: sessions are single-use. After Close(), create a new session
// with NewSession().
//
// Example usage:
//
//	session, err := regbot.NewSession(ctx,
//	    regbot.WithLedgerPath("registrations.csv"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	result, err := session.Call(ctx, regbot.ToolAddRegistration, map[string]any{
//	    "name":  "Ada Lovelace",
//	    "email": "ada@example.com",
//	    "dob":   "1815-12-10",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Text)
type Session interface {
	// Call runs one registration tool and returns its unwrapped reply.
	// A per-call timeout applies (WithCallTimeout); expiry fails the
	// call but leaves the session usable.
	Call(ctx context.Context, tool string, args map[string]any) (*CallResult, error)

	// ListTools fetches the server's tool catalog.
	ListTools(ctx context.Context) ([]ToolDescriptor, error)

	// ListResources fetches the server's resource catalog.
	ListResources(ctx context.Context) ([]ResourceDescriptor, error)

	// ReadResource fetches one resource by URI. The ledger URI for a
	// given path is available via LedgerURI.
	ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error)

	// Close terminates the server process and releases resources.
	// Safe to call multiple times. After Close, all calls report
	// ErrSessionClosed.
	Close() error
}

// sessionWrapper adapts the internal session to the public interface.
type sessionWrapper struct {
	impl *protocol.Session
}

// Compile-time check that *sessionWrapper implements the Session interface.
var _ Session = (*sessionWrapper)(nil)

// NewSession spawns the registration server and performs the protocol
// handshake, returning a ready-to-use session.
//
// The context bounds only session startup; calls carry their own
// contexts. On handshake failure the server process is torn down before
// the error is returned.
func NewSession(ctx context.Context, opts ...Option) (Session, error) {
	options := applyOptions(opts)

	impl, err := protocol.NewSession(ctx, loggerFrom(options), options)
	if err != nil {
		return nil, err
	}

	return &sessionWrapper{impl: impl}, nil
}

// Call runs one registration tool over the session.
func (s *sessionWrapper) Call(ctx context.Context, tool string, args map[string]any) (*CallResult, error) {
	return s.impl.CallTool(ctx, tool, args)
}

// ListTools fetches the server's tool catalog.
func (s *sessionWrapper) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	return s.impl.ListTools(ctx)
}

// ListResources fetches the server's resource catalog.
func (s *sessionWrapper) ListResources(ctx context.Context) ([]ResourceDescriptor, error) {
	return s.impl.ListResources(ctx)
}

// ReadResource fetches one resource by URI.
func (s *sessionWrapper) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	return s.impl.ReadResource(ctx, uri)
}

// Close terminates the server process and releases resources.
func (s *sessionWrapper) Close() error {
	return s.impl.Close()
}
