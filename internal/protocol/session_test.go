package protocol

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/regbot/internal/config"
	"github.com/wagiedev/regbot/internal/errors"
	"github.com/wagiedev/regbot/internal/wire"
)

func newTestSession(t *testing.T, fake *scriptedTransport, timeout time.Duration) *Session {
	t.Helper()

	opts := config.NewOptions()
	opts.Transport = fake

	if timeout > 0 {
		opts.CallTimeout = timeout
	}

	session, err := NewSession(context.Background(), slog.Default(), opts)
	require.NoError(t, err)

	t.Cleanup(func() { _ = session.Close() })

	return session
}

func TestSessionSingleHandshake(t *testing.T) {
	fake := newScriptedTransport(happyResponder(t, map[string]any{
		"content": []map[string]any{{"type": "text", "text": "No registrations found yet."}},
	}))

	session := newTestSession(t, fake, 0)

	for range 3 {
		reply, err := session.CallTool(context.Background(), "get_all_registrations", nil)
		require.NoError(t, err)
		require.Contains(t, reply.Text, "No registrations")
	}

	require.Equal(t, 1, fake.countMethod(wire.MethodInitialize), "a session handshakes exactly once")
	require.Equal(t, 1, fake.countMethod(wire.MethodInitialized))
	require.Equal(t, 3, fake.countMethod(wire.MethodCallTool))
}

func TestSessionRequestIDsIncrease(t *testing.T) {
	fake := newScriptedTransport(happyResponder(t, map[string]any{
		"content": []map[string]any{{"type": "text", "text": "ok"}},
	}))

	session := newTestSession(t, fake, 0)

	_, err := session.CallTool(context.Background(), "get_all_registrations", nil)
	require.NoError(t, err)

	_, err = session.ListTools(context.Background())
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()

	var ids []int64

	for _, req := range fake.requests {
		if req.ID != nil {
			ids = append(ids, *req.ID)
		}
	}

	require.Equal(t, []int64{1, 2, 3}, ids)
}

func TestSessionInterleavedCalls(t *testing.T) {
	// The fake withholds the reply to the first tools/call until the
	// second arrives, then answers in reverse order. Each caller must
	// still receive its own response.
	var (
		respondMu sync.Mutex
		held      *wire.Request
	)

	fake := newScriptedTransport(nil)
	fake.respond = func(req *wire.Request) ([][]byte, bool) {
		switch req.Method {
		case wire.MethodInitialize:
			return [][]byte{responseLine(t, *req.ID, initializeResult())}, false

		case wire.MethodCallTool:
			respondMu.Lock()
			defer respondMu.Unlock()

			if held == nil {
				held = req

				return nil, false
			}

			first := held

			return [][]byte{
				responseLine(t, *req.ID, map[string]any{
					"content": []map[string]any{{"type": "text", "text": "reply-second"}},
				}),
				responseLine(t, *first.ID, map[string]any{
					"content": []map[string]any{{"type": "text", "text": "reply-first"}},
				}),
			}, false

		default:
			return nil, false
		}
	}

	session := newTestSession(t, fake, 0)

	var (
		wg          sync.WaitGroup
		firstReply  *CallResult
		secondReply *CallResult
		firstErr    error
		secondErr   error
	)

	firstSent := make(chan struct{})

	wg.Add(2)

	go func() {
		defer wg.Done()

		close(firstSent)

		firstReply, firstErr = session.CallTool(context.Background(), "search_registrations", map[string]any{"query": "first"})
	}()

	go func() {
		defer wg.Done()

		<-firstSent

		// Let the first request reach the fake before sending the second.
		time.Sleep(50 * time.Millisecond)

		secondReply, secondErr = session.CallTool(context.Background(), "search_registrations", map[string]any{"query": "second"})
	}()

	wg.Wait()

	require.NoError(t, firstErr)
	require.NoError(t, secondErr)
	require.Equal(t, "reply-first", firstReply.Text)
	require.Equal(t, "reply-second", secondReply.Text)
}

func TestSessionPerCallTimeoutLeavesSessionUsable(t *testing.T) {
	fake := newScriptedTransport(nil)
	fake.respond = func(req *wire.Request) ([][]byte, bool) {
		switch req.Method {
		case wire.MethodInitialize:
			return [][]byte{responseLine(t, *req.ID, initializeResult())}, false

		case wire.MethodListTools:
			// Swallow this one.
			return nil, false

		case wire.MethodCallTool:
			return [][]byte{responseLine(t, *req.ID, map[string]any{
				"content": []map[string]any{{"type": "text", "text": "still alive"}},
			})}, false

		default:
			return nil, false
		}
	}

	session := newTestSession(t, fake, 50*time.Millisecond)

	_, err := session.ListTools(context.Background())
	require.ErrorIs(t, err, errors.ErrRequestTimeout)

	var unavailable *errors.ServerUnavailableError
	require.ErrorAs(t, err, &unavailable)

	// The timeout poisoned only that call.
	reply, err := session.CallTool(context.Background(), "get_all_registrations", nil)
	require.NoError(t, err)
	require.Equal(t, "still alive", reply.Text)
}

func TestSessionCloseRejectsFurtherCalls(t *testing.T) {
	fake := newScriptedTransport(happyResponder(t, map[string]any{
		"content": []map[string]any{{"type": "text", "text": "ok"}},
	}))

	opts := config.NewOptions()
	opts.Transport = fake

	session, err := NewSession(context.Background(), slog.Default(), opts)
	require.NoError(t, err)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close(), "Close must be idempotent")

	_, err = session.CallTool(context.Background(), "get_all_registrations", nil)
	require.ErrorIs(t, err, errors.ErrSessionClosed)

	require.True(t, fake.tornDown())
}

func TestSessionServerDeathFailsInFlightCall(t *testing.T) {
	fake := newScriptedTransport(nil)
	fake.stderr = "fatal: ledger corrupted"
	fake.respond = func(req *wire.Request) ([][]byte, bool) {
		switch req.Method {
		case wire.MethodInitialize:
			return [][]byte{responseLine(t, *req.ID, initializeResult())}, false

		case wire.MethodCallTool:
			// Crash without replying.
			return nil, true

		default:
			return nil, false
		}
	}

	session := newTestSession(t, fake, 0)

	_, err := session.CallTool(context.Background(), "add_registration", map[string]any{"name": "x"})

	var unavailable *errors.ServerUnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Contains(t, unavailable.Stderr, "ledger corrupted")

	// The session is dead; later calls report the same failure.
	_, err = session.CallTool(context.Background(), "get_all_registrations", nil)
	require.ErrorAs(t, err, &unavailable)
}

func TestSessionPoisonLineFailsSession(t *testing.T) {
	fake := newScriptedTransport(nil)
	fake.respond = func(req *wire.Request) ([][]byte, bool) {
		switch req.Method {
		case wire.MethodInitialize:
			return [][]byte{responseLine(t, *req.ID, initializeResult())}, false

		case wire.MethodCallTool:
			return [][]byte{[]byte("Traceback (most recent call last):")}, false

		default:
			return nil, false
		}
	}

	session := newTestSession(t, fake, 0)

	_, err := session.CallTool(context.Background(), "get_all_registrations", nil)

	var violation *errors.ProtocolViolationError
	require.ErrorAs(t, err, &violation)
	require.Equal(t, "Traceback (most recent call last):", violation.RawLine)

	// A corrupted stream cannot be trusted again.
	_, err = session.ListTools(context.Background())
	require.ErrorAs(t, err, &violation)
}

func TestSessionLateReplyAfterTimeoutIsDropped(t *testing.T) {
	release := make(chan struct{})

	fake := newScriptedTransport(nil)
	fake.respond = func(req *wire.Request) ([][]byte, bool) {
		switch req.Method {
		case wire.MethodInitialize:
			return [][]byte{responseLine(t, *req.ID, initializeResult())}, false

		case wire.MethodListTools:
			// Deliver the reply from a goroutine once the test releases
			// it, after the caller has already timed out.
			line := responseLine(t, *req.ID, map[string]any{"tools": []map[string]any{}})
			lines := fake.lines

			go func() {
				<-release

				lines <- line
			}()

			return nil, false

		case wire.MethodInitialized:
			return nil, false

		default:
			return [][]byte{responseLine(t, *req.ID, map[string]any{
				"content": []map[string]any{{"type": "text", "text": "ok"}},
			})}, false
		}
	}

	session := newTestSession(t, fake, 50*time.Millisecond)

	_, err := session.ListTools(context.Background())
	require.ErrorIs(t, err, errors.ErrRequestTimeout)

	close(release)

	// The late reply must be dropped, not crash the reader, and the
	// session must keep serving calls.
	reply, err := session.CallTool(context.Background(), "get_all_registrations", nil)
	require.NoError(t, err)
	require.Equal(t, "ok", reply.Text)
}

func TestSessionInitializeRejected(t *testing.T) {
	fake := newScriptedTransport(func(req *wire.Request) ([][]byte, bool) {
		if req.Method == wire.MethodInitialize {
			return [][]byte{errorLine(t, *req.ID, wire.CodeInvalidRequest, "handshake refused")}, false
		}

		return nil, false
	})

	opts := config.NewOptions()
	opts.Transport = fake

	_, err := NewSession(context.Background(), slog.Default(), opts)

	var initFailed *errors.InitializeFailedError
	require.ErrorAs(t, err, &initFailed)
	require.Equal(t, "handshake refused", initFailed.Message)

	require.True(t, fake.tornDown(), "a failed handshake must tear the spawn down")
}
