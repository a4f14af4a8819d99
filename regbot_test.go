package regbot

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/regbot/internal/wire"
)

// stubTransport plays a well-behaved registration server for public API
// tests: the handshake is accepted and every method is answered from a
// canned result table. Methods listed in silent are swallowed without a
// reply, which lets tests provoke timeouts.
type stubTransport struct {
	mu           sync.Mutex
	started      bool
	stdinClosed  bool
	closed       bool
	streamClosed bool

	lines chan []byte
	errs  chan error

	results map[string]any
	errors  map[string]*wire.ResponseError
	silent  map[string]bool

	requests []*wire.Request
}

var _ Transport = (*stubTransport)(nil)

func newStubTransport() *stubTransport {
	return &stubTransport{
		results: map[string]any{
			wire.MethodInitialize: map[string]any{
				"protocolVersion": wire.ProtocolVersion,
				"capabilities":    wire.ToolCapabilities(),
				"serverInfo":      map[string]any{"name": "registration-server", "version": "1.0.0"},
			},
		},
		errors: make(map[string]*wire.ResponseError),
		silent: make(map[string]bool),
	}
}

func (f *stubTransport) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.started = true
	f.stdinClosed = false
	f.closed = false
	f.streamClosed = false
	f.lines = make(chan []byte, 16)
	f.errs = make(chan error, 1)

	return nil
}

func (f *stubTransport) ReadResponses(_ context.Context) (<-chan []byte, <-chan error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lines, f.errs
}

func (f *stubTransport) SendRequest(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var req wire.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	f.requests = append(f.requests, &req)

	if req.ID == nil || f.silent[req.Method] {
		return nil
	}

	reply := map[string]any{"jsonrpc": wire.JSONRPCVersion, "id": *req.ID}

	if respErr, ok := f.errors[req.Method]; ok {
		reply["error"] = map[string]any{"code": respErr.Code, "message": respErr.Message}
	} else if result, ok := f.results[req.Method]; ok {
		reply["result"] = result
	} else {
		reply["error"] = map[string]any{"code": wire.CodeMethodNotFound, "message": "Method not found: " + req.Method}
	}

	line, err := json.Marshal(reply)
	if err != nil {
		return err
	}

	f.lines <- line

	return nil
}

func (f *stubTransport) Stderr() string { return "" }

func (f *stubTransport) CloseStdin() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stdinClosed = true

	return nil
}

func (f *stubTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.stdinClosed = true

	if f.lines != nil && !f.streamClosed {
		close(f.lines)

		f.streamClosed = true
	}

	return nil
}

func (f *stubTransport) IsReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.started && !f.stdinClosed && !f.closed
}

func (f *stubTransport) tornDown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed && f.stdinClosed
}

func (f *stubTransport) countMethod(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0

	for _, req := range f.requests {
		if req.Method == method {
			count++
		}
	}

	return count
}

func (f *stubTransport) lastRequest(method string) *wire.Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Method == method {
			return f.requests[i]
		}
	}

	return nil
}

func toolReply(text string, outcome map[string]any, isError bool) map[string]any {
	reply := map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
		"isError": isError,
	}

	if outcome != nil {
		reply["structuredContent"] = outcome
	}

	return reply
}

func TestCallRunsOneShot(t *testing.T) {
	fake := newStubTransport()
	fake.results[wire.MethodCallTool] = toolReply(
		"SUCCESS: Successfully registered Ada Lovelace",
		map[string]any{"status": "success"},
		false,
	)

	result, err := Call(context.Background(), ToolAddRegistration, map[string]any{
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
		"dob":   "1815-12-10",
	}, WithTransport(fake))
	require.NoError(t, err)

	require.Equal(t, "SUCCESS: Successfully registered Ada Lovelace", result.Text)
	require.False(t, result.IsError)
	require.NotNil(t, result.Outcome)
	require.Equal(t, StatusSuccess, result.Outcome.Status)

	require.Equal(t, 1, fake.countMethod(wire.MethodInitialize))
	require.Equal(t, 1, fake.countMethod(wire.MethodInitialized))
	require.True(t, fake.tornDown(), "one-shot calls must tear the server down")
}

func TestCallOutcome(t *testing.T) {
	fake := newStubTransport()
	fake.results[wire.MethodCallTool] = toolReply(
		"ERROR: Registration failed: Email already registered",
		map[string]any{"status": "duplicate_email"},
		true,
	)

	outcome, err := CallOutcome(context.Background(), ToolAddRegistration, map[string]any{
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
		"dob":   "1815-12-10",
	}, WithTransport(fake))
	require.NoError(t, err)

	require.Equal(t, StatusDuplicateEmail, outcome.Status)
	require.False(t, outcome.OK())
}

func TestCallOutcomeMissingIsViolation(t *testing.T) {
	fake := newStubTransport()
	fake.results[wire.MethodCallTool] = toolReply("plain text only", nil, false)

	_, err := CallOutcome(context.Background(), ToolStatistics, nil, WithTransport(fake))

	var violation *ProtocolViolationError

	require.ErrorAs(t, err, &violation)
}

func TestListTools(t *testing.T) {
	fake := newStubTransport()
	fake.results[wire.MethodListTools] = map[string]any{
		"tools": []map[string]any{
			{"name": "add_registration", "description": "Add a new user registration", "inputSchema": map[string]any{"type": "object"}},
			{"name": "get_all_registrations", "description": "Get all registrations", "inputSchema": map[string]any{"type": "object"}},
		},
	}

	catalog, err := ListTools(context.Background(), WithTransport(fake))
	require.NoError(t, err)

	require.Len(t, catalog, 2)
	require.Equal(t, ToolAddRegistration, catalog[0].Name)
	require.Equal(t, ToolAllRegistrations, catalog[1].Name)
	require.True(t, fake.tornDown())
}

func TestListResources(t *testing.T) {
	fake := newStubTransport()
	fake.results[wire.MethodListResources] = map[string]any{
		"resources": []map[string]any{
			{
				"uri":         "file://user_registrations.csv",
				"name":        "User Registrations",
				"description": "CSV file containing all user registrations",
				"mimeType":    "text/csv",
			},
		},
	}

	resources, err := ListResources(context.Background(), WithTransport(fake))
	require.NoError(t, err)

	require.Len(t, resources, 1)
	require.Equal(t, "file://user_registrations.csv", resources[0].URI)
	require.Equal(t, "text/csv", resources[0].MimeType)
}

func TestReadLedger(t *testing.T) {
	csv := "Name,Email,Date_of_Birth,Registration_Date\nAda Lovelace,ada@example.com,1815-12-10,2026-08-25 10:00:00\n"

	fake := newStubTransport()
	fake.results[wire.MethodReadResource] = map[string]any{
		"contents": []map[string]any{
			{"uri": "file://custom.csv", "mimeType": "text/csv", "text": csv},
		},
	}

	text, err := ReadLedger(context.Background(),
		WithTransport(fake),
		WithLedgerPath("custom.csv"),
	)
	require.NoError(t, err)
	require.Equal(t, csv, text)

	// The request addressed the configured ledger, not the default.
	read := fake.lastRequest(wire.MethodReadResource)
	require.NotNil(t, read)

	var params wire.ReadResourceParams

	require.NoError(t, json.Unmarshal(read.Params, &params))
	require.Equal(t, "file://custom.csv", params.URI)
}

func TestReadLedgerDefaultURI(t *testing.T) {
	fake := newStubTransport()
	fake.results[wire.MethodReadResource] = map[string]any{
		"contents": []map[string]any{
			{"uri": "file://user_registrations.csv", "mimeType": "text/csv", "text": "CSV file doesn't exist yet. No registrations found."},
		},
	}

	text, err := ReadLedger(context.Background(), WithTransport(fake))
	require.NoError(t, err)
	require.Equal(t, "CSV file doesn't exist yet. No registrations found.", text)

	read := fake.lastRequest(wire.MethodReadResource)
	require.NotNil(t, read)

	var params wire.ReadResourceParams

	require.NoError(t, json.Unmarshal(read.Params, &params))
	require.Equal(t, "file://user_registrations.csv", params.URI)
}

func TestLedgerURI(t *testing.T) {
	require.Equal(t, "file://user_registrations.csv", LedgerURI(""))
	require.Equal(t, "file:///var/data/regs.csv", LedgerURI("/var/data/regs.csv"))
}

func TestCallTimeoutReportsServerUnavailable(t *testing.T) {
	fake := newStubTransport()
	fake.silent[wire.MethodCallTool] = true

	start := time.Now()

	_, err := Call(context.Background(), ToolStatistics, nil,
		WithTransport(fake),
		WithCallTimeout(50*time.Millisecond),
	)
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)

	var unavailable *ServerUnavailableError

	require.ErrorAs(t, err, &unavailable)
	require.ErrorIs(t, err, ErrRequestTimeout)
	require.True(t, fake.tornDown(), "timeout must still tear the server down")
}

func TestCallRejectedByServer(t *testing.T) {
	fake := newStubTransport()
	fake.errors[wire.MethodCallTool] = &wire.ResponseError{
		Code:    wire.CodeMethodNotFound,
		Message: "ERROR: Unknown tool: bogus",
	}

	_, err := Call(context.Background(), "bogus", nil, WithTransport(fake))

	var failed *CallFailedError

	require.ErrorAs(t, err, &failed)
	require.Equal(t, wire.CodeMethodNotFound, failed.Code)
	require.Contains(t, failed.Message, "Unknown tool")
}
