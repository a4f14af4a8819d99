// Package regbot provides a Go SDK for the registration tool server.
//
// The SDK spawns the registration server as a child process, speaks
// line-delimited JSON-RPC 2.0 over its stdin/stdout, and exposes the five
// registration tools plus the ledger resource through a small typed API.
// It supports both one-shot calls and long-lived sessions.
//
// # Basic Usage
//
// For simple, one-shot tool calls, use the Call function. Each call spawns
// a fresh server process, performs the handshake, runs the tool, and tears
// the process down:
//
//	ctx := context.Background()
//	result, err := regbot.Call(ctx, "add_registration", map[string]any{
//	    "name":  "Ada Lovelace",
//	    "email": "ada@example.com",
//	    "dob":   "1815-12-10",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Text)
//
// CallOutcome goes one step further and returns the machine-readable
// outcome attached to tool replies:
//
//	outcome, err := regbot.CallOutcome(ctx, "validate_registration_data", args)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if outcome.OK() {
//	    // fields are valid
//	}
//
// # Sessions
//
// When an application makes many calls, a Session keeps one server process
// alive and multiplexes calls over it, avoiding the per-call spawn cost:
//
//	session, err := regbot.NewSession(ctx,
//	    regbot.WithLedgerPath("registrations.csv"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	result, err := session.Call(ctx, "get_registration_statistics", nil)
//
// Sessions are single-use: after Close, create a new one with NewSession.
// The WithSession helper manages the lifecycle automatically:
//
//	err := regbot.WithSession(ctx, func(s regbot.Session) error {
//	    result, err := s.Call(ctx, "get_all_registrations", nil)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(result.Text)
//	    return nil
//	})
//
// # Logging
//
// By default, logging is disabled. Use WithLogger for detailed operation
// tracking:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	result, err := regbot.Call(ctx, "get_registration_statistics", nil,
//	    regbot.WithLogger(logger),
//	)
//
// # Error Handling
//
// The SDK reports failures through typed errors:
//
//	result, err := regbot.Call(ctx, tool, args)
//	if err != nil {
//	    var unavailable *regbot.ServerUnavailableError
//	    if errors.As(err, &unavailable) {
//	        log.Fatalf("server produced no reply: %s", unavailable.Stderr)
//	    }
//	    var failed *regbot.CallFailedError
//	    if errors.As(err, &failed) {
//	        log.Fatalf("server rejected %s: %s", failed.Method, failed.Message)
//	    }
//	    log.Fatal(err)
//	}
//
// ServerUnavailableError covers spawn failures, early exits, and timeouts.
// ProtocolViolationError covers malformed wire traffic. CallFailedError and
// InitializeFailedError carry JSON-RPC error objects returned by the server.
//
// # Requirements
//
// The SDK requires the regserver binary to be installed and available in
// PATH. Use WithServerCommand to point at a different binary or to pass
// extra arguments.
package regbot
