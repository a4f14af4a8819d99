// Package protocol implements the JSON-RPC client side of the registration
// server's stdio wire.
//
// Two execution models are provided. The Caller is the default: every
// operation spawns a fresh server process, performs the initialize
// handshake, issues exactly one request, and tears the process down
// unconditionally. The Session is opt-in: one spawn and one handshake,
// then any number of calls multiplexed over a pending-request table with
// a reader goroutine routing responses by id.
//
// Both models enforce a deadline on every blocking read and classify
// failures into the typed errors of internal/errors: a server that dies
// or stays silent is ServerUnavailable, a line that is not a valid framed
// response is ProtocolViolation, a rejected handshake is InitializeFailed,
// and an error object on a healthy wire is CallFailed.
//
// Example usage:
//
//	caller := protocol.NewCaller(log, options)
//
//	reply, err := caller.CallTool(ctx, "add_registration", map[string]any{
//		"name":  "Ada Lovelace",
//		"email": "ada@example.com",
//		"dob":   "1815-12-10",
//	})
package protocol
