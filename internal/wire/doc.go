// Package wire defines the framed JSON-RPC message format spoken between
// the registration client and the registration server.
//
// Every message is a single JSON value on its own line, UTF-8, newline
// terminated. Requests carry client-assigned integer ids; notifications
// carry no id and receive no reply. The package also defines the tagged
// Outcome payload that tools attach to results as structuredContent so
// that callers never have to pattern-match prose.
package wire
