// Package subprocess provides the child-process transport for the
// registration server.
//
// This package implements the Transport interface by spawning the server
// command as a child process and exchanging newline-delimited frames over
// its stdin/stdout. It handles process lifecycle, line buffering, capped
// stderr capture for error reporting, and unconditional teardown.
package subprocess
