// Package errors defines error types for the registration SDK.
//
// This package provides structured error types for the failure classes of
// the wire protocol: a server that never answers, a server that answers
// garbage, a rejected handshake, and an explicit error reply. All error
// types support unwrapping and can be checked using errors.Is and errors.As.
package errors
