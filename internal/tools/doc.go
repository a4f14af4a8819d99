// Package tools implements the five registration tools served over
// tools/call.
//
// Each tool binds the pure validators to the durable ledger and renders
// its result twice: as the prose text shown in chat clients, and as a
// tagged outcome in structuredContent so programmatic callers never have
// to pattern-match the prose. A tool result's isError flag is true
// exactly when the outcome status is not success.
package tools
