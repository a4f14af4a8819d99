// Package chat implements the multi-turn registration conversation.
//
// The Engine is a finite state machine over the steps start, name, email,
// dob and confirm. A set of state-independent commands (show
// registrations, statistics, search, register, help) pre-empts the step
// handlers on every turn; only register mutates the step. One user turn
// produces exactly one response, and every server interaction goes
// through the ToolCaller interface so front ends and tests can choose
// between one-shot calls, a long-lived session, or a fake.
//
// Success at the confirm step is decided from the tagged outcome attached
// to the tool result; the prose substring check survives only as a
// fallback for servers that send no structured payload. A failed add,
// whether a domain rejection or a transport error, leaves the collected
// fields intact so the user can retry or restart.
package chat
