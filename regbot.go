package regbot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wagiedev/regbot/internal/config"
	"github.com/wagiedev/regbot/internal/errors"
	"github.com/wagiedev/regbot/internal/protocol"
	"github.com/wagiedev/regbot/internal/store"
	"github.com/wagiedev/regbot/internal/tools"
	"github.com/wagiedev/regbot/internal/wire"
)

// Tool names accepted by Call and Session.Call, in catalog order.
const (
	ToolAddRegistration  = tools.NameAddRegistration
	ToolAllRegistrations = tools.NameGetAllRegistration
	ToolSearch           = tools.NameSearchRegistration
	ToolStatistics       = tools.NameGetStatistics
	ToolValidate         = tools.NameValidateData
)

// Outcome status values reported in CallResult.Outcome.
const (
	StatusSuccess          = wire.StatusSuccess
	StatusValidationFailed = wire.StatusValidationFailed
	StatusDuplicateEmail   = wire.StatusDuplicateEmail
	StatusInvalidArgument  = wire.StatusInvalidArgument
	StatusIOError          = wire.StatusIOError
)

// Re-export result and catalog types from internal packages.

// CallResult is the unwrapped reply to a tool call: the human-readable
// text, the server's error flag, and the machine-readable outcome when
// the server attached one.
type CallResult = protocol.CallResult

// Outcome is the structured verdict attached to tool replies.
type Outcome = wire.Outcome

// Record is one registration as reported in outcomes.
type Record = wire.Record

// StatsSummary is the aggregate view reported by the statistics tool.
type StatsSummary = wire.StatsSummary

// ToolDescriptor is one entry in the server's tool catalog.
type ToolDescriptor = wire.ToolDescriptor

// ResourceDescriptor is one entry in the server's resource catalog.
type ResourceDescriptor = wire.ResourceDescriptor

// ResourceContents is one entry in a resource read.
type ResourceContents = wire.ResourceContents

// ReadResourceResult is the full reply to a resource read.
type ReadResourceResult = wire.ReadResourceResult

// Call runs one registration tool against a fresh server process.
//
// Each invocation spawns the server, performs the protocol handshake,
// issues the call, and tears the process down, so no state is shared
// between calls beyond the ledger file itself. Use a Session when the
// per-call spawn cost matters.
//
// By default, logging is disabled. Use WithLogger to enable logging:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
//	result, err := regbot.Call(ctx, regbot.ToolStatistics, nil,
//	    regbot.WithLogger(logger),
//	)
//
// The returned CallResult always carries display text; Outcome is set
// when the server attached a structured verdict.
func Call(ctx context.Context, tool string, args map[string]any, opts ...Option) (*CallResult, error) {
	options := applyOptions(opts)

	return protocol.NewCaller(loggerFrom(options), options).CallTool(ctx, tool, args)
}

// CallOutcome runs one tool and returns only its structured outcome.
//
// The registration server attaches an outcome to every tool reply, so a
// reply without one is reported as a ProtocolViolationError.
func CallOutcome(ctx context.Context, tool string, args map[string]any, opts ...Option) (*Outcome, error) {
	result, err := Call(ctx, tool, args, opts...)
	if err != nil {
		return nil, err
	}

	if result.Outcome == nil {
		return nil, &errors.ProtocolViolationError{
			Err: fmt.Errorf("reply to %s carried no structured outcome", tool),
		}
	}

	return result.Outcome, nil
}

// ListTools fetches the server's tool catalog: the five registration
// tools with their descriptions and input schemas, in catalog order.
func ListTools(ctx context.Context, opts ...Option) ([]ToolDescriptor, error) {
	options := applyOptions(opts)

	return protocol.NewCaller(loggerFrom(options), options).ListTools(ctx)
}

// ListResources fetches the server's resource catalog. The registration
// server publishes exactly one resource, the CSV ledger.
func ListResources(ctx context.Context, opts ...Option) ([]ResourceDescriptor, error) {
	options := applyOptions(opts)

	return protocol.NewCaller(loggerFrom(options), options).ListResources(ctx)
}

// ReadLedger fetches the raw CSV ledger text through the server's
// resource interface. The resource URI is derived from WithLedgerPath,
// falling back to the server's default ledger location.
//
// When the ledger file does not exist yet, the server replies with a
// placeholder line rather than an error; ReadLedger returns that text
// as-is.
func ReadLedger(ctx context.Context, opts ...Option) (string, error) {
	options := applyOptions(opts)

	result, err := protocol.NewCaller(loggerFrom(options), options).ReadResource(ctx, LedgerURI(options.LedgerPath))
	if err != nil {
		return "", err
	}

	if len(result.Contents) == 0 {
		return "", &errors.ProtocolViolationError{
			Err: fmt.Errorf("resource read returned no contents"),
		}
	}

	return result.Contents[0].Text, nil
}

// LedgerURI returns the resource URI the server publishes for the ledger
// at path. An empty path selects the server's default ledger location.
func LedgerURI(path string) string {
	if path == "" {
		path = store.DefaultPath
	}

	return "file://" + path
}

// loggerFrom returns the configured logger or the silent fallback.
func loggerFrom(options *config.Options) *slog.Logger {
	if options.Logger != nil {
		return options.Logger
	}

	return NopLogger()
}
