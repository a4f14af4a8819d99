package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/regbot/internal/config"
	"github.com/wagiedev/regbot/internal/errors"
	"github.com/wagiedev/regbot/internal/subprocess"
	"github.com/wagiedev/regbot/internal/wire"
)

// fallbackReplyText is returned when a tool result carries no text content.
const fallbackReplyText = "Operation completed successfully"

// One-shot request ids. Each spawn carries exactly two requests, so the
// ids are fixed: the handshake and the operation.
const (
	initializeID = 1
	operationID  = 2
)

// ClientIdentity is the clientInfo sent during the initialize handshake.
func ClientIdentity() wire.Identity {
	return wire.Identity{
		Name:    "registration-chatbot",
		Version: "1.0.0",
	}
}

// CallResult is the unwrapped product of one tools/call round trip.
//
// Text is the first content entry's text, or a generic completion message
// when the server sent no content. Outcome is the decoded structured
// payload when the server attached one, nil otherwise.
type CallResult struct {
	Text    string
	IsError bool
	Outcome *wire.Outcome
}

// Caller runs one-shot operations against the registration server.
//
// Every method spawns a fresh server process, performs the initialize
// handshake, issues exactly one request, and tears the process down on
// every exit path: stdin is closed, the process is killed and reaped.
// Callers never share server state beyond the ledger file itself.
type Caller struct {
	log     *slog.Logger
	rootLog *slog.Logger
	opts    *config.Options
}

// NewCaller creates a one-shot protocol client.
//
// The options are read on every call, so a Caller stays valid for the
// lifetime of the program. When opts.Transport is set it is reused for
// every call; this is intended for tests with scripted transports.
func NewCaller(log *slog.Logger, opts *config.Options) *Caller {
	return &Caller{
		log:     log.With("component", "protocol"),
		rootLog: log,
		opts:    opts,
	}
}

// CallTool runs one tools/call round trip and unwraps the result.
func (c *Caller) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	arguments, err := marshalArguments(args)
	if err != nil {
		return nil, err
	}

	raw, err := c.roundTrip(ctx, wire.MethodCallTool, wire.CallToolParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		return nil, err
	}

	return decodeToolReply(raw)
}

// ListTools fetches the server's tool catalog.
func (c *Caller) ListTools(ctx context.Context) ([]wire.ToolDescriptor, error) {
	raw, err := c.roundTrip(ctx, wire.MethodListTools, nil)
	if err != nil {
		return nil, err
	}

	var result wire.ListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &errors.ProtocolViolationError{
			RawLine: string(raw),
			Err:     fmt.Errorf("malformed tools/list result: %w", err),
		}
	}

	return result.Tools, nil
}

// ListResources fetches the server's resource catalog.
func (c *Caller) ListResources(ctx context.Context) ([]wire.ResourceDescriptor, error) {
	raw, err := c.roundTrip(ctx, wire.MethodListResources, nil)
	if err != nil {
		return nil, err
	}

	var result wire.ListResourcesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &errors.ProtocolViolationError{
			RawLine: string(raw),
			Err:     fmt.Errorf("malformed resources/list result: %w", err),
		}
	}

	return result.Resources, nil
}

// ReadResource reads one resource by URI.
func (c *Caller) ReadResource(ctx context.Context, uri string) (*wire.ReadResourceResult, error) {
	raw, err := c.roundTrip(ctx, wire.MethodReadResource, wire.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, err
	}

	var result wire.ReadResourceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &errors.ProtocolViolationError{
			RawLine: string(raw),
			Err:     fmt.Errorf("malformed resources/read result: %w", err),
		}
	}

	return &result, nil
}

// roundTrip executes the full one-shot state machine for a single request:
// spawn, initialize, await, notify, send, await, teardown.
func (c *Caller) roundTrip(ctx context.Context, method string, params any) (json.RawMessage, error) {
	log := c.log.With("call_id", ulid.Make().String(), "method", method)

	tr := c.transport()

	log.Debug("Spawning registration server")

	if err := tr.Start(ctx); err != nil {
		return nil, err
	}

	// Teardown is unconditional: every exit path below ends with stdin
	// closed and the process killed and reaped.
	defer func() {
		_ = tr.CloseStdin()
		_ = tr.Close()
	}()

	lines, errs := tr.ReadResponses(ctx)

	if err := c.initialize(ctx, tr, lines, errs); err != nil {
		log.Warn("Handshake failed", "error", err)

		return nil, err
	}

	if err := c.send(ctx, tr, wire.NewNotification(wire.MethodInitialized)); err != nil {
		return nil, err
	}

	req, err := wire.NewRequest(operationID, method, params)
	if err != nil {
		return nil, err
	}

	if err := c.send(ctx, tr, req); err != nil {
		return nil, err
	}

	resp, err := c.await(ctx, tr, lines, errs, operationID)
	if err != nil {
		log.Warn("Request failed", "error", err)

		return nil, err
	}

	if resp.Error != nil {
		log.Warn("Server returned error", "code", resp.Error.Code, "message", resp.Error.Message)

		return nil, &errors.CallFailedError{
			Method:  method,
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
		}
	}

	log.Debug("Round trip complete")

	return resp.Result, nil
}

// initialize performs the client half of the handshake.
func (c *Caller) initialize(
	ctx context.Context,
	tr config.Transport,
	lines <-chan []byte,
	errs <-chan error,
) error {
	req, err := wire.NewRequest(initializeID, wire.MethodInitialize, wire.InitializeParams{
		ProtocolVersion: wire.ProtocolVersion,
		Capabilities:    wire.ToolCapabilities(),
		ClientInfo:      ClientIdentity(),
	})
	if err != nil {
		return err
	}

	if err := c.send(ctx, tr, req); err != nil {
		return err
	}

	resp, err := c.await(ctx, tr, lines, errs, initializeID)
	if err != nil {
		return err
	}

	if resp.Error != nil {
		return &errors.InitializeFailedError{Message: resp.Error.Message}
	}

	return nil
}

// send marshals one request and writes it to the server's stdin.
func (c *Caller) send(ctx context.Context, tr config.Transport, req *wire.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", req.Method, err)
	}

	if err := tr.SendRequest(ctx, data); err != nil {
		return fmt.Errorf("send %s request: %w", req.Method, err)
	}

	return nil
}

// await blocks until the response with the wanted id arrives, the read
// deadline expires, or the server goes away.
//
// In one-shot mode the wire carries no concurrent requests, so a reply
// with any other id is a protocol violation rather than a routing case.
func (c *Caller) await(
	ctx context.Context,
	tr config.Transport,
	lines <-chan []byte,
	errs <-chan error,
	wantID int64,
) (*wire.Response, error) {
	timeout := c.opts.CallTimeout
	if timeout <= 0 {
		timeout = config.DefaultCallTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil, &errors.ServerUnavailableError{
					Stderr: tr.Stderr(),
					Err:    fmt.Errorf("server exited before replying to request %d", wantID),
				}
			}

			var resp wire.Response
			if err := json.Unmarshal(line, &resp); err != nil {
				return nil, &errors.ProtocolViolationError{
					RawLine: string(line),
					Err:     fmt.Errorf("invalid JSON response: %w", err),
				}
			}

			if resp.JSONRPC != wire.JSONRPCVersion || resp.ID == nil || *resp.ID != wantID {
				return nil, &errors.ProtocolViolationError{
					RawLine: string(line),
					Err:     fmt.Errorf("response does not match request %d", wantID),
				}
			}

			return &resp, nil

		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			if err != nil {
				return nil, &errors.ServerUnavailableError{Stderr: tr.Stderr(), Err: err}
			}

		case <-timer.C:
			return nil, &errors.ServerUnavailableError{
				Stderr: tr.Stderr(),
				Err:    fmt.Errorf("%w after %s", errors.ErrRequestTimeout, timeout),
			}

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// transport returns the injected transport when one is configured, or a
// fresh subprocess transport otherwise.
func (c *Caller) transport() config.Transport {
	if c.opts.Transport != nil {
		return c.opts.Transport
	}

	return subprocess.NewServerTransport(c.rootLog, c.opts)
}

// marshalArguments encodes tool arguments, substituting an empty object
// for nil so the params always carry an "arguments" member.
func marshalArguments(args map[string]any) (json.RawMessage, error) {
	if args == nil {
		args = map[string]any{}
	}

	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal tool arguments: %w", err)
	}

	return data, nil
}

// decodeToolReply unwraps a tools/call result member into the text the
// conversation layer renders, plus the tagged outcome when present. A
// malformed structured payload is treated as absent; the text fallback
// still applies.
func decodeToolReply(raw json.RawMessage) (*CallResult, error) {
	var result wire.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &errors.ProtocolViolationError{
			RawLine: string(raw),
			Err:     fmt.Errorf("malformed tools/call result: %w", err),
		}
	}

	reply := &CallResult{IsError: result.IsError}

	if text, ok := result.FirstText(); ok && text != "" {
		reply.Text = text
	} else {
		reply.Text = fallbackReplyText
	}

	if len(result.StructuredContent) > 0 {
		if outcome, err := wire.DecodeOutcome(result.StructuredContent); err == nil {
			reply.Outcome = outcome
		}
	}

	return reply, nil
}
