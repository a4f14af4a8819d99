package protocol

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/regbot/internal/config"
	"github.com/wagiedev/regbot/internal/errors"
	"github.com/wagiedev/regbot/internal/subprocess"
	"github.com/wagiedev/regbot/internal/wire"
)

// Session is a long-lived protocol connection: one spawn and one
// handshake, then any number of calls multiplexed over a pending-request
// table. A reader goroutine routes responses to waiting callers by id.
//
// Sessions are single-use. After Close, or after the server dies or
// corrupts the wire, every call fails and a new Session must be created.
type Session struct {
	log  *slog.Logger
	opts *config.Options

	transport config.Transport

	// lastID is the most recently assigned request id. Ids are assigned
	// with Add, so the first request carries id 1.
	lastID atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan *wire.Response

	group  *errgroup.Group
	cancel context.CancelFunc

	// closing marks a deliberate Close so the reader does not report the
	// resulting EOF as a server failure.
	closing atomic.Bool

	// done broadcasts that no more responses will ever arrive.
	done     chan struct{}
	doneOnce sync.Once

	fatalMu  sync.RWMutex
	fatalErr error
}

// NewSession spawns the registration server, performs the initialize
// handshake, and returns a connected session.
//
// The context bounds startup only; the session itself lives until Close.
// On handshake failure the spawned process is torn down before returning.
func NewSession(ctx context.Context, log *slog.Logger, opts *config.Options) (*Session, error) {
	s := &Session{
		log:     log.With("component", "session", "session_id", ulid.Make().String()),
		opts:    opts,
		pending: make(map[int64]chan *wire.Response, 8),
		done:    make(chan struct{}),
	}

	if opts.Transport != nil {
		s.transport = opts.Transport
	} else {
		s.transport = subprocess.NewServerTransport(log, opts)
	}

	s.log.Debug("Starting session")

	if err := s.transport.Start(ctx); err != nil {
		return nil, err
	}

	// The reader outlives the construction context.
	readCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	group, groupCtx := errgroup.WithContext(readCtx)
	s.group = group

	lines, errs := s.transport.ReadResponses(readCtx)

	group.Go(func() error {
		return s.readLoop(groupCtx, lines, errs)
	})

	if err := s.handshake(ctx); err != nil {
		_ = s.Close()

		return nil, err
	}

	s.log.Info("Session established")

	return s, nil
}

// CallTool runs one tools/call exchange over the session and unwraps the
// result.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	arguments, err := marshalArguments(args)
	if err != nil {
		return nil, err
	}

	raw, err := s.call(ctx, wire.MethodCallTool, wire.CallToolParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		return nil, err
	}

	return decodeToolReply(raw)
}

// ListTools fetches the server's tool catalog over the session.
func (s *Session) ListTools(ctx context.Context) ([]wire.ToolDescriptor, error) {
	raw, err := s.call(ctx, wire.MethodListTools, nil)
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

// ListResources fetches the server's resource catalog over the session.
func (s *Session) ListResources(ctx context.Context) ([]wire.ResourceDescriptor, error) {
	raw, err := s.call(ctx, wire.MethodListResources, nil)
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

// ReadResource reads one resource by URI over the session.
func (s *Session) ReadResource(ctx context.Context, uri string) (*wire.ReadResourceResult, error) {
	raw, err := s.call(ctx, wire.MethodReadResource, wire.ReadResourceParams{URI: uri})
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

// Close tears the session down: stdin is closed, the server process is
// killed and reaped, and the reader goroutine is joined. Close is
// idempotent and safe to call from any goroutine.
func (s *Session) Close() error {
	s.closing.Store(true)
	s.signalDone()

	if s.cancel != nil {
		s.cancel()
	}

	_ = s.transport.CloseStdin()
	_ = s.transport.Close()

	if s.group == nil {
		return nil
	}

	err := s.group.Wait()
	if err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// handshake sends initialize, awaits the reply, and follows up with the
// initialized notification.
func (s *Session) handshake(ctx context.Context) error {
	resp, err := s.exchange(ctx, wire.MethodInitialize, wire.InitializeParams{
		ProtocolVersion: wire.ProtocolVersion,
		Capabilities:    wire.ToolCapabilities(),
		ClientInfo:      ClientIdentity(),
	})
	if err != nil {
		return err
	}

	if resp.Error != nil {
		return &errors.InitializeFailedError{Message: resp.Error.Message}
	}

	notify := wire.NewNotification(wire.MethodInitialized)

	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal initialized notification: %w", err)
	}

	if err := s.transport.SendRequest(ctx, data); err != nil {
		return fmt.Errorf("send initialized notification: %w", err)
	}

	return nil
}

// call runs one request/response exchange and maps an error object on a
// healthy wire to CallFailed.
func (s *Session) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	resp, err := s.exchange(ctx, method, params)
	if err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, &errors.CallFailedError{
			Method:  method,
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
		}
	}

	return resp.Result, nil
}

// exchange assigns the next id, registers a pending slot, sends the
// request, and waits for the routed response under the per-call timeout.
func (s *Session) exchange(ctx context.Context, method string, params any) (*wire.Response, error) {
	select {
	case <-s.done:
		return nil, s.closedErr()
	default:
	}

	id := s.lastID.Add(1)

	req, err := wire.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	// Register before sending so a fast reply always finds its slot.
	respChan := make(chan *wire.Response, 1)

	s.pendingMu.Lock()
	s.pending[id] = respChan
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	s.log.Debug("Sending request", "id", id, "method", method)

	if err := s.transport.SendRequest(ctx, data); err != nil {
		return nil, fmt.Errorf("send %s request: %w", method, err)
	}

	timeout := s.opts.CallTimeout
	if timeout <= 0 {
		timeout = config.DefaultCallTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-respChan:
		return resp, nil

	case <-timer.C:
		s.log.Warn("Request timed out", "id", id, "method", method, "timeout", timeout)

		return nil, &errors.ServerUnavailableError{
			Stderr: s.transport.Stderr(),
			Err:    fmt.Errorf("%w after %s", errors.ErrRequestTimeout, timeout),
		}

	case <-s.done:
		return nil, s.closedErr()

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readLoop routes responses to pending callers until the server goes
// away or the session closes. It returns non-nil only for failures; a
// deliberate Close ends it cleanly.
func (s *Session) readLoop(ctx context.Context, lines <-chan []byte, errs <-chan error) error {
	defer s.signalDone()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				if s.closing.Load() {
					s.log.Debug("Reader stopped after close")

					return nil
				}

				err := &errors.ServerUnavailableError{
					Stderr: s.transport.Stderr(),
					Err:    stderrors.New("server exited"),
				}
				s.setFatalError(err)

				return err
			}

			if err := s.route(line); err != nil {
				s.setFatalError(err)

				return err
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			if err != nil {
				if s.closing.Load() {
					return nil
				}

				fatal := &errors.ServerUnavailableError{
					Stderr: s.transport.Stderr(),
					Err:    err,
				}
				s.setFatalError(fatal)

				return fatal
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// route delivers one response line to its pending caller.
//
// A line that does not parse as a framed response poisons the session:
// the NDJSON stream offset can no longer be trusted. A well-formed
// response with no waiting caller is dropped; it is usually the late
// reply to a call that already timed out.
func (s *Session) route(line []byte) error {
	var resp wire.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return &errors.ProtocolViolationError{
			RawLine: string(line),
			Err:     fmt.Errorf("invalid JSON response: %w", err),
		}
	}

	if resp.ID == nil {
		s.log.Warn("Discarding response without id")

		return nil
	}

	// Claim the pending slot under the lock, deliver outside it. The
	// channel is buffered, so the send cannot block once claimed.
	s.pendingMu.Lock()

	respChan, exists := s.pending[*resp.ID]
	if exists {
		delete(s.pending, *resp.ID)
	}

	s.pendingMu.Unlock()

	if !exists {
		s.log.Warn("No pending request for response", "id", *resp.ID)

		return nil
	}

	respChan <- &resp

	return nil
}

// closedErr reports why the session is unusable: the fatal wire error
// when one occurred, ErrSessionClosed after a deliberate Close.
func (s *Session) closedErr() error {
	if err := s.fatalError(); err != nil {
		return err
	}

	return errors.ErrSessionClosed
}

// setFatalError stores the first fatal error and wakes all waiters.
func (s *Session) setFatalError(err error) {
	s.fatalMu.Lock()

	if s.fatalErr == nil {
		s.fatalErr = err
	}

	s.fatalMu.Unlock()

	s.signalDone()
}

func (s *Session) fatalError() error {
	s.fatalMu.RLock()
	defer s.fatalMu.RUnlock()

	return s.fatalErr
}

func (s *Session) signalDone() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}
