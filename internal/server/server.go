// Package server implements the registration server's stdio loop.
//
// The server reads newline-delimited JSON-RPC 2.0 requests from one
// reader and writes exactly one response line per request to one writer.
// Notifications are never answered. A single dispatcher goroutine handles
// requests in arrival order, so response order always matches request
// order. stdout is reserved for protocol frames; all logging goes through
// the injected slog handler, which the binary points at stderr.
package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/regbot/internal/registry"
	"github.com/wagiedev/regbot/internal/store"
	"github.com/wagiedev/regbot/internal/tools"
	"github.com/wagiedev/regbot/internal/wire"
)

// serverName identifies this server during the initialize handshake.
const serverName = "registration-server"

const (
	// maxLineBytes caps a single request line.
	maxLineBytes = 1024 * 1024

	// initialBufferSize is the scanner's starting allocation.
	initialBufferSize = 64 * 1024
)

// Options configure a Server.
type Options struct {
	// LedgerPath locates the registration CSV. Empty selects the
	// store default.
	LedgerPath string

	// Version is reported as the server identity version. Empty
	// defaults to "dev".
	Version string

	// Logger receives structured logs. Nil discards them.
	Logger *slog.Logger
}

// Server dispatches initialize, tools and resources requests against one
// ledger.
type Server struct {
	ledger  *store.Ledger
	reg     *registry.Registry
	log     *slog.Logger
	version string
}

// New assembles a server: ledger, validators, and the five-tool registry.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	ledger := store.New(opts.LedgerPath)

	reg := registry.New()
	tools.NewSet(ledger, log).Register(reg)

	return &Server{
		ledger:  ledger,
		reg:     reg,
		log:     log.With("component", "server"),
		version: version,
	}
}

// Run creates the ledger file if needed, then serves until r reaches EOF
// or the context is canceled. A clean EOF returns nil.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	if err := s.ledger.EnsureInitialized(); err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}

	s.log.Info("server ready",
		"ledger", s.ledger.Path(),
		"version", s.version,
		"protocolVersion", wire.ProtocolVersion)

	lines := make(chan []byte)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, initialBufferSize), maxLineBytes)

		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())

			select {
			case lines <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read request line: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		for line := range lines {
			s.handleLine(ctx, line, w)
		}

		return nil
	})

	err := g.Wait()
	if err == nil {
		s.log.Info("stdin closed, shutting down")
	}

	return err
}

// handleLine decodes one frame and writes at most one response line.
func (s *Server) handleLine(ctx context.Context, line []byte, w io.Writer) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}

	var req wire.Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.log.Warn("unparseable request line", "error", err)
		s.writeError(w, nil, &wire.ResponseError{
			Code:    wire.CodeParseError,
			Message: fmt.Sprintf("Parse error: %v", err),
		})

		return
	}

	if req.ID == nil {
		s.log.Debug("notification", "method", req.Method)

		return
	}

	result, respErr := s.dispatch(ctx, &req)
	if respErr != nil {
		s.log.Warn("request failed",
			"method", req.Method,
			"id", *req.ID,
			"code", respErr.Code)
		s.writeError(w, req.ID, respErr)

		return
	}

	s.writeResult(w, req.ID, result)
}

// dispatch routes one request by method. Dispatch is stateless: requests
// arriving before initialize are served like any other.
func (s *Server) dispatch(ctx context.Context, req *wire.Request) (any, *wire.ResponseError) {
	s.log.Debug("request", "method", req.Method, "id", *req.ID)

	switch req.Method {
	case wire.MethodInitialize:
		return s.handleInitialize(req)
	case wire.MethodListTools:
		return s.handleListTools()
	case wire.MethodCallTool:
		return s.handleCallTool(ctx, req)
	case wire.MethodListResources:
		return s.handleListResources()
	case wire.MethodReadResource:
		return s.handleReadResource(req)
	default:
		return nil, &wire.ResponseError{
			Code:    wire.CodeMethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}
}

func (s *Server) handleInitialize(req *wire.Request) (any, *wire.ResponseError) {
	var params wire.InitializeParams

	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &wire.ResponseError{
				Code:    wire.CodeInvalidParams,
				Message: fmt.Sprintf("Invalid params: %v", err),
			}
		}
	}

	s.log.Info("initialize",
		"client", params.ClientInfo.Name,
		"clientVersion", params.ClientInfo.Version,
		"protocolVersion", params.ProtocolVersion)

	return wire.InitializeResult{
		ProtocolVersion: wire.ProtocolVersion,
		Capabilities:    wire.ToolCapabilities(),
		ServerInfo:      wire.Identity{Name: serverName, Version: s.version},
	}, nil
}

func (s *Server) handleListTools() (any, *wire.ResponseError) {
	descriptors, err := s.reg.Descriptors()
	if err != nil {
		return nil, &wire.ResponseError{
			Code:    wire.CodeInternalError,
			Message: err.Error(),
		}
	}

	return wire.ListToolsResult{Tools: descriptors}, nil
}

func (s *Server) handleCallTool(ctx context.Context, req *wire.Request) (any, *wire.ResponseError) {
	var params wire.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, &wire.ResponseError{
			Code:    wire.CodeInvalidParams,
			Message: fmt.Sprintf("Invalid params: %v", err),
		}
	}

	started := time.Now()

	result, err := s.reg.Dispatch(ctx, params)
	if err != nil {
		var respErr *wire.ResponseError
		if errors.As(err, &respErr) {
			return nil, respErr
		}

		return nil, &wire.ResponseError{
			Code:    wire.CodeInternalError,
			Message: err.Error(),
		}
	}

	s.log.Info("tool call",
		"tool", params.Name,
		"duration", time.Since(started),
		"isError", result.IsError)

	return result, nil
}

func (s *Server) handleListResources() (any, *wire.ResponseError) {
	return wire.ListResourcesResult{
		Resources: []wire.ResourceDescriptor{
			{
				URI:         "file://" + s.ledger.Path(),
				Name:        "User Registrations",
				Description: "CSV file containing all user registrations",
				MimeType:    "text/csv",
			},
		},
	}, nil
}

func (s *Server) handleReadResource(req *wire.Request) (any, *wire.ResponseError) {
	var params wire.ReadResourceParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, &wire.ResponseError{
			Code:    wire.CodeInvalidParams,
			Message: fmt.Sprintf("Invalid params: %v", err),
		}
	}

	if params.URI != "file://"+s.ledger.Path() {
		return nil, &wire.ResponseError{
			Code:    wire.CodeInvalidParams,
			Message: fmt.Sprintf("Unknown resource: %s", params.URI),
		}
	}

	data, exists, err := s.ledger.Raw()
	if err != nil {
		return nil, &wire.ResponseError{
			Code:    wire.CodeInternalError,
			Message: err.Error(),
		}
	}

	text := string(data)
	if !exists {
		text = "CSV file doesn't exist yet. No registrations found."
	}

	return wire.ReadResourceResult{
		Contents: []wire.ResourceContents{
			{URI: params.URI, MimeType: "text/csv", Text: text},
		},
	}, nil
}

func (s *Server) writeResult(w io.Writer, id *int64, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		s.log.Error("failed to marshal result", "error", err)
		s.writeError(w, id, &wire.ResponseError{
			Code:    wire.CodeInternalError,
			Message: fmt.Sprintf("failed to marshal result: %v", err),
		})

		return
	}

	s.writeLine(w, &wire.Response{JSONRPC: wire.JSONRPCVersion, ID: id, Result: raw})
}

func (s *Server) writeError(w io.Writer, id *int64, respErr *wire.ResponseError) {
	s.writeLine(w, &wire.Response{JSONRPC: wire.JSONRPCVersion, ID: id, Error: respErr})
}

func (s *Server) writeLine(w io.Writer, resp *wire.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("failed to marshal response", "error", err)

		return
	}

	data = append(data, '\n')

	if _, err := w.Write(data); err != nil {
		s.log.Error("failed to write response", "error", err)
	}
}
