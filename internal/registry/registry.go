// Package registry holds the named tool catalog served over tools/list
// and dispatched by tools/call.
//
// Tools are described with the official MCP SDK types and registered in
// a fixed catalog order. Dispatch is by name; an unknown name produces a
// method-not-found protocol error whose message enumerates the catalog,
// so callers can discover the available tools from the error itself.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/regbot/internal/wire"
)

// Registry is a thread-safe, ordered collection of tools.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]*entry
}

// entry holds tool metadata and handler for the registry.
type entry struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		tools: make(map[string]*entry, 8),
	}
}

// Register adds a tool to the catalog. Catalog order is registration
// order; registering the same name twice replaces the handler without
// changing its position.
func (r *Registry) Register(tool *mcp.Tool, handler mcp.ToolHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; !exists {
		r.order = append(r.order, tool.Name)
	}

	r.tools[tool.Name] = &entry{
		tool:    tool,
		handler: handler,
	}
}

// Names returns the tool names in catalog order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)

	return names
}

// Descriptors returns the tools/list catalog in registration order.
func (r *Registry) Descriptors() ([]wire.ToolDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]wire.ToolDescriptor, 0, len(r.order))

	for _, name := range r.order {
		t := r.tools[name].tool

		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s input schema: %w", name, err)
		}

		descriptors = append(descriptors, wire.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}

	return descriptors, nil
}

// Dispatch runs the named tool and converts its result to the wire form.
// An unknown name returns a *wire.ResponseError with code -32601 whose
// message lists the catalog; any other non-nil error is internal.
func (r *Registry) Dispatch(ctx context.Context, params wire.CallToolParams) (*wire.CallToolResult, error) {
	r.mu.RLock()
	t, exists := r.tools[params.Name]
	r.mu.RUnlock()

	if !exists {
		return nil, &wire.ResponseError{
			Code:    wire.CodeMethodNotFound,
			Message: r.unknownToolMessage(params.Name),
		}
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      params.Name,
			Arguments: params.Arguments,
		},
	}

	result, err := t.handler(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("tool %s failed: %w", params.Name, err)
	}

	return toWireResult(result)
}

// unknownToolMessage builds the discoverability text for a bad tool name.
func (r *Registry) unknownToolMessage(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder

	fmt.Fprintf(&b, "ERROR: Unknown tool: %s\n\nAvailable tools:\n", name)

	for i, known := range r.order {
		if i > 0 {
			b.WriteString("\n")
		}

		b.WriteString("• " + known)
	}

	return b.String()
}

// toWireResult converts an MCP tool result to the wire form. Only text
// content crosses the wire; other content kinds are dropped.
func toWireResult(result *mcp.CallToolResult) (*wire.CallToolResult, error) {
	out := &wire.CallToolResult{
		Content: []wire.Content{},
	}

	if result == nil {
		return out, nil
	}

	for _, c := range result.Content {
		if text, ok := c.(*mcp.TextContent); ok {
			out.Content = append(out.Content, wire.Content{Type: "text", Text: text.Text})
		}
	}

	out.IsError = result.IsError

	if result.StructuredContent != nil {
		raw, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal structured content: %w", err)
		}

		out.StructuredContent = raw
	}

	return out, nil
}

// OutcomeResult builds a tool result carrying both the prose text and the
// tagged outcome as structuredContent. IsError mirrors the outcome status.
func OutcomeResult(text string, outcome *wire.Outcome) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		StructuredContent: outcome,
		IsError:           !outcome.OK(),
	}
}

// ParseArguments unmarshals CallToolRequest arguments into a map. Absent
// arguments decode to an empty map.
func ParseArguments(req *mcp.CallToolRequest) (map[string]any, error) {
	if req == nil || req.Params == nil {
		return make(map[string]any), nil
	}

	if len(req.Params.Arguments) == 0 {
		return make(map[string]any), nil
	}

	var args map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	return args, nil
}

// StringArg extracts a string argument, tolerating absence.
func StringArg(args map[string]any, key string) string {
	value, _ := args[key].(string)

	return value
}
