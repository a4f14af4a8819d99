package wire

import (
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the fixed "jsonrpc" field value on every message.
const JSONRPCVersion = "2.0"

// ProtocolVersion is the protocol revision exchanged during initialize.
const ProtocolVersion = "2024-11-05"

// Method names understood by the registration server.
const (
	MethodInitialize    = "initialize"
	MethodInitialized   = "notifications/initialized"
	MethodListTools     = "tools/list"
	MethodCallTool      = "tools/call"
	MethodListResources = "resources/list"
	MethodReadResource  = "resources/read"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is an outgoing request or notification. A nil ID marks a
// notification; the server never answers those.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a reply to exactly one request. ID is a pointer because a
// parse-error reply carries a null id.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the error member of a failed response.
type ResponseError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface so server-side handlers can return
// a *ResponseError directly.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewRequest builds a request with the given id, marshaling params in place.
// Pass nil params for methods that take none.
func NewRequest(id int64, method string, params any) (*Request, error) {
	req := &Request{
		JSONRPC: JSONRPCVersion,
		ID:      &id,
		Method:  method,
	}

	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s params: %w", method, err)
		}

		req.Params = data
	}

	return req, nil
}

// NewNotification builds an id-less request that expects no reply.
func NewNotification(method string) *Request {
	return &Request{
		JSONRPC: JSONRPCVersion,
		Method:  method,
	}
}

// Identity names one side of the connection during initialize.
type Identity struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is the client half of the handshake.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      Identity       `json:"clientInfo"`
}

// InitializeResult is the server half of the handshake.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      Identity       `json:"serverInfo"`
}

// ToolCapabilities is the capability set declared by both sides.
func ToolCapabilities() map[string]any {
	return map[string]any{
		"tools": map[string]any{},
	}
}

// CallToolParams names the tool to run and carries its arguments verbatim.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Content is one entry in a tool result's content list. Only text content
// crosses this wire.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the result member of a tools/call response.
type CallToolResult struct {
	Content           []Content       `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
}

// FirstText returns the text of the first content entry, or ok=false when
// the content list is absent or empty.
func (r *CallToolResult) FirstText() (string, bool) {
	if r == nil || len(r.Content) == 0 {
		return "", false
	}

	return r.Content[0].Text, true
}

// ToolDescriptor is one catalog entry in a tools/list result.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the result member of a tools/list response.
type ListToolsResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// ResourceDescriptor is one catalog entry in a resources/list result.
type ResourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ListResourcesResult is the result member of a resources/list response.
type ListResourcesResult struct {
	Resources []ResourceDescriptor `json:"resources"`
}

// ReadResourceParams addresses one resource by URI.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ResourceContents is one entry in a resources/read result.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

// ReadResourceResult is the result member of a resources/read response.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}
