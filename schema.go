package entrez

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JSONRPCVersion is the protocol version string carried by every envelope,
// per the JSON-RPC 2.0 specification.
const JSONRPCVersion = "2.0"

// ProtocolVersion is the MCP protocol revision this client speaks. It is sent
// in the initialize handshake and echoed on every request through the
// MCP-Protocol-Version header.
const ProtocolVersion = "2025-11-25"

const (
	methodInitialize = "initialize"
	methodToolsCall  = "tools/call"
)

const (
	headerSessionID       = "Mcp-Session-Id"
	headerProtocolVersion = "MCP-Protocol-Version"
)

// errorMarker is the prefix the server places on a text content block to
// signal an application-level failure inside a transport-successful response.
const errorMarker = "❌"

// JSONRPCMessage represents a JSON-RPC 2.0 message exchanged with the MCP server.
// It can represent either a request or a response depending on which fields are
// populated:
//   - Request: JSONRPC, ID, Method, and Params are set
//   - Response: JSONRPC, ID, and either Result or Error are set
type JSONRPCMessage struct {
	// JSONRPC must always be "2.0" per the JSON-RPC specification
	JSONRPC string `json:"jsonrpc"`
	// ID correlates request-response pairs. Requests derive it from the
	// current wall-clock time in milliseconds, so uniqueness is best-effort.
	ID int64 `json:"id,omitempty"`
	// Method contains the RPC method name for requests
	Method string `json:"method,omitempty"`
	// Params contains the parameters for the method call as a raw JSON message
	Params json.RawMessage `json:"params,omitempty"`
	// Result contains the successful response data as a raw JSON message
	Result json.RawMessage `json:"result,omitempty"`
	// Error contains error details if the request failed
	Error *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError represents an error response in the JSON-RPC 2.0 protocol.
// It follows the standard error object format defined in the JSON-RPC 2.0
// specification.
type JSONRPCError struct {
	// Code indicates the error type that occurred.
	Code int `json:"code,omitempty"`

	// Message provides a short description of the error.
	Message string `json:"message,omitempty"`

	// Data contains additional information about the error.
	// The value is unstructured and may be omitted.
	Data map[string]any `json:"data,omitempty"`
}

// Error returns the error message, falling back to the JSON serialization of
// the whole object when the server omitted a message.
func (e *JSONRPCError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	bs, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("jsonrpc error code %d", e.Code)
	}
	return string(bs)
}

// Info contains metadata identifying a client instance by name and version.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientCapabilities declares the capabilities this client advertises during
// the initialize handshake.
type ClientCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability represents tools-specific capabilities.
type ToolsCapability struct{}

// ContentType represents the type of a content block in a tool result.
type ContentType string

// Supported content block types.
const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeAudio ContentType = "audio"
)

// Content represents a single typed block in a tool result's content sequence.
type Content struct {
	Type ContentType `json:"type"`

	// For ContentTypeText
	Text string `json:"text,omitempty"`

	// For ContentTypeImage or ContentTypeAudio
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// ToolResult is the envelope the server wraps tool output in. Content carries
// human-oriented blocks, StructuredContent machine-oriented fields. Either or
// both may be absent.
type ToolResult struct {
	Content           []Content      `json:"content,omitempty"`
	StructuredContent map[string]any `json:"structuredContent,omitempty"`
}

// Result is a normalized tool result: the structuredContent object augmented
// with the original content sequence when both are present, or the raw result
// object otherwise.
type Result map[string]any

// callToolParams contains parameters for the tools/call method.
type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// initializeParams contains parameters for the initialize handshake.
type initializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Info               `json:"clientInfo"`
}

// hasErrorContent reports whether any text block in the sequence carries the
// application error marker.
func hasErrorContent(blocks []Content) bool {
	for _, block := range blocks {
		if block.Type == ContentTypeText && strings.HasPrefix(strings.TrimSpace(block.Text), errorMarker) {
			return true
		}
	}
	return false
}

// errorContentMessage extracts a human-readable failure message from a content
// sequence: the first marker-bearing text block wins, otherwise all text
// blocks are joined with single spaces, otherwise "Unknown error".
func errorContentMessage(blocks []Content) string {
	var texts []string
	for _, block := range blocks {
		if block.Type != ContentTypeText {
			continue
		}
		trimmed := strings.TrimSpace(block.Text)
		if strings.HasPrefix(trimmed, errorMarker) {
			return trimmed
		}
		if trimmed != "" {
			texts = append(texts, trimmed)
		}
	}
	if len(texts) > 0 {
		return strings.Join(texts, " ")
	}
	return "Unknown error"
}
