package entrez

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strings"
)

// Option is a function that configures a client.
type Option func(*Client)

// Client is an MCP tool-invocation client for the Entrez MCP server. It frames
// JSON-RPC requests, decodes plain-JSON or SSE-encoded responses, maintains
// the server-issued session id across calls, and normalizes tool results.
//
// A Client must be created using NewClient. The first tool call triggers the
// initialize handshake automatically; no explicit connect step is needed.
// Call Close when the client is no longer needed to release the underlying
// connections. A Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	info         Info
	capabilities ClientCapabilities

	sess session
}

// WithHTTPClient sets the HTTP client used for all requests. If not set, a
// dedicated default client is used.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClientInfo sets the client identity sent in the initialize handshake.
func WithClientInfo(info Info) Option {
	return func(c *Client) {
		c.info = info
	}
}

// NewClient creates a client for the Entrez MCP server at baseURL. A trailing
// slash on baseURL is ignored. Optional behaviors can be configured through
// Option functions.
func NewClient(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default(),
		info:    Info{Name: "go-entrez", Version: "1.0.0"},
		capabilities: ClientCapabilities{
			Tools: &ToolsCapability{},
		},
	}
	for _, opt := range options {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}

	return c
}

// CallTool invokes the named tool with the given arguments and returns the
// normalized result. Arguments whose value is nil are omitted from the
// payload; all other values, including false, zero, and the empty string, are
// preserved. The initialize handshake runs automatically before the first
// call on this client.
//
// The request can be cancelled via the context. Failures are never retried;
// the first failed step fails the whole call with an *Error tagged with the
// tool name.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (Result, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	params, err := json.Marshal(callToolParams{
		Name:      name,
		Arguments: pruneArgs(args),
	})
	if err != nil {
		return nil, &Error{Op: name, Kind: KindProtocol, Message: "failed to marshal arguments: " + err.Error(), Err: err}
	}

	return c.request(ctx, name, methodToolsCall, params)
}

// Close releases the connections held by the underlying HTTP client. The
// client must not be used after Close.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) ensureSession(ctx context.Context) error {
	return c.sess.ensure(func() error {
		return c.initialize(ctx)
	})
}

func (c *Client) initialize(ctx context.Context) error {
	params, err := json.Marshal(initializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    c.capabilities,
		ClientInfo:      c.info,
	})
	if err != nil {
		return &Error{Op: methodInitialize, Kind: KindProtocol, Message: "failed to marshal params: " + err.Error(), Err: err}
	}

	_, err = c.request(ctx, methodInitialize, methodInitialize, params)
	return err
}

// request performs one JSON-RPC round trip: frame, POST, observe the session
// header, decode, normalize. label tags any failure with the originating
// operation.
func (c *Client) request(ctx context.Context, label, method string, params json.RawMessage) (Result, error) {
	msg := newRequest(method, params)
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, &Error{Op: label, Kind: KindProtocol, Message: "failed to marshal request: " + err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Op: label, Kind: KindNetwork, Message: "Network error: " + err.Error(), Err: err}
	}
	c.sess.apply(req.Header)

	c.logger.Debug("sending request",
		slog.String("method", method),
		slog.String("label", label))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: label, Kind: KindNetwork, Message: "Network error: " + err.Error(), Err: err}
	}
	defer resp.Body.Close()

	c.sess.observe(resp.Header)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: label, Kind: KindNetwork, Message: "Network error: " + err.Error(), Err: err}
	}

	return normalize(label, resp.StatusCode, raw)
}

// normalize turns a raw HTTP response into a normalized tool result,
// short-circuiting to the first failure: transport status, body parse,
// JSON-RPC error field, then the application error marker, in that order.
func normalize(label string, status int, body []byte) (Result, error) {
	if status >= 400 {
		reason := strings.TrimSpace(string(body))
		if reason == "" {
			reason = http.StatusText(status)
		}
		return nil, &Error{
			Op:      label,
			Kind:    KindTransport,
			Status:  status,
			Message: fmt.Sprintf("HTTP %d: %s", status, reason),
		}
	}

	msg, err := decodeBody(body)
	if err != nil {
		return nil, &Error{Op: label, Kind: KindProtocol, Message: err.Error(), Err: err}
	}

	if msg.Error != nil {
		return nil, &Error{Op: label, Kind: KindProtocol, Message: "MCP Error: " + msg.Error.Error(), Err: msg.Error}
	}

	// An absent result is a success with an empty payload, not an error.
	if len(msg.Result) == 0 {
		return nil, nil
	}

	var payload Result
	if err := json.Unmarshal(msg.Result, &payload); err != nil {
		return nil, &Error{Op: label, Kind: KindProtocol, Message: "Invalid JSON response: " + err.Error(), Err: err}
	}
	if payload == nil {
		return nil, nil
	}

	// The marker check runs over typed content blocks; shapes that do not
	// decode as content blocks cannot carry the marker.
	var tr ToolResult
	if err := json.Unmarshal(msg.Result, &tr); err == nil && hasErrorContent(tr.Content) {
		return nil, &Error{Op: label, Kind: KindApplication, Message: errorContentMessage(tr.Content)}
	}

	return reshape(payload), nil
}

// reshape flattens a structuredContent/content envelope: when
// structuredContent is present the normalized value is a shallow copy of it,
// with the original content sequence attached under "content" (overwriting
// any inherited key). Otherwise the result passes through unchanged.
func reshape(payload Result) Result {
	sc, ok := payload["structuredContent"]
	if !ok {
		return payload
	}
	structured, ok := sc.(map[string]any)
	if !ok {
		return payload
	}

	normalized := make(Result, len(structured)+1)
	maps.Copy(normalized, structured)
	if content, ok := payload["content"]; ok {
		normalized["content"] = content
	}
	return normalized
}

// pruneArgs drops arguments whose value is nil so optional parameters are
// omitted rather than sent as null. False, zero, and empty-string values are
// kept.
func pruneArgs(args map[string]any) map[string]any {
	pruned := make(map[string]any, len(args))
	for k, v := range args {
		if v == nil {
			continue
		}
		pruned[k] = v
	}
	return pruned
}
