package entrez_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
	"golang.org/x/sync/errgroup"

	"github.com/entrezmcp/go-entrez"
)

// recordedCall captures one JSON-RPC request the test server received,
// together with the headers that matter to the session protocol.
type recordedCall struct {
	method  string
	session string
	proto   string
	accept  string
	params  map[string]any
}

func (c recordedCall) tool() string {
	name, _ := c.params["name"].(string)
	return name
}

func (c recordedCall) args() map[string]any {
	args, _ := c.params["arguments"].(map[string]any)
	return args
}

// testServer is a minimal Entrez MCP endpoint: it answers the initialize
// handshake with a session id and delegates tools/call responses to the
// configurable respond func.
type testServer struct {
	t         *testing.T
	srv       *httptest.Server
	sessionID string

	initDelay    time.Duration
	initFailures int

	respond func(w http.ResponseWriter, r *http.Request, call recordedCall)

	mu    sync.Mutex
	calls []recordedCall
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{t: t, sessionID: uuid.NewString()}
	ts.srv = httptest.NewServer(http.HandlerFunc(ts.handle))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) client() *entrez.Client {
	c := entrez.NewClient(ts.srv.URL, entrez.WithHTTPClient(ts.srv.Client()))
	ts.t.Cleanup(c.Close)
	return c
}

func (ts *testServer) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		ts.t.Errorf("failed to read request body: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var msg struct {
		Method string         `json:"method"`
		Params map[string]any `json:"params"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		ts.t.Errorf("failed to decode request body %s: %v", body, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	call := recordedCall{
		method:  msg.Method,
		session: r.Header.Get("Mcp-Session-Id"),
		proto:   r.Header.Get("MCP-Protocol-Version"),
		accept:  r.Header.Get("Accept"),
		params:  msg.Params,
	}

	ts.mu.Lock()
	ts.calls = append(ts.calls, call)
	failInit := false
	if msg.Method == "initialize" && ts.initFailures > 0 {
		ts.initFailures--
		failInit = true
	}
	ts.mu.Unlock()

	if msg.Method == "initialize" {
		if ts.initDelay > 0 {
			time.Sleep(ts.initDelay)
		}
		if failInit {
			http.Error(w, "handshake unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Mcp-Session-Id", ts.sessionID)
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2025-11-25","capabilities":{},"serverInfo":{"name":"entrez-test","version":"0.0.1"}}}`)
		return
	}

	if ts.respond != nil {
		ts.respond(w, r, call)
		return
	}
	fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{}}`)
}

func (ts *testServer) callsByMethod(method string) []recordedCall {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	var out []recordedCall
	for _, call := range ts.calls {
		if call.method == method {
			out = append(out, call)
		}
	}
	return out
}

// lastToolCall returns the most recent tools/call request, failing the test
// when none arrived.
func (ts *testServer) lastToolCall() recordedCall {
	ts.t.Helper()
	calls := ts.callsByMethod("tools/call")
	if len(calls) == 0 {
		ts.t.Fatal("no tools/call request received")
	}
	return calls[len(calls)-1]
}

func TestCallToolInitializesSession(t *testing.T) {
	ts := newTestServer(t)
	client := ts.client()

	if _, err := client.CallTool(context.Background(), "entrez_query", map[string]any{"operation": "info"}); err != nil {
		t.Fatalf("failed to call tool: %v", err)
	}

	inits := ts.callsByMethod("initialize")
	if len(inits) != 1 {
		t.Fatalf("got %d initialize calls, want 1", len(inits))
	}
	init := inits[0]
	if init.session != "" {
		t.Errorf("initialize carried session id %q, want none", init.session)
	}
	if init.proto != entrez.ProtocolVersion {
		t.Errorf("got protocol version header %q, want %q", init.proto, entrez.ProtocolVersion)
	}
	if got := init.params["protocolVersion"]; got != entrez.ProtocolVersion {
		t.Errorf("got handshake protocolVersion %v, want %q", got, entrez.ProtocolVersion)
	}
	if _, ok := init.params["clientInfo"].(map[string]any); !ok {
		t.Errorf("handshake params missing clientInfo: %v", init.params)
	}
	if _, ok := init.params["capabilities"].(map[string]any); !ok {
		t.Errorf("handshake params missing capabilities: %v", init.params)
	}

	call := ts.lastToolCall()
	if call.session != ts.sessionID {
		t.Errorf("got session id %q on tool call, want %q", call.session, ts.sessionID)
	}
	if call.accept != "application/json, text/event-stream" {
		t.Errorf("got accept header %q, want both media types", call.accept)
	}
}

func TestSessionPersistsAcrossCalls(t *testing.T) {
	ts := newTestServer(t)
	client := ts.client()

	ctx := context.Background()
	for range 3 {
		if _, err := client.CallTool(ctx, "entrez_query", nil); err != nil {
			t.Fatalf("failed to call tool: %v", err)
		}
	}

	if inits := ts.callsByMethod("initialize"); len(inits) != 1 {
		t.Fatalf("got %d initialize calls, want 1", len(inits))
	}
	for i, call := range ts.callsByMethod("tools/call") {
		if call.session != ts.sessionID {
			t.Errorf("call %d carried session id %q, want %q", i, call.session, ts.sessionID)
		}
	}
}

func TestSessionNotSharedBetweenClients(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	first := ts.client()
	if _, err := first.CallTool(ctx, "entrez_query", nil); err != nil {
		t.Fatalf("failed to call tool: %v", err)
	}

	second := ts.client()
	if _, err := second.CallTool(ctx, "entrez_query", nil); err != nil {
		t.Fatalf("failed to call tool: %v", err)
	}

	inits := ts.callsByMethod("initialize")
	if len(inits) != 2 {
		t.Fatalf("got %d initialize calls, want one per client", len(inits))
	}
	for i, init := range inits {
		if init.session != "" {
			t.Errorf("initialize %d carried session id %q, want none", i, init.session)
		}
	}
}

func TestCallToolPrunesAbsentArguments(t *testing.T) {
	ts := newTestServer(t)
	client := ts.client()

	_, err := client.CallTool(context.Background(), "entrez_query", map[string]any{
		"note":  nil,
		"flag":  false,
		"count": 0,
		"label": "",
		"term":  "crispr",
	})
	if err != nil {
		t.Fatalf("failed to call tool: %v", err)
	}

	want := map[string]any{
		"flag":  false,
		"count": float64(0),
		"label": "",
		"term":  "crispr",
	}
	if got := ts.lastToolCall().args(); !reflect.DeepEqual(got, want) {
		t.Errorf("got arguments %v, want %v", got, want)
	}
}

func TestCallToolTransportError(t *testing.T) {
	ts := newTestServer(t)
	ts.respond = func(w http.ResponseWriter, _ *http.Request, _ recordedCall) {
		http.Error(w, "tool not found", http.StatusNotFound)
	}
	client := ts.client()

	_, err := client.CallTool(context.Background(), "entrez_query", nil)
	if err == nil {
		t.Fatal("got nil error, want transport error")
	}

	var cerr *entrez.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T, want *entrez.Error", err)
	}
	if cerr.Kind != entrez.KindTransport {
		t.Errorf("got kind %v, want %v", cerr.Kind, entrez.KindTransport)
	}
	if cerr.Status != http.StatusNotFound {
		t.Errorf("got status %d, want %d", cerr.Status, http.StatusNotFound)
	}
	if !strings.HasPrefix(err.Error(), "[entrez_query] HTTP 404:") {
		t.Errorf("got error %q, want the bracketed label and status prefix", err)
	}
	if !strings.Contains(err.Error(), "tool not found") {
		t.Errorf("got error %q, want the response body in the message", err)
	}
}

func TestCallToolProtocolError(t *testing.T) {
	ts := newTestServer(t)
	ts.respond = func(w http.ResponseWriter, _ *http.Request, _ recordedCall) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"message":"Invalid database"}}`)
	}
	client := ts.client()

	_, err := client.CallTool(context.Background(), "entrez_query", nil)
	if err == nil {
		t.Fatal("got nil error, want protocol error")
	}

	var cerr *entrez.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T, want *entrez.Error", err)
	}
	if cerr.Kind != entrez.KindProtocol {
		t.Errorf("got kind %v, want %v", cerr.Kind, entrez.KindProtocol)
	}
	if !strings.Contains(err.Error(), "Invalid database") {
		t.Errorf("got error %q, want the server message in it", err)
	}

	var rpcErr *entrez.JSONRPCError
	if !errors.As(err, &rpcErr) {
		t.Errorf("got %v, want a wrapped *entrez.JSONRPCError", err)
	}
}

func TestCallToolMalformedBody(t *testing.T) {
	ts := newTestServer(t)
	ts.respond = func(w http.ResponseWriter, _ *http.Request, _ recordedCall) {
		fmt.Fprint(w, "<html>bad gateway</html>")
	}
	client := ts.client()

	_, err := client.CallTool(context.Background(), "entrez_query", nil)
	var cerr *entrez.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T (%v), want *entrez.Error", err, err)
	}
	if cerr.Kind != entrez.KindProtocol {
		t.Errorf("got kind %v, want %v", cerr.Kind, entrez.KindProtocol)
	}
	if !errors.Is(err, entrez.ErrNoPayload) {
		t.Errorf("got %v, want a wrapped no-payload error", err)
	}
}

func TestCallToolApplicationError(t *testing.T) {
	ts := newTestServer(t)
	ts.respond = func(w http.ResponseWriter, _ *http.Request, _ recordedCall) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":" ❌ Invalid database: invalid_database "}]}}`)
	}
	client := ts.client()

	_, err := client.CallTool(context.Background(), "entrez_query", nil)
	if err == nil {
		t.Fatal("got nil error, want application error")
	}

	var cerr *entrez.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T, want *entrez.Error", err)
	}
	if cerr.Kind != entrez.KindApplication {
		t.Errorf("got kind %v, want %v", cerr.Kind, entrez.KindApplication)
	}
	if cerr.Message != "❌ Invalid database: invalid_database" {
		t.Errorf("got message %q, want the trimmed marker text", cerr.Message)
	}
}

func TestCallToolStructuredContent(t *testing.T) {
	ts := newTestServer(t)
	ts.respond = func(w http.ResponseWriter, _ *http.Request, _ recordedCall) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"structuredContent":{"a":1,"content":"inherited"},"content":[{"type":"text","text":"3 results"}]}}`)
	}
	client := ts.client()

	res, err := client.CallTool(context.Background(), "entrez_query", nil)
	if err != nil {
		t.Fatalf("failed to call tool: %v", err)
	}

	if got := res["a"]; got != float64(1) {
		t.Errorf("got a=%v, want 1", got)
	}
	content, ok := res["content"].([]any)
	if !ok {
		t.Fatalf("got content %T (%v), want the original content sequence", res["content"], res["content"])
	}
	if len(content) != 1 {
		t.Errorf("got %d content blocks, want 1", len(content))
	}
	if _, ok := res["structuredContent"]; ok {
		t.Error("normalized result still carries structuredContent")
	}
}

func TestCallToolPlainResultPassesThrough(t *testing.T) {
	ts := newTestServer(t)
	ts.respond = func(w http.ResponseWriter, _ *http.Request, _ recordedCall) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"success":true,"idlist":["1","2"]}}`)
	}
	client := ts.client()

	res, err := client.CallTool(context.Background(), "entrez_query", nil)
	if err != nil {
		t.Fatalf("failed to call tool: %v", err)
	}
	if got := res["success"]; got != true {
		t.Errorf("got success=%v, want true", got)
	}
}

func TestCallToolEmptyResult(t *testing.T) {
	ts := newTestServer(t)
	ts.respond = func(w http.ResponseWriter, _ *http.Request, _ recordedCall) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1}`)
	}
	client := ts.client()

	res, err := client.CallTool(context.Background(), "entrez_query", nil)
	if err != nil {
		t.Fatalf("failed to call tool: %v", err)
	}
	if res != nil {
		t.Errorf("got %v, want nil result for an empty success", res)
	}
}

func TestCallToolSSEResponse(t *testing.T) {
	ts := newTestServer(t)
	ts.respond = func(w http.ResponseWriter, r *http.Request, _ recordedCall) {
		sess, err := sse.Upgrade(w, r)
		if err != nil {
			t.Errorf("failed to upgrade to SSE: %v", err)
			return
		}
		msg := sse.Message{Type: sse.Type("message")}
		msg.AppendData(`{"jsonrpc":"2.0","id":1,"result":{"structuredContent":{"ok":true}}}`)
		if err := sess.Send(&msg); err != nil {
			t.Errorf("failed to send SSE message: %v", err)
			return
		}
		if err := sess.Flush(); err != nil {
			t.Errorf("failed to flush SSE message: %v", err)
		}
	}
	client := ts.client()

	res, err := client.CallTool(context.Background(), "entrez_query", nil)
	if err != nil {
		t.Fatalf("failed to call tool: %v", err)
	}
	if got := res["ok"]; got != true {
		t.Errorf("got ok=%v, want true", got)
	}
}

func TestConcurrentFirstCallsShareHandshake(t *testing.T) {
	ts := newTestServer(t)
	ts.initDelay = 100 * time.Millisecond
	client := ts.client()

	var g errgroup.Group
	for range 5 {
		g.Go(func() error {
			_, err := client.CallTool(context.Background(), "entrez_query", nil)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("failed to call tool: %v", err)
	}

	if inits := ts.callsByMethod("initialize"); len(inits) != 1 {
		t.Errorf("got %d initialize calls, want 1", len(inits))
	}
	if calls := ts.callsByMethod("tools/call"); len(calls) != 5 {
		t.Errorf("got %d tool calls, want 5", len(calls))
	}
}

func TestHandshakeFailureSurfacesAndRetries(t *testing.T) {
	ts := newTestServer(t)
	ts.initFailures = 1
	client := ts.client()
	ctx := context.Background()

	_, err := client.CallTool(ctx, "entrez_query", nil)
	if err == nil {
		t.Fatal("got nil error, want handshake failure")
	}
	var cerr *entrez.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T, want *entrez.Error", err)
	}
	if cerr.Op != "initialize" || cerr.Kind != entrez.KindTransport {
		t.Errorf("got op %q kind %v, want initialize transport failure", cerr.Op, cerr.Kind)
	}

	// The failed handshake left no session behind, so the next call runs it
	// again and succeeds.
	if _, err := client.CallTool(ctx, "entrez_query", nil); err != nil {
		t.Fatalf("failed to call tool after handshake retry: %v", err)
	}
	if inits := ts.callsByMethod("initialize"); len(inits) != 2 {
		t.Errorf("got %d initialize calls, want 2", len(inits))
	}
}

func TestCallToolNetworkError(t *testing.T) {
	ts := newTestServer(t)
	url := ts.srv.URL
	ts.srv.Close()

	client := entrez.NewClient(url)
	defer client.Close()

	_, err := client.CallTool(context.Background(), "entrez_query", nil)
	if err == nil {
		t.Fatal("got nil error, want network error")
	}
	var cerr *entrez.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T, want *entrez.Error", err)
	}
	if cerr.Kind != entrez.KindNetwork {
		t.Errorf("got kind %v, want %v", cerr.Kind, entrez.KindNetwork)
	}
	if !strings.Contains(err.Error(), "Network error") {
		t.Errorf("got error %q, want a network error message", err)
	}
}

func TestCallToolContextCancelled(t *testing.T) {
	ts := newTestServer(t)
	client := ts.client()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.CallTool(ctx, "entrez_query", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want a wrapped context.Canceled", err)
	}
}
