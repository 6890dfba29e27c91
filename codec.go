package entrez

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// errNoPayload is returned when an SSE-formatted body contains no segment
// whose data lines form a parseable JSON payload.
var errNoPayload = errors.New("no JSON payload found in SSE response")

// newRequest frames a JSON-RPC 2.0 request envelope for the given method.
// The correlation id is derived from the current wall-clock time in
// milliseconds; uniqueness is best-effort, which is sufficient because the
// client never has more than one request in flight per call.
func newRequest(method string, params json.RawMessage) JSONRPCMessage {
	return JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      time.Now().UnixMilli(),
		Method:  method,
		Params:  params,
	}
}

// decodeBody parses a response body in either of the two wire formats the
// server may use: a single JSON document, or an SSE event stream carrying
// JSON payloads. An empty body decodes to an empty message. The codec stays
// agnostic to which format arrives; it attempts a strict JSON parse first and
// falls back to the SSE scan.
func decodeBody(body []byte) (JSONRPCMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return JSONRPCMessage{}, nil
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(trimmed, &msg); err == nil {
		return msg, nil
	}

	return decodeEventStream(trimmed)
}

// decodeEventStream scans an SSE stream segment by segment. Within each
// blank-line-delimited segment it collects every line whose trimmed,
// case-insensitive prefix is "data:", strips one leading space from the
// value, and joins the collected lines with newlines. The first segment whose
// joined payload parses as JSON wins; trailing segments are ignored.
func decodeEventStream(body []byte) (JSONRPCMessage, error) {
	normalized := strings.ReplaceAll(string(body), "\r", "")

	for _, segment := range strings.Split(normalized, "\n\n") {
		if strings.TrimSpace(segment) == "" {
			continue
		}

		var dataLines []string
		for _, line := range strings.Split(segment, "\n") {
			stripped := strings.TrimSpace(line)
			if len(stripped) < 5 || !strings.EqualFold(stripped[:5], "data:") {
				continue
			}
			dataLines = append(dataLines, strings.TrimPrefix(stripped[5:], " "))
		}
		if len(dataLines) == 0 {
			continue
		}

		var msg JSONRPCMessage
		if err := json.Unmarshal([]byte(strings.Join(dataLines, "\n")), &msg); err == nil {
			return msg, nil
		}
	}

	return JSONRPCMessage{}, errNoPayload
}
