package entrez

import (
	"fmt"
	"strings"
)

// Kind classifies the failure mode of an Error.
type Kind int

// Failure modes surfaced by the client. Every failed call yields exactly one
// of these; nothing is retried or recovered locally.
const (
	// KindNetwork indicates the HTTP round trip itself failed.
	KindNetwork Kind = iota + 1
	// KindTransport indicates the server answered with a non-2xx status.
	KindTransport
	// KindProtocol indicates a malformed response body or a JSON-RPC level
	// error field in an otherwise well-formed envelope.
	KindProtocol
	// KindApplication indicates a transport-successful response whose content
	// carries the application error marker.
	KindApplication
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

// Error is the single error type surfaced by all client operations. Op names
// the originating tool or operation, Kind classifies the failure, and Status
// carries the HTTP status code for transport failures.
type Error struct {
	Op      string
	Kind    Kind
	Status  int
	Message string
	Err     error
}

// Error formats the failure as "[op] message".
func (e *Error) Error() string {
	return fmt.Sprintf("%s %s", formatLabel(e.Op), e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// formatLabel brackets an operation name for diagnostics, leaving names that
// already carry brackets untouched.
func formatLabel(op string) string {
	trimmed := strings.TrimSpace(op)
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		return trimmed
	}
	return "[" + trimmed + "]"
}
