package entrez

import (
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
)

// session owns the lifecycle of the server-issued session identifier: absent
// at construction, set the first time a response carries the session header,
// echoed on every request thereafter. The id is never refreshed or
// invalidated for the life of the client instance.
type session struct {
	mu sync.Mutex
	id string

	group singleflight.Group
}

// current returns the held session id, or "" when none has been issued yet.
func (s *session) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// observe stores the session id from a response, overwriting any prior value.
// Header lookup is case-insensitive.
func (s *session) observe(h http.Header) {
	id := h.Get(headerSessionID)
	if id == "" {
		return
	}
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

// apply sets the request headers every call carries: content type, the accept
// list covering both wire formats, the protocol version, and the session id
// when one is held.
func (s *session) apply(h http.Header) {
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json, text/event-stream")
	h.Set(headerProtocolVersion, ProtocolVersion)
	if id := s.current(); id != "" {
		h.Set(headerSessionID, id)
	}
}

// ensure runs the handshake once before the first tool call. Concurrent
// callers racing the first call share a single in-flight handshake instead of
// each triggering their own initialize round trip. A failed handshake leaves
// the session unset, so the next call tries again.
func (s *session) ensure(handshake func() error) error {
	if s.current() != "" {
		return nil
	}
	_, err, _ := s.group.Do(methodInitialize, func() (any, error) {
		if s.current() != "" {
			return nil, nil
		}
		return nil, handshake()
	})
	return err
}
