package upstream

import (
	"context"
	"net/http"
	"sync"
)

// StubClient is an in-memory implementation of Client used for unit testing
// the lookup layer without a running upstream. It records every call and
// serves canned payloads or a forced error.
type StubClient struct {
	mu       sync.Mutex
	calls    []int
	payloads map[int]RawUser
	err      error
}

// NewStubClient instantiates an empty stub.
func NewStubClient() *StubClient {
	return &StubClient{payloads: make(map[int]RawUser)}
}

// WithError configures the stub to fail every subsequent call with err.
func (s *StubClient) WithError(err error) *StubClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// SetPayload registers the payload returned for the given identifier.
func (s *StubClient) SetPayload(id int, payload RawUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[id] = payload
}

// FetchUser records the call, then returns the forced error, the canned
// payload, or a 404 StatusError when no payload is registered.
func (s *StubClient) FetchUser(_ context.Context, id int) (RawUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, id)

	if s.err != nil {
		return nil, s.err
	}
	payload, ok := s.payloads[id]
	if !ok {
		return nil, &StatusError{StatusCode: http.StatusNotFound}
	}
	return payload, nil
}

// Calls returns a snapshot of the identifiers fetched so far.
func (s *StubClient) Calls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.calls...)
}
