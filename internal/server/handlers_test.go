package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/usergate-io/usergate/internal/cache"
	"github.com/usergate-io/usergate/internal/domain"
	"github.com/usergate-io/usergate/internal/service"
	"github.com/usergate-io/usergate/internal/upstream"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func leannePayload() upstream.RawUser {
	return upstream.RawUser{
		"id":      1,
		"name":    "Leanne Graham",
		"email":   "Sincere@april.biz",
		"address": map[string]any{"city": "Gwenborough"},
		"company": map[string]any{"name": "Romaguera-Crona"},
	}
}

func newTestHandlers(client upstream.Client) *Handlers {
	store := cache.New[string, domain.UserRecord](0)
	lookup := service.NewLookup(store, client, discardLogger(), nil)
	return NewHandlers(discardLogger(), lookup)
}

func TestHandleUserSuccess(t *testing.T) {
	stub := upstream.NewStubClient()
	stub.SetPayload(1, leannePayload())
	handlers := newTestHandlers(stub)

	req := httptest.NewRequest(http.MethodGet, "/user?id=1", nil)
	rec := httptest.NewRecorder()

	handlers.handleUser(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json content type, got %s", ct)
	}

	// The five keys, in this order, and nothing else.
	want := `{"id":1,"name":"Leanne Graham","email":"Sincere@april.biz","city":"Gwenborough","company":"Romaguera-Crona"}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Fatalf("unexpected body:\n got %s\nwant %s", got, want)
	}
}

func TestHandleUserDefaultsToIDOne(t *testing.T) {
	stub := upstream.NewStubClient()
	stub.SetPayload(1, leannePayload())
	handlers := newTestHandlers(stub)

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	rec := httptest.NewRecorder()

	handlers.handleUser(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if calls := stub.Calls(); len(calls) != 1 || calls[0] != 1 {
		t.Fatalf("expected one fetch for id 1, got %v", calls)
	}
}

func TestHandleUserRejectsInvalidID(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3", "1.5", "%20"} {
		stub := upstream.NewStubClient()
		handlers := newTestHandlers(stub)

		req := httptest.NewRequest(http.MethodGet, "/user?id="+raw, nil)
		rec := httptest.NewRecorder()

		handlers.handleUser(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for id=%q, got %d", raw, rec.Code)
		}
		if calls := stub.Calls(); len(calls) != 0 {
			t.Fatalf("lookup must not run for invalid id %q", raw)
		}
	}
}

func TestHandleUserUpstreamFailureIsOpaque(t *testing.T) {
	stub := upstream.NewStubClient().WithError(&upstream.StatusError{StatusCode: http.StatusNotFound})
	handlers := newTestHandlers(stub)

	req := httptest.NewRequest(http.MethodGet, "/user?id=2", nil)
	rec := httptest.NewRecorder()

	handlers.handleUser(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}

	var payload errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if payload.Error != "failed to look up user" {
		t.Fatalf("expected generic error message, got %q", payload.Error)
	}
	if strings.Contains(rec.Body.String(), "404") {
		t.Fatal("upstream detail must not leak to the client")
	}
}

func TestHandleUserMethodNotAllowed(t *testing.T) {
	handlers := newTestHandlers(upstream.NewStubClient())

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/user?id=1", nil)
		rec := httptest.NewRecorder()

		handlers.handleUser(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405 for %s, got %d", method, rec.Code)
		}
		if allow := rec.Header().Get("Allow"); allow != http.MethodGet {
			t.Fatalf("expected Allow: GET, got %q", allow)
		}
	}
}
