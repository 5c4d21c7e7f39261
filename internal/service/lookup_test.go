package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/usergate-io/usergate/internal/cache"
	"github.com/usergate-io/usergate/internal/domain"
	"github.com/usergate-io/usergate/internal/upstream"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validPayload() upstream.RawUser {
	return upstream.RawUser{
		"id":      1,
		"name":    "Leanne Graham",
		"email":   "Sincere@april.biz",
		"address": map[string]any{"city": "Gwenborough"},
		"company": map[string]any{"name": "Romaguera-Crona"},
	}
}

var leanne = domain.UserRecord{
	ID:      1,
	Name:    "Leanne Graham",
	Email:   "Sincere@april.biz",
	City:    "Gwenborough",
	Company: "Romaguera-Crona",
}

// recordingStore implements cache.Store and captures the TTL passed to Set,
// which the real store keeps private.
type recordingStore struct {
	mu      sync.Mutex
	data    map[string]domain.UserRecord
	setTTLs map[string]time.Duration
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		data:    make(map[string]domain.UserRecord),
		setTTLs: make(map[string]time.Duration),
	}
}

func (s *recordingStore) Get(key string) (domain.UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *recordingStore) Set(key string, value domain.UserRecord, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.setTTLs[key] = ttl
}

func (s *recordingStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

func (s *recordingStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	delete(s.data, key)
	return ok
}

func (s *recordingStore) Sweep() int { return 0 }

func (s *recordingStore) ttlFor(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setTTLs[key]
}

func TestUserByIDCacheHitSkipsClient(t *testing.T) {
	store := cache.New[string, domain.UserRecord](0)
	store.Set(CacheKey(1), leanne, time.Minute)
	client := upstream.NewStubClient()

	lookup := NewLookup(store, client, discardLogger(), nil)

	got, err := lookup.UserByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != leanne {
		t.Fatalf("expected cached record, got %+v", got)
	}
	if calls := client.Calls(); len(calls) != 0 {
		t.Fatalf("client must not be invoked on a cache hit, saw %d calls", len(calls))
	}
}

func TestUserByIDCacheMissFetchesAndStores(t *testing.T) {
	store := newRecordingStore()
	client := upstream.NewStubClient()
	client.SetPayload(1, validPayload())

	lookup := NewLookup(store, client, discardLogger(), nil)

	got, err := lookup.UserByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != leanne {
		t.Fatalf("expected %+v, got %+v", leanne, got)
	}

	key := CacheKey(1)
	cached, ok := store.Get(key)
	if !ok || cached != leanne {
		t.Fatalf("expected record cached under %q, got %+v (ok=%v)", key, cached, ok)
	}
	if ttl := store.ttlFor(key); ttl != UserCacheTTL {
		t.Fatalf("expected record stored with %s TTL, got %s", UserCacheTTL, ttl)
	}

	// Second call is served from cache.
	if _, err := lookup.UserByID(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	if calls := client.Calls(); len(calls) != 1 {
		t.Fatalf("expected exactly one fetch, saw %d", len(calls))
	}
}

func TestUserByIDPropagatesClientErrors(t *testing.T) {
	t.Run("schema violation", func(t *testing.T) {
		client := upstream.NewStubClient().WithError(&upstream.SchemaError{Field: "email"})
		lookup := NewLookup(newRecordingStore(), client, discardLogger(), nil)

		_, err := lookup.UserByID(context.Background(), 1)

		var schemaErr *upstream.SchemaError
		if !errors.As(err, &schemaErr) {
			t.Fatalf("expected SchemaError to propagate unchanged, got %v", err)
		}
		if schemaErr.Field != "email" {
			t.Fatalf("expected field email, got %q", schemaErr.Field)
		}
	})

	t.Run("non-200 status", func(t *testing.T) {
		client := upstream.NewStubClient().WithError(&upstream.StatusError{StatusCode: http.StatusNotFound})
		lookup := NewLookup(newRecordingStore(), client, discardLogger(), nil)

		_, err := lookup.UserByID(context.Background(), 1)

		var statusErr *upstream.StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected StatusError to propagate unchanged, got %v", err)
		}
		if statusErr.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404 carried on error, got %d", statusErr.StatusCode)
		}
	})
}

func TestUserByIDRevalidatesFetchedPayload(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(upstream.RawUser)
		field  string
	}{
		{"missing name", func(p upstream.RawUser) { delete(p, "name") }, "name"},
		{"missing id", func(p upstream.RawUser) { delete(p, "id") }, "id"},
		{"address without city", func(p upstream.RawUser) { p["address"] = map[string]any{} }, "address.city"},
		{"company missing entirely", func(p upstream.RawUser) { delete(p, "company") }, "company.name"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := validPayload()
			tc.mutate(payload)

			// The stub bypasses the client-side schema checks, exercising
			// the lookup layer's own validation.
			store := newRecordingStore()
			client := upstream.NewStubClient()
			client.SetPayload(1, payload)
			lookup := NewLookup(store, client, discardLogger(), nil)

			_, err := lookup.UserByID(context.Background(), 1)

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validationErr.Field != tc.field {
				t.Fatalf("expected violation on %q, got %q", tc.field, validationErr.Field)
			}
			if store.Has(CacheKey(1)) {
				t.Fatal("nothing may be cached when validation fails")
			}
		})
	}
}

func TestCacheKeyDeterminism(t *testing.T) {
	if CacheKey(1) != CacheKey(1) {
		t.Fatal("deriving the key for the same id twice must match")
	}
	seen := make(map[string]int)
	for id := 1; id <= 1000; id++ {
		key := CacheKey(id)
		if prev, ok := seen[key]; ok {
			t.Fatalf("ids %d and %d collide on key %q", prev, id, key)
		}
		seen[key] = id
	}
}

// gatedClient blocks every fetch until released, so concurrent misses pile
// up behind the first one.
type gatedClient struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (g *gatedClient) FetchUser(ctx context.Context, id int) (upstream.RawUser, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	<-g.release
	return validPayload(), nil
}

func TestConcurrentMissesAreCoalesced(t *testing.T) {
	client := &gatedClient{release: make(chan struct{})}
	store := cache.New[string, domain.UserRecord](0)
	lookup := NewLookup(store, client, discardLogger(), nil)

	const waiters = 8
	var wg sync.WaitGroup
	results := make(chan domain.UserRecord, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := lookup.UserByID(context.Background(), 1)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results <- record
		}()
	}

	// Give the goroutines time to reach the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(client.release)
	wg.Wait()
	close(results)

	for record := range results {
		if record != leanne {
			t.Fatalf("expected every waiter to receive the record, got %+v", record)
		}
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.calls != 1 {
		t.Fatalf("expected concurrent misses to share one fetch, saw %d", client.calls)
	}
}
