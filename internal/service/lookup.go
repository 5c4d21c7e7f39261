package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/usergate-io/usergate/internal/cache"
	"github.com/usergate-io/usergate/internal/domain"
	"github.com/usergate-io/usergate/internal/metrics"
	"github.com/usergate-io/usergate/internal/upstream"
)

// UserCacheTTL is the fixed lifetime of a cached record. It is aliased to
// the cache default so the two can never drift apart.
const UserCacheTTL = cache.DefaultTTL

const cacheKeyPrefix = "user:"

// ValidationError indicates a fetched payload failed the lookup layer's own
// re-validation. The client validates the same fields first, so seeing this
// error means a Client implementation broke its contract.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("fetched payload missing required field %q", e.Field)
}

// Lookup answers "get the record for identifier N" by composing the cache
// and the upstream client. A cache hit never touches the client; a miss
// fetches, re-validates, flattens and stores the record for UserCacheTTL.
type Lookup struct {
	cache   cache.Store[string, domain.UserRecord]
	client  upstream.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	flight  singleflight.Group
}

// NewLookup constructs a Lookup. metrics may be nil.
func NewLookup(store cache.Store[string, domain.UserRecord], client upstream.Client, logger *slog.Logger, m *metrics.Metrics) *Lookup {
	return &Lookup{
		cache:   store,
		client:  client,
		logger:  logger,
		metrics: m,
	}
}

// CacheKey derives the cache key for an identifier. It is a pure function
// of id: the same id always maps to the same key and distinct ids never
// collide.
func CacheKey(id int) string {
	return cacheKeyPrefix + strconv.Itoa(id)
}

// UserByID returns the record for id, from cache when live, otherwise from
// the upstream. Client failures propagate unchanged.
func (l *Lookup) UserByID(ctx context.Context, id int) (domain.UserRecord, error) {
	key := CacheKey(id)

	if record, ok := l.cache.Get(key); ok {
		l.metrics.RecordLookup("hit")
		l.logger.Debug("cache hit", "key", key)
		return record, nil
	}

	// Coalesce concurrent misses for the same key: one fetch runs, every
	// waiter receives its record or error.
	v, err, _ := l.flight.Do(key, func() (any, error) {
		return l.fetchAndStore(ctx, id, key)
	})
	if err != nil {
		l.metrics.RecordLookup("error")
		return domain.UserRecord{}, err
	}

	l.metrics.RecordLookup("miss")
	return v.(domain.UserRecord), nil
}

func (l *Lookup) fetchAndStore(ctx context.Context, id int, key string) (domain.UserRecord, error) {
	start := time.Now()
	payload, err := l.client.FetchUser(ctx, id)
	if err != nil {
		l.metrics.RecordUpstream("error", time.Since(start))
		return domain.UserRecord{}, err
	}
	l.metrics.RecordUpstream("ok", time.Since(start))

	record, err := buildRecord(payload)
	if err != nil {
		return domain.UserRecord{}, err
	}

	l.cache.Set(key, record, UserCacheTTL)
	l.logger.Debug("cached user record", "key", key, "ttl", UserCacheTTL.String())
	return record, nil
}

// buildRecord re-applies the required-field checks before flattening the
// payload. The client already validated the same shape; this layer refuses
// to construct a record from anything it has not checked itself.
func buildRecord(payload upstream.RawUser) (domain.UserRecord, error) {
	id, ok := toInt(payload["id"])
	if !ok {
		return domain.UserRecord{}, &ValidationError{Field: "id"}
	}
	name, ok := payload["name"].(string)
	if !ok {
		return domain.UserRecord{}, &ValidationError{Field: "name"}
	}
	email, ok := payload["email"].(string)
	if !ok {
		return domain.UserRecord{}, &ValidationError{Field: "email"}
	}

	address, ok := payload["address"].(map[string]any)
	if !ok {
		return domain.UserRecord{}, &ValidationError{Field: "address.city"}
	}
	city, ok := address["city"].(string)
	if !ok {
		return domain.UserRecord{}, &ValidationError{Field: "address.city"}
	}

	company, ok := payload["company"].(map[string]any)
	if !ok {
		return domain.UserRecord{}, &ValidationError{Field: "company.name"}
	}
	companyName, ok := company["name"].(string)
	if !ok {
		return domain.UserRecord{}, &ValidationError{Field: "company.name"}
	}

	return domain.UserRecord{
		ID:      id,
		Name:    name,
		Email:   email,
		City:    city,
		Company: companyName,
	}, nil
}

// toInt accepts the numeric representations a decoded payload can carry:
// float64 from encoding/json, or a plain int from test fixtures.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
