package upstream

import (
	"context"
	"fmt"
	"time"
)

// RawUser is the upstream payload after shape validation but before it is
// flattened into a domain.UserRecord. It is passed through untyped on
// purpose: the client only guarantees the fields the lookup layer needs are
// present and correctly nested.
type RawUser map[string]any

// Client defines the minimal contract required by the lookup layer to fetch
// one user record from the upstream API.
type Client interface {
	FetchUser(ctx context.Context, id int) (RawUser, error)
}

// Options configures an upstream client implementation.
type Options struct {
	BaseURL        string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// StatusError indicates the upstream responded with a non-200 status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream responded with status %d", e.StatusCode)
}

// TransportError indicates the upstream could not be reached at all:
// connection refused, timeout, DNS or TLS failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError indicates the upstream body was not a parseable
// JSON object.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed upstream response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// SchemaError indicates a parsed upstream payload is missing a required
// field. Field carries the dotted path of the first violation found.
type SchemaError struct {
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("upstream payload missing required field %q", e.Field)
}

// requiredFields is the fixed order in which top-level keys are checked, so
// a payload with several violations always reports the same one.
var requiredFields = []string{"id", "name", "email", "address", "company"}

func validatePayload(payload RawUser) error {
	for _, field := range requiredFields {
		if _, ok := payload[field]; !ok {
			return &SchemaError{Field: field}
		}
	}

	address, ok := payload["address"].(map[string]any)
	if !ok {
		return &SchemaError{Field: "address.city"}
	}
	if _, ok := address["city"]; !ok {
		return &SchemaError{Field: "address.city"}
	}

	company, ok := payload["company"].(map[string]any)
	if !ok {
		return &SchemaError{Field: "company.name"}
	}
	if _, ok := company["name"]; !ok {
		return &SchemaError{Field: "company.name"}
	}

	return nil
}
