package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultConnectTimeout = 5 * time.Second
	defaultRequestTimeout = 10 * time.Second
)

// HTTPClient fetches user records over HTTP from a fixed upstream
// collection at {baseURL}/users/{id}. It never retries; typed failures are
// surfaced to the caller and retry policy, if any, lives above it.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPClient constructs an HTTPClient. Zero timeouts in opts select the
// defaults (5s connect, 10s overall).
func NewHTTPClient(opts Options, logger *slog.Logger) *HTTPClient {
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// FetchUser performs one GET for the given identifier and returns the raw
// payload once it passes shape validation.
func (c *HTTPClient) FetchUser(ctx context.Context, id int) (RawUser, error) {
	url := fmt.Sprintf("%s/users/%d", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("upstream request completed",
		"url", url,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var decoded any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}

	payload, ok := decoded.(map[string]any)
	if !ok {
		return nil, &MalformedResponseError{Err: errors.New("top-level JSON value is not an object")}
	}

	raw := RawUser(payload)
	if err := validatePayload(raw); err != nil {
		return nil, err
	}
	return raw, nil
}
