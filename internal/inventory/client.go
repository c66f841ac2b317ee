// Package inventory fetches the store's product inventory and evaluates it
// into an availability snapshot.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"voucherbot/internal/metrics"
	logx "voucherbot/pkg/logx"
)

// Some storefront APIs reject default Go client signatures, so the client
// sends a browser-like identity.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

const maxBodyBytes = 4 << 20

// FetchError reports a failed inventory fetch (transport error, timeout or
// non-2xx response). Status is 0 for transport-level failures.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("inventory fetch: unexpected status %d", e.Status)
	}
	return "inventory fetch: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// Payload is the raw decoded inventory response. The upstream schema is not
// under our control, so it stays untyped and is navigated tolerantly.
type Payload map[string]any

// Client issues the single inventory request. It never retries; retry policy
// belongs to the caller.
type Client struct {
	url  string
	http *http.Client
	log  logx.Logger
}

func NewClient(url string, timeout time.Duration, log logx.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
		log:  log.With(logx.String("comp", "inventory.client")),
	}
}

func (c *Client) Fetch(ctx context.Context) (Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.FetchErrorsTotal.Inc()
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 512)
		metrics.FetchErrorsTotal.Inc()
		return nil, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var p Payload
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	// Keep numeric denomination values exact for display.
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		metrics.FetchErrorsTotal.Inc()
		return nil, &FetchError{Err: fmt.Errorf("decode body: %w", err)}
	}

	c.log.Debug("inventory fetched", logx.Int("status", resp.StatusCode))
	return p, nil
}
