// Package twitter is the remote service client: a rate-limited,
// retrying HTTP core with an OAuth 1.0a signing layer for the v1.1
// endpoints the reconciler calls.
package twitter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"roostdb/pkg/logger"
)

// Options tunes the base client. Zero values fall back to defaults.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	RPS         float64
	Burst       int
	MaxAttempts int
	BaseBackoff time.Duration
}

// HTTPClient is the shared transport under every endpoint client. All
// requests pass through one rate limiter and one retry loop.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

// NewHTTPClient builds the base client.
func NewHTTPClient(o Options) *HTTPClient {
	if o.BaseURL == "" {
		o.BaseURL = "https://api.twitter.com/1.1"
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 500 * time.Millisecond
	}
	return &HTTPClient{
		baseURL:     o.BaseURL,
		httpClient:  &http.Client{Timeout: o.Timeout},
		limiter:     newLimiter(o.RPS, o.Burst),
		maxAttempts: o.MaxAttempts,
		baseBackoff: o.BaseBackoff,
	}
}

// do waits for the limiter, runs the request with retries, and turns any
// error status into an *APIError. A 2xx response is returned with its
// body still open for the caller to decode.
func (c *HTTPClient) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

// doWithRetry retries transport failures and 5xx responses with
// exponential backoff, honoring Retry-After. Rate-limit responses (429)
// are returned to the caller unretried: the reconciler surfaces them to
// the user with a reset estimate instead of silently stalling here.
func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err == nil {
			if resp.StatusCode < 500 {
				return resp, nil
			}
			wait := retryAfter(resp, backoff)
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			logger.Warn("remote_retry", "status", resp.StatusCode, "attempt", attempt, "wait", wait.String())
			if err := sleep(ctx, jitter(wait)); err != nil {
				return nil, err
			}
			backoff *= 2
			continue
		}
		lastErr = err
		logger.Debug("remote_transport_retry", "attempt", attempt, "error", err)
		if err := sleep(ctx, jitter(backoff)); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(ra); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(ra); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return fallback
}

// jitter spreads a wait by +/-20% so retries from concurrent callers do
// not land in the same instant.
func jitter(wait time.Duration) time.Duration {
	j := time.Duration(float64(wait) * 0.2)
	if j <= 0 {
		return wait
	}
	return wait - j + time.Duration(time.Now().UnixNano()%int64(2*j))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
