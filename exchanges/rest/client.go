// Package rest implements the REST half of each WireAdapter (spec §4.2's
// fetch_snapshot and the Supervisor's polled jobs): a resty.Client per
// exchange, gated by a ratelimit.Limiter, with a circuit breaker around the
// underlying transport so a genuinely dead REST endpoint fails fast rather
// than retrying into a 5s timeout on every call.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/marketprism/ingestion-fabric/ratelimit"
)

// Client wraps resty.Client with the per-operation 5s deadline spec §5
// mandates for REST fetches, plus rate-limiting and circuit breaking.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
}

// New constructs a Client rooted at baseURL.
func New(exchangeName, baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetProxy("").
		SetHeader("User-Agent", "marketprism-ingestion-fabric/1.0")
	c.SetRetryCount(0) // retries/backoff are the caller's resync policy (spec §4.1), not the transport's

	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        exchangeName + "/rest",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 5 },
	})
	return &Client{http: c, breaker: breaker}
}

// Get issues a rate-limited GET, waiting on limiter (if non-nil) before
// issuing the request, and decoding the JSON body into out on 2xx.
func (c *Client) Get(ctx context.Context, limiter *ratelimit.Limiter, path string, query map[string]string, out any) error {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}
	resp, err := c.breaker.Execute(func() (*resty.Response, error) {
		req := c.http.R().SetContext(ctx).SetResult(out)
		if query != nil {
			req.SetQueryParams(query)
		}
		return req.Get(path)
	})
	if err != nil {
		return fmt.Errorf("rest GET %s: %w", path, err)
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return fmt.Errorf("rest GET %s: %w (status %d)", path, ratelimit.ErrRateLimited, resp.StatusCode())
	}
	if resp.IsError() {
		return fmt.Errorf("rest GET %s: status %d: %s", path, resp.StatusCode(), resp.String())
	}
	return nil
}
