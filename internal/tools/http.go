package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// NewLimiter returns a token bucket for outbound tool requests. A
// non-positive rate disables throttling.
func NewLimiter(requestsPerSecond float64, burst int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(requestsPerSecond)))
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// fetcher is a throttled JSON-over-HTTP GET client.
type fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

func newFetcher(timeout time.Duration, limiter *rate.Limiter) *fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if limiter == nil {
		limiter = NewLimiter(0, 0)
	}
	return &fetcher{client: &http.Client{Timeout: timeout}, limiter: limiter}
}

func (f *fetcher) getJSON(ctx context.Context, url string, out any) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "chat-agent/1.0")
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, Code: resp.StatusCode, Status: resp.Status}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
