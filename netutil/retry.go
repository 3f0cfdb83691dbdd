package netutil

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryTransport wraps an http.RoundTripper with exponential backoff for
// transient catalog failures. Retry-After headers are honored when present.
type RetryTransport struct {
	// Base is the underlying transport. Default: http.DefaultTransport.
	Base http.RoundTripper

	// OnRetry, when set, is called before each retry with the attempt
	// number (1-based), the wait duration, and the last status code
	// (0 for transport errors).
	OnRetry func(attempt int, wait time.Duration, statusCode int)

	// MaxRetries is the number of retry attempts. Default: 3.
	MaxRetries int

	// InitialBackoff is the first wait duration. Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait duration. Default: 30s.
	MaxBackoff time.Duration
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	maxRetries := t.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	initial := t.InitialBackoff
	if initial == 0 {
		initial = time.Second
	}
	maxWait := t.MaxBackoff
	if maxWait == 0 {
		maxWait = 30 * time.Second
	}

	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt <= maxRetries; attempt++ {
		clone := req.Clone(req.Context())
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			clone.Body = body
		}

		resp, err := base.RoundTrip(clone)
		if err != nil {
			lastErr = err
			if attempt < maxRetries {
				t.wait(attempt, initial, maxWait, nil)
				continue
			}
			return nil, lastErr
		}

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		lastResp = resp
		lastErr = nil
		if attempt < maxRetries {
			_ = resp.Body.Close()
			t.wait(attempt, initial, maxWait, resp)
			continue
		}
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, lastErr
}

func (t *RetryTransport) wait(attempt int, initial, maxWait time.Duration, resp *http.Response) {
	d := backoff(attempt, initial, maxWait, resp)
	if t.OnRetry != nil {
		code := 0
		if resp != nil {
			code = resp.StatusCode
		}
		t.OnRetry(attempt+1, d, code)
	}
	time.Sleep(d)
}

// backoff doubles the wait per attempt, capped at maxWait, preferring a
// server-provided Retry-After when it is sane.
func backoff(attempt int, initial, maxWait time.Duration, resp *http.Response) time.Duration {
	if resp != nil {
		if after := resp.Header.Get("Retry-After"); after != "" {
			if secs, err := strconv.Atoi(after); err == nil && secs > 0 {
				d := time.Duration(secs) * time.Second
				if d <= maxWait {
					return d
				}
				return maxWait
			}
		}
	}
	d := time.Duration(float64(initial) * math.Pow(2, float64(attempt)))
	if d > maxWait {
		return maxWait
	}
	return d
}

// retryableStatus reports whether a status is worth retrying: server
// errors and 429, never other 4xx.
func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}
