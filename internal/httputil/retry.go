// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across the external-source
// clients: transient-failure retry with exponential backoff and per-source
// token-bucket rate limiting.
package httputil

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// transient failures: 1s, 2s, 4s. Tests override this to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

const defaultMaxAttempts = 3

// Retriable reports whether an HTTP status warrants another attempt:
// 429 and all 5xx are transient, every other status is definitive.
func Retriable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry executes an HTTP request with up to maxAttempts total tries.
// Network errors, 5xx, and 429 are retried with exponential backoff; a
// Retry-After header on a transient response extends the computed delay.
// Non-retriable statuses return immediately so the caller can categorize
// them. When maxAttempts is 0 the default (3) is used. If the context is
// cancelled during a backoff wait the function returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxAttempts int) (*http.Response, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var lastErr error
	var hint time.Duration
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := RetryBaseDelay << (attempt - 1)
			if hint > backoff {
				backoff = hint
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		hint = 0

		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if !Retriable(resp.StatusCode) || attempt == maxAttempts-1 {
			return resp, nil
		}

		hint = RetryAfter(resp)

		// Drain and close the body before retrying.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = nil
	}
	return nil, lastErr
}

// RetryAfter parses a response's Retry-After header as either seconds or
// an HTTP date. Zero means no usable hint.
func RetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
