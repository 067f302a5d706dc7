// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/omics-oracle/omics-oracle/internal/httputil"
)

// Category classifies a source failure. Retriability is a property of the
// category: callers never loop on transient errors themselves, the client
// retry layer already has.
type Category string

const (
	// CategoryNetwork is a transport failure; retriable.
	CategoryNetwork Category = "network_error"

	// CategoryRateLimited is a 429 or source-reported backoff; retriable
	// after the reported delay.
	CategoryRateLimited Category = "rate_limited"

	// CategoryUnavailable is a 5xx upstream failure; retriable.
	CategoryUnavailable Category = "upstream_unavailable"

	// CategoryNotFound is a definitive miss, negatively cacheable.
	CategoryNotFound Category = "not_found"

	// CategoryMalformed marks an unparseable payload; non-retriable and
	// treated as a miss downstream.
	CategoryMalformed Category = "malformed_response"

	// CategoryTimeout is a deadline expiry; partial results may exist.
	CategoryTimeout Category = "timeout"

	// CategoryCancelled is propagated cancellation, not a failure.
	CategoryCancelled Category = "cancelled"
)

// Error is the categorized failure every client returns at its boundary.
type Error struct {
	Source   string
	Category Category
	Status   int

	// RetryAfter is the source-reported backoff for rate limiting.
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Category, e.Err)
	}
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Source, e.Category, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a definitive miss from any source.
func IsNotFound(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Category == CategoryNotFound
}

// CategoryOf extracts the category from an error chain, defaulting to
// network for uncategorized transport errors.
func CategoryOf(err error) Category {
	var se *Error
	if errors.As(err, &se) {
		return se.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	if errors.Is(err, context.Canceled) {
		return CategoryCancelled
	}
	return CategoryNetwork
}

// categorize maps a non-2xx status to an Error for the given source.
func categorize(source string, resp *http.Response) *Error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &Error{Source: source, Category: CategoryNotFound, Status: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &Error{
			Source:     source,
			Category:   CategoryRateLimited,
			Status:     resp.StatusCode,
			RetryAfter: httputil.RetryAfter(resp),
		}
	case resp.StatusCode >= 500:
		return &Error{Source: source, Category: CategoryUnavailable, Status: resp.StatusCode}
	default:
		// Remaining 4xx: definitive client-side misses.
		return &Error{Source: source, Category: CategoryNotFound, Status: resp.StatusCode}
	}
}

// wrapTransport maps transport-level errors to an Error for the source.
func wrapTransport(source string, err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Source: source, Category: CategoryTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Source: source, Category: CategoryCancelled, Err: err}
	default:
		return &Error{Source: source, Category: CategoryNetwork, Err: err}
	}
}

// malformed wraps a parse failure.
func malformed(source string, err error) *Error {
	return &Error{Source: source, Category: CategoryMalformed, Err: err}
}
