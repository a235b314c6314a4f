package ghfetch

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ClientError is a non-retryable 4xx answer: the request itself is wrong, so
// fetching aborts instead of retrying.
type ClientError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *ClientError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.URL == "" {
		return fmt.Sprintf("github: %s (HTTP %d)", msg, e.StatusCode)
	}
	return fmt.Sprintf("github: %s (HTTP %d) for %s", msg, e.StatusCode, e.URL)
}

// RateLimitError reports an exhausted budget observed on the wire: HTTP 429,
// or the legacy 403 with a zero remaining header.
type RateLimitError struct {
	ResetAt    time.Time
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	switch {
	case e.RetryAfter > 0:
		return fmt.Sprintf("github: rate limited, retry after %s", e.RetryAfter)
	case !e.ResetAt.IsZero():
		return fmt.Sprintf("github: rate limited until %s", e.ResetAt.Format(time.RFC3339))
	}
	return "github: rate limited"
}

// FetchError wraps the failure of one logical listing with the repository
// and endpoint that failed.
type FetchError struct {
	Repo     string
	Endpoint string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	where := e.Endpoint
	if e.Repo != "" {
		where += " for " + e.Repo
	}
	if e.Attempts > 1 {
		return fmt.Sprintf("fetching %s (%d attempts): %v", where, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetching %s: %v", where, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden reports whether err is a 403 from the API.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsRateLimited reports whether err was caused by rate limiting.
func IsRateLimited(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

func hasStatus(err error, status int) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.StatusCode == status
}
