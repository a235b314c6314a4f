package ghfetch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v68/github"
)

// outcome tags one page call so the retry loop is explicit about what may be
// retried.
type outcome int

const (
	outcomeOK outcome = iota
	outcomeTransient
	outcomeFatal
)

// classify maps a call result onto the retry policy. Rate limits, server
// errors, and transport failures are transient; other 4xx answers are caller
// mistakes and fatal, as is a spent context.
func classify(err error) (outcome, error) {
	if err == nil {
		return outcomeOK, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return outcomeFatal, err
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return outcomeTransient, &RateLimitError{ResetAt: rateErr.Rate.Reset.Time}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return outcomeTransient, &RateLimitError{RetryAfter: abuseErr.GetRetryAfter()}
	}

	var apiErr *github.ErrorResponse
	if errors.As(err, &apiErr) && apiErr.Response != nil {
		status := apiErr.Response.StatusCode
		switch {
		case status == http.StatusTooManyRequests,
			status == http.StatusForbidden && apiErr.Response.Header.Get("X-RateLimit-Remaining") == "0":
			return outcomeTransient, &RateLimitError{ResetAt: resetFrom(apiErr.Response.Header)}
		case status >= 400 && status < 500:
			ce := &ClientError{StatusCode: status, Message: apiErr.Message}
			if apiErr.Response.Request != nil && apiErr.Response.Request.URL != nil {
				ce.URL = apiErr.Response.Request.URL.String()
			}
			return outcomeFatal, ce
		case status >= 500:
			return outcomeTransient, err
		}
	}

	// Connection resets, timeouts, and the like.
	return outcomeTransient, err
}

func resetFrom(h http.Header) time.Time {
	unix, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil || unix <= 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

// retry runs one page call up to maxAttempts times. Transient failures back
// off exponentially, except rate limits, which wait for the advertised reset
// instead. The returned error is always a *FetchError.
func (f *Fetcher) retry(ctx context.Context, repo, endpoint string, call func(context.Context) error) error {
	delay := f.backoff
	var lastErr error
	for attempt := 1; ; attempt++ {
		out, cause := classify(call(ctx))
		switch out {
		case outcomeOK:
			return nil
		case outcomeFatal:
			return &FetchError{Repo: repo, Endpoint: endpoint, Attempts: attempt, Err: cause}
		}

		lastErr = cause
		if attempt == f.maxAttempts {
			return &FetchError{Repo: repo, Endpoint: endpoint, Attempts: attempt, Err: lastErr}
		}

		wait := delay
		var rl *RateLimitError
		if errors.As(cause, &rl) {
			if rl.RetryAfter > 0 {
				wait = rl.RetryAfter
			} else if until := time.Until(rl.ResetAt); until > 0 {
				wait = until + time.Second
			}
		}
		slog.Warn("transient github error, retrying",
			"endpoint", endpoint, "repo", repo, "attempt", attempt, "wait", wait, "error", cause)
		if err := f.sleep(ctx, wait); err != nil {
			return &FetchError{Repo: repo, Endpoint: endpoint, Attempts: attempt, Err: err}
		}
		delay *= 2
	}
}

// pageFunc lists one page of T.
type pageFunc[T any] func(ctx context.Context, page int) ([]T, *github.Response, error)

// fetchAll walks a paginated listing to exhaustion. Only the absence of a
// next page ends the walk; short pages do not. Items are de-duplicated by id
// so records drifting between pages mid-walk cannot appear twice, and a
// failed page discards the whole listing.
func fetchAll[T any](ctx context.Context, f *Fetcher, repo, endpoint string, id func(T) int64, list pageFunc[T]) ([]T, error) {
	var out []T
	seen := make(map[int64]bool)
	page := 1
	for {
		var items []T
		var resp *github.Response
		err := f.retry(ctx, repo, endpoint, func(ctx context.Context) error {
			var callErr error
			items, resp, callErr = list(ctx, page)
			return callErr
		})
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			key := id(item)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, item)
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}
	slog.Debug("listing complete", "endpoint", endpoint, "repo", repo, "items", len(out))
	return out, nil
}
