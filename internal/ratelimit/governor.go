// Package ratelimit tracks the GitHub request budget and puts every wait in
// one place. Nothing else in the program sleeps on the rate limit.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// GitHub's authenticated primary budget, assumed until a response says
	// otherwise.
	defaultBudget = 5000

	// Headroom kept unspent so other consumers of the same token are not
	// starved outright.
	defaultReserve = 20

	// Slack added on top of the advertised reset so the first request after
	// waking lands inside a fresh window.
	resetGrace = time.Second

	headerRemaining = "X-RateLimit-Remaining"
	headerLimit     = "X-RateLimit-Limit"
	headerReset     = "X-RateLimit-Reset"
)

// Governor meters live GitHub calls against the budget advertised in
// rate-limit response headers. Callers invoke BeforeCall ahead of each
// request and AfterCall with the response headers; BeforeCall blocks until
// the budget allows another request. One Governor is shared by every live
// call of a run; cached replays never touch it.
type Governor struct {
	mu        sync.Mutex
	remaining int
	limit     int
	resetAt   time.Time

	reserve int
	bucket  *rate.Limiter

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Option adjusts a Governor at construction.
type Option func(*Governor)

// WithThrottle smooths bursts with a token bucket of rps requests per second
// on top of budget tracking.
func WithThrottle(rps float64) Option {
	return func(g *Governor) {
		g.bucket = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithReserve keeps n requests of the budget unspent.
func WithReserve(n int) Option {
	return func(g *Governor) {
		g.reserve = n
	}
}

// WithClock substitutes the time source and the blocking sleep, for tests.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(g *Governor) {
		g.now = now
		g.sleep = sleep
	}
}

// New returns a Governor that assumes a full default budget until told
// otherwise by Seed or AfterCall.
func New(opts ...Option) *Governor {
	g := &Governor{
		remaining: defaultBudget,
		limit:     defaultBudget,
		reserve:   defaultReserve,
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BeforeCall blocks until the budget allows one more request, waking at the
// advertised reset. It returns early only when ctx is done.
func (g *Governor) BeforeCall(ctx context.Context) error {
	if g.bucket != nil {
		if err := g.bucket.Wait(ctx); err != nil {
			return err
		}
	}

	g.mu.Lock()
	var wait time.Duration
	if g.remaining <= g.reserve {
		if until := g.resetAt.Sub(g.now()); until > 0 {
			wait = until + resetGrace
		} else {
			// The advertised reset already passed; assume a new window
			// opened and let AfterCall correct us.
			g.remaining = g.limit
		}
	}
	g.mu.Unlock()

	if wait > 0 {
		slog.Warn("rate limit budget exhausted, waiting for reset",
			"wait", wait.Round(time.Second))
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
		g.mu.Lock()
		g.remaining = g.limit
		g.mu.Unlock()
	}
	return nil
}

// AfterCall folds one response's rate-limit headers into the budget. A
// response without usable headers costs one request from the current
// estimate and never causes blocking on its own.
func (g *Governor) AfterCall(h http.Header) {
	g.mu.Lock()
	defer g.mu.Unlock()

	remaining, err := strconv.Atoi(h.Get(headerRemaining))
	if err != nil {
		if g.remaining > 0 {
			g.remaining--
		}
		return
	}
	g.remaining = remaining

	if limit, err := strconv.Atoi(h.Get(headerLimit)); err == nil && limit > 0 {
		g.limit = limit
	}
	if resetUnix, err := strconv.ParseInt(h.Get(headerReset), 10, 64); err == nil && resetUnix > 0 {
		g.resetAt = time.Unix(resetUnix, 0)
	}
}

// Seed primes the budget, typically from the dedicated rate-limit endpoint
// before any paginated fetching starts.
func (g *Governor) Seed(remaining int, resetAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remaining = remaining
	g.resetAt = resetAt
}

// State is a point-in-time copy of the budget, for logging.
type State struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// State reports the current budget.
func (g *Governor) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return State{Remaining: g.remaining, Limit: g.limit, ResetAt: g.resetAt}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
