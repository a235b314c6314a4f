// Package ghfetch assembles repository conversation corpora from the GitHub
// API: issues, pull requests, and comments threaded under their parents.
// Every live call flows through a shared transport stack of response cache,
// rate-limit governor, and OAuth.
package ghfetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/repolore/repolore/internal/httpcache"
	"github.com/repolore/repolore/internal/ratelimit"
)

const (
	defaultPerPage     = 100
	defaultMaxAttempts = 4
	defaultBackoff     = time.Second
	headerTimeout      = 30 * time.Second
)

// Options configures a Fetcher. The zero value works against api.github.com
// with no cache and a default governor.
type Options struct {
	// CacheStore enables response caching when non-nil.
	CacheStore *httpcache.Store
	// CacheTTL is the freshness window for responses without cache
	// directives. Zero means httpcache.DefaultTTL.
	CacheTTL time.Duration
	// Governor meters live calls. Nil builds a private one.
	Governor *ratelimit.Governor
	// BaseURL overrides the API endpoint, for tests and GitHub Enterprise.
	BaseURL string
	// PerPage is the page size for list calls.
	PerPage int
	// MaxAttempts bounds the retries of one page call.
	MaxAttempts int
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
}

// Fetcher fetches and assembles repository corpora.
type Fetcher struct {
	client   *github.Client
	graphql  *githubv4.Client
	governor *ratelimit.Governor

	perPage     int
	maxAttempts int
	backoff     time.Duration
	sleep       func(context.Context, time.Duration) error
	now         func() time.Time
}

// New returns a Fetcher authenticated with token. The transport is layered
// so that cache replays never reach the governor and the governor sees every
// live call before OAuth signs it.
func New(token string, opts Options) (*Fetcher, error) {
	governor := opts.Governor
	if governor == nil {
		governor = ratelimit.New()
	}

	var rt http.RoundTripper = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		Base:   baseTransport(),
	}
	rt = &ratelimit.Transport{Base: rt, Governor: governor}
	if opts.CacheStore != nil {
		rt = httpcache.NewTransport(opts.CacheStore, rt, opts.CacheTTL)
	}
	httpClient := &http.Client{Transport: rt}

	client := github.NewClient(httpClient)
	graphql := githubv4.NewClient(httpClient)
	if opts.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing base URL %q: %w", opts.BaseURL, err)
		}
		client.BaseURL = base
		graphql = githubv4.NewEnterpriseClient(base.String()+"graphql", httpClient)
	}

	f := &Fetcher{
		client:      client,
		graphql:     graphql,
		governor:    governor,
		perPage:     opts.PerPage,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		sleep:       sleepContext,
		now:         time.Now,
	}
	if f.perPage <= 0 {
		f.perPage = defaultPerPage
	}
	if f.maxAttempts <= 0 {
		f.maxAttempts = defaultMaxAttempts
	}
	if f.backoff <= 0 {
		f.backoff = defaultBackoff
	}
	return f, nil
}

// Governor returns the governor metering this fetcher's live calls.
func (f *Fetcher) Governor() *ratelimit.Governor {
	return f.governor
}

// baseTransport bounds the wait for response headers without capping the
// whole round trip. The governor may hold a request inside the transport
// until the rate limit resets, so a client-level timeout would cut those
// waits short.
func baseTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = headerTimeout
	return t
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
