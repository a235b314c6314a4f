// Package httpcache caches GET responses in a durable store keyed by request
// signature, so repeated fetches of unchanged resources replay locally
// instead of spending network calls and rate-limit budget.
package httpcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is the freshness window applied when a response carries no
// usable cache directives.
const DefaultTTL = 24 * time.Hour

// FromCacheHeader marks responses that were replayed from the store rather
// than fetched live.
const FromCacheHeader = "X-From-Cache"

// signatureHeaders are the request headers that change the response
// representation and therefore contribute to the signature. Authorization is
// attached below the cache and never enters the signature.
var signatureHeaders = []string{"Accept", "X-GitHub-Api-Version"}

// Transport is an http.RoundTripper that replays fresh cached responses and
// revalidates stale ones with conditional requests. Successful GET responses
// are stored; anything other than GET passes straight through.
type Transport struct {
	store *Store
	next  http.RoundTripper
	ttl   time.Duration

	now func() time.Time
}

// NewTransport returns a caching Transport over next backed by store.
// A non-positive ttl falls back to DefaultTTL.
func NewTransport(store *Store, next http.RoundTripper, ttl time.Duration) *Transport {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Transport{store: store, next: next, ttl: ttl, now: time.Now}
}

func (t *Transport) base() http.RoundTripper {
	if t.next != nil {
		return t.next
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || t.store == nil {
		return t.base().RoundTrip(req)
	}
	reqDirectives := req.Header.Get("Cache-Control")
	if strings.Contains(reqDirectives, "no-store") {
		return t.base().RoundTrip(req)
	}

	sig := Signature(req)
	entry, ok := t.store.Get(sig)
	now := t.now()

	if ok && entry.Fresh(now) && !strings.Contains(reqDirectives, "no-cache") {
		slog.Debug("cache hit", "url", req.URL.String())
		return entry.Response(req), nil
	}

	// Stale or bypassed: go to the network, carrying validators when we
	// still hold a copy so the server can answer 304.
	out := req
	if ok {
		out = req.Clone(req.Context())
		if entry.ETag != "" {
			out.Header.Set("If-None-Match", entry.ETag)
		}
		if entry.LastModified != "" {
			out.Header.Set("If-Modified-Since", entry.LastModified)
		}
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotModified && ok {
		resp.Body.Close()
		expires := freshUntil(resp.Header, now, t.ttl)
		if err := t.store.Refresh(sig, now, expires); err != nil {
			slog.Warn("could not refresh cache entry", "url", entry.URL, "error", err)
		}
		entry.FetchedAt, entry.ExpiresAt = now, expires
		slog.Debug("cache revalidated", "url", req.URL.String())
		return entry.Response(req), nil
	}

	if resp.StatusCode == http.StatusOK && !strings.Contains(resp.Header.Get("Cache-Control"), "no-store") {
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response body for cache: %w", err)
		}
		e := &Entry{
			URL:          req.URL.String(),
			Status:       resp.StatusCode,
			Header:       resp.Header.Clone(),
			Body:         body,
			FetchedAt:    now,
			ExpiresAt:    freshUntil(resp.Header, now, t.ttl),
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := t.store.Put(sig, e); err != nil {
			slog.Warn("could not store response in cache", "url", e.URL, "error", err)
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return resp, nil
	}

	return resp, nil
}

// Signature identifies a request by method, full URL, and the headers that
// affect the response representation.
func Signature(req *http.Request) string {
	h := sha256.New()
	io.WriteString(h, req.Method)
	io.WriteString(h, "\x00")
	io.WriteString(h, req.URL.String())
	for _, name := range signatureHeaders {
		io.WriteString(h, "\x00")
		io.WriteString(h, req.Header.Get(name))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Response materializes the stored entry as a response to req. The replay is
// marked with FromCacheHeader.
func (e *Entry) Response(req *http.Request) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set(FromCacheHeader, "1")
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// freshUntil computes when a response fetched at now goes stale:
// Cache-Control max-age wins, then Expires, then the configured default.
func freshUntil(h http.Header, now time.Time, ttl time.Duration) time.Time {
	for _, dir := range strings.Split(h.Get("Cache-Control"), ",") {
		dir = strings.TrimSpace(dir)
		if v, found := strings.CutPrefix(dir, "max-age="); found {
			if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
				return now.Add(time.Duration(secs) * time.Second)
			}
		}
	}
	if exp := h.Get("Expires"); exp != "" {
		if when, err := http.ParseTime(exp); err == nil {
			return when
		}
	}
	return now.Add(ttl)
}
