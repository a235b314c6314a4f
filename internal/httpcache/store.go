package httpcache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS responses (
	signature     TEXT PRIMARY KEY,
	url           TEXT NOT NULL,
	status        INTEGER NOT NULL,
	header        TEXT NOT NULL,
	body          BLOB,
	fetched_at    INTEGER NOT NULL,
	expires_at    INTEGER NOT NULL,
	etag          TEXT NOT NULL DEFAULT '',
	last_modified TEXT NOT NULL DEFAULT ''
);
`

// Entry is one stored response together with its freshness metadata.
type Entry struct {
	URL          string
	Status       int
	Header       http.Header
	Body         []byte
	FetchedAt    time.Time
	ExpiresAt    time.Time
	ETag         string
	LastModified string
}

// Fresh reports whether the entry may be replayed without revalidation.
func (e *Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Store persists responses in a local SQLite database so cached results
// survive across runs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the entry stored under sig. A row that cannot be decoded is
// deleted and reported as absent, so a damaged cache degrades to a miss
// instead of an error.
func (s *Store) Get(sig string) (*Entry, bool) {
	row := s.db.QueryRow(
		`SELECT url, status, header, body, fetched_at, expires_at, etag, last_modified
		 FROM responses WHERE signature = ?`, sig)

	var e Entry
	var headerJSON string
	var fetched, expires int64
	err := row.Scan(&e.URL, &e.Status, &headerJSON, &e.Body, &fetched, &expires, &e.ETag, &e.LastModified)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("dropping unreadable cache entry", "error", err)
			s.Delete(sig)
		}
		return nil, false
	}
	if err := json.Unmarshal([]byte(headerJSON), &e.Header); err != nil {
		slog.Warn("dropping corrupt cache entry", "url", e.URL, "error", err)
		s.Delete(sig)
		return nil, false
	}
	e.FetchedAt = time.Unix(fetched, 0)
	e.ExpiresAt = time.Unix(expires, 0)
	return &e, true
}

// Put stores e under sig, replacing any previous entry atomically.
func (s *Store) Put(sig string, e *Entry) error {
	headerJSON, err := json.Marshal(e.Header)
	if err != nil {
		return fmt.Errorf("encoding cache header: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO responses (signature, url, status, header, body, fetched_at, expires_at, etag, last_modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(signature) DO UPDATE SET
			url = excluded.url,
			status = excluded.status,
			header = excluded.header,
			body = excluded.body,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at,
			etag = excluded.etag,
			last_modified = excluded.last_modified`,
		sig, e.URL, e.Status, string(headerJSON), e.Body,
		e.FetchedAt.Unix(), e.ExpiresAt.Unix(), e.ETag, e.LastModified)
	if err != nil {
		return fmt.Errorf("storing cache entry for %s: %w", e.URL, err)
	}
	return nil
}

// Refresh renews the freshness window of an existing entry without touching
// its body, which is how a 304 revalidation is recorded.
func (s *Store) Refresh(sig string, fetchedAt, expiresAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE responses SET fetched_at = ?, expires_at = ? WHERE signature = ?`,
		fetchedAt.Unix(), expiresAt.Unix(), sig)
	if err != nil {
		return fmt.Errorf("refreshing cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry stored under sig, if any.
func (s *Store) Delete(sig string) {
	if _, err := s.db.Exec(`DELETE FROM responses WHERE signature = ?`, sig); err != nil {
		slog.Warn("could not delete cache entry", "error", err)
	}
}

// Len returns the number of stored entries.
func (s *Store) Len() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM responses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}

// RemoveExpired deletes every entry whose freshness window ended before now
// and returns how many were removed.
func (s *Store) RemoveExpired(now time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM responses WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("removing expired cache entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
