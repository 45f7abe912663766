package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/runnerr0/wereyouhere/internal/history"
)

// Reader is the read-only view of a visit table used at serve time.
type Reader interface {
	Scan(ctx context.Context, q Query, fallback *time.Location) ([]history.Visit, error)
	VisitedSet(ctx context.Context, urls []string) (map[string]bool, error)
	Count(ctx context.Context) (int64, error)
	Path() string
}

// SQLiteStore is a read-only visit table produced by the indexer.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	modTime time.Time
}

// Open opens the visit table at path read-only. It fails with
// ErrStoreNotFound when the file does not exist.
func Open(path string) (*SQLiteStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, abs)
		}
		return nil, fmt.Errorf("stat store: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrStoreNotFound, abs)
	}

	dsn := (&url.URL{Scheme: "file", Path: abs, RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	version, err := appliedVersion(context.Background(), db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	if version != SchemaVersion {
		db.Close()
		return nil, fmt.Errorf("store %s has schema version %d, want %d", abs, version, SchemaVersion)
	}

	return &SQLiteStore{db: db, path: abs, modTime: info.ModTime()}, nil
}

// Path returns the absolute path of the visit table.
func (s *SQLiteStore) Path() string { return s.path }

// ModTime returns the file modification time observed at open.
func (s *SQLiteStore) ModTime() time.Time { return s.modTime }

// Scan returns every visit matching q in the table's natural order.
// Timezone-naive visits are attached to fallback before q's final check;
// nothing is written back.
func (s *SQLiteStore) Scan(ctx context.Context, q Query, fallback *time.Location) ([]history.Visit, error) {
	cond, args := q.where()
	rows, err := s.db.QueryContext(ctx, "SELECT "+visitColumns+" FROM visits WHERE "+cond+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	visits := []history.Visit{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		v, err := decodeRow(r)
		if err != nil {
			return nil, err
		}
		v = v.Localize(fallback)
		if !q.keep(v) {
			continue
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return visits, nil
}

// VisitedSet reports which of urls occur as a normalised URL in the table.
// The lookup is a single statement however many urls are passed.
func (s *SQLiteStore) VisitedSet(ctx context.Context, urls []string) (map[string]bool, error) {
	present := make(map[string]bool)
	if len(urls) == 0 {
		return present, nil
	}

	payload, err := json.Marshal(urls)
	if err != nil {
		return nil, fmt.Errorf("encode urls: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT q.value
		FROM json_each(?) AS q
		WHERE EXISTS (SELECT 1 FROM visits WHERE visits.norm_url = q.value)
	`, string(payload))
	if err != nil {
		return nil, fmt.Errorf("query visited: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan visited: %w", err)
		}
		present[u] = true
	}
	return present, rows.Err()
}

// Count returns the number of visit rows.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM visits").Scan(&n); err != nil {
		return 0, fmt.Errorf("count visits: %w", err)
	}
	return n, nil
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
