package sources

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/runnerr0/wereyouhere/internal/history"
)

// chromeEpochOffset is the number of seconds between 1601-01-01 and
// 1970-01-01, both UTC.
const chromeEpochOffset = 11644473600

// Chrome reads the visits table of a Chrome or Chromium History database.
type Chrome struct {
	tag  string
	path string
	log  *slog.Logger
}

// NewChrome returns a source for the History file at path.
func NewChrome(tag, path string, log *slog.Logger) *Chrome {
	if log == nil {
		log = slog.Default()
	}
	return &Chrome{tag: tag, path: path, log: log}
}

func (c *Chrome) Tag() string { return c.tag }

// Extract copies the database aside first; a running browser keeps the
// original locked.
func (c *Chrome) Extract(ctx context.Context) ([]history.Pair, error) {
	tmpDir, err := os.MkdirTemp("", "wereyouhere-chrome-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, "History")
	if err := copyFile(c.path, snapshot); err != nil {
		return nil, fmt.Errorf("chrome source %s: %w", c.path, err)
	}

	dsn := (&url.URL{Scheme: "file", Path: snapshot, RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open chrome history: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT urls.url, urls.title, visits.visit_time, visits.visit_duration
		FROM visits JOIN urls ON visits.url = urls.id
		ORDER BY visits.visit_time
	`)
	if err != nil {
		return nil, fmt.Errorf("query chrome history: %w", err)
	}
	defer rows.Close()

	var pairs []history.Pair
	for rows.Next() {
		var (
			u, title            sql.NullString
			visitTime, duration sql.NullInt64
		)
		if err := rows.Scan(&u, &title, &visitTime, &duration); err != nil {
			return nil, fmt.Errorf("scan chrome visit: %w", err)
		}
		if !u.Valid || !visitTime.Valid {
			continue
		}
		v := history.Visit{
			DT:          chromeTime(visitTime.Int64),
			Source:      c.tag,
			Locator:     history.Locator{Title: title.String, Href: u.String},
			OriginalURL: u.String,
		}
		if duration.Valid && duration.Int64 > 0 {
			secs := duration.Int64 / int64(time.Second/time.Microsecond)
			v.Duration = &secs
		}
		pairs = append(pairs, history.Pair{URL: u.String, Visit: v})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	c.log.Info("extracted", "visits", len(pairs))
	return pairs, nil
}

// chromeTime converts microseconds since 1601-01-01 UTC.
func chromeTime(us int64) time.Time {
	return time.UnixMicro(us - chromeEpochOffset*1_000_000).UTC()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
