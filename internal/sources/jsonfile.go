package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/runnerr0/wereyouhere/internal/history"
)

// naiveLayouts are accepted for timestamps without a zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

type jsonVisit struct {
	URL      string  `json:"url"`
	DT       string  `json:"dt"`
	Context  *string `json:"context"`
	Duration *int64  `json:"duration"`
	Title    string  `json:"title"`
	Href     string  `json:"href"`
}

// JSON reads a JSON array of visit records exported by another tool.
type JSON struct {
	tag  string
	path string
	log  *slog.Logger
}

// NewJSON returns a source for the export file at path.
func NewJSON(tag, path string, log *slog.Logger) *JSON {
	if log == nil {
		log = slog.Default()
	}
	return &JSON{tag: tag, path: path, log: log}
}

func (j *JSON) Tag() string { return j.tag }

func (j *JSON) Extract(ctx context.Context) ([]history.Pair, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return nil, fmt.Errorf("json source %s: %w", j.path, err)
	}
	var records []jsonVisit
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("json source %s: %w", j.path, err)
	}

	pairs := make([]history.Pair, 0, len(records))
	skipped := 0
	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dt, naive, err := parseTimestamp(r.DT)
		if err != nil {
			skipped++
			j.log.Warn("skipping record", "index", i, "url", r.URL, "error", err)
			continue
		}
		title := r.Title
		if title == "" {
			title = j.tag
		}
		href := r.Href
		if href == "" {
			href = r.URL
		}
		pairs = append(pairs, history.Pair{
			URL: r.URL,
			Visit: history.Visit{
				DT:          dt,
				NoZone:      naive,
				Source:      j.tag,
				Context:     r.Context,
				Duration:    r.Duration,
				Locator:     history.Locator{Title: title, Href: href},
				OriginalURL: r.URL,
			},
		})
	}
	j.log.Info("extracted", "visits", len(pairs), "skipped", skipped)
	return pairs, nil
}

// parseTimestamp accepts RFC 3339 or a naive local timestamp. Naive values
// come back with their wall clock in UTC and naive set.
func parseTimestamp(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, false, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognised timestamp %q", s)
}
