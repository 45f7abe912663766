package sources

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/runnerr0/wereyouhere/internal/history"
)

// Takeout reads browser history out of a Google Takeout export, either the
// downloaded zip or a directory it was unpacked into. Two files are used:
// Chrome/BrowserHistory.json and My Activity/Chrome/MyActivity.json.
type Takeout struct {
	tag  string
	path string
	log  *slog.Logger
}

// NewTakeout returns a source for the export at path.
func NewTakeout(tag, path string, log *slog.Logger) *Takeout {
	if log == nil {
		log = slog.Default()
	}
	return &Takeout{tag: tag, path: path, log: log}
}

func (t *Takeout) Tag() string { return t.tag }

type browserHistory struct {
	Entries []struct {
		Title    string `json:"title"`
		URL      string `json:"url"`
		TimeUsec int64  `json:"time_usec"`
	} `json:"Browser History"`
}

type activityItem struct {
	Header   string `json:"header"`
	Title    string `json:"title"`
	TitleURL string `json:"titleUrl"`
	Time     string `json:"time"`
}

func (t *Takeout) Extract(ctx context.Context) ([]history.Pair, error) {
	fsys, closeFn, err := t.open()
	if err != nil {
		return nil, fmt.Errorf("takeout source %s: %w", t.path, err)
	}
	defer closeFn()

	var pairs []history.Pair
	files := 0
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		var got []history.Pair
		switch {
		case d.Name() == "BrowserHistory.json" && path.Base(path.Dir(p)) == "Chrome":
			got, err = t.browserHistory(fsys, p)
		case d.Name() == "MyActivity.json" && path.Base(path.Dir(p)) == "Chrome":
			got, err = t.myActivity(fsys, p)
		default:
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		files++
		pairs = append(pairs, got...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("takeout source %s: %w", t.path, err)
	}
	if files == 0 {
		t.log.Warn("no browser history found in export", "path", t.path)
	}
	t.log.Info("extracted", "visits", len(pairs), "files", files)
	return pairs, nil
}

// open exposes a zip or a directory through the same fs.FS.
func (t *Takeout) open() (fs.FS, func(), error) {
	info, err := os.Stat(t.path)
	if err != nil {
		return nil, nil, err
	}
	if info.IsDir() {
		return os.DirFS(t.path), func() {}, nil
	}
	zr, err := zip.OpenReader(t.path)
	if err != nil {
		return nil, nil, err
	}
	return zr, func() { zr.Close() }, nil
}

func (t *Takeout) browserHistory(fsys fs.FS, p string) ([]history.Pair, error) {
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return nil, err
	}
	var bh browserHistory
	if err := json.Unmarshal(data, &bh); err != nil {
		return nil, err
	}
	pairs := make([]history.Pair, 0, len(bh.Entries))
	for _, e := range bh.Entries {
		if e.URL == "" || e.TimeUsec <= 0 {
			continue
		}
		pairs = append(pairs, t.pair(e.URL, time.UnixMicro(e.TimeUsec).UTC(), e.Title, p))
	}
	return pairs, nil
}

func (t *Takeout) myActivity(fsys fs.FS, p string) ([]history.Pair, error) {
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return nil, err
	}
	var items []activityItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	pairs := make([]history.Pair, 0, len(items))
	for _, it := range items {
		if it.TitleURL == "" {
			continue
		}
		dt, err := time.Parse(time.RFC3339Nano, it.Time)
		if err != nil {
			t.log.Warn("skipping activity", "url", it.TitleURL, "error", err)
			continue
		}
		title := strings.TrimPrefix(it.Title, "Visited ")
		pairs = append(pairs, t.pair(it.TitleURL, dt, title, p))
	}
	return pairs, nil
}

func (t *Takeout) pair(u string, dt time.Time, title, p string) history.Pair {
	var ctxText *string
	if title != "" {
		ctxText = &title
	}
	return history.Pair{
		URL: u,
		Visit: history.Visit{
			DT:          dt,
			Source:      t.tag,
			Context:     ctxText,
			Locator:     history.Locator{Title: p, Href: u},
			OriginalURL: u,
		},
	}
}
