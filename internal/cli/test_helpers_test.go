package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runnerr0/wereyouhere/internal/config"
	"github.com/runnerr0/wereyouhere/internal/history"
	"github.com/runnerr0/wereyouhere/internal/normalise"
	"github.com/runnerr0/wereyouhere/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

var seedTime = time.Date(2019, 7, 14, 12, 0, 0, 0, time.UTC)

// seedVisits is a small history spread over one afternoon.
func seedVisits() []history.Visit {
	note := "from the reading list"
	dur := int64(90)
	return []history.Visit{
		{DT: seedTime, Source: "chrome", OriginalURL: "https://example.com/page", Duration: &dur,
			Locator: history.Locator{Title: "Example page", Href: "https://example.com/page"}},
		{DT: seedTime.Add(10 * time.Minute), Source: "notes", OriginalURL: "http://www.example.com/page/", Context: &note,
			Locator: history.Locator{Title: "/notes/todo.md:3", Href: "file:///notes/todo.md"}},
		{DT: seedTime.Add(-time.Hour), Source: "chrome", OriginalURL: "https://docs.example.com/page/guide"},
		{DT: seedTime.Add(-24 * time.Hour), Source: "chrome", OriginalURL: "https://other.org/"},
	}
}

// newTestApp writes visits to a fresh store directory and returns an App
// over it.
func newTestApp(t *testing.T, visits []history.Visit) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.StoreDirectory = t.TempDir()

	if visits != nil {
		n := normalise.Default()
		w, err := storage.CreateWriter(filepath.Join(cfg.StoreDirectory, storage.FileName))
		require.NoError(t, err)
		for i := range visits {
			visits[i].NormalisedURL, err = n.Normalise(visits[i].OriginalURL)
			require.NoError(t, err)
		}
		require.NoError(t, w.AddVisits(context.Background(), visits))
		require.NoError(t, w.Close())
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := newApp(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}
