package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/wereyouhere/internal/config"
	"github.com/runnerr0/wereyouhere/internal/history"
	"github.com/runnerr0/wereyouhere/internal/sources"
	"github.com/runnerr0/wereyouhere/internal/storage"
)

type fakeSource struct {
	tag   string
	pairs []history.Pair
	err   error
}

func (f fakeSource) Tag() string { return f.tag }

func (f fakeSource) Extract(context.Context) ([]history.Pair, error) {
	return f.pairs, f.err
}

var base = time.Date(2019, 7, 14, 10, 0, 0, 0, time.UTC)

func pair(url string, dt time.Time, src string) history.Pair {
	return history.Pair{URL: url, Visit: history.Visit{DT: dt, Source: src}}
}

func TestRunWritesStoreAndSummary(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		StoreDirectory: dir,
		Sources: []sources.Source{
			fakeSource{tag: "A", pairs: []history.Pair{
				pair("https://example.com/a", base, "A"),
				pair("https://example.com/b", base.Add(time.Hour), "A"),
				pair(" ", base, "A"),
			}},
			fakeSource{tag: "broken", err: errors.New("permission denied")},
			fakeSource{tag: "B", pairs: []history.Pair{
				pair("http://www.example.com/a/", base.Add(15*time.Minute), "B"),
			}},
		},
	}

	stats, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Sources)
	assert.Equal(t, 1, stats.FailedSources)
	assert.Equal(t, 3, stats.Visits)
	assert.Equal(t, 1, stats.Dropped)
	assert.Equal(t, 2, stats.URLs)
	assert.Equal(t, filepath.Join(dir, storage.FileName), stats.StorePath)

	data, err := os.ReadFile(filepath.Join(dir, SummaryFileName))
	require.NoError(t, err)
	var summary map[string][]string
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, map[string][]string{
		"example.com/a": {"14 Jul 2019 10:00--10:15 (A:B)"},
		"example.com/b": {"14 Jul 2019 11:00 (A)"},
	}, summary)

	store, err := storage.Open(stats.StorePath)
	require.NoError(t, err)
	defer store.Close()
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	visits, err := store.Scan(context.Background(), storage.ExactMatch{URL: "example.com/a"}, time.UTC)
	require.NoError(t, err)
	require.Len(t, visits, 2)
	assert.Equal(t, "A", visits[0].Source)
	assert.Equal(t, "B", visits[1].Source)

	leftovers, err := filepath.Glob(filepath.Join(dir, ".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestRunReplacesExistingStore(t *testing.T) {
	dir := t.TempDir()
	run := func(url string) {
		_, err := Run(context.Background(), Options{
			StoreDirectory: dir,
			Sources:        []sources.Source{fakeSource{tag: "A", pairs: []history.Pair{pair(url, base, "A")}}},
		})
		require.NoError(t, err)
	}

	run("https://first.com")
	run("https://second.com")

	store, err := storage.Open(filepath.Join(dir, storage.FileName))
	require.NoError(t, err)
	defer store.Close()
	got, err := store.VisitedSet(context.Background(), []string{"first.com", "second.com"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"second.com": true}, got)
}

func TestRunRequiresStoreDirectory(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = Run(context.Background(), Options{StoreDirectory: filepath.Join(t.TempDir(), "missing")})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestRunNoSourcesWritesEmptyStore(t *testing.T) {
	dir := t.TempDir()

	stats, err := Run(context.Background(), Options{StoreDirectory: dir})
	require.NoError(t, err)
	assert.Zero(t, stats.Visits)

	store, err := storage.Open(stats.StorePath)
	require.NoError(t, err)
	defer store.Close()
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StoreDirectory = t.TempDir()
	cfg.Grouping.Gap = "30m"
	cfg.HistorySources = []config.SourceConfig{{Kind: "plaintext", Tag: "notes", Path: cfg.StoreDirectory}}

	opts, err := OptionsFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, opts.Gap)
	require.Len(t, opts.Sources, 1)
	assert.Equal(t, "notes", opts.Sources[0].Tag())
	assert.NotNil(t, opts.Normaliser)
}
