// Package indexer runs the offline pass that turns history sources into the
// visit store and the urls.json summary.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/runnerr0/wereyouhere/internal/config"
	"github.com/runnerr0/wereyouhere/internal/history"
	"github.com/runnerr0/wereyouhere/internal/normalise"
	"github.com/runnerr0/wereyouhere/internal/sources"
	"github.com/runnerr0/wereyouhere/internal/storage"
)

// SummaryFileName is the grouped summary written next to the store.
const SummaryFileName = "urls.json"

// Options configures one indexing run.
type Options struct {
	StoreDirectory string
	Sources        []sources.Source
	Normaliser     normalise.Normaliser
	Gap            time.Duration
	Logger         *slog.Logger
}

// Stats summarises a finished run.
type Stats struct {
	Sources       int
	FailedSources int
	Visits        int
	Dropped       int
	URLs          int
	StorePath     string
	SummaryPath   string
	Duration      time.Duration
}

// OptionsFromConfig builds Options from a loaded config.
func OptionsFromConfig(cfg *config.Config, log *slog.Logger) (Options, error) {
	srcs, err := sources.FromConfig(cfg.HistorySources, log)
	if err != nil {
		return Options{}, err
	}
	gap, err := cfg.GroupGap()
	if err != nil {
		return Options{}, err
	}
	return Options{
		StoreDirectory: cfg.StoreDirectory,
		Sources:        srcs,
		Normaliser:     normalise.New(cfg.Normalise),
		Gap:            gap,
		Logger:         log,
	}, nil
}

// Run extracts every source, merges the results and replaces the store and
// summary in the store directory. A source that fails is logged and skipped.
func Run(ctx context.Context, opts Options) (Stats, error) {
	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(opts.StoreDirectory) == "" {
		return Stats{}, fmt.Errorf("%w: store_directory must be set", config.ErrInvalid)
	}
	if info, err := os.Stat(opts.StoreDirectory); err != nil || !info.IsDir() {
		return Stats{}, fmt.Errorf("%w: store_directory %s is not a directory", config.ErrInvalid, opts.StoreDirectory)
	}
	n := opts.Normaliser
	if n == nil {
		n = normalise.Default()
	}

	stats := Stats{Sources: len(opts.Sources)}
	if len(opts.Sources) == 0 {
		log.Warn("no history sources configured")
	}

	blocks := make([][]history.Pair, 0, len(opts.Sources))
	for _, src := range opts.Sources {
		pairs, err := src.Extract(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			stats.FailedSources++
			log.Warn("history source failed", "source", src.Tag(), "error", err)
			continue
		}
		log.Info("got visits from source", "source", src.Tag(), "count", len(pairs))
		blocks = append(blocks, pairs)
	}

	res := history.Merge(n, blocks, log)
	stats.Visits = res.Visits
	stats.Dropped = res.Dropped
	stats.URLs = len(res.Entries)

	stats.SummaryPath = filepath.Join(opts.StoreDirectory, SummaryFileName)
	if err := history.WriteSummary(stats.SummaryPath, history.Summarise(res.Entries, opts.Gap)); err != nil {
		return stats, err
	}

	stats.StorePath = filepath.Join(opts.StoreDirectory, storage.FileName)
	if err := writeStore(ctx, stats.StorePath, res.Entries); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	log.Info("index complete",
		"visits", stats.Visits,
		"urls", stats.URLs,
		"dropped", stats.Dropped,
		"failed_sources", stats.FailedSources,
		"duration", stats.Duration)
	return stats, nil
}

// writeStore builds the table beside path and renames it into place, so a
// running server only ever sees a complete file with a new mtime.
func writeStore(ctx context.Context, path string, entries []history.Entry) (err error) {
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	defer func() {
		if err != nil {
			for _, p := range []string{tmp, tmp + "-wal", tmp + "-shm"} {
				os.Remove(p)
			}
		}
	}()

	w, err := storage.CreateWriter(tmp)
	if err != nil {
		return err
	}
	var visits []history.Visit
	for _, e := range entries {
		visits = append(visits, e.Visits...)
	}
	if err := w.AddVisits(ctx, visits); err != nil {
		return errors.Join(err, w.Close())
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("install store: %w", err)
	}
	return nil
}
