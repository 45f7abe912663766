package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/runnerr0/wereyouhere/internal/config"
	"github.com/runnerr0/wereyouhere/internal/indexer"
)

type indexJSON struct {
	StorePath     string `json:"store_path"`
	SummaryPath   string `json:"summary_path"`
	Sources       int    `json:"sources"`
	FailedSources int    `json:"failed_sources"`
	Visits        int    `json:"visits"`
	URLs          int    `json:"urls"`
	Dropped       int    `json:"dropped"`
	DurationMS    int64  `json:"duration_ms"`
}

// Execute implements the go-flags Commander interface for IndexCommand.
func (c *IndexCommand) Execute(args []string) error {
	cfg, log, err := setup(c.globals)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return c.executeWithConfig(ctx, cfg, log)
}

// executeWithConfig runs the indexing pass for cfg (for testing).
func (c *IndexCommand) executeWithConfig(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	opts, err := indexer.OptionsFromConfig(cfg, log)
	if err != nil {
		return err
	}
	stats, err := indexer.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(indexJSON{
			StorePath:     stats.StorePath,
			SummaryPath:   stats.SummaryPath,
			Sources:       stats.Sources,
			FailedSources: stats.FailedSources,
			Visits:        stats.Visits,
			URLs:          stats.URLs,
			Dropped:       stats.Dropped,
			DurationMS:    stats.Duration.Milliseconds(),
		})
	}

	fmt.Printf("Indexed %s %s across %s %s from %d %s\n",
		formatNumber(int64(stats.Visits)), pluralize(stats.Visits, "visit", "visits"),
		formatNumber(int64(stats.URLs)), pluralize(stats.URLs, "URL", "URLs"),
		stats.Sources, pluralize(stats.Sources, "source", "sources"))
	if stats.FailedSources > 0 {
		fmt.Printf("Failed sources: %d (see log)\n", stats.FailedSources)
	}
	if stats.Dropped > 0 {
		fmt.Printf("Dropped:        %s unresolvable\n", formatNumber(int64(stats.Dropped)))
	}
	fmt.Printf("Store:          %s\n", stats.StorePath)
	fmt.Printf("Summary:        %s\n", stats.SummaryPath)
	return nil
}
