package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/runnerr0/wereyouhere/internal/config"
	"github.com/runnerr0/wereyouhere/internal/normalise"
	"github.com/runnerr0/wereyouhere/internal/search"
	"github.com/runnerr0/wereyouhere/internal/storage"
)

// App carries what the query commands share: the loaded config, the logger,
// the store provider and the search service over it.
type App struct {
	Config   *config.Config
	Log      *slog.Logger
	Provider *storage.Provider
	Search   *search.Service
}

// loadConfig reads the config named by --config, or the default one
// (created with defaults if missing).
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals != nil && globals.Config != "" {
		return config.Load(globals.Config)
	}
	return config.LoadOrCreate()
}

// newLogger builds the process logger from the logging block. Logs go to w
// so that stdout stays reserved for command output.
func newLogger(lc config.LoggingConfig, verbose bool, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// setup loads the config and installs the logger as the default.
func setup(globals *GlobalFlags) (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, nil, err
	}
	verbose := globals != nil && globals.Verbose
	log := newLogger(cfg.Logging, verbose, os.Stderr)
	slog.SetDefault(log)
	return cfg, log, nil
}

// newApp wires the search service for cfg. The store is not opened yet.
func newApp(cfg *config.Config, log *slog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	filters, err := search.FiltersFromConfig(cfg.QueryFilters)
	if err != nil {
		return nil, err
	}
	provider := storage.NewProvider(cfg.StorePath(storage.FileName), log)
	svc := search.New(search.Options{
		Provider:   provider,
		Normaliser: normalise.New(cfg.Normalise),
		Fallback:   loc,
		Filters:    filters,
		Logger:     log,
	})
	return &App{Config: cfg, Log: log, Provider: provider, Search: svc}, nil
}

// loadApp is setup followed by newApp.
func loadApp(globals *GlobalFlags) (*App, error) {
	cfg, log, err := setup(globals)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, log)
}

// Close releases the store.
func (a *App) Close() error {
	return a.Provider.Close()
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 's':
		return time.Duration(n) * time.Second, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use w, d, h, m or s suffix)", s)
	}
}

// formatDurationHuman formats a duration into a human-readable string like "30 days".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(d.Minutes())
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
