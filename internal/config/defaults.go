package config

import "github.com/runnerr0/wereyouhere/internal/normalise"

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		StoreDirectory:   "~/.local/share/wereyouhere",
		FallbackTimezone: "UTC",
		HistorySources:   []SourceConfig{},
		QueryFilters:     []FilterConfig{},
		Normalise:        normalise.DefaultRules(),
		Grouping: GroupingConfig{
			Gap: "20m",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 13131,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
