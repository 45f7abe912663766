package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/runnerr0/wereyouhere/internal/normalise"
)

// Default config file path.
const DefaultConfigPath = "~/.config/wereyouhere/config.yaml"

// ErrInvalid marks a missing or invalid configuration value.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all wereyouhere configuration.
type Config struct {
	StoreDirectory   string          `yaml:"store_directory" toml:"store_directory"`
	FallbackTimezone string          `yaml:"fallback_timezone" toml:"fallback_timezone"`
	HistorySources   []SourceConfig  `yaml:"history_sources" toml:"history_sources"`
	QueryFilters     []FilterConfig  `yaml:"query_filters" toml:"query_filters"`
	Normalise        normalise.Rules `yaml:"normalise" toml:"normalise"`
	Grouping         GroupingConfig  `yaml:"grouping" toml:"grouping"`
	Server           ServerConfig    `yaml:"server" toml:"server"`
	Logging          LoggingConfig   `yaml:"logging" toml:"logging"`
}

// SourceConfig describes one history source.
type SourceConfig struct {
	Kind string `yaml:"kind" toml:"kind"` // "plaintext", "chrome", "json", "takeout"
	Tag  string `yaml:"tag" toml:"tag"`
	Path string `yaml:"path" toml:"path"`
}

// FilterConfig drops matching visits from query results.
type FilterConfig struct {
	Type  string `yaml:"type" toml:"type"` // "domain", "regex"
	Value string `yaml:"value" toml:"value"`
}

type GroupingConfig struct {
	Gap string `yaml:"gap" toml:"gap"`
}

type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a YAML or TOML config file at path (chosen by extension) and
// merges it with defaults. Paths are expanded and the result validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults, with
// the default denylist as query filters.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.QueryFilters = DenylistFilters()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		if err := cfg.expandPaths(); err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}

	return Load(path)
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func (c *Config) expandPaths() error {
	var err error
	if c.StoreDirectory, err = ExpandPath(c.StoreDirectory); err != nil {
		return err
	}
	for i := range c.HistorySources {
		if c.HistorySources[i].Path, err = ExpandPath(c.HistorySources[i].Path); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks required values. Every failure wraps ErrInvalid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StoreDirectory) == "" {
		return fmt.Errorf("%w: store_directory must be set", ErrInvalid)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.GroupGap(); err != nil {
		return err
	}
	for i, s := range c.HistorySources {
		switch s.Kind {
		case "plaintext", "chrome", "json", "takeout":
		default:
			return fmt.Errorf("%w: history_sources[%d]: unknown kind %q", ErrInvalid, i, s.Kind)
		}
		if s.Path == "" {
			return fmt.Errorf("%w: history_sources[%d]: path must be set", ErrInvalid, i)
		}
	}
	for i, f := range c.QueryFilters {
		switch f.Type {
		case "domain":
		case "regex":
			if _, err := regexp.Compile(f.Value); err != nil {
				return fmt.Errorf("%w: query_filters[%d]: %v", ErrInvalid, i, err)
			}
		default:
			return fmt.Errorf("%w: query_filters[%d]: unknown type %q", ErrInvalid, i, f.Type)
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port)
	}
	return nil
}

// StorePath returns the visit table path inside StoreDirectory.
func (c *Config) StorePath(fileName string) string {
	return filepath.Join(c.StoreDirectory, fileName)
}

// GroupGap parses Grouping.Gap; empty means the 20 minute default.
func (c *Config) GroupGap() (time.Duration, error) {
	if c.Grouping.Gap == "" {
		return 20 * time.Minute, nil
	}
	d, err := time.ParseDuration(c.Grouping.Gap)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: grouping.gap %q", ErrInvalid, c.Grouping.Gap)
	}
	return d, nil
}

// Location resolves FallbackTimezone: an IANA name, "UTC", or a fixed
// offset such as "+01:00", "-0530" or "UTC+2".
func (c *Config) Location() (*time.Location, error) {
	return ParseLocation(c.FallbackTimezone)
}

// ParseLocation resolves a timezone name or fixed offset.
func ParseLocation(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "utc") {
		return time.UTC, nil
	}
	if off, ok := parseOffset(s); ok {
		return time.FixedZone(s, off), nil
	}
	loc, err := time.LoadLocation(s)
	if err != nil {
		return nil, fmt.Errorf("%w: fallback_timezone %q: %v", ErrInvalid, s, err)
	}
	return loc, nil
}

// maxOffsetMinutes bounds fixed fallback offsets to the widest real zone.
const maxOffsetMinutes = 14 * 60

func parseOffset(s string) (int, bool) {
	upper := strings.ToUpper(s)
	upper = strings.TrimPrefix(upper, "UTC")
	upper = strings.TrimPrefix(upper, "GMT")
	if upper == "" || (upper[0] != '+' && upper[0] != '-') {
		return 0, false
	}
	sign := 1
	if upper[0] == '-' {
		sign = -1
	}
	body := strings.ReplaceAll(upper[1:], ":", "")

	var hh, mm int
	var err error
	switch len(body) {
	case 1, 2:
		hh, err = strconv.Atoi(body)
	case 4:
		hh, err = strconv.Atoi(body[:2])
		if err == nil {
			mm, err = strconv.Atoi(body[2:])
		}
	default:
		return 0, false
	}
	if err != nil || mm > 59 || hh*60+mm > maxOffsetMinutes {
		return 0, false
	}
	return sign * (hh*3600 + mm*60), true
}
