// Package sources extracts raw visits from the history sources named in the
// config.
package sources

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/runnerr0/wereyouhere/internal/config"
	"github.com/runnerr0/wereyouhere/internal/history"
)

// Source yields the visits found in one history location.
type Source interface {
	// Tag labels every visit the source produces.
	Tag() string
	Extract(ctx context.Context) ([]history.Pair, error)
}

// FromConfig builds one Source per descriptor, in order. A descriptor
// without a tag is tagged with its kind.
func FromConfig(cfgs []config.SourceConfig, log *slog.Logger) ([]Source, error) {
	if log == nil {
		log = slog.Default()
	}
	out := make([]Source, 0, len(cfgs))
	for i, c := range cfgs {
		tag := c.Tag
		if tag == "" {
			tag = c.Kind
		}
		l := log.With("source", tag, "kind", c.Kind)
		switch c.Kind {
		case "plaintext":
			out = append(out, NewPlaintext(tag, c.Path, l))
		case "chrome":
			out = append(out, NewChrome(tag, c.Path, l))
		case "json":
			out = append(out, NewJSON(tag, c.Path, l))
		case "takeout":
			out = append(out, NewTakeout(tag, c.Path, l))
		default:
			return nil, fmt.Errorf("%w: history_sources[%d]: unknown kind %q", config.ErrInvalid, i, c.Kind)
		}
	}
	return out, nil
}
