package search

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/runnerr0/wereyouhere/internal/config"
	"github.com/runnerr0/wereyouhere/internal/history"
)

// Filter drops visits from query results.
type Filter interface {
	Exclude(v history.Visit) bool
}

type domainFilter string

// Exclude matches the domain itself and any subdomain of it.
func (d domainFilter) Exclude(v history.Visit) bool {
	host := hostOf(v)
	dom := string(d)
	return host == dom || strings.HasSuffix(host, "."+dom)
}

type regexFilter struct {
	re *regexp.Regexp
}

func (f regexFilter) Exclude(v history.Visit) bool {
	return f.re.MatchString(v.NormalisedURL) || f.re.MatchString(v.OriginalURL)
}

// hostOf extracts the hostname a visit was made to.
func hostOf(v history.Visit) string {
	raw := v.OriginalURL
	if raw == "" {
		raw = v.NormalisedURL
	}
	if !strings.Contains(raw, "://") {
		raw = "//" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// FiltersFromConfig builds the query filters named in the config.
func FiltersFromConfig(fcs []config.FilterConfig) ([]Filter, error) {
	out := make([]Filter, 0, len(fcs))
	for i, fc := range fcs {
		switch fc.Type {
		case "domain":
			out = append(out, domainFilter(strings.ToLower(strings.TrimPrefix(fc.Value, "www."))))
		case "regex":
			re, err := regexp.Compile(fc.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: query_filters[%d]: %v", config.ErrInvalid, i, err)
			}
			out = append(out, regexFilter{re: re})
		default:
			return nil, fmt.Errorf("%w: query_filters[%d]: unknown type %q", config.ErrInvalid, i, fc.Type)
		}
	}
	return out, nil
}

func applyFilters(visits []history.Visit, filters []Filter) []history.Visit {
	if len(filters) == 0 {
		return visits
	}
	kept := visits[:0]
outer:
	for _, v := range visits {
		for _, f := range filters {
			if f.Exclude(v) {
				continue outer
			}
		}
		kept = append(kept, v)
	}
	return kept
}
