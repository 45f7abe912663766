// Package normalise turns raw URLs into the comparison keys used by the
// merger, the indexer and the search service. Two URLs are the same page
// iff their normalised forms are equal.
package normalise

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

// ErrUnresolvable is returned for input that has no normalised form.
var ErrUnresolvable = errors.New("normalise: unresolvable url")

// Normaliser maps a raw URL to its canonical key. Implementations must be
// deterministic and idempotent.
type Normaliser interface {
	Normalise(raw string) (string, error)
}

// Func adapts a plain function to Normaliser.
type Func func(raw string) (string, error)

// Normalise calls f.
func (f Func) Normalise(raw string) (string, error) { return f(raw) }

// Rules toggles the individual transformations applied by RuleNormaliser.
type Rules struct {
	StripScheme         bool `yaml:"strip_scheme" toml:"strip_scheme"`
	LowercaseHost       bool `yaml:"lowercase_host" toml:"lowercase_host"`
	StripWWW            bool `yaml:"strip_www" toml:"strip_www"`
	StripFragment       bool `yaml:"strip_fragment" toml:"strip_fragment"`
	StripQuery          bool `yaml:"strip_query" toml:"strip_query"`
	StripTrackingParams bool `yaml:"strip_tracking_params" toml:"strip_tracking_params"`
	StripTrailingSlash  bool `yaml:"strip_trailing_slash" toml:"strip_trailing_slash"`
}

// DefaultRules returns the rule set used when the config does not override it.
func DefaultRules() Rules {
	return Rules{
		StripScheme:         true,
		LowercaseHost:       true,
		StripWWW:            true,
		StripFragment:       true,
		StripQuery:          false,
		StripTrackingParams: true,
		StripTrailingSlash:  true,
	}
}

// trackingParams are query parameters dropped by StripTrackingParams.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"gclsrc":       {},
	"dclid":        {},
	"msclkid":      {},
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// RuleNormaliser applies a fixed Rules set.
type RuleNormaliser struct {
	rules Rules
}

// New returns a RuleNormaliser for rules.
func New(rules Rules) *RuleNormaliser {
	return &RuleNormaliser{rules: rules}
}

// Default returns a RuleNormaliser using DefaultRules.
func Default() *RuleNormaliser {
	return New(DefaultRules())
}

// Rules returns the active rule set.
func (n *RuleNormaliser) Rules() Rules { return n.rules }

// Normalise implements Normaliser.
//
// When StripScheme is on the output has no scheme, so re-normalising it
// goes through the scheme-less branch and must yield the same string.
func (n *RuleNormaliser) Normalise(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty input", ErrUnresolvable)
	}

	schemeless := !hasScheme(s)
	if schemeless {
		// Parse host/path forms ("example.com/a") as network paths.
		s = "//" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if u.Host == "" {
		if schemeless || u.Opaque != "" {
			// mailto:, about:blank and friends have no host to canonicalise.
			return strings.TrimSpace(raw), nil
		}
		if u.Path == "" {
			return "", fmt.Errorf("%w: no host in %q", ErrUnresolvable, raw)
		}
	}

	host := normaliseHost(u, scheme, n.rules)
	if u.User != nil {
		host = u.User.String() + "@" + host
	}

	p := u.EscapedPath()
	if n.rules.StripTrailingSlash {
		p = stripTrailingSlash(p)
	}

	query := u.RawQuery
	switch {
	case n.rules.StripQuery:
		query = ""
	case n.rules.StripTrackingParams:
		query = cleanQuery(u.RawQuery)
	}

	var b strings.Builder
	if !n.rules.StripScheme && scheme != "" {
		b.WriteString(scheme)
		b.WriteString("://")
	} else if n.rules.StripScheme && scheme != "" && scheme != "http" && scheme != "https" {
		// Only web schemes are interchangeable; keep the rest.
		b.WriteString(scheme)
		b.WriteString("://")
	}
	b.WriteString(host)
	b.WriteString(p)
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	if !n.rules.StripFragment && u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.EscapedFragment())
	}
	return b.String(), nil
}

// hasScheme reports whether s starts with "scheme:" per RFC 3986.
func hasScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' || c == '+' || c == '-' || c == '.':
			if i == 0 {
				return false
			}
		case c == ':':
			if i == 0 {
				return false
			}
			// "example.com:8080/x" is a host with a port, not a scheme.
			rest := s[i+1:]
			if rest != "" && rest[0] >= '0' && rest[0] <= '9' {
				return false
			}
			return true
		default:
			return false
		}
	}
	return false
}

func normaliseHost(u *url.URL, scheme string, rules Rules) string {
	hostname := u.Hostname()
	port := u.Port()
	if rules.LowercaseHost {
		hostname = strings.ToLower(hostname)
	}
	if rules.StripWWW {
		for strings.HasPrefix(hostname, "www.") {
			hostname = hostname[len("www."):]
		}
	}
	if strings.Contains(hostname, ":") {
		hostname = "[" + hostname + "]"
	}
	if port == "" {
		return hostname
	}
	if def, ok := defaultPorts[scheme]; ok && def == port {
		return hostname
	}
	if scheme == "" && (port == "80" || port == "443") {
		return hostname
	}
	return hostname + ":" + port
}

func stripTrailingSlash(p string) string {
	if p == "" || p == "/" {
		return ""
	}
	if strings.Contains(p, "/./") || strings.Contains(p, "/../") {
		p = path.Clean(p)
	}
	return strings.TrimRight(p, "/")
}

// cleanQuery drops tracking parameters and sorts the rest so that parameter
// order does not split one page into several keys.
func cleanQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		key := p
		if i := strings.IndexByte(p, '='); i >= 0 {
			key = p[:i]
		}
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if _, tracked := trackingParams[strings.ToLower(key)]; tracked {
			continue
		}
		kept = append(kept, p)
	}
	sort.Strings(kept)
	return strings.Join(kept, "&")
}
