// Package history holds the visit data model, the merger that consolidates
// per-source visit lists and the grouper that renders them as time ranges.
package history

import "time"

// Locator describes where within a page or source a visit was observed.
type Locator struct {
	Title string
	Href  string
}

// Visit is one observed access of a URL.
type Visit struct {
	DT time.Time
	// NoZone marks DT as timezone-naive: only its wall clock is meaningful.
	NoZone        bool
	Source        string
	Context       *string
	Duration      *int64 // seconds
	Locator       Locator
	OriginalURL   string
	NormalisedURL string
}

// Localize attaches loc to a timezone-naive visit, keeping its wall clock.
// Visits that already carry a zone are returned unchanged.
func (v Visit) Localize(loc *time.Location) Visit {
	if !v.NoZone || loc == nil {
		return v
	}
	d := v.DT
	v.DT = time.Date(d.Year(), d.Month(), d.Day(), d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), loc)
	v.NoZone = false
	return v
}

// Before orders visits by instant. Naive visits compare by wall clock as if
// they were UTC, which is also how the store indexes them.
func (v Visit) Before(o Visit) bool {
	return v.DT.Before(o.DT)
}

// Entry is every visit sharing one normalised URL.
type Entry struct {
	URL    string
	Visits []Visit
}

// Pair is what a history source emits: the raw source URL and its visit.
type Pair struct {
	URL   string
	Visit Visit
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
