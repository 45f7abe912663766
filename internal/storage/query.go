package storage

import (
	"time"

	"github.com/runnerr0/wereyouhere/internal/history"
)

// Query selects visit rows. The concrete kinds are ExactMatch,
// SubstringMatch and TimeWindow.
type Query interface {
	// where returns the SQL condition and its arguments.
	where() (string, []any)
	// keep re-checks a localized visit; SQL may over-select.
	keep(v history.Visit) bool
}

// ExactMatch selects visits whose normalised URL equals URL.
type ExactMatch struct {
	URL string
}

func (q ExactMatch) where() (string, []any) {
	return "norm_url = ?", []any{q.URL}
}

func (q ExactMatch) keep(history.Visit) bool { return true }

// SubstringMatch selects visits whose normalised URL contains URL. The
// match is literal containment: '%' and '_' have no special meaning.
type SubstringMatch struct {
	URL string
}

func (q SubstringMatch) where() (string, []any) {
	return "instr(norm_url, ?) > 0", []any{q.URL}
}

func (q SubstringMatch) keep(history.Visit) bool { return true }

// TimeWindow selects visits with At-Before <= dt <= At+After, regardless
// of URL.
type TimeWindow struct {
	At     time.Time
	Before time.Duration
	After  time.Duration
}

func (q TimeWindow) bounds() (time.Time, time.Time) {
	return q.At.Add(-q.Before), q.At.Add(q.After)
}

func (q TimeWindow) where() (string, []any) {
	lo, hi := q.bounds()
	loSec := floorUnix(lo)
	hiSec := ceilUnix(hi)
	slack := int64(naiveSlack / time.Second)
	return "(naive = 0 AND epoch BETWEEN ? AND ?) OR (naive = 1 AND epoch BETWEEN ? AND ?)",
		[]any{loSec, hiSec, loSec - slack, hiSec + slack}
}

func (q TimeWindow) keep(v history.Visit) bool {
	lo, hi := q.bounds()
	return !v.DT.Before(lo) && !v.DT.After(hi)
}

func floorUnix(t time.Time) int64 {
	return t.Unix()
}

func ceilUnix(t time.Time) int64 {
	if t.Nanosecond() > 0 {
		return t.Unix() + 1
	}
	return t.Unix()
}
