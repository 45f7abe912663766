package storage

import (
	"errors"
	"time"
)

// ErrStoreNotFound is returned by Open when no visit table exists at the path.
var ErrStoreNotFound = errors.New("visit store not found")

// FileName is the name of the visit table inside the store directory.
const FileName = "visits.sqlite"

// naiveLayout stores timezone-naive timestamps; zoned ones use RFC3339Nano.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// naiveSlack widens the SQL window for naive rows. Fallback offsets are
// capped at 14h by config, so the exact check after localization is enough.
const naiveSlack = 14 * time.Hour

// row is the persisted form of a visit.
type row struct {
	NormURL      string
	OrigURL      string
	DT           string
	Epoch        int64
	Naive        bool
	Source       string
	Context      *string
	Duration     *int64
	LocatorTitle string
	LocatorHref  string
}
