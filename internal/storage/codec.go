package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/runnerr0/wereyouhere/internal/history"
)

// encodeVisit maps a visit onto its persisted row. Naive timestamps keep
// their wall clock and are indexed as if they were UTC.
func encodeVisit(v history.Visit) row {
	r := row{
		NormURL:      v.NormalisedURL,
		OrigURL:      v.OriginalURL,
		Naive:        v.NoZone,
		Source:       v.Source,
		Context:      v.Context,
		Duration:     v.Duration,
		LocatorTitle: v.Locator.Title,
		LocatorHref:  v.Locator.Href,
	}
	if v.NoZone {
		d := v.DT
		wall := time.Date(d.Year(), d.Month(), d.Day(), d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), time.UTC)
		r.DT = wall.Format(naiveLayout)
		r.Epoch = wall.Unix()
	} else {
		r.DT = v.DT.Format(time.RFC3339Nano)
		r.Epoch = v.DT.Unix()
	}
	return r
}

// decodeRow maps a persisted row back onto a visit.
func decodeRow(r row) (history.Visit, error) {
	v := history.Visit{
		NoZone:        r.Naive,
		Source:        r.Source,
		Context:       r.Context,
		Duration:      r.Duration,
		OriginalURL:   r.OrigURL,
		NormalisedURL: r.NormURL,
		Locator: history.Locator{
			Title: r.LocatorTitle,
			Href:  r.LocatorHref,
		},
	}

	var err error
	if r.Naive {
		v.DT, err = time.ParseInLocation(naiveLayout, r.DT, time.UTC)
	} else {
		v.DT, err = time.Parse(time.RFC3339Nano, r.DT)
	}
	if err != nil {
		return history.Visit{}, fmt.Errorf("decode dt %q: %w", r.DT, err)
	}
	return v, nil
}

// visitColumns is the select list scanRow expects.
const visitColumns = `norm_url, orig_url, dt, epoch, naive, src, context, duration, locator_title, locator_href`

func scanRow(rows *sql.Rows) (row, error) {
	var r row
	var context sql.NullString
	var duration sql.NullInt64
	if err := rows.Scan(
		&r.NormURL, &r.OrigURL, &r.DT, &r.Epoch, &r.Naive, &r.Source,
		&context, &duration, &r.LocatorTitle, &r.LocatorHref,
	); err != nil {
		return row{}, err
	}
	if context.Valid {
		s := context.String
		r.Context = &s
	}
	if duration.Valid {
		d := duration.Int64
		r.Duration = &d
	}
	return r, nil
}
