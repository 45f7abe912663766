// Package search answers URL and time queries against the visit store.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/runnerr0/wereyouhere/internal/history"
	"github.com/runnerr0/wereyouhere/internal/normalise"
	"github.com/runnerr0/wereyouhere/internal/storage"
)

// SearchAround looks this far back and forward from the given timestamp.
const (
	AroundBefore = 3 * time.Hour
	AroundAfter  = 5 * time.Minute
)

// StoreProvider hands out the current visit store snapshot.
type StoreProvider interface {
	Path() string
	ReloadIfChanged() (bool, error)
	Acquire() (*storage.SQLiteStore, func(), error)
}

// Options configures a Service.
type Options struct {
	Provider   StoreProvider
	Normaliser normalise.Normaliser
	// Fallback is attached to visits stored without a timezone.
	Fallback *time.Location
	Filters  []Filter
	Logger   *slog.Logger
}

// Service implements the query operations exposed to clients.
type Service struct {
	provider   StoreProvider
	normaliser normalise.Normaliser
	fallback   *time.Location
	filters    []Filter
	log        *slog.Logger
}

// New creates a Service. Nil Normaliser, Fallback and Logger fall back to
// normalise.Default(), UTC and slog.Default().
func New(opts Options) *Service {
	s := &Service{
		provider:   opts.Provider,
		normaliser: opts.Normaliser,
		fallback:   opts.Fallback,
		filters:    opts.Filters,
		log:        opts.Logger,
	}
	if s.normaliser == nil {
		s.normaliser = normalise.Default()
	}
	if s.fallback == nil {
		s.fallback = time.UTC
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Status reports store availability.
type Status struct {
	Status    string
	StorePath string
	Visits    int64
}

// Status checks that the store can be opened and counts its rows.
func (s *Service) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.withStore(ctx, "status", func(store *storage.SQLiteStore) error {
		n, err := store.Count(ctx)
		if err != nil {
			return err
		}
		st = Status{Status: "OK", StorePath: store.Path(), Visits: n}
		return nil
	})
	return st, err
}

// Visits returns visits whose normalised URL equals the normalised url.
func (s *Service) Visits(ctx context.Context, url string) ([]history.Visit, error) {
	norm, err := s.normalise(url)
	if err != nil {
		return nil, err
	}
	return s.scan(ctx, "visits", storage.ExactMatch{URL: norm})
}

// Search returns visits whose normalised URL contains the normalised url.
func (s *Service) Search(ctx context.Context, url string) ([]history.Visit, error) {
	norm, err := s.normalise(url)
	if err != nil {
		return nil, err
	}
	return s.scan(ctx, "search", storage.SubstringMatch{URL: norm})
}

// SearchAround returns visits in [ts-3h, ts+5m], ts in epoch seconds.
func (s *Service) SearchAround(ctx context.Context, ts float64) ([]history.Visit, error) {
	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		return nil, fmt.Errorf("%w: timestamp %v", ErrBadInput, ts)
	}
	sec, frac := math.Modf(ts)
	at := time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
	s.log.Info("search around", "timestamp", ts, "at", at)
	return s.scan(ctx, "search_around", storage.TimeWindow{At: at, Before: AroundBefore, After: AroundAfter})
}

// Visited reports, for each url in order, whether its normalised form
// occurs in the store. The store is queried once for the whole batch; urls
// that cannot be normalised are simply false.
func (s *Service) Visited(ctx context.Context, urls []string) ([]bool, error) {
	results := make([]bool, len(urls))
	if len(urls) == 0 {
		return results, nil
	}

	norms := make([]string, len(urls))
	distinct := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for i, u := range urls {
		n, err := s.normaliser.Normalise(u)
		if err != nil {
			s.log.Debug("visited: unresolvable url", "url", u, "error", err)
			continue
		}
		norms[i] = n
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			distinct = append(distinct, n)
		}
	}
	if len(distinct) == 0 {
		return results, nil
	}

	var present map[string]bool
	err := s.withStore(ctx, "visited", func(store *storage.SQLiteStore) error {
		var err error
		present, err = store.VisitedSet(ctx, distinct)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i, n := range norms {
		results[i] = n != "" && present[n]
	}
	s.log.Debug("visited", "urls", len(urls), "distinct", len(distinct), "present", len(present))
	return results, nil
}

func (s *Service) normalise(url string) (string, error) {
	s.log.Info("query", "url", url)
	norm, err := s.normaliser.Normalise(url)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	s.log.Info("normalised url", "url", norm)
	return norm, nil
}

func (s *Service) scan(ctx context.Context, op string, q storage.Query) ([]history.Visit, error) {
	var visits []history.Visit
	err := s.withStore(ctx, op, func(store *storage.SQLiteStore) error {
		var err error
		visits, err = store.Scan(ctx, q, s.fallback)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("got visits from store", "op", op, "count", len(visits))

	visits = applyFilters(visits, s.filters)
	s.log.Debug("responding with visits", "op", op, "count", len(visits))
	return visits, nil
}

// withStore reloads the store if its file changed, then runs fn against
// the current snapshot, releasing it on every path.
func (s *Service) withStore(ctx context.Context, op string, fn func(*storage.SQLiteStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.provider.ReloadIfChanged(); err != nil {
		return classify(op, err)
	}
	store, release, err := s.provider.Acquire()
	defer release()
	if err != nil {
		return classify(op, err)
	}
	if err := fn(store); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return classify(op, err)
	}
	return nil
}
