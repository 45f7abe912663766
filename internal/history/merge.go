package history

import (
	"log/slog"
	"sort"

	"github.com/runnerr0/wereyouhere/internal/normalise"
)

// MergeResult is the output of Merge.
type MergeResult struct {
	// Entries are sorted ascending by URL; visits within each are sorted
	// ascending by DT.
	Entries []Entry
	Visits  int
	Dropped int
}

// Merge groups every pair from every block by normalised URL. Visits keep
// arrival order when their timestamps are equal, and identical visits from
// overlapping blocks are all kept.
func Merge(n normalise.Normaliser, blocks [][]Pair, log *slog.Logger) MergeResult {
	if log == nil {
		log = slog.Default()
	}

	var res MergeResult
	byURL := make(map[string]*Entry)
	for bi, block := range blocks {
		for _, p := range block {
			key, err := n.Normalise(p.URL)
			if err != nil || key == "" {
				res.Dropped++
				log.Warn("dropping visit with unresolvable url", "block", bi, "url", p.URL, "error", err)
				continue
			}
			v := p.Visit
			v.NormalisedURL = key
			if v.OriginalURL == "" {
				v.OriginalURL = p.URL
			}
			e, ok := byURL[key]
			if !ok {
				e = &Entry{URL: key}
				byURL[key] = e
			}
			e.Visits = append(e.Visits, v)
			res.Visits++
		}
	}

	res.Entries = make([]Entry, 0, len(byURL))
	for _, e := range byURL {
		sort.SliceStable(e.Visits, func(i, j int) bool {
			return e.Visits[i].Before(e.Visits[j])
		})
		res.Entries = append(res.Entries, *e)
	}
	sort.Slice(res.Entries, func(i, j int) bool {
		return res.Entries[i].URL < res.Entries[j].URL
	})
	return res
}
