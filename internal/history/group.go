package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultGap is the grouping threshold between consecutive visits.
const DefaultGap = 20 * time.Minute

const (
	dateTimeLayout = "02 Jan 2006 15:04"
	timeLayout     = "15:04"
	tagSeparator   = ":"
)

// GroupVisits splits visits (sorted ascending) into runs where each visit is
// within gap of the visit added just before it.
func GroupVisits(visits []Visit, gap time.Duration) [][]Visit {
	var groups [][]Visit
	var cur []Visit
	for _, v := range visits {
		if len(cur) > 0 && v.DT.Sub(cur[len(cur)-1].DT) > gap {
			groups = append(groups, cur)
			cur = nil
		}
		cur = append(cur, v)
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// FormatGroups renders each group as a date/time range with its source tags,
// most recent group first.
func FormatGroups(groups [][]Visit) []string {
	out := make([]string, 0, len(groups))
	for i := len(groups) - 1; i >= 0; i-- {
		out = append(out, formatGroup(groups[i]))
	}
	return out
}

func formatGroup(g []Visit) string {
	seen := make(map[string]struct{}, len(g))
	var tags []string
	for _, v := range g {
		if _, ok := seen[v.Source]; ok {
			continue
		}
		seen[v.Source] = struct{}{}
		tags = append(tags, v.Source)
	}
	sort.Strings(tags)
	stags := strings.Join(tags, tagSeparator)

	first := g[0].DT
	if len(g) == 1 {
		return fmt.Sprintf("%s (%s)", first.Format(dateTimeLayout), stags)
	}
	last := g[len(g)-1].DT
	return fmt.Sprintf("%s--%s (%s)", first.Format(dateTimeLayout), last.Format(timeLayout), stags)
}

// Summarise formats every entry's visits, keyed by URL.
func Summarise(entries []Entry, gap time.Duration) map[string][]string {
	if gap <= 0 {
		gap = DefaultGap
	}
	out := make(map[string][]string, len(entries))
	for _, e := range entries {
		out[e.URL] = FormatGroups(GroupVisits(e.Visits, gap))
	}
	return out
}

// WriteSummary writes summary as an indented JSON object at path. Keys come
// out sorted, so identical inputs produce identical files.
func WriteSummary(path string, summary map[string][]string) error {
	data, err := json.MarshalIndent(summary, "", " ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".urls-*.json")
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close summary: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename summary: %w", err)
	}
	return nil
}
