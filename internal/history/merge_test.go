package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/wereyouhere/internal/normalise"
)

var base = time.Date(2019, 7, 14, 10, 0, 0, 0, time.UTC)

func pair(url string, dt time.Time, src string) Pair {
	return Pair{URL: url, Visit: Visit{DT: dt, Source: src, Locator: Locator{Title: src}}}
}

func TestMergeGroupsByNormalisedURL(t *testing.T) {
	blockA := []Pair{
		pair("https://example.com/a", base.Add(2*time.Hour), "A"),
		pair("https://example.com/b", base, "A"),
	}
	blockB := []Pair{
		pair("http://www.example.com/a/", base, "B"),
	}

	res := Merge(normalise.Default(), [][]Pair{blockA, blockB}, nil)

	require.Len(t, res.Entries, 2)
	assert.Equal(t, 3, res.Visits)
	assert.Equal(t, 0, res.Dropped)

	a := res.Entries[0]
	assert.Equal(t, "example.com/a", a.URL)
	require.Len(t, a.Visits, 2)
	assert.Equal(t, "B", a.Visits[0].Source)
	assert.Equal(t, "A", a.Visits[1].Source)
	assert.Equal(t, "http://www.example.com/a/", a.Visits[0].OriginalURL)
	for _, v := range a.Visits {
		assert.Equal(t, "example.com/a", v.NormalisedURL)
	}

	assert.Equal(t, "example.com/b", res.Entries[1].URL)
}

func TestMergeIsOrderIndependent(t *testing.T) {
	blockA := []Pair{
		pair("https://example.com/a", base.Add(time.Minute), "A"),
		pair("https://example.com/b", base, "A"),
	}
	blockB := []Pair{
		pair("https://example.com/a", base, "B"),
		pair("https://example.com/c", base.Add(time.Hour), "B"),
	}
	n := normalise.Default()

	ab := Merge(n, [][]Pair{blockA, blockB}, nil)
	ba := Merge(n, [][]Pair{blockB, blockA}, nil)
	assert.Equal(t, ab.Entries, ba.Entries)
}

func TestMergeKeepsDuplicates(t *testing.T) {
	p := pair("https://example.com/a", base, "A")

	res := Merge(normalise.Default(), [][]Pair{{p}, {p}}, nil)

	require.Len(t, res.Entries, 1)
	assert.Len(t, res.Entries[0].Visits, 2)
}

func TestMergeStableForEqualTimestamps(t *testing.T) {
	res := Merge(normalise.Default(), [][]Pair{{
		pair("https://example.com/a", base, "first"),
		pair("https://example.com/a", base, "second"),
		pair("https://example.com/a", base.Add(-time.Minute), "earliest"),
	}}, nil)

	require.Len(t, res.Entries, 1)
	var srcs []string
	for _, v := range res.Entries[0].Visits {
		srcs = append(srcs, v.Source)
	}
	assert.Equal(t, []string{"earliest", "first", "second"}, srcs)
}

func TestMergeDropsUnresolvable(t *testing.T) {
	res := Merge(normalise.Default(), [][]Pair{{
		pair("   ", base, "A"),
		pair("https://example.com", base, "A"),
	}}, nil)

	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 1, res.Visits)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "example.com", res.Entries[0].URL)
}

func TestMergeEmpty(t *testing.T) {
	res := Merge(normalise.Default(), nil, nil)
	assert.NotNil(t, res.Entries)
	assert.Empty(t, res.Entries)
}

func TestLocalize(t *testing.T) {
	plus1 := time.FixedZone("+01:00", 3600)
	naive := Visit{DT: time.Date(2020, 1, 2, 9, 30, 0, 0, time.UTC), NoZone: true}

	got := naive.Localize(plus1)
	assert.False(t, got.NoZone)
	assert.Equal(t, 9, got.DT.Hour())
	assert.Equal(t, plus1, got.DT.Location())
	assert.Equal(t, time.Date(2020, 1, 2, 8, 30, 0, 0, time.UTC), got.DT.UTC())

	zoned := Visit{DT: base}
	assert.Equal(t, zoned, zoned.Localize(plus1))
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	require.NotNil(t, StringPtr("x"))
	assert.Equal(t, "x", *StringPtr("x"))
}
