package sources

import (
	"archive/zip"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/wereyouhere/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPlaintextExtract(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.md")
	writeFile(t, notes, "intro\nsee https://example.com/page, and (http://other.org/x).\n")
	writeFile(t, filepath.Join(dir, "sub", "todo.txt"), "read https://docs.example.com/guide\n")
	writeFile(t, filepath.Join(dir, ".git", "config"), "url = https://hidden.example.com\n")
	writeFile(t, filepath.Join(dir, "blob.bin"), "\x00\x01https://binary.example.com")

	mtime := time.Date(2020, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, os.Chtimes(notes, mtime, mtime))

	src := NewPlaintext("notes", dir, nil)
	pairs, err := src.Extract(context.Background())
	require.NoError(t, err)

	var urls []string
	for _, p := range pairs {
		urls = append(urls, p.URL)
		assert.Equal(t, "notes", p.Visit.Source)
	}
	assert.ElementsMatch(t, []string{
		"https://example.com/page",
		"http://other.org/x",
		"https://docs.example.com/guide",
	}, urls)

	var first = pairs[0]
	for _, p := range pairs {
		if p.URL == "https://example.com/page" {
			first = p
		}
	}
	assert.True(t, first.Visit.DT.Equal(mtime))
	assert.False(t, first.Visit.NoZone)
	abs, _ := filepath.Abs(notes)
	assert.Equal(t, abs+":2", first.Visit.Locator.Title)
	assert.Equal(t, "file://"+filepath.ToSlash(abs), first.Visit.Locator.Href)
	require.NotNil(t, first.Visit.Context)
	assert.Equal(t, "see https://example.com/page, and (http://other.org/x).", *first.Visit.Context)
}

func TestPlaintextMissingPath(t *testing.T) {
	_, err := NewPlaintext("notes", filepath.Join(t.TempDir(), "nope"), nil).Extract(context.Background())
	assert.Error(t, err)
}

func TestJSONExtract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	writeFile(t, path, `[
		{"url": "https://example.com/a", "dt": "2020-01-02T10:00:00+01:00", "context": "hi", "duration": 42, "title": "Page A"},
		{"url": "https://example.com/b", "dt": "2020-01-02T10:00:00"},
		{"url": "https://example.com/c", "dt": "yesterday"}
	]`)

	pairs, err := NewJSON("export", path, nil).Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	a := pairs[0].Visit
	assert.Equal(t, "https://example.com/a", pairs[0].URL)
	assert.False(t, a.NoZone)
	assert.True(t, a.DT.Equal(time.Date(2020, 1, 2, 9, 0, 0, 0, time.UTC)))
	require.NotNil(t, a.Context)
	assert.Equal(t, "hi", *a.Context)
	require.NotNil(t, a.Duration)
	assert.Equal(t, int64(42), *a.Duration)
	assert.Equal(t, "Page A", a.Locator.Title)
	assert.Equal(t, "https://example.com/a", a.Locator.Href)

	b := pairs[1].Visit
	assert.True(t, b.NoZone)
	assert.Equal(t, 10, b.DT.Hour())
	assert.Nil(t, b.Context)
	assert.Nil(t, b.Duration)
	assert.Equal(t, "export", b.Locator.Title)
}

func TestJSONMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	writeFile(t, path, `{"not": "an array"}`)

	_, err := NewJSON("export", path, nil).Extract(context.Background())
	assert.Error(t, err)
}

func createChromeHistory(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE urls (id INTEGER PRIMARY KEY, url TEXT, title TEXT);
		CREATE TABLE visits (id INTEGER PRIMARY KEY, url INTEGER, visit_time INTEGER, visit_duration INTEGER);
		INSERT INTO urls VALUES (1, 'https://example.com/a', 'Example A');
		INSERT INTO urls VALUES (2, 'https://example.com/b', '');
		INSERT INTO visits VALUES (1, 1, 13231111200000000, 5000000);
		INSERT INTO visits VALUES (2, 2, 13231111260000000, 0);
		INSERT INTO visits VALUES (3, 1, 13231111320000000, 0);
	`)
	require.NoError(t, err)
}

func TestChromeExtract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "History")
	createChromeHistory(t, path)

	pairs, err := NewChrome("chrome", path, nil).Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 3)

	first := pairs[0]
	assert.Equal(t, "https://example.com/a", first.URL)
	// 13231111200 s after 1601 is 1586637600 s after 1970.
	assert.True(t, first.Visit.DT.Equal(time.Unix(1586637600, 0)))
	require.NotNil(t, first.Visit.Duration)
	assert.Equal(t, int64(5), *first.Visit.Duration)
	assert.Equal(t, "Example A", first.Visit.Locator.Title)
	assert.Equal(t, "chrome", first.Visit.Source)

	assert.Equal(t, "https://example.com/b", pairs[1].URL)
	assert.Nil(t, pairs[1].Visit.Duration)
}

func TestChromeMissingFile(t *testing.T) {
	_, err := NewChrome("chrome", filepath.Join(t.TempDir(), "History"), nil).Extract(context.Background())
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	srcs, err := FromConfig([]config.SourceConfig{
		{Kind: "plaintext", Tag: "notes", Path: "/tmp/notes"},
		{Kind: "chrome", Path: "/tmp/History"},
		{Kind: "json", Tag: "export", Path: "/tmp/x.json"},
		{Kind: "takeout", Path: "/tmp/takeout.zip"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, srcs, 4)
	assert.Equal(t, "notes", srcs[0].Tag())
	assert.Equal(t, "chrome", srcs[1].Tag())
	assert.IsType(t, &JSON{}, srcs[2])
	assert.IsType(t, &Takeout{}, srcs[3])
	assert.Equal(t, "takeout", srcs[3].Tag())

	_, err = FromConfig([]config.SourceConfig{{Kind: "firefox", Path: "/x"}}, nil)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

const takeoutBrowserHistory = `{"Browser History": [
	{"title": "Example page", "url": "https://example.com/page", "time_usec": 1563105600000000},
	{"title": "no time", "url": "https://example.com/skip", "time_usec": 0}
]}`

const takeoutActivity = `[
	{"header": "Chrome", "title": "Visited Docs", "titleUrl": "https://docs.example.com/", "time": "2019-07-14T11:00:00.123Z"},
	{"header": "Chrome", "title": "Searched for go", "time": "2019-07-14T11:05:00Z"},
	{"header": "Chrome", "title": "Visited Bad", "titleUrl": "https://bad.example.com/", "time": "yesterday"}
]`

func writeTakeoutZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "takeout-20190714T000000Z.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func takeoutURLs(t *testing.T, src *Takeout) map[string]time.Time {
	t.Helper()
	pairs, err := src.Extract(context.Background())
	require.NoError(t, err)
	out := make(map[string]time.Time, len(pairs))
	for _, p := range pairs {
		assert.Equal(t, src.Tag(), p.Visit.Source)
		assert.Equal(t, p.URL, p.Visit.Locator.Href)
		out[p.URL] = p.Visit.DT
	}
	return out
}

func TestTakeoutExtractFromZip(t *testing.T) {
	path := writeTakeoutZip(t, map[string]string{
		"Takeout/Chrome/BrowserHistory.json":         takeoutBrowserHistory,
		"Takeout/My Activity/Chrome/MyActivity.json": takeoutActivity,
		"Takeout/Chrome/Bookmarks.html":              "<a href=\"https://ignored.example.com\">x</a>",
	})

	got := takeoutURLs(t, NewTakeout("takeout", path, nil))
	require.Len(t, got, 2)
	assert.True(t, got["https://example.com/page"].Equal(time.Unix(1563105600, 0)))
	assert.True(t, got["https://docs.example.com/"].Equal(time.Date(2019, 7, 14, 11, 0, 0, 123e6, time.UTC)))
}

func TestTakeoutExtractFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Takeout", "Chrome", "BrowserHistory.json"), takeoutBrowserHistory)

	pairs, err := NewTakeout("g", dir, nil).Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "https://example.com/page", pairs[0].URL)
	require.NotNil(t, pairs[0].Visit.Context)
	assert.Equal(t, "Example page", *pairs[0].Visit.Context)
	assert.Equal(t, "Takeout/Chrome/BrowserHistory.json", pairs[0].Visit.Locator.Title)
}

func TestTakeoutMissingOrBroken(t *testing.T) {
	_, err := NewTakeout("g", filepath.Join(t.TempDir(), "nope.zip"), nil).Extract(context.Background())
	assert.Error(t, err)

	notZip := filepath.Join(t.TempDir(), "takeout.zip")
	writeFile(t, notZip, "not a zip")
	_, err = NewTakeout("g", notZip, nil).Extract(context.Background())
	assert.Error(t, err)

	bad := writeTakeoutZip(t, map[string]string{"Takeout/Chrome/BrowserHistory.json": "{"})
	_, err = NewTakeout("g", bad, nil).Extract(context.Background())
	assert.Error(t, err)
}

func TestTakeoutWithoutHistoryIsEmpty(t *testing.T) {
	path := writeTakeoutZip(t, map[string]string{"Takeout/archive_browser.html": "<html></html>"})
	pairs, err := NewTakeout("g", path, nil).Extract(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pairs)
}
