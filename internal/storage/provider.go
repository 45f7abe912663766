package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// generation is one opened snapshot of the store file.
type generation struct {
	store   *SQLiteStore
	modTime time.Time
	refs    int
	retired bool
}

// Provider memoises the open store for a path, keyed by the file's
// modification time. A changed file is opened as a new generation and
// swapped in whole; the old one is closed after its last holder releases it.
type Provider struct {
	path string
	open func(string) (*SQLiteStore, error)
	log  *slog.Logger

	reloadMu sync.Mutex // serialises opens

	mu  sync.Mutex // guards cur and every generation's refs/retired
	cur *generation
}

// NewProvider returns a Provider for the visit table at path. Nothing is
// opened until Load or ReloadIfChanged.
func NewProvider(path string, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{path: path, open: Open, log: log}
}

// Path returns the configured store path.
func (p *Provider) Path() string { return p.path }

// Load opens the store, failing with ErrStoreNotFound if it is missing.
func (p *Provider) Load() error {
	_, err := p.ReloadIfChanged()
	return err
}

// ReloadIfChanged reopens the store when the file's modification time
// differs from the loaded generation. It reports whether a swap happened.
func (p *Provider) ReloadIfChanged() (bool, error) {
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()

	info, err := os.Stat(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("%w: %s", ErrStoreNotFound, p.path)
		}
		return false, fmt.Errorf("stat store: %w", err)
	}

	p.mu.Lock()
	same := p.cur != nil && p.cur.modTime.Equal(info.ModTime())
	p.mu.Unlock()
	if same {
		return false, nil
	}

	store, err := p.open(p.path)
	if err != nil {
		return false, err
	}
	next := &generation{store: store, modTime: store.ModTime()}

	p.mu.Lock()
	old := p.cur
	p.cur = next
	closeOld := false
	if old != nil {
		old.retired = true
		closeOld = old.refs == 0
	}
	p.mu.Unlock()

	if closeOld {
		p.closeGeneration(old)
	}
	p.log.Info("visit store loaded", "path", store.Path(), "mtime", next.modTime)
	return true, nil
}

// Acquire returns the current store and a release func that must be called
// once the caller is done with it, on every path.
func (p *Provider) Acquire() (*SQLiteStore, func(), error) {
	p.mu.Lock()
	g := p.cur
	if g == nil {
		p.mu.Unlock()
		return nil, func() {}, fmt.Errorf("%w: %s", ErrStoreNotFound, p.path)
	}
	g.refs++
	p.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			p.mu.Lock()
			g.refs--
			done := g.retired && g.refs == 0
			p.mu.Unlock()
			if done {
				p.closeGeneration(g)
			}
		})
	}
	return g.store, release, nil
}

// Close retires the current generation.
func (p *Provider) Close() error {
	p.mu.Lock()
	g := p.cur
	p.cur = nil
	closeNow := false
	if g != nil {
		g.retired = true
		closeNow = g.refs == 0
	}
	p.mu.Unlock()

	if closeNow {
		return g.store.Close()
	}
	return nil
}

func (p *Provider) closeGeneration(g *generation) {
	if err := g.store.Close(); err != nil {
		p.log.Warn("close retired store", "path", g.store.Path(), "error", err)
	}
}
