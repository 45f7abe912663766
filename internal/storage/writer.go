package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/runnerr0/wereyouhere/internal/history"
)

// Writer fills a fresh visit table. It is used by the single offline
// indexing pass; the serving side only ever opens finished files.
type Writer struct {
	db   *sql.DB
	path string
}

// CreateWriter creates an empty visit table at path, replacing any file
// already there.
func CreateWriter(path string) (*Writer, error) {
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale %s: %w", p, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	runner := NewMigrationRunner(db)
	if err := runner.Run(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Writer{db: db, path: path}, nil
}

// Path returns the file being written.
func (w *Writer) Path() string { return w.path }

// AddVisits appends visits in a single transaction.
func (w *Writer) AddVisits(ctx context.Context, visits []history.Visit) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO visits (`+visitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range visits {
		if v.NormalisedURL == "" {
			return fmt.Errorf("visit of %q has no normalised url", v.OriginalURL)
		}
		r := encodeVisit(v)
		if _, err := stmt.ExecContext(ctx,
			r.NormURL, r.OrigURL, r.DT, r.Epoch, r.Naive, r.Source,
			r.Context, r.Duration, r.LocatorTitle, r.LocatorHref,
		); err != nil {
			return fmt.Errorf("insert visit: %w", err)
		}
	}

	return tx.Commit()
}

// Close checkpoints the WAL, switches the file back to a rollback journal so
// it can be opened read-only on its own, and closes it.
func (w *Writer) Close() error {
	if _, err := w.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		w.db.Close()
		return fmt.Errorf("checkpoint: %w", err)
	}
	if _, err := w.db.Exec("PRAGMA journal_mode = DELETE"); err != nil {
		w.db.Close()
		return fmt.Errorf("set journal mode: %w", err)
	}
	return w.db.Close()
}
