package storage

import (
	"context"
	"database/sql"
)

// migrateV001 creates the visits table and its lookup indexes. Rows are
// written once by the indexer and never updated.
func migrateV001(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS visits (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			norm_url      TEXT NOT NULL,
			orig_url      TEXT NOT NULL,
			dt            TEXT NOT NULL,
			epoch         INTEGER NOT NULL,
			naive         BOOLEAN NOT NULL DEFAULT 0,
			src           TEXT NOT NULL DEFAULT '',
			context       TEXT,
			duration      INTEGER,
			locator_title TEXT NOT NULL DEFAULT '',
			locator_href  TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE INDEX IF NOT EXISTS idx_visits_norm_url ON visits(norm_url)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_epoch    ON visits(epoch)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
