package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one schema step. Its position in the runner's list is its
// version, starting at 1.
type migration struct {
	Name  string
	Apply func(ctx context.Context, tx *sql.Tx) error
}

// SchemaVersion is the highest migration version this build knows about.
const SchemaVersion = 1

// MigrationRunner brings a visit table up to SchemaVersion. The applied
// version lives in PRAGMA user_version, so a finished table carries no
// bookkeeping rows next to the visits.
type MigrationRunner struct {
	db         *sql.DB
	migrations []migration
}

// NewMigrationRunner creates a MigrationRunner with all registered migrations.
func NewMigrationRunner(db *sql.DB) *MigrationRunner {
	return &MigrationRunner{
		db: db,
		migrations: []migration{
			{Name: "visits_table", Apply: migrateV001},
		},
	}
}

// Run switches the file to WAL for the bulk insert and applies every
// migration above the recorded version, each in its own transaction.
func (r *MigrationRunner) Run(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}

	current, err := appliedVersion(ctx, r.db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current > len(r.migrations) {
		return fmt.Errorf("schema version %d is newer than %d", current, len(r.migrations))
	}

	for i := current; i < len(r.migrations); i++ {
		m := r.migrations[i]
		if err := r.apply(ctx, i+1, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", i+1, m.Name, err)
		}
	}
	return nil
}

func (r *MigrationRunner) apply(ctx context.Context, version int, m migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(ctx, tx); err != nil {
		return err
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit()
}

// appliedVersion returns the schema version recorded in the file, 0 if none.
func appliedVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}
