package store

import (
	"context"
	"fmt"
)

// RunMigrations brings the schema up to date. The number of applied steps is
// kept in PRAGMA user_version, so every step runs once per database.
func (s *Storage) RunMigrations(ctx context.Context) error {
	var version int
	if err := s.db.GetContext(ctx, &version, `PRAGMA user_version`); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this build (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// migrations are applied in order. Append new steps; never edit old ones.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS ranges (
		account_id VARCHAR NOT NULL,
		range_start INTEGER NOT NULL,
		range_end INTEGER NOT NULL,
		fetched_at INTEGER NOT NULL,
		PRIMARY KEY (account_id, range_start, range_end)
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		account_id VARCHAR NOT NULL,
		range_start INTEGER NOT NULL,
		range_end INTEGER NOT NULL,
		id VARCHAR NOT NULL,
		title VARCHAR NOT NULL DEFAULT '',
		start_at INTEGER NOT NULL,
		end_at INTEGER NOT NULL,
		online BOOLEAN NOT NULL DEFAULT 0,
		meeting_url VARCHAR NOT NULL DEFAULT '',
		location VARCHAR NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		organizer VARCHAR NOT NULL DEFAULT '',
		attendees TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (account_id, range_start, range_end, id),
		FOREIGN KEY (account_id, range_start, range_end)
			REFERENCES ranges (account_id, range_start, range_end) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS events_by_start ON events (account_id, range_start, range_end, start_at)`,
	// Listing order as returned by the backend.
	`ALTER TABLE events ADD COLUMN position INTEGER NOT NULL DEFAULT 0`,
}
