package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/teemow/calview/internal/clock"
	"github.com/teemow/calview/internal/event"
)

// DriverName is the database/sql driver used for the cache
const DriverName = "sqlite3"

// ErrNotFound is returned by LoadRange when the range was never saved
var ErrNotFound = errors.New("no cached events for range")

// Cached is a previously saved listing
type Cached struct {
	Events    []event.Event
	FetchedAt time.Time
}

// Option configures a Storage
type Option func(*Storage)

// WithClock sets the clock used to stamp saved ranges
func WithClock(c clock.Clock) Option {
	return func(s *Storage) { s.clock = c }
}

// Storage is the SQLite event cache
type Storage struct {
	db    *sqlx.DB
	clock clock.Clock
}

// Open opens (creating if needed) the cache database at path and migrates it.
func Open(ctx context.Context, path string, opts ...Option) (*Storage, error) {
	db, err := sql.Open(DriverName, "file:"+path+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open event cache: %w", err)
	}
	s, err := NewStorage(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStorage wraps an open database and runs the migrations.
func NewStorage(ctx context.Context, db *sql.DB, opts ...Option) (*Storage, error) {
	s := &Storage{
		db:    sqlx.NewDb(db, DriverName),
		clock: clock.System{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveRange replaces the cached listing of r for account with events.
func (s *Storage) SaveRange(ctx context.Context, account string, r event.Range, events []event.Event) error {
	rows := make([]eventRow, 0, len(events))
	for i, e := range events {
		row, err := newEventRow(account, r, i, e)
		if err != nil {
			return fmt.Errorf("encoding event %s: %w", e.ID, err)
		}
		rows = append(rows, row)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	start, end := r.Start.UnixMilli(), r.End.UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM events WHERE account_id = ? AND range_start = ? AND range_end = ?
	`, account, start, end); err != nil {
		return fmt.Errorf("clearing range: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ranges (account_id, range_start, range_end, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, range_start, range_end) DO UPDATE
			SET fetched_at = excluded.fetched_at;
	`, account, start, end, s.clock.Now().UnixMilli()); err != nil {
		return fmt.Errorf("saving range: %w", err)
	}

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT OR REPLACE INTO events (
				account_id, range_start, range_end, id, title, start_at, end_at,
				online, meeting_url, location, description, organizer, attendees, position
			) VALUES (
				:account_id, :range_start, :range_end, :id, :title, :start_at, :end_at,
				:online, :meeting_url, :location, :description, :organizer, :attendees, :position
			)
		`, row); err != nil {
			return fmt.Errorf("saving event %s: %w", row.ID, err)
		}
	}

	return tx.Commit()
}

// LoadRange returns the events last saved for exactly r, in the order they
// were saved.
// Times are returned in the location of r.Start.
func (s *Storage) LoadRange(ctx context.Context, account string, r event.Range) (Cached, error) {
	start, end := r.Start.UnixMilli(), r.End.UnixMilli()

	var fetchedAt int64
	err := s.db.GetContext(ctx, &fetchedAt, `
		SELECT fetched_at FROM ranges
		WHERE account_id = ? AND range_start = ? AND range_end = ?
	`, account, start, end)
	if errors.Is(err, sql.ErrNoRows) {
		return Cached{}, ErrNotFound
	}
	if err != nil {
		return Cached{}, err
	}

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT account_id, range_start, range_end, id, title, start_at, end_at,
			online, meeting_url, location, description, organizer, attendees, position
		FROM events
		WHERE account_id = ? AND range_start = ? AND range_end = ?
		ORDER BY position
	`, account, start, end); err != nil {
		return Cached{}, err
	}

	loc := r.Start.Location()
	events := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		e, err := row.Convert(loc)
		if err != nil {
			return Cached{}, fmt.Errorf("decoding event %s: %w", row.ID, err)
		}
		events = append(events, e)
	}

	return Cached{
		Events:    events,
		FetchedAt: time.UnixMilli(fetchedAt).In(loc),
	}, nil
}

// Purge removes everything cached for account
func (s *Storage) Purge(ctx context.Context, account string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE account_id = ?`, account); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ranges WHERE account_id = ?`, account); err != nil {
		return err
	}
	return tx.Commit()
}
