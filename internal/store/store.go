// Package store is the durable embedded record store for the tracker. It
// holds the six entity collections (contacts, visit occurrences, monthly
// reports, report entries, monthly goals, notes) plus sync bookkeeping, and
// evolves its schema through an ordered sequence of one-time migrations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// timeLayout keeps millisecond precision and a fixed width so stored
// timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Store is the local embedded store. All entity rows are owned here; local
// integer ids are assigned by the store and never transmitted remotely.
type Store struct {
	db *sql.DB
	mu sync.Mutex

	// now is swappable so tests can control derived-field cutoffs.
	now func() time.Time
}

// Collection identifies one of the synchronized entity collections.
type Collection string

const (
	Contacts    Collection = "contacts"
	Occurrences Collection = "visit_occurrences"
	Reports     Collection = "monthly_reports"
	Entries     Collection = "report_entries"
	Goals       Collection = "monthly_goals"
	Notes       Collection = "agenda_notes"
)

// Collections lists the synchronized collections in push order.
var Collections = []Collection{Contacts, Occurrences, Reports, Entries, Goals, Notes}

// Open opens (or creates) the store at path and migrates it to the current
// schema version. Use ":memory:" for an in-memory store. A failed migration
// is fatal: the store does not open.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// A single connection keeps sqlite serialization simple.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(len(schemaVersions)); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// openAt opens a store migrated only up to target. Used in tests to stage
// pre-upgrade data before finishing the migration sequence.
func openAt(path string, target int) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(target); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies every schema version above the current one, each inside
// its own transaction. Backfills are written to be idempotent so a crashed
// and re-run upgrade never produces duplicate rows.
func (s *Store) migrate(target int) error {
	current, err := s.schemaVersion()
	if err != nil {
		return &MigrationError{Version: current, Err: err}
	}

	for v := current; v < target; v++ {
		next := v + 1
		tx, err := s.db.Begin()
		if err != nil {
			return &MigrationError{Version: next, Err: err}
		}
		if err := schemaVersions[v](tx); err != nil {
			tx.Rollback()
			return &MigrationError{Version: next, Err: err}
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", next)); err != nil {
			tx.Rollback()
			return &MigrationError{Version: next, Err: err}
		}
		if err := tx.Commit(); err != nil {
			return &MigrationError{Version: next, Err: err}
		}
		slog.Debug("store migrated", "version", next)
	}
	return nil
}

func (s *Store) schemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}

// AssignRemoteUUID stamps a remote identifier onto a row that does not have
// one yet, bumping updated_at so the assignment wins a later merge. Rows
// that already carry an identifier are left untouched: once assigned it is
// immutable.
func (s *Store) AssignRemoteUUID(ctx context.Context, col Collection, id int64, remoteUUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET remote_uuid = ?, updated_at = ? WHERE id = ? AND remote_uuid = ''", col),
		remoteUUID, s.fmtNow(), id)
	return err
}

// SetUpdatedAtByRemoteUUID overwrites a row's updated_at with the
// server-returned authoritative value after a successful push.
func (s *Store) SetUpdatedAtByRemoteUUID(ctx context.Context, col Collection, remoteUUID string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET updated_at = ? WHERE remote_uuid = ?", col),
		fmtTime(t), remoteUUID)
	return err
}

// Count returns the number of rows in a collection.
func (s *Store) Count(ctx context.Context, col Collection) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", col)).Scan(&n)
	return n, err
}

func (s *Store) fmtNow() string {
	return fmtTime(s.now())
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Tolerate plain RFC3339 values written by older clients.
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}
