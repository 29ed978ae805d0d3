package store

import "database/sql"

// schemaVersions is the ordered sequence of schema upgrades. Index i migrates
// from version i to i+1. Versions are additive or defaulting, never
// destructive, and every backfill tolerates being re-run.
var schemaVersions = []func(*sql.Tx) error{
	migrateV1,
	migrateV2,
	migrateV3,
	migrateV4,
	migrateV5,
}

// v1: contacts and the sync bookkeeping singleton.
func migrateV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS contacts (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_uuid     TEXT NOT NULL DEFAULT '',
		name            TEXT NOT NULL DEFAULT '',
		phone           TEXT NOT NULL DEFAULT '',
		bucket          TEXT NOT NULL DEFAULT 'Saturday',
		next_visit_at   TEXT,
		hostel_name     TEXT NOT NULL DEFAULT '',
		location_detail TEXT NOT NULL DEFAULT '',
		last_outcome    TEXT NOT NULL DEFAULT '',
		notes           TEXT NOT NULL DEFAULT '',
		tags            TEXT NOT NULL DEFAULT '',
		reminders       TEXT NOT NULL DEFAULT '-30',
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_remote_uuid
		ON contacts(remote_uuid) WHERE remote_uuid <> '';
	CREATE INDEX IF NOT EXISTS idx_contacts_name ON contacts(name);

	CREATE TABLE IF NOT EXISTS sync_meta (
		id                INTEGER PRIMARY KEY CHECK (id = 1),
		last_synced_at    TEXT,
		remote_session_id TEXT NOT NULL DEFAULT ''
	);
	`)
	return err
}

// v2: contact ordering hint, seeded by creation order within each bucket.
func migrateV2(tx *sql.Tx) error {
	if _, err := tx.Exec(`ALTER TABLE contacts ADD COLUMN display_order INTEGER NOT NULL DEFAULT 0`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_contacts_bucket ON contacts(bucket)`); err != nil {
		return err
	}
	_, err := tx.Exec(`
	WITH ranked AS (
		SELECT id, ROW_NUMBER() OVER (PARTITION BY bucket ORDER BY created_at, id) - 1 AS rn
		FROM contacts
	)
	UPDATE contacts SET display_order = (SELECT rn FROM ranked WHERE ranked.id = contacts.id)
	`)
	return err
}

// v3: visit occurrences. Existing contacts with a pending next_visit_at get
// exactly one planned occurrence backfilled; the NOT EXISTS guard keeps a
// repeated upgrade from duplicating them.
func migrateV3(tx *sql.Tx) error {
	if _, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS visit_occurrences (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_uuid  TEXT NOT NULL DEFAULT '',
		contact_id   INTEGER NOT NULL DEFAULT 0,
		contact_uuid TEXT NOT NULL DEFAULT '',
		scheduled_at TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'planned',
		reminders    TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_occurrences_remote_uuid
		ON visit_occurrences(remote_uuid) WHERE remote_uuid <> '';
	CREATE INDEX IF NOT EXISTS idx_occurrences_contact ON visit_occurrences(contact_id);
	CREATE INDEX IF NOT EXISTS idx_occurrences_scheduled ON visit_occurrences(scheduled_at);
	`); err != nil {
		return err
	}

	_, err := tx.Exec(`
	INSERT INTO visit_occurrences (contact_id, contact_uuid, scheduled_at, status, reminders, created_at, updated_at)
	SELECT c.id, c.remote_uuid, c.next_visit_at, 'planned', c.reminders, c.updated_at, c.updated_at
	FROM contacts c
	WHERE c.next_visit_at IS NOT NULL AND c.next_visit_at <> ''
	  AND NOT EXISTS (SELECT 1 FROM visit_occurrences o WHERE o.contact_id = c.id)
	`)
	return err
}

// v4: monthly activity ledger.
func migrateV4(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS monthly_reports (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_uuid       TEXT NOT NULL DEFAULT '',
		year              INTEGER NOT NULL,
		month             INTEGER NOT NULL,
		total_minutes     INTEGER NOT NULL DEFAULT 0,
		studies_count     INTEGER NOT NULL DEFAULT 0,
		reported_minutes  INTEGER,
		carryover_applied INTEGER NOT NULL DEFAULT 0,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL,
		UNIQUE (year, month)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_remote_uuid
		ON monthly_reports(remote_uuid) WHERE remote_uuid <> '';

	CREATE TABLE IF NOT EXISTS report_entries (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_uuid TEXT NOT NULL DEFAULT '',
		year        INTEGER NOT NULL,
		month       INTEGER NOT NULL,
		entry_date  TEXT NOT NULL,
		minutes     INTEGER NOT NULL DEFAULT 0,
		studies     INTEGER NOT NULL DEFAULT 0,
		comment     TEXT NOT NULL DEFAULT '',
		carryover   INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_remote_uuid
		ON report_entries(remote_uuid) WHERE remote_uuid <> '';
	CREATE INDEX IF NOT EXISTS idx_entries_month ON report_entries(year, month);

	CREATE TABLE IF NOT EXISTS monthly_goals (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_uuid    TEXT NOT NULL DEFAULT '',
		year           INTEGER NOT NULL,
		month          INTEGER NOT NULL,
		target_minutes INTEGER NOT NULL DEFAULT 0,
		target_studies INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL,
		UNIQUE (year, month)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_goals_remote_uuid
		ON monthly_goals(remote_uuid) WHERE remote_uuid <> '';
	`)
	return err
}

// v5: agenda notes, contact archiving, and the per-bucket default visit time.
func migrateV5(tx *sql.Tx) error {
	if _, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS agenda_notes (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_uuid TEXT NOT NULL DEFAULT '',
		content     TEXT NOT NULL DEFAULT '',
		pinned      INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_remote_uuid
		ON agenda_notes(remote_uuid) WHERE remote_uuid <> '';
	`); err != nil {
		return err
	}
	if _, err := tx.Exec(`ALTER TABLE contacts ADD COLUMN archived INTEGER NOT NULL DEFAULT 0`); err != nil {
		return err
	}
	_, err := tx.Exec(`ALTER TABLE contacts ADD COLUMN visit_time TEXT NOT NULL DEFAULT ''`)
	return err
}
