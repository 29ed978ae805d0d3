package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const occurrenceCols = `id, remote_uuid, contact_id, contact_uuid, scheduled_at, status,
	reminders, created_at, updated_at`

// CreateOccurrence inserts a scheduled visit instance and recomputes the
// owning contact's next visit.
func (s *Store) CreateOccurrence(ctx context.Context, o *Occurrence) (*Occurrence, error) {
	if o.ContactID == 0 && o.ContactUUID == "" {
		return nil, &ValidationError{Field: "contact", Reason: "is required"}
	}
	if o.ScheduledAt.IsZero() {
		return nil, &ValidationError{Field: "scheduled_at", Reason: "is required"}
	}
	if o.Status == "" {
		o.Status = StatusPlanned
	}

	s.mu.Lock()
	now := s.fmtNow()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO visit_occurrences (remote_uuid, contact_id, contact_uuid, scheduled_at,
			status, reminders, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RemoteUUID, o.ContactID, o.ContactUUID, fmtTime(o.ScheduledAt),
		o.Status, o.Reminders, now, now)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := s.recomputeNextVisit(ctx, o.ContactID); err != nil {
		return nil, err
	}
	return s.getOccurrence(ctx, id)
}

// GetOccurrence returns an occurrence by local id, or nil if absent.
func (s *Store) GetOccurrence(ctx context.Context, id int64) (*Occurrence, error) {
	return s.getOccurrence(ctx, id)
}

func (s *Store) getOccurrence(ctx context.Context, id int64) (*Occurrence, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM visit_occurrences WHERE id = ?", occurrenceCols), id)
	return scanOccurrence(row)
}

// ListOccurrences returns every occurrence in scheduled order.
func (s *Store) ListOccurrences(ctx context.Context) ([]*Occurrence, error) {
	return s.queryOccurrences(ctx,
		fmt.Sprintf("SELECT %s FROM visit_occurrences ORDER BY scheduled_at, id", occurrenceCols))
}

// ListOccurrencesByContact returns a contact's occurrences in scheduled order.
func (s *Store) ListOccurrencesByContact(ctx context.Context, contactID int64) ([]*Occurrence, error) {
	return s.queryOccurrences(ctx,
		fmt.Sprintf("SELECT %s FROM visit_occurrences WHERE contact_id = ? ORDER BY scheduled_at, id", occurrenceCols),
		contactID)
}

// OccurrencesBetween returns occurrences scheduled inside [from, to).
func (s *Store) OccurrencesBetween(ctx context.Context, from, to time.Time) ([]*Occurrence, error) {
	return s.queryOccurrences(ctx,
		fmt.Sprintf(`SELECT %s FROM visit_occurrences
			WHERE scheduled_at >= ? AND scheduled_at < ? ORDER BY scheduled_at, id`, occurrenceCols),
		fmtTime(from), fmtTime(to))
}

// FindOccurrenceByRemoteUUID returns the occurrence carrying the identifier, or nil.
func (s *Store) FindOccurrenceByRemoteUUID(ctx context.Context, remoteUUID string) (*Occurrence, error) {
	if remoteUUID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM visit_occurrences WHERE remote_uuid = ?", occurrenceCols), remoteUUID)
	return scanOccurrence(row)
}

// UpdateOccurrence merges a partial patch, restamps updated_at, and
// recomputes the owning contact's next visit.
func (s *Store) UpdateOccurrence(ctx context.Context, id int64, p OccurrencePatch) (*Occurrence, error) {
	set := []string{"updated_at = ?"}
	args := []any{s.fmtNow()}

	if p.ScheduledAt != nil {
		if p.ScheduledAt.IsZero() {
			return nil, &ValidationError{Field: "scheduled_at", Reason: "is required"}
		}
		set = append(set, "scheduled_at = ?")
		args = append(args, fmtTime(*p.ScheduledAt))
	}
	if p.Status != nil {
		set = append(set, "status = ?")
		args = append(args, *p.Status)
	}
	if p.Reminders != nil {
		set = append(set, "reminders = ?")
		args = append(args, *p.Reminders)
	}

	s.mu.Lock()
	args = append(args, id)
	_, err := s.db.ExecContext(ctx,
		"UPDATE visit_occurrences SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	o, err := s.getOccurrence(ctx, id)
	if err != nil || o == nil {
		return o, err
	}
	if err := s.recomputeNextVisit(ctx, o.ContactID); err != nil {
		return nil, err
	}
	return o, nil
}

// DeleteOccurrence removes an occurrence and recomputes the owning contact's
// next visit.
func (s *Store) DeleteOccurrence(ctx context.Context, id int64) error {
	o, err := s.getOccurrence(ctx, id)
	if err != nil {
		return err
	}
	if o == nil {
		return nil
	}

	s.mu.Lock()
	_, err = s.db.ExecContext(ctx, "DELETE FROM visit_occurrences WHERE id = ?", id)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.recomputeNextVisit(ctx, o.ContactID)
}

// ImportOccurrence inserts a remote-sourced occurrence verbatim. ContactID
// may be zero when the remote contact reference has no local match yet.
func (s *Store) ImportOccurrence(ctx context.Context, o *Occurrence) (*Occurrence, error) {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO visit_occurrences (remote_uuid, contact_id, contact_uuid, scheduled_at,
			status, reminders, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RemoteUUID, o.ContactID, o.ContactUUID, fmtTime(o.ScheduledAt),
		o.Status, o.Reminders, fmtTime(o.CreatedAt), fmtTime(o.UpdatedAt))
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := s.recomputeNextVisit(ctx, o.ContactID); err != nil {
		return nil, err
	}
	return s.getOccurrence(ctx, id)
}

// ApplyRemoteOccurrence overwrites an occurrence with the remote row, keeping
// the remote updated_at verbatim, then recomputes the contact's next visit.
func (s *Store) ApplyRemoteOccurrence(ctx context.Context, id int64, o *Occurrence) error {
	s.mu.Lock()
	_, err := s.db.ExecContext(ctx, `
		UPDATE visit_occurrences SET remote_uuid = ?, contact_id = ?, contact_uuid = ?,
			scheduled_at = ?, status = ?, reminders = ?, updated_at = ?
		WHERE id = ?`,
		o.RemoteUUID, o.ContactID, o.ContactUUID,
		fmtTime(o.ScheduledAt), o.Status, o.Reminders, fmtTime(o.UpdatedAt), id)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.recomputeNextVisit(ctx, o.ContactID)
}

// SetOccurrenceContact repoints an occurrence at its owning contact. Sync
// uses it to resolve remote contact references to local ids and to stamp the
// contact's remote identifier onto locally created occurrences before push.
// updated_at is left alone: ownership resolution is bookkeeping, not an edit.
func (s *Store) SetOccurrenceContact(ctx context.Context, id, contactID int64, contactUUID string) error {
	s.mu.Lock()
	_, err := s.db.ExecContext(ctx,
		"UPDATE visit_occurrences SET contact_id = ?, contact_uuid = ? WHERE id = ?",
		contactID, contactUUID, id)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.recomputeNextVisit(ctx, contactID)
}

// recomputeNextVisit rederives a contact's next_visit_at: the earliest
// future-or-now, non-cancelled occurrence, or empty if none. The contact is
// restamped only when the derived value actually changes.
func (s *Store) recomputeNextVisit(ctx context.Context, contactID int64) error {
	if contactID == 0 {
		return nil
	}

	var next sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MIN(scheduled_at) FROM visit_occurrences
		WHERE contact_id = ? AND status <> ? AND scheduled_at >= ?`,
		contactID, StatusCancelled, s.fmtNow()).Scan(&next)
	if err != nil {
		return err
	}

	c, err := s.getContact(ctx, contactID)
	if err != nil || c == nil {
		return err
	}

	current := ""
	if c.NextVisitAt != nil {
		current = fmtTime(*c.NextVisitAt)
	}
	derived := ""
	if next.Valid {
		derived = next.String
	}
	if current == derived {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var val any
	if derived != "" {
		val = derived
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE contacts SET next_visit_at = ?, updated_at = ? WHERE id = ?",
		val, s.fmtNow(), contactID)
	return err
}

func (s *Store) queryOccurrences(ctx context.Context, q string, args ...any) ([]*Occurrence, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOccurrence(r rowScanner) (*Occurrence, error) {
	o := &Occurrence{}
	var scheduledAt, createdAt, updatedAt string

	err := r.Scan(&o.ID, &o.RemoteUUID, &o.ContactID, &o.ContactUUID, &scheduledAt,
		&o.Status, &o.Reminders, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	o.ScheduledAt = parseTime(scheduledAt)
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	return o, nil
}
