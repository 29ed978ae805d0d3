package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const contactCols = `id, remote_uuid, name, phone, bucket, next_visit_at, visit_time,
	hostel_name, location_detail, last_outcome, notes, tags, reminders,
	display_order, archived, created_at, updated_at`

// CreateContact inserts a new contact with store-assigned id, defaulted
// fields, and a display order appended to the end of its bucket.
func (s *Store) CreateContact(ctx context.Context, c *Contact) (*Contact, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "is required"}
	}
	if c.Bucket == "" {
		c.Bucket = DefaultBucket
	}
	if c.Reminders == "" {
		c.Reminders = "-30"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var order int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM contacts WHERE bucket = ?", c.Bucket).Scan(&order); err != nil {
		return nil, err
	}

	now := s.fmtNow()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (remote_uuid, name, phone, bucket, next_visit_at, visit_time,
			hostel_name, location_detail, last_outcome, notes, tags, reminders,
			display_order, archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.RemoteUUID, c.Name, c.Phone, c.Bucket, fmtTimePtr(c.NextVisitAt), c.VisitTime,
		c.HostelName, c.LocationDetail, c.LastOutcome, c.Notes, c.Tags, c.Reminders,
		order, c.Archived, now, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.getContact(ctx, id)
}

// GetContact returns a contact by local id, or nil if absent.
func (s *Store) GetContact(ctx context.Context, id int64) (*Contact, error) {
	return s.getContact(ctx, id)
}

func (s *Store) getContact(ctx context.Context, id int64) (*Contact, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM contacts WHERE id = ?", contactCols), id)
	return scanContact(row)
}

// ListContacts returns all contacts ordered by name.
func (s *Store) ListContacts(ctx context.Context) ([]*Contact, error) {
	return s.queryContacts(ctx,
		fmt.Sprintf("SELECT %s FROM contacts ORDER BY name, id", contactCols))
}

// ListContactsByBucket returns a bucket's contacts in display order.
func (s *Store) ListContactsByBucket(ctx context.Context, bucket string) ([]*Contact, error) {
	return s.queryContacts(ctx,
		fmt.Sprintf("SELECT %s FROM contacts WHERE bucket = ? ORDER BY display_order, id", contactCols), bucket)
}

// ContactsDueBetween returns contacts whose next visit falls inside [from, to).
func (s *Store) ContactsDueBetween(ctx context.Context, from, to time.Time) ([]*Contact, error) {
	return s.queryContacts(ctx,
		fmt.Sprintf(`SELECT %s FROM contacts
			WHERE next_visit_at IS NOT NULL AND next_visit_at >= ? AND next_visit_at < ?
			ORDER BY next_visit_at, id`, contactCols),
		fmtTime(from), fmtTime(to))
}

// FindContactByRemoteUUID returns the contact carrying the identifier, or nil.
func (s *Store) FindContactByRemoteUUID(ctx context.Context, remoteUUID string) (*Contact, error) {
	if remoteUUID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM contacts WHERE remote_uuid = ?", contactCols), remoteUUID)
	return scanContact(row)
}

// FindContactByName returns the first contact with an exact name match, or
// nil. Pull uses this as a weak fallback when no remote identifier matches.
func (s *Store) FindContactByName(ctx context.Context, name string) (*Contact, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM contacts WHERE name = ? ORDER BY id LIMIT 1", contactCols), name)
	return scanContact(row)
}

// UpdateContact merges a partial patch into a contact, always restamping
// updated_at.
func (s *Store) UpdateContact(ctx context.Context, id int64, p ContactPatch) (*Contact, error) {
	set := []string{"updated_at = ?"}
	args := []any{s.fmtNow()}

	add := func(col string, v any) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return nil, &ValidationError{Field: "name", Reason: "is required"}
		}
		add("name", *p.Name)
	}
	if p.Phone != nil {
		add("phone", *p.Phone)
	}
	if p.Bucket != nil {
		add("bucket", *p.Bucket)
	}
	if p.VisitTime != nil {
		add("visit_time", *p.VisitTime)
	}
	if p.HostelName != nil {
		add("hostel_name", *p.HostelName)
	}
	if p.LocationDetail != nil {
		add("location_detail", *p.LocationDetail)
	}
	if p.LastOutcome != nil {
		add("last_outcome", *p.LastOutcome)
	}
	if p.Notes != nil {
		add("notes", *p.Notes)
	}
	if p.Tags != nil {
		add("tags", *p.Tags)
	}
	if p.Reminders != nil {
		add("reminders", *p.Reminders)
	}
	if p.DisplayOrder != nil {
		add("display_order", *p.DisplayOrder)
	}
	if p.Archived != nil {
		add("archived", *p.Archived)
	}

	s.mu.Lock()
	args = append(args, id)
	_, err := s.db.ExecContext(ctx,
		"UPDATE contacts SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.getContact(ctx, id)
}

// DeleteContact removes a contact and its occurrences.
func (s *Store) DeleteContact(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM visit_occurrences WHERE contact_id = ?", id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM contacts WHERE id = ?", id)
	return err
}

// ImportContact inserts a remote-sourced contact verbatim, preserving its
// remote identifier and timestamps.
func (s *Store) ImportContact(ctx context.Context, c *Contact) (*Contact, error) {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (remote_uuid, name, phone, bucket, next_visit_at, visit_time,
			hostel_name, location_detail, last_outcome, notes, tags, reminders,
			display_order, archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.RemoteUUID, c.Name, c.Phone, c.Bucket, fmtTimePtr(c.NextVisitAt), c.VisitTime,
		c.HostelName, c.LocationDetail, c.LastOutcome, c.Notes, c.Tags, c.Reminders,
		c.DisplayOrder, c.Archived, fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt))
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.getContact(ctx, id)
}

// ApplyRemoteContact overwrites a contact's fields with the remote row,
// keeping the remote updated_at verbatim so the merge stays last-write-wins.
func (s *Store) ApplyRemoteContact(ctx context.Context, id int64, c *Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE contacts SET remote_uuid = ?, name = ?, phone = ?, bucket = ?,
			next_visit_at = ?, visit_time = ?, hostel_name = ?, location_detail = ?,
			last_outcome = ?, notes = ?, tags = ?, reminders = ?, display_order = ?,
			archived = ?, updated_at = ?
		WHERE id = ?`,
		c.RemoteUUID, c.Name, c.Phone, c.Bucket,
		fmtTimePtr(c.NextVisitAt), c.VisitTime, c.HostelName, c.LocationDetail,
		c.LastOutcome, c.Notes, c.Tags, c.Reminders, c.DisplayOrder,
		c.Archived, fmtTime(c.UpdatedAt), id)
	return err
}

func (s *Store) queryContacts(ctx context.Context, q string, args ...any) ([]*Contact, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(r rowScanner) (*Contact, error) {
	c := &Contact{}
	var nextVisit sql.NullString
	var createdAt, updatedAt string

	err := r.Scan(&c.ID, &c.RemoteUUID, &c.Name, &c.Phone, &c.Bucket, &nextVisit,
		&c.VisitTime, &c.HostelName, &c.LocationDetail, &c.LastOutcome, &c.Notes,
		&c.Tags, &c.Reminders, &c.DisplayOrder, &c.Archived, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.NextVisitAt = parseTimePtr(nextVisit)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}
