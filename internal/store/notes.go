package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const noteCols = `id, remote_uuid, content, pinned, created_at, updated_at`

// CreateNote inserts a free-form agenda note.
func (s *Store) CreateNote(ctx context.Context, n *Note) (*Note, error) {
	s.mu.Lock()
	now := s.fmtNow()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO agenda_notes (remote_uuid, content, pinned, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.RemoteUUID, n.Content, n.Pinned, now, now)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.getNote(ctx, id)
}

// GetNote returns a note by local id, or nil if absent.
func (s *Store) GetNote(ctx context.Context, id int64) (*Note, error) {
	return s.getNote(ctx, id)
}

func (s *Store) getNote(ctx context.Context, id int64) (*Note, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM agenda_notes WHERE id = ?", noteCols), id)
	return scanNote(row)
}

// ListNotes returns all notes, pinned first, newest first within each group.
func (s *Store) ListNotes(ctx context.Context) ([]*Note, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM agenda_notes ORDER BY pinned DESC, created_at DESC, id DESC", noteCols))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// FindNoteByRemoteUUID returns the note carrying the identifier, or nil.
func (s *Store) FindNoteByRemoteUUID(ctx context.Context, remoteUUID string) (*Note, error) {
	if remoteUUID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM agenda_notes WHERE remote_uuid = ?", noteCols), remoteUUID)
	return scanNote(row)
}

// UpdateNote merges a partial patch, restamping updated_at.
func (s *Store) UpdateNote(ctx context.Context, id int64, p NotePatch) (*Note, error) {
	set := []string{"updated_at = ?"}
	args := []any{s.fmtNow()}

	if p.Content != nil {
		set = append(set, "content = ?")
		args = append(args, *p.Content)
	}
	if p.Pinned != nil {
		set = append(set, "pinned = ?")
		args = append(args, *p.Pinned)
	}

	s.mu.Lock()
	args = append(args, id)
	_, err := s.db.ExecContext(ctx,
		"UPDATE agenda_notes SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.getNote(ctx, id)
}

// DeleteNote removes a note.
func (s *Store) DeleteNote(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM agenda_notes WHERE id = ?", id)
	return err
}

// ImportNote inserts a remote-sourced note verbatim.
func (s *Store) ImportNote(ctx context.Context, n *Note) (*Note, error) {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO agenda_notes (remote_uuid, content, pinned, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.RemoteUUID, n.Content, n.Pinned, fmtTime(n.CreatedAt), fmtTime(n.UpdatedAt))
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.getNote(ctx, id)
}

// ApplyRemoteNote overwrites a note with the remote row verbatim.
func (s *Store) ApplyRemoteNote(ctx context.Context, id int64, n *Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE agenda_notes SET remote_uuid = ?, content = ?, pinned = ?, updated_at = ?
		WHERE id = ?`,
		n.RemoteUUID, n.Content, n.Pinned, fmtTime(n.UpdatedAt), id)
	return err
}

func scanNote(r rowScanner) (*Note, error) {
	n := &Note{}
	var createdAt, updatedAt string

	err := r.Scan(&n.ID, &n.RemoteUUID, &n.Content, &n.Pinned, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)
	return n, nil
}
