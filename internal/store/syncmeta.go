package store

import (
	"context"
	"database/sql"
)

// SyncMeta returns the sync bookkeeping row. It always exists logically;
// before the first sync both fields are empty.
func (s *Store) SyncMeta(ctx context.Context) (*SyncMeta, error) {
	var last sql.NullString
	var session string

	err := s.db.QueryRowContext(ctx,
		"SELECT last_synced_at, remote_session_id FROM sync_meta WHERE id = 1").
		Scan(&last, &session)
	if err == sql.ErrNoRows {
		return &SyncMeta{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &SyncMeta{
		LastSyncedAt:    parseTimePtr(last),
		RemoteSessionID: session,
	}, nil
}

// UpdateSyncMeta records the time of the latest successful sync and, when
// non-empty, the remote session identifier.
func (s *Store) UpdateSyncMeta(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_meta (id, last_synced_at, remote_session_id)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_synced_at = excluded.last_synced_at,
			remote_session_id = CASE WHEN excluded.remote_session_id <> ''
				THEN excluded.remote_session_id
				ELSE sync_meta.remote_session_id END`,
		s.fmtNow(), sessionID)
	return err
}
