package remote

import (
	"context"
)

// Tables lists the remote tables in push order.
var Tables = []string{
	"contacts",
	"visit_occurrences",
	"monthly_reports",
	"report_entries",
	"monthly_goals",
	"agenda_notes",
}

// ContactRows reads every contact row owned by the user.
func (r *Store) ContactRows(ctx context.Context, userID string) ([]ContactRow, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT remote_uuid, name, phone, bucket, next_visit_at, visit_time,
			hostel_name, location_detail, last_outcome, notes, tags, reminders,
			display_order, archived, updated_at
		FROM contacts WHERE user_id = $1`, userID)
	if err != nil {
		return nil, wrap("select", "contacts", err)
	}
	defer rows.Close()

	var out []ContactRow
	for rows.Next() {
		var c ContactRow
		if err := rows.Scan(&c.RemoteUUID, &c.Name, &c.Phone, &c.Bucket, &c.NextVisitAt,
			&c.VisitTime, &c.HostelName, &c.LocationDetail, &c.LastOutcome, &c.Notes,
			&c.Tags, &c.Reminders, &c.DisplayOrder, &c.Archived, &c.UpdatedAt); err != nil {
			return nil, wrap("scan", "contacts", err)
		}
		out = append(out, c)
	}
	return out, wrap("select", "contacts", rows.Err())
}

// UpsertContacts writes the rows keyed on remote_uuid and returns the
// server-stamped merge timestamps.
func (r *Store) UpsertContacts(ctx context.Context, userID string, rows []ContactRow) ([]Stamp, error) {
	stamps := make([]Stamp, 0, len(rows))
	for _, c := range rows {
		var st Stamp
		err := r.Pool.QueryRow(ctx, `
			INSERT INTO contacts (user_id, remote_uuid, name, phone, bucket, next_visit_at,
				visit_time, hostel_name, location_detail, last_outcome, notes, tags,
				reminders, display_order, archived, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
			ON CONFLICT (remote_uuid) DO UPDATE SET
				name = EXCLUDED.name,
				phone = EXCLUDED.phone,
				bucket = EXCLUDED.bucket,
				next_visit_at = EXCLUDED.next_visit_at,
				visit_time = EXCLUDED.visit_time,
				hostel_name = EXCLUDED.hostel_name,
				location_detail = EXCLUDED.location_detail,
				last_outcome = EXCLUDED.last_outcome,
				notes = EXCLUDED.notes,
				tags = EXCLUDED.tags,
				reminders = EXCLUDED.reminders,
				display_order = EXCLUDED.display_order,
				archived = EXCLUDED.archived,
				updated_at = NOW()
			RETURNING remote_uuid, updated_at`,
			userID, c.RemoteUUID, c.Name, c.Phone, c.Bucket, c.NextVisitAt,
			c.VisitTime, c.HostelName, c.LocationDetail, c.LastOutcome, c.Notes,
			c.Tags, c.Reminders, c.DisplayOrder, c.Archived).
			Scan(&st.RemoteUUID, &st.UpdatedAt)
		if err != nil {
			return stamps, wrap("upsert", "contacts", err)
		}
		stamps = append(stamps, st)
	}
	return stamps, nil
}

// OccurrenceRows reads every visit occurrence owned by the user.
func (r *Store) OccurrenceRows(ctx context.Context, userID string) ([]OccurrenceRow, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT remote_uuid, contact_uuid, scheduled_at, status, reminders, updated_at
		FROM visit_occurrences WHERE user_id = $1`, userID)
	if err != nil {
		return nil, wrap("select", "visit_occurrences", err)
	}
	defer rows.Close()

	var out []OccurrenceRow
	for rows.Next() {
		var o OccurrenceRow
		if err := rows.Scan(&o.RemoteUUID, &o.ContactUUID, &o.ScheduledAt,
			&o.Status, &o.Reminders, &o.UpdatedAt); err != nil {
			return nil, wrap("scan", "visit_occurrences", err)
		}
		out = append(out, o)
	}
	return out, wrap("select", "visit_occurrences", rows.Err())
}

// UpsertOccurrences writes the rows keyed on remote_uuid.
func (r *Store) UpsertOccurrences(ctx context.Context, userID string, rows []OccurrenceRow) ([]Stamp, error) {
	stamps := make([]Stamp, 0, len(rows))
	for _, o := range rows {
		var st Stamp
		err := r.Pool.QueryRow(ctx, `
			INSERT INTO visit_occurrences (user_id, remote_uuid, contact_uuid, scheduled_at,
				status, reminders, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (remote_uuid) DO UPDATE SET
				contact_uuid = EXCLUDED.contact_uuid,
				scheduled_at = EXCLUDED.scheduled_at,
				status = EXCLUDED.status,
				reminders = EXCLUDED.reminders,
				updated_at = NOW()
			RETURNING remote_uuid, updated_at`,
			userID, o.RemoteUUID, o.ContactUUID, o.ScheduledAt, o.Status, o.Reminders).
			Scan(&st.RemoteUUID, &st.UpdatedAt)
		if err != nil {
			return stamps, wrap("upsert", "visit_occurrences", err)
		}
		stamps = append(stamps, st)
	}
	return stamps, nil
}

// ReportRows reads every monthly report owned by the user.
func (r *Store) ReportRows(ctx context.Context, userID string) ([]ReportRow, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT remote_uuid, year, month, total_minutes, studies_count,
			reported_minutes, carryover_applied, updated_at
		FROM monthly_reports WHERE user_id = $1`, userID)
	if err != nil {
		return nil, wrap("select", "monthly_reports", err)
	}
	defer rows.Close()

	var out []ReportRow
	for rows.Next() {
		var rep ReportRow
		if err := rows.Scan(&rep.RemoteUUID, &rep.Year, &rep.Month, &rep.TotalMinutes,
			&rep.StudiesCount, &rep.ReportedMinutes, &rep.CarryoverApplied, &rep.UpdatedAt); err != nil {
			return nil, wrap("scan", "monthly_reports", err)
		}
		out = append(out, rep)
	}
	return out, wrap("select", "monthly_reports", rows.Err())
}

// UpsertReports writes the rows keyed on remote_uuid.
func (r *Store) UpsertReports(ctx context.Context, userID string, rows []ReportRow) ([]Stamp, error) {
	stamps := make([]Stamp, 0, len(rows))
	for _, rep := range rows {
		var st Stamp
		err := r.Pool.QueryRow(ctx, `
			INSERT INTO monthly_reports (user_id, remote_uuid, year, month, total_minutes,
				studies_count, reported_minutes, carryover_applied, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			ON CONFLICT (remote_uuid) DO UPDATE SET
				year = EXCLUDED.year,
				month = EXCLUDED.month,
				total_minutes = EXCLUDED.total_minutes,
				studies_count = EXCLUDED.studies_count,
				reported_minutes = EXCLUDED.reported_minutes,
				carryover_applied = EXCLUDED.carryover_applied,
				updated_at = NOW()
			RETURNING remote_uuid, updated_at`,
			userID, rep.RemoteUUID, rep.Year, rep.Month, rep.TotalMinutes,
			rep.StudiesCount, rep.ReportedMinutes, rep.CarryoverApplied).
			Scan(&st.RemoteUUID, &st.UpdatedAt)
		if err != nil {
			return stamps, wrap("upsert", "monthly_reports", err)
		}
		stamps = append(stamps, st)
	}
	return stamps, nil
}

// EntryRows reads every report entry owned by the user.
func (r *Store) EntryRows(ctx context.Context, userID string) ([]EntryRow, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT remote_uuid, year, month, entry_date, minutes, studies, comment,
			carryover, updated_at
		FROM report_entries WHERE user_id = $1`, userID)
	if err != nil {
		return nil, wrap("select", "report_entries", err)
	}
	defer rows.Close()

	var out []EntryRow
	for rows.Next() {
		var e EntryRow
		if err := rows.Scan(&e.RemoteUUID, &e.Year, &e.Month, &e.EntryDate, &e.Minutes,
			&e.Studies, &e.Comment, &e.Carryover, &e.UpdatedAt); err != nil {
			return nil, wrap("scan", "report_entries", err)
		}
		out = append(out, e)
	}
	return out, wrap("select", "report_entries", rows.Err())
}

// UpsertEntries writes the rows keyed on remote_uuid.
func (r *Store) UpsertEntries(ctx context.Context, userID string, rows []EntryRow) ([]Stamp, error) {
	stamps := make([]Stamp, 0, len(rows))
	for _, e := range rows {
		var st Stamp
		err := r.Pool.QueryRow(ctx, `
			INSERT INTO report_entries (user_id, remote_uuid, year, month, entry_date,
				minutes, studies, comment, carryover, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			ON CONFLICT (remote_uuid) DO UPDATE SET
				year = EXCLUDED.year,
				month = EXCLUDED.month,
				entry_date = EXCLUDED.entry_date,
				minutes = EXCLUDED.minutes,
				studies = EXCLUDED.studies,
				comment = EXCLUDED.comment,
				carryover = EXCLUDED.carryover,
				updated_at = NOW()
			RETURNING remote_uuid, updated_at`,
			userID, e.RemoteUUID, e.Year, e.Month, e.EntryDate,
			e.Minutes, e.Studies, e.Comment, e.Carryover).
			Scan(&st.RemoteUUID, &st.UpdatedAt)
		if err != nil {
			return stamps, wrap("upsert", "report_entries", err)
		}
		stamps = append(stamps, st)
	}
	return stamps, nil
}

// GoalRows reads every monthly goal owned by the user.
func (r *Store) GoalRows(ctx context.Context, userID string) ([]GoalRow, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT remote_uuid, year, month, target_minutes, target_studies, updated_at
		FROM monthly_goals WHERE user_id = $1`, userID)
	if err != nil {
		return nil, wrap("select", "monthly_goals", err)
	}
	defer rows.Close()

	var out []GoalRow
	for rows.Next() {
		var g GoalRow
		if err := rows.Scan(&g.RemoteUUID, &g.Year, &g.Month, &g.TargetMinutes,
			&g.TargetStudies, &g.UpdatedAt); err != nil {
			return nil, wrap("scan", "monthly_goals", err)
		}
		out = append(out, g)
	}
	return out, wrap("select", "monthly_goals", rows.Err())
}

// UpsertGoals writes the rows keyed on remote_uuid.
func (r *Store) UpsertGoals(ctx context.Context, userID string, rows []GoalRow) ([]Stamp, error) {
	stamps := make([]Stamp, 0, len(rows))
	for _, g := range rows {
		var st Stamp
		err := r.Pool.QueryRow(ctx, `
			INSERT INTO monthly_goals (user_id, remote_uuid, year, month, target_minutes,
				target_studies, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (remote_uuid) DO UPDATE SET
				year = EXCLUDED.year,
				month = EXCLUDED.month,
				target_minutes = EXCLUDED.target_minutes,
				target_studies = EXCLUDED.target_studies,
				updated_at = NOW()
			RETURNING remote_uuid, updated_at`,
			userID, g.RemoteUUID, g.Year, g.Month, g.TargetMinutes, g.TargetStudies).
			Scan(&st.RemoteUUID, &st.UpdatedAt)
		if err != nil {
			return stamps, wrap("upsert", "monthly_goals", err)
		}
		stamps = append(stamps, st)
	}
	return stamps, nil
}

// NoteRows reads every agenda note owned by the user.
func (r *Store) NoteRows(ctx context.Context, userID string) ([]NoteRow, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT remote_uuid, content, pinned, updated_at
		FROM agenda_notes WHERE user_id = $1`, userID)
	if err != nil {
		return nil, wrap("select", "agenda_notes", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		var n NoteRow
		if err := rows.Scan(&n.RemoteUUID, &n.Content, &n.Pinned, &n.UpdatedAt); err != nil {
			return nil, wrap("scan", "agenda_notes", err)
		}
		out = append(out, n)
	}
	return out, wrap("select", "agenda_notes", rows.Err())
}

// UpsertNotes writes the rows keyed on remote_uuid.
func (r *Store) UpsertNotes(ctx context.Context, userID string, rows []NoteRow) ([]Stamp, error) {
	stamps := make([]Stamp, 0, len(rows))
	for _, n := range rows {
		var st Stamp
		err := r.Pool.QueryRow(ctx, `
			INSERT INTO agenda_notes (user_id, remote_uuid, content, pinned, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (remote_uuid) DO UPDATE SET
				content = EXCLUDED.content,
				pinned = EXCLUDED.pinned,
				updated_at = NOW()
			RETURNING remote_uuid, updated_at`,
			userID, n.RemoteUUID, n.Content, n.Pinned).
			Scan(&st.RemoteUUID, &st.UpdatedAt)
		if err != nil {
			return stamps, wrap("upsert", "agenda_notes", err)
		}
		stamps = append(stamps, st)
	}
	return stamps, nil
}
