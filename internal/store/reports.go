package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const entryCols = `id, remote_uuid, year, month, entry_date, minutes, studies, comment,
	carryover, created_at, updated_at`

const reportCols = `id, remote_uuid, year, month, total_minutes, studies_count,
	reported_minutes, carryover_applied, created_at, updated_at`

const goalCols = `id, remote_uuid, year, month, target_minutes, target_studies,
	created_at, updated_at`

// CreateEntry logs one activity line and recomputes that month's report
// aggregates. Year and month default to the entry date's.
func (s *Store) CreateEntry(ctx context.Context, e *Entry) (*Entry, error) {
	if e.EntryDate.IsZero() {
		return nil, &ValidationError{Field: "entry_date", Reason: "is required"}
	}
	if e.Year == 0 {
		e.Year = e.EntryDate.Year()
	}
	if e.Month == 0 {
		e.Month = int(e.EntryDate.Month())
	}

	s.mu.Lock()
	now := s.fmtNow()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO report_entries (remote_uuid, year, month, entry_date, minutes, studies,
			comment, carryover, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RemoteUUID, e.Year, e.Month, fmtTime(e.EntryDate), e.Minutes, e.Studies,
		e.Comment, e.Carryover, now, now)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := s.recomputeReport(ctx, e.Year, e.Month); err != nil {
		return nil, err
	}
	return s.getEntry(ctx, id)
}

// GetEntry returns an entry by local id, or nil if absent.
func (s *Store) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	return s.getEntry(ctx, id)
}

func (s *Store) getEntry(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM report_entries WHERE id = ?", entryCols), id)
	return scanEntry(row)
}

// ListEntries returns every entry in date order.
func (s *Store) ListEntries(ctx context.Context) ([]*Entry, error) {
	return s.queryEntries(ctx,
		fmt.Sprintf("SELECT %s FROM report_entries ORDER BY entry_date, id", entryCols))
}

// ListEntriesByMonth returns a month's entries in date order.
func (s *Store) ListEntriesByMonth(ctx context.Context, year, month int) ([]*Entry, error) {
	return s.queryEntries(ctx,
		fmt.Sprintf("SELECT %s FROM report_entries WHERE year = ? AND month = ? ORDER BY entry_date, id", entryCols),
		year, month)
}

// FindEntryByRemoteUUID returns the entry carrying the identifier, or nil.
func (s *Store) FindEntryByRemoteUUID(ctx context.Context, remoteUUID string) (*Entry, error) {
	if remoteUUID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM report_entries WHERE remote_uuid = ?", entryCols), remoteUUID)
	return scanEntry(row)
}

// UpdateEntry merges a partial patch and recomputes the month's aggregates.
func (s *Store) UpdateEntry(ctx context.Context, id int64, p EntryPatch) (*Entry, error) {
	set := []string{"updated_at = ?"}
	args := []any{s.fmtNow()}

	if p.Minutes != nil {
		set = append(set, "minutes = ?")
		args = append(args, *p.Minutes)
	}
	if p.Studies != nil {
		set = append(set, "studies = ?")
		args = append(args, *p.Studies)
	}
	if p.Comment != nil {
		set = append(set, "comment = ?")
		args = append(args, *p.Comment)
	}

	s.mu.Lock()
	args = append(args, id)
	_, err := s.db.ExecContext(ctx,
		"UPDATE report_entries SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	e, err := s.getEntry(ctx, id)
	if err != nil || e == nil {
		return e, err
	}
	if err := s.recomputeReport(ctx, e.Year, e.Month); err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteEntry removes an entry and recomputes the month's aggregates.
func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	e, err := s.getEntry(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return nil
	}

	s.mu.Lock()
	_, err = s.db.ExecContext(ctx, "DELETE FROM report_entries WHERE id = ?", id)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.recomputeReport(ctx, e.Year, e.Month)
}

// ImportEntry inserts a remote-sourced entry verbatim and recomputes the
// month's aggregates.
func (s *Store) ImportEntry(ctx context.Context, e *Entry) (*Entry, error) {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO report_entries (remote_uuid, year, month, entry_date, minutes, studies,
			comment, carryover, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RemoteUUID, e.Year, e.Month, fmtTime(e.EntryDate), e.Minutes, e.Studies,
		e.Comment, e.Carryover, fmtTime(e.CreatedAt), fmtTime(e.UpdatedAt))
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := s.recomputeReport(ctx, e.Year, e.Month); err != nil {
		return nil, err
	}
	return s.getEntry(ctx, id)
}

// ApplyRemoteEntry overwrites an entry with the remote row, keeping its
// updated_at verbatim, then recomputes the month's aggregates.
func (s *Store) ApplyRemoteEntry(ctx context.Context, id int64, e *Entry) error {
	s.mu.Lock()
	_, err := s.db.ExecContext(ctx, `
		UPDATE report_entries SET remote_uuid = ?, year = ?, month = ?, entry_date = ?,
			minutes = ?, studies = ?, comment = ?, carryover = ?, updated_at = ?
		WHERE id = ?`,
		e.RemoteUUID, e.Year, e.Month, fmtTime(e.EntryDate),
		e.Minutes, e.Studies, e.Comment, e.Carryover, fmtTime(e.UpdatedAt), id)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.recomputeReport(ctx, e.Year, e.Month)
}

// MonthlyTotals sums the minutes and studies logged for one (year, month).
func (s *Store) MonthlyTotals(ctx context.Context, year, month int) (minutes, studies int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(minutes), 0), COALESCE(SUM(studies), 0)
		FROM report_entries WHERE year = ? AND month = ?`,
		year, month).Scan(&minutes, &studies)
	return minutes, studies, err
}

// GetReport returns the report row for (year, month), or nil if the month
// has never been touched.
func (s *Store) GetReport(ctx context.Context, year, month int) (*Report, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM monthly_reports WHERE year = ? AND month = ?", reportCols),
		year, month)
	return scanReport(row)
}

// ListReports returns every report in chronological order.
func (s *Store) ListReports(ctx context.Context) ([]*Report, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM monthly_reports ORDER BY year, month", reportCols))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindReportByRemoteUUID returns the report carrying the identifier, or nil.
func (s *Store) FindReportByRemoteUUID(ctx context.Context, remoteUUID string) (*Report, error) {
	if remoteUUID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM monthly_reports WHERE remote_uuid = ?", reportCols), remoteUUID)
	return scanReport(row)
}

// ImportReport inserts a remote-sourced report verbatim. The (year, month)
// uniqueness constraint makes this a merge target for later recomputes.
func (s *Store) ImportReport(ctx context.Context, r *Report) (*Report, error) {
	s.mu.Lock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monthly_reports (remote_uuid, year, month, total_minutes, studies_count,
			reported_minutes, carryover_applied, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (year, month) DO UPDATE SET
			remote_uuid = excluded.remote_uuid,
			total_minutes = excluded.total_minutes,
			studies_count = excluded.studies_count,
			reported_minutes = excluded.reported_minutes,
			carryover_applied = excluded.carryover_applied,
			updated_at = excluded.updated_at`,
		r.RemoteUUID, r.Year, r.Month, r.TotalMinutes, r.StudiesCount,
		r.ReportedMinutes, r.CarryoverApplied, fmtTime(r.CreatedAt), fmtTime(r.UpdatedAt))
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.GetReport(ctx, r.Year, r.Month)
}

// ApplyRemoteReport overwrites a report with the remote row verbatim.
func (s *Store) ApplyRemoteReport(ctx context.Context, id int64, r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE monthly_reports SET remote_uuid = ?, total_minutes = ?, studies_count = ?,
			reported_minutes = ?, carryover_applied = ?, updated_at = ?
		WHERE id = ?`,
		r.RemoteUUID, r.TotalMinutes, r.StudiesCount,
		r.ReportedMinutes, r.CarryoverApplied, fmtTime(r.UpdatedAt), id)
	return err
}

// FinalizeMonth closes out one (year, month). With moveLeftover enabled and a
// non-zero remainder modulo 60, the leftover minutes become a carry-over
// entry dated the 1st of the following month and the reported value is the
// sum minus leftover; otherwise the sum is rounded to the nearest hour, up
// at 30 or more leftover minutes. Re-invoking with moveLeftover enabled
// creates an additional carry-over entry each time.
func (s *Store) FinalizeMonth(ctx context.Context, year, month int, moveLeftover bool) (*Report, error) {
	if year == 0 || month < 1 || month > 12 {
		return nil, &ValidationError{Field: "year/month", Reason: "is invalid"}
	}

	sum, _, err := s.MonthlyTotals(ctx, year, month)
	if err != nil {
		return nil, err
	}
	leftover := sum % 60

	var reported int
	carryover := false
	if moveLeftover && leftover != 0 {
		nextDate := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		_, err := s.CreateEntry(ctx, &Entry{
			EntryDate: nextDate,
			Minutes:   leftover,
			Carryover: true,
			Comment:   fmt.Sprintf("Carried over from %04d-%02d", year, month),
		})
		if err != nil {
			return nil, err
		}
		reported = sum - leftover
		carryover = true
	} else {
		hours := sum / 60
		if leftover >= 30 {
			hours++
		}
		reported = hours * 60
	}

	if err := s.recomputeReport(ctx, year, month); err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, err = s.db.ExecContext(ctx, `
		UPDATE monthly_reports SET reported_minutes = ?, carryover_applied = ?, updated_at = ?
		WHERE year = ? AND month = ?`,
		reported, carryover, s.fmtNow(), year, month)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.GetReport(ctx, year, month)
}

// recomputeReport rederives the (year, month) aggregates from its entries,
// creating the report row on first touch.
func (s *Store) recomputeReport(ctx context.Context, year, month int) error {
	minutes, studies, err := s.MonthlyTotals(ctx, year, month)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.fmtNow()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO monthly_reports (year, month, total_minutes, studies_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (year, month) DO UPDATE SET
			total_minutes = excluded.total_minutes,
			studies_count = excluded.studies_count,
			updated_at = excluded.updated_at
		WHERE monthly_reports.total_minutes <> excluded.total_minutes
		   OR monthly_reports.studies_count <> excluded.studies_count`,
		year, month, minutes, studies, now, now)
	return err
}

// SetGoal upserts the target minutes/studies for one (year, month).
func (s *Store) SetGoal(ctx context.Context, g *Goal) (*Goal, error) {
	if g.Year == 0 || g.Month < 1 || g.Month > 12 {
		return nil, &ValidationError{Field: "year/month", Reason: "is invalid"}
	}

	s.mu.Lock()
	now := s.fmtNow()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monthly_goals (remote_uuid, year, month, target_minutes, target_studies, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (year, month) DO UPDATE SET
			target_minutes = excluded.target_minutes,
			target_studies = excluded.target_studies,
			updated_at = excluded.updated_at`,
		g.RemoteUUID, g.Year, g.Month, g.TargetMinutes, g.TargetStudies, now, now)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.GetGoal(ctx, g.Year, g.Month)
}

// GetGoal returns the goal for (year, month), or nil.
func (s *Store) GetGoal(ctx context.Context, year, month int) (*Goal, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM monthly_goals WHERE year = ? AND month = ?", goalCols),
		year, month)
	return scanGoal(row)
}

// ListGoals returns every goal in chronological order.
func (s *Store) ListGoals(ctx context.Context) ([]*Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM monthly_goals ORDER BY year, month", goalCols))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// FindGoalByRemoteUUID returns the goal carrying the identifier, or nil.
func (s *Store) FindGoalByRemoteUUID(ctx context.Context, remoteUUID string) (*Goal, error) {
	if remoteUUID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM monthly_goals WHERE remote_uuid = ?", goalCols), remoteUUID)
	return scanGoal(row)
}

// ImportGoal inserts a remote-sourced goal verbatim, merging on (year, month).
func (s *Store) ImportGoal(ctx context.Context, g *Goal) (*Goal, error) {
	s.mu.Lock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monthly_goals (remote_uuid, year, month, target_minutes, target_studies, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (year, month) DO UPDATE SET
			remote_uuid = excluded.remote_uuid,
			target_minutes = excluded.target_minutes,
			target_studies = excluded.target_studies,
			updated_at = excluded.updated_at`,
		g.RemoteUUID, g.Year, g.Month, g.TargetMinutes, g.TargetStudies,
		fmtTime(g.CreatedAt), fmtTime(g.UpdatedAt))
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.GetGoal(ctx, g.Year, g.Month)
}

// ApplyRemoteGoal overwrites a goal with the remote row verbatim.
func (s *Store) ApplyRemoteGoal(ctx context.Context, id int64, g *Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE monthly_goals SET remote_uuid = ?, target_minutes = ?, target_studies = ?, updated_at = ?
		WHERE id = ?`,
		g.RemoteUUID, g.TargetMinutes, g.TargetStudies, fmtTime(g.UpdatedAt), id)
	return err
}

func (s *Store) queryEntries(ctx context.Context, q string, args ...any) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(r rowScanner) (*Entry, error) {
	e := &Entry{}
	var entryDate, createdAt, updatedAt string

	err := r.Scan(&e.ID, &e.RemoteUUID, &e.Year, &e.Month, &entryDate, &e.Minutes,
		&e.Studies, &e.Comment, &e.Carryover, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	e.EntryDate = parseTime(entryDate)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

func scanReport(r rowScanner) (*Report, error) {
	rep := &Report{}
	var reported sql.NullInt64
	var createdAt, updatedAt string

	err := r.Scan(&rep.ID, &rep.RemoteUUID, &rep.Year, &rep.Month, &rep.TotalMinutes,
		&rep.StudiesCount, &reported, &rep.CarryoverApplied, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if reported.Valid {
		v := int(reported.Int64)
		rep.ReportedMinutes = &v
	}
	rep.CreatedAt = parseTime(createdAt)
	rep.UpdatedAt = parseTime(updatedAt)
	return rep, nil
}

func scanGoal(r rowScanner) (*Goal, error) {
	g := &Goal{}
	var createdAt, updatedAt string

	err := r.Scan(&g.ID, &g.RemoteUUID, &g.Year, &g.Month, &g.TargetMinutes,
		&g.TargetStudies, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	g.CreatedAt = parseTime(createdAt)
	g.UpdatedAt = parseTime(updatedAt)
	return g, nil
}
