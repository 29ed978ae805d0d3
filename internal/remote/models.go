package remote

import "time"

// Row types mirror the remote relational tables. Every row is scoped to the
// owning user and keyed by its globally unique remote_uuid; updated_at is
// stamped by the server on upsert and is the merge tiebreaker everywhere.

// Stamp is the server's answer to an upsert: the conflict key plus the
// authoritative updated_at the local store must adopt.
type Stamp struct {
	RemoteUUID string
	UpdatedAt  time.Time
}

type ContactRow struct {
	RemoteUUID     string
	Name           string
	Phone          string
	Bucket         string
	NextVisitAt    *time.Time
	VisitTime      string
	HostelName     string
	LocationDetail string
	LastOutcome    string
	Notes          string
	Tags           string
	Reminders      string
	DisplayOrder   int
	Archived       bool
	UpdatedAt      time.Time
}

type OccurrenceRow struct {
	RemoteUUID  string
	ContactUUID string
	ScheduledAt time.Time
	Status      string
	Reminders   string
	UpdatedAt   time.Time
}

type ReportRow struct {
	RemoteUUID       string
	Year             int
	Month            int
	TotalMinutes     int
	StudiesCount     int
	ReportedMinutes  *int
	CarryoverApplied bool
	UpdatedAt        time.Time
}

type EntryRow struct {
	RemoteUUID string
	Year       int
	Month      int
	EntryDate  time.Time
	Minutes    int
	Studies    int
	Comment    string
	Carryover  bool
	UpdatedAt  time.Time
}

type GoalRow struct {
	RemoteUUID    string
	Year          int
	Month         int
	TargetMinutes int
	TargetStudies int
	UpdatedAt     time.Time
}

type NoteRow struct {
	RemoteUUID string
	Content    string
	Pinned     bool
	UpdatedAt  time.Time
}
