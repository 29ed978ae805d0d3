package store

import "time"

// Buckets are the categorical scheduling tags a contact can belong to:
// a day of the week or a special category.
var Buckets = []string{
	"Saturday",
	"Sunday",
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Flexible",
	"Others",
	"NotAtHomes",
}

// DefaultBucket is applied when a contact is created without one.
const DefaultBucket = "Saturday"

// Visit occurrence statuses.
const (
	StatusPlanned   = "planned"
	StatusDone      = "done"
	StatusCancelled = "cancelled"
)

// Contact is a person being revisited. The local integer ID is the owning
// key and never leaves this store; RemoteUUID correlates the same logical
// contact across stores and, once assigned, is immutable.
type Contact struct {
	ID             int64
	RemoteUUID     string
	Name           string
	Phone          string
	Bucket         string
	NextVisitAt    *time.Time // derived: earliest future non-cancelled occurrence
	VisitTime      string     // default time of day for the bucket, "HH:MM"
	HostelName     string
	LocationDetail string
	LastOutcome    string
	Notes          string
	Tags           string
	Reminders      string // comma-separated minute offsets, e.g. "-30"
	DisplayOrder   int
	Archived       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ContactPatch is a partial update; nil fields are left untouched.
type ContactPatch struct {
	Name           *string
	Phone          *string
	Bucket         *string
	VisitTime      *string
	HostelName     *string
	LocationDetail *string
	LastOutcome    *string
	Notes          *string
	Tags           *string
	Reminders      *string
	DisplayOrder   *int
	Archived       *bool
}

// Occurrence is one concrete scheduled visit instance for a contact.
type Occurrence struct {
	ID          int64
	RemoteUUID  string
	ContactID   int64
	ContactUUID string // remote reference to the owning contact
	ScheduledAt time.Time
	Status      string
	Reminders   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OccurrencePatch is a partial update; nil fields are left untouched.
type OccurrencePatch struct {
	ScheduledAt *time.Time
	Status      *string
	Reminders   *string
}

// Report is the aggregate for one (year, month), derived from its entries.
type Report struct {
	ID               int64
	RemoteUUID       string
	Year             int
	Month            int
	TotalMinutes     int
	StudiesCount     int
	ReportedMinutes  *int // post-rounding/carry-over value, nil until finalized
	CarryoverApplied bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Entry is one atomic activity log line.
type Entry struct {
	ID         int64
	RemoteUUID string
	Year       int
	Month      int
	EntryDate  time.Time
	Minutes    int
	Studies    int
	Comment    string
	Carryover  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EntryPatch is a partial update; nil fields are left untouched.
type EntryPatch struct {
	Minutes *int
	Studies *int
	Comment *string
}

// Goal holds the target minutes/studies for one (year, month).
type Goal struct {
	ID            int64
	RemoteUUID    string
	Year          int
	Month         int
	TargetMinutes int
	TargetStudies int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Note is free-form agenda content.
type Note struct {
	ID         int64
	RemoteUUID string
	Content    string
	Pinned     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NotePatch is a partial update; nil fields are left untouched.
type NotePatch struct {
	Content *string
	Pinned  *bool
}

// SyncMeta is the singleton sync bookkeeping row.
type SyncMeta struct {
	LastSyncedAt    *time.Time
	RemoteSessionID string
}
