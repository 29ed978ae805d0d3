package sync

import (
	"github.com/yiadomb/return-visit-tracker/internal/remote"
	"github.com/yiadomb/return-visit-tracker/internal/store"
)

// Mapping between local entities and remote rows. Local integer ids never
// cross the wire; rows correlate on remote_uuid alone. The fromRemote side
// fills CreatedAt from the server's updated_at because the remote tables do
// not carry a creation time.

func toRemoteContact(c *store.Contact) remote.ContactRow {
	return remote.ContactRow{
		RemoteUUID:     c.RemoteUUID,
		Name:           c.Name,
		Phone:          c.Phone,
		Bucket:         c.Bucket,
		NextVisitAt:    c.NextVisitAt,
		VisitTime:      c.VisitTime,
		HostelName:     c.HostelName,
		LocationDetail: c.LocationDetail,
		LastOutcome:    c.LastOutcome,
		Notes:          c.Notes,
		Tags:           c.Tags,
		Reminders:      c.Reminders,
		DisplayOrder:   c.DisplayOrder,
		Archived:       c.Archived,
		UpdatedAt:      c.UpdatedAt,
	}
}

func fromRemoteContact(r remote.ContactRow) *store.Contact {
	return &store.Contact{
		RemoteUUID:     r.RemoteUUID,
		Name:           r.Name,
		Phone:          r.Phone,
		Bucket:         r.Bucket,
		NextVisitAt:    r.NextVisitAt,
		VisitTime:      r.VisitTime,
		HostelName:     r.HostelName,
		LocationDetail: r.LocationDetail,
		LastOutcome:    r.LastOutcome,
		Notes:          r.Notes,
		Tags:           r.Tags,
		Reminders:      r.Reminders,
		DisplayOrder:   r.DisplayOrder,
		Archived:       r.Archived,
		CreatedAt:      r.UpdatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func toRemoteOccurrence(o *store.Occurrence) remote.OccurrenceRow {
	return remote.OccurrenceRow{
		RemoteUUID:  o.RemoteUUID,
		ContactUUID: o.ContactUUID,
		ScheduledAt: o.ScheduledAt,
		Status:      o.Status,
		Reminders:   o.Reminders,
		UpdatedAt:   o.UpdatedAt,
	}
}

func fromRemoteOccurrence(r remote.OccurrenceRow, contactID int64) *store.Occurrence {
	return &store.Occurrence{
		RemoteUUID:  r.RemoteUUID,
		ContactID:   contactID,
		ContactUUID: r.ContactUUID,
		ScheduledAt: r.ScheduledAt,
		Status:      r.Status,
		Reminders:   r.Reminders,
		CreatedAt:   r.UpdatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toRemoteReport(r *store.Report) remote.ReportRow {
	return remote.ReportRow{
		RemoteUUID:       r.RemoteUUID,
		Year:             r.Year,
		Month:            r.Month,
		TotalMinutes:     r.TotalMinutes,
		StudiesCount:     r.StudiesCount,
		ReportedMinutes:  r.ReportedMinutes,
		CarryoverApplied: r.CarryoverApplied,
		UpdatedAt:        r.UpdatedAt,
	}
}

func fromRemoteReport(r remote.ReportRow) *store.Report {
	return &store.Report{
		RemoteUUID:       r.RemoteUUID,
		Year:             r.Year,
		Month:            r.Month,
		TotalMinutes:     r.TotalMinutes,
		StudiesCount:     r.StudiesCount,
		ReportedMinutes:  r.ReportedMinutes,
		CarryoverApplied: r.CarryoverApplied,
		CreatedAt:        r.UpdatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func toRemoteEntry(e *store.Entry) remote.EntryRow {
	return remote.EntryRow{
		RemoteUUID: e.RemoteUUID,
		Year:       e.Year,
		Month:      e.Month,
		EntryDate:  e.EntryDate,
		Minutes:    e.Minutes,
		Studies:    e.Studies,
		Comment:    e.Comment,
		Carryover:  e.Carryover,
		UpdatedAt:  e.UpdatedAt,
	}
}

func fromRemoteEntry(r remote.EntryRow) *store.Entry {
	return &store.Entry{
		RemoteUUID: r.RemoteUUID,
		Year:       r.Year,
		Month:      r.Month,
		EntryDate:  r.EntryDate,
		Minutes:    r.Minutes,
		Studies:    r.Studies,
		Comment:    r.Comment,
		Carryover:  r.Carryover,
		CreatedAt:  r.UpdatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func toRemoteGoal(g *store.Goal) remote.GoalRow {
	return remote.GoalRow{
		RemoteUUID:    g.RemoteUUID,
		Year:          g.Year,
		Month:         g.Month,
		TargetMinutes: g.TargetMinutes,
		TargetStudies: g.TargetStudies,
		UpdatedAt:     g.UpdatedAt,
	}
}

func fromRemoteGoal(r remote.GoalRow) *store.Goal {
	return &store.Goal{
		RemoteUUID:    r.RemoteUUID,
		Year:          r.Year,
		Month:         r.Month,
		TargetMinutes: r.TargetMinutes,
		TargetStudies: r.TargetStudies,
		CreatedAt:     r.UpdatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toRemoteNote(n *store.Note) remote.NoteRow {
	return remote.NoteRow{
		RemoteUUID: n.RemoteUUID,
		Content:    n.Content,
		Pinned:     n.Pinned,
		UpdatedAt:  n.UpdatedAt,
	}
}

func fromRemoteNote(r remote.NoteRow) *store.Note {
	return &store.Note{
		RemoteUUID: r.RemoteUUID,
		Content:    r.Content,
		Pinned:     r.Pinned,
		CreatedAt:  r.UpdatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
