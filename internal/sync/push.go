package sync

import (
	"context"
	"log/slog"

	"github.com/yiadomb/return-visit-tracker/internal/identity"
	"github.com/yiadomb/return-visit-tracker/internal/remote"
	"github.com/yiadomb/return-visit-tracker/internal/store"
)

// PushAll uploads every local row across the six collections. Rows without a
// remote identifier get one assigned and persisted before transmission, so
// the upsert's conflict key is always present and stable from then on. On
// success each row's updated_at is overwritten with the server-returned
// authoritative value. Returns the number of rows upserted.
func (e *Engine) PushAll(ctx context.Context) (int, error) {
	if e.backend == nil {
		return 0, nil
	}

	// Collapse local duplicates before uploading them.
	if _, err := DedupeContacts(ctx, e.store); err != nil {
		slog.Warn("dedup pass failed", "error", err)
	}

	userID := e.auth.UserID(ctx)
	if userID == "" {
		return 0, nil
	}

	phases := []func(context.Context, string) (int, error){
		e.pushContacts,
		e.pushOccurrences,
		e.pushReports,
		e.pushEntries,
		e.pushGoals,
		e.pushNotes,
	}
	bar := e.progressBar(len(phases), "Pushing collections")

	total := 0
	for _, push := range phases {
		n, err := push(ctx, userID)
		total += n
		if bar != nil {
			bar.Add(1)
		}
		if err != nil {
			return total, err
		}
	}

	if err := e.store.UpdateSyncMeta(ctx, userID); err != nil {
		slog.Warn("failed to record sync time", "error", err)
	}

	// Nudge other connected clients to pull. Best-effort only.
	if err := e.backend.Broadcast(ctx, userID); err != nil {
		slog.Debug("change broadcast failed", "error", err)
	}
	return total, nil
}

// adoptStamps writes server-authoritative updated_at values back onto the
// local rows that were just upserted.
func (e *Engine) adoptStamps(ctx context.Context, coll store.Collection, stamps []remote.Stamp) {
	for _, st := range stamps {
		if err := e.store.SetUpdatedAtByRemoteUUID(ctx, coll, st.RemoteUUID, st.UpdatedAt); err != nil {
			slog.Warn("failed to adopt server timestamp", "table", coll, "error", err)
		}
	}
}

func (e *Engine) pushContacts(ctx context.Context, userID string) (int, error) {
	locals, err := e.store.ListContacts(ctx)
	if err != nil || len(locals) == 0 {
		return 0, err
	}

	rows := make([]remote.ContactRow, 0, len(locals))
	for _, c := range locals {
		if c.RemoteUUID == "" {
			u := identity.New()
			if err := e.store.AssignRemoteUUID(ctx, store.Contacts, c.ID, u); err != nil {
				return 0, err
			}
			c.RemoteUUID = u
		}
		rows = append(rows, toRemoteContact(c))
	}

	stamps, err := e.backend.UpsertContacts(ctx, userID, rows)
	e.adoptStamps(ctx, store.Contacts, stamps)
	return len(stamps), err
}

func (e *Engine) pushOccurrences(ctx context.Context, userID string) (int, error) {
	locals, err := e.store.ListOccurrences(ctx)
	if err != nil || len(locals) == 0 {
		return 0, err
	}

	rows := make([]remote.OccurrenceRow, 0, len(locals))
	for _, o := range locals {
		// Stamp the owning contact's identifier onto locally created
		// occurrences; contacts are pushed first so it exists by now.
		if o.ContactUUID == "" && o.ContactID != 0 {
			c, err := e.store.GetContact(ctx, o.ContactID)
			if err != nil {
				return 0, err
			}
			if c != nil && c.RemoteUUID != "" {
				if err := e.store.SetOccurrenceContact(ctx, o.ID, o.ContactID, c.RemoteUUID); err != nil {
					return 0, err
				}
				o.ContactUUID = c.RemoteUUID
			}
		}
		if o.RemoteUUID == "" {
			u := identity.New()
			if err := e.store.AssignRemoteUUID(ctx, store.Occurrences, o.ID, u); err != nil {
				return 0, err
			}
			o.RemoteUUID = u
		}
		rows = append(rows, toRemoteOccurrence(o))
	}

	stamps, err := e.backend.UpsertOccurrences(ctx, userID, rows)
	e.adoptStamps(ctx, store.Occurrences, stamps)
	return len(stamps), err
}

func (e *Engine) pushReports(ctx context.Context, userID string) (int, error) {
	locals, err := e.store.ListReports(ctx)
	if err != nil || len(locals) == 0 {
		return 0, err
	}

	rows := make([]remote.ReportRow, 0, len(locals))
	for _, r := range locals {
		if r.RemoteUUID == "" {
			u := identity.New()
			if err := e.store.AssignRemoteUUID(ctx, store.Reports, r.ID, u); err != nil {
				return 0, err
			}
			r.RemoteUUID = u
		}
		rows = append(rows, toRemoteReport(r))
	}

	stamps, err := e.backend.UpsertReports(ctx, userID, rows)
	e.adoptStamps(ctx, store.Reports, stamps)
	return len(stamps), err
}

func (e *Engine) pushEntries(ctx context.Context, userID string) (int, error) {
	locals, err := e.store.ListEntries(ctx)
	if err != nil || len(locals) == 0 {
		return 0, err
	}

	rows := make([]remote.EntryRow, 0, len(locals))
	for _, en := range locals {
		if en.RemoteUUID == "" {
			u := identity.New()
			if err := e.store.AssignRemoteUUID(ctx, store.Entries, en.ID, u); err != nil {
				return 0, err
			}
			en.RemoteUUID = u
		}
		rows = append(rows, toRemoteEntry(en))
	}

	stamps, err := e.backend.UpsertEntries(ctx, userID, rows)
	e.adoptStamps(ctx, store.Entries, stamps)
	return len(stamps), err
}

func (e *Engine) pushGoals(ctx context.Context, userID string) (int, error) {
	locals, err := e.store.ListGoals(ctx)
	if err != nil || len(locals) == 0 {
		return 0, err
	}

	rows := make([]remote.GoalRow, 0, len(locals))
	for _, g := range locals {
		if g.RemoteUUID == "" {
			u := identity.New()
			if err := e.store.AssignRemoteUUID(ctx, store.Goals, g.ID, u); err != nil {
				return 0, err
			}
			g.RemoteUUID = u
		}
		rows = append(rows, toRemoteGoal(g))
	}

	stamps, err := e.backend.UpsertGoals(ctx, userID, rows)
	e.adoptStamps(ctx, store.Goals, stamps)
	return len(stamps), err
}

func (e *Engine) pushNotes(ctx context.Context, userID string) (int, error) {
	locals, err := e.store.ListNotes(ctx)
	if err != nil || len(locals) == 0 {
		return 0, err
	}

	rows := make([]remote.NoteRow, 0, len(locals))
	for _, n := range locals {
		if n.RemoteUUID == "" {
			u := identity.New()
			if err := e.store.AssignRemoteUUID(ctx, store.Notes, n.ID, u); err != nil {
				return 0, err
			}
			n.RemoteUUID = u
		}
		rows = append(rows, toRemoteNote(n))
	}

	stamps, err := e.backend.UpsertNotes(ctx, userID, rows)
	e.adoptStamps(ctx, store.Notes, stamps)
	return len(stamps), err
}
