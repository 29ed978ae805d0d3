package sync

import (
	"context"
	"log/slog"
)

// PullAll downloads every remote row for the current user and merges it into
// the local store. Unknown rows are imported; known rows are overwritten only
// when the remote updated_at is strictly newer, so ties keep the local copy.
// Nothing is ever deleted locally on behalf of the remote. Returns the number
// of rows imported or overwritten.
func (e *Engine) PullAll(ctx context.Context) (int, error) {
	if e.backend == nil {
		return 0, nil
	}
	userID := e.auth.UserID(ctx)
	if userID == "" {
		return 0, nil
	}

	phases := []func(context.Context, string) (int, error){
		e.pullContacts,
		e.pullOccurrences,
		e.pullReports,
		e.pullEntries,
		e.pullGoals,
		e.pullNotes,
	}
	bar := e.progressBar(len(phases), "Pulling collections")

	total := 0
	for _, pull := range phases {
		n, err := pull(ctx, userID)
		total += n
		if bar != nil {
			bar.Add(1)
		}
		if err != nil {
			return total, err
		}
	}

	// A pull can land a remote twin next to a local row that was never
	// pushed, so collapse duplicates again after merging.
	if _, err := DedupeContacts(ctx, e.store); err != nil {
		slog.Warn("post-pull dedup failed", "error", err)
	}

	if err := e.store.UpdateSyncMeta(ctx, userID); err != nil {
		slog.Warn("failed to record sync time", "error", err)
	}
	return total, nil
}

func (e *Engine) pullContacts(ctx context.Context, userID string) (int, error) {
	rows, err := e.backend.ContactRows(ctx, userID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range rows {
		local, err := e.store.FindContactByRemoteUUID(ctx, r.RemoteUUID)
		if err != nil {
			return count, err
		}
		if local == nil {
			// A contact created on this device before its first push has no
			// remote identifier yet; match it by name so the remote copy
			// adopts it instead of spawning a twin.
			local, err = e.store.FindContactByName(ctx, r.Name)
			if err != nil {
				return count, err
			}
			if local != nil && local.RemoteUUID != "" && local.RemoteUUID != r.RemoteUUID {
				local = nil
			}
		}

		if local == nil {
			if _, err := e.store.ImportContact(ctx, fromRemoteContact(r)); err != nil {
				return count, err
			}
			count++
			continue
		}
		if !r.UpdatedAt.After(local.UpdatedAt) {
			continue
		}
		merged := fromRemoteContact(r)
		merged.CreatedAt = local.CreatedAt
		if err := e.store.ApplyRemoteContact(ctx, local.ID, merged); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (e *Engine) pullOccurrences(ctx context.Context, userID string) (int, error) {
	rows, err := e.backend.OccurrenceRows(ctx, userID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range rows {
		// Contacts are pulled first, so the owner usually resolves here.
		var contactID int64
		if r.ContactUUID != "" {
			owner, err := e.store.FindContactByRemoteUUID(ctx, r.ContactUUID)
			if err != nil {
				return count, err
			}
			if owner != nil {
				contactID = owner.ID
			}
		}

		local, err := e.store.FindOccurrenceByRemoteUUID(ctx, r.RemoteUUID)
		if err != nil {
			return count, err
		}
		if local == nil {
			if _, err := e.store.ImportOccurrence(ctx, fromRemoteOccurrence(r, contactID)); err != nil {
				return count, err
			}
			count++
			continue
		}

		if r.UpdatedAt.After(local.UpdatedAt) {
			merged := fromRemoteOccurrence(r, contactID)
			merged.CreatedAt = local.CreatedAt
			if err := e.store.ApplyRemoteOccurrence(ctx, local.ID, merged); err != nil {
				return count, err
			}
			count++
			continue
		}

		// Orphan adoption: the owner may have arrived in this same pull.
		if local.ContactID == 0 && contactID != 0 {
			if err := e.store.SetOccurrenceContact(ctx, local.ID, contactID, r.ContactUUID); err != nil {
				return count, err
			}
		}
	}
	return count, nil
}

func (e *Engine) pullReports(ctx context.Context, userID string) (int, error) {
	rows, err := e.backend.ReportRows(ctx, userID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range rows {
		local, err := e.store.FindReportByRemoteUUID(ctx, r.RemoteUUID)
		if err != nil {
			return count, err
		}
		if local == nil {
			// Reports are singletons per (year, month); the local aggregate
			// for the same month is the same logical row.
			local, err = e.store.GetReport(ctx, r.Year, r.Month)
			if err != nil {
				return count, err
			}
			if local != nil && local.RemoteUUID != "" && local.RemoteUUID != r.RemoteUUID {
				local = nil
			}
		}

		if local == nil {
			if _, err := e.store.ImportReport(ctx, fromRemoteReport(r)); err != nil {
				return count, err
			}
			count++
			continue
		}
		if !r.UpdatedAt.After(local.UpdatedAt) {
			continue
		}
		merged := fromRemoteReport(r)
		merged.CreatedAt = local.CreatedAt
		if err := e.store.ApplyRemoteReport(ctx, local.ID, merged); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (e *Engine) pullEntries(ctx context.Context, userID string) (int, error) {
	rows, err := e.backend.EntryRows(ctx, userID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range rows {
		local, err := e.store.FindEntryByRemoteUUID(ctx, r.RemoteUUID)
		if err != nil {
			return count, err
		}
		if local == nil {
			if _, err := e.store.ImportEntry(ctx, fromRemoteEntry(r)); err != nil {
				return count, err
			}
			count++
			continue
		}
		if !r.UpdatedAt.After(local.UpdatedAt) {
			continue
		}
		merged := fromRemoteEntry(r)
		merged.CreatedAt = local.CreatedAt
		if err := e.store.ApplyRemoteEntry(ctx, local.ID, merged); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (e *Engine) pullGoals(ctx context.Context, userID string) (int, error) {
	rows, err := e.backend.GoalRows(ctx, userID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range rows {
		local, err := e.store.FindGoalByRemoteUUID(ctx, r.RemoteUUID)
		if err != nil {
			return count, err
		}
		if local == nil {
			local, err = e.store.GetGoal(ctx, r.Year, r.Month)
			if err != nil {
				return count, err
			}
			if local != nil && local.RemoteUUID != "" && local.RemoteUUID != r.RemoteUUID {
				local = nil
			}
		}

		if local == nil {
			if _, err := e.store.ImportGoal(ctx, fromRemoteGoal(r)); err != nil {
				return count, err
			}
			count++
			continue
		}
		if !r.UpdatedAt.After(local.UpdatedAt) {
			continue
		}
		merged := fromRemoteGoal(r)
		merged.CreatedAt = local.CreatedAt
		if err := e.store.ApplyRemoteGoal(ctx, local.ID, merged); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (e *Engine) pullNotes(ctx context.Context, userID string) (int, error) {
	rows, err := e.backend.NoteRows(ctx, userID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range rows {
		local, err := e.store.FindNoteByRemoteUUID(ctx, r.RemoteUUID)
		if err != nil {
			return count, err
		}
		if local == nil {
			if _, err := e.store.ImportNote(ctx, fromRemoteNote(r)); err != nil {
				return count, err
			}
			count++
			continue
		}
		if !r.UpdatedAt.After(local.UpdatedAt) {
			continue
		}
		merged := fromRemoteNote(r)
		merged.CreatedAt = local.CreatedAt
		if err := e.store.ApplyRemoteNote(ctx, local.ID, merged); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
