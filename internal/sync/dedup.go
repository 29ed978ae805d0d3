package sync

import (
	"context"
	"strings"

	"github.com/yiadomb/return-visit-tracker/internal/store"
)

// DedupeContacts collapses duplicate contacts in two passes and returns the
// number of rows removed. Pass one groups identified contacts sharing a
// remote_uuid and keeps only the newest. Pass two hunts for never-pushed
// contacts whose name matches an identified one: the offline twin left behind
// when the same person was added on two devices before either synced. The
// un-identified row always loses its slot; its field values survive only if
// it is strictly newer than the identified row.
func DedupeContacts(ctx context.Context, st *store.Store) (int, error) {
	contacts, err := st.ListContacts(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0

	// Pass one: same remote_uuid, keep newest.
	byUUID := make(map[string][]*store.Contact)
	for _, c := range contacts {
		if c.RemoteUUID != "" {
			byUUID[c.RemoteUUID] = append(byUUID[c.RemoteUUID], c)
		}
	}
	dropped := make(map[int64]bool)
	for _, group := range byUUID {
		if len(group) < 2 {
			continue
		}
		keep := group[0]
		for _, c := range group[1:] {
			if c.UpdatedAt.After(keep.UpdatedAt) {
				keep = c
			}
		}
		for _, c := range group {
			if c.ID == keep.ID {
				continue
			}
			if err := st.DeleteContact(ctx, c.ID); err != nil {
				return removed, err
			}
			dropped[c.ID] = true
			removed++
		}
	}

	// Pass two: un-identified row shadowing an identified one by name.
	byName := make(map[string]*store.Contact)
	for _, c := range contacts {
		if c.RemoteUUID == "" || dropped[c.ID] {
			continue
		}
		key := nameKey(c.Name)
		if prev, ok := byName[key]; !ok || c.UpdatedAt.After(prev.UpdatedAt) {
			byName[key] = c
		}
	}
	for _, c := range contacts {
		if c.RemoteUUID != "" || dropped[c.ID] {
			continue
		}
		match, ok := byName[nameKey(c.Name)]
		if !ok {
			continue
		}

		if c.UpdatedAt.After(match.UpdatedAt) {
			merged := mergeContact(match, c)
			if err := st.ApplyRemoteContact(ctx, match.ID, merged); err != nil {
				return removed, err
			}
		}
		if err := st.DeleteContact(ctx, c.ID); err != nil {
			return removed, err
		}
		removed++
	}

	return removed, nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// mergeContact folds the newer un-identified row's populated fields into the
// identified row. Identity and creation time stay with the survivor; the
// merge adopts the newer row's updated_at so a later pull cannot silently
// undo it.
func mergeContact(keep, newer *store.Contact) *store.Contact {
	out := *keep

	if newer.Phone != "" {
		out.Phone = newer.Phone
	}
	if newer.Bucket != "" {
		out.Bucket = newer.Bucket
	}
	if newer.NextVisitAt != nil {
		out.NextVisitAt = newer.NextVisitAt
	}
	if newer.VisitTime != "" {
		out.VisitTime = newer.VisitTime
	}
	if newer.HostelName != "" {
		out.HostelName = newer.HostelName
	}
	if newer.LocationDetail != "" {
		out.LocationDetail = newer.LocationDetail
	}
	if newer.LastOutcome != "" {
		out.LastOutcome = newer.LastOutcome
	}
	if newer.Notes != "" {
		out.Notes = newer.Notes
	}
	if newer.Tags != "" {
		out.Tags = newer.Tags
	}
	if newer.Reminders != "" {
		out.Reminders = newer.Reminders
	}
	out.Archived = newer.Archived
	out.UpdatedAt = newer.UpdatedAt
	return &out
}
