package engine

import "github.com/roach88/honeycal/internal/event"

// Merge reconciles the local and remote event lists into the unified
// view, remote-wins on conflict.
//
// The map is keyed by Identity.Key(): the remote cross-reference when the
// local record has one, else a local-scoped synthetic key. Local records
// seed the map; remote records overlay it under their own identifier, so
// a local copy that has been accepted remotely collapses with its remote
// counterpart instead of duplicating. Remote field values win, but the
// local identifier is preserved on the merged entry so view entries stay
// addressable for local mutations.
//
// Output order matches the local store's own listing order; merging is
// idempotent and never reorders items between the offline and reconciled
// views.
func Merge(local, remote []event.Event) []event.Event {
	byKey := make(map[string]event.Event, len(local)+len(remote))
	order := make([]string, 0, len(local)+len(remote))

	for _, ev := range local {
		key := ev.ID.Key()
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = ev
	}

	for _, ev := range remote {
		ev.Status = event.StatusSynced
		key := ev.ID.Key()
		if prior, seen := byKey[key]; seen {
			ev.ID.Local = prior.ID.Local
		} else {
			order = append(order, key)
		}
		byKey[key] = ev
	}

	merged := make([]event.Event, 0, len(order))
	for _, key := range order {
		merged = append(merged, byKey[key])
	}
	event.Sort(merged)
	return merged
}
