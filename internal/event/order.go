package event

import "sort"

// Less is the canonical event ordering: date ascending, then start time
// ascending with all-day (no start time) events sorting first, then merge
// key for a stable total order.
//
// The local store's listing and the engine's merge both sort with this
// comparator so the offline view and the reconciled view never reorder
// items relative to each other.
func Less(a, b Event) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	// No start time sorts before any present time.
	if (a.StartTime == "") != (b.StartTime == "") {
		return a.StartTime == ""
	}
	if a.StartTime != b.StartTime {
		return a.StartTime < b.StartTime
	}
	return a.ID.Key() < b.ID.Key()
}

// Sort orders events in place by Less.
func Sort(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return Less(events[i], events[j])
	})
}
