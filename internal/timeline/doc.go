// Package timeline stores people, events and the ordered runs of each event.
//
// An event owns its runs; run_index orders them and is unique per event. The
// event's current run is a weak reference to one of its own runs, cleared if
// that run is deleted and rejected by the database if it points elsewhere.
//
// Writes that must land together go through Store.Atomic:
//
//	err := store.Atomic(ctx, func(repo timeline.Repository) error {
//	    if err := repo.SetRunIndex(ctx, a.ID, timeline.ReservedIndex); err != nil {
//	        return err
//	    }
//	    ...
//	})
//
// Durations are stored as milliseconds and timestamps as RFC 3339 UTC text.
package timeline
