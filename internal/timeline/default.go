package timeline

import (
	"context"
	"time"
)

// DefaultEvent picks the event an operator most likely wants when none is
// named: the one running today, else the next to start, else the one that
// ended most recently.
func DefaultEvent(ctx context.Context, repo Repository, now time.Time) (*Event, error) {
	events, err := repo.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	return pickDefault(events, now)
}

func pickDefault(events []Event, now time.Time) (*Event, error) {
	if len(events) == 0 {
		return nil, ErrEventNotFound
	}

	var upcoming, past *Event
	for i := range events {
		e := &events[i]
		if e.IsActiveOn(now) {
			return e, nil
		}
		if e.StartAt.After(now) {
			if upcoming == nil || e.StartAt.Before(upcoming.StartAt) {
				upcoming = e
			}
			continue
		}
		if past == nil || e.EndAt.After(past.EndAt) {
			past = e
		}
	}

	if upcoming != nil {
		return upcoming, nil
	}
	return past, nil
}
