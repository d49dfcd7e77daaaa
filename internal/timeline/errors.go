package timeline

import "errors"

// Domain errors for the timeline package.
//
// Callers classify them with errors.Is:
//
//	if errors.Is(err, timeline.ErrEventNotFound) {
//	    // 404
//	}
var (
	// ErrEventNotFound is returned when an event id or name does not exist.
	ErrEventNotFound = errors.New("timeline: event not found")

	// ErrRunNotFound is returned when a run id or index does not exist.
	ErrRunNotFound = errors.New("timeline: run not found")

	// ErrPersonNotFound is returned when a person id or name does not exist.
	ErrPersonNotFound = errors.New("timeline: person not found")

	// ErrNameExists is returned when an event or person name is already taken.
	ErrNameExists = errors.New("timeline: name already exists")

	// ErrRunIndexConflict is returned when two runs of one event would share
	// a run_index.
	ErrRunIndexConflict = errors.New("timeline: run index already used in event")

	// ErrRunNotInEvent is returned when an event would point at a run it
	// does not own.
	ErrRunNotInEvent = errors.New("timeline: run belongs to another event")

	// ErrInvalidRun is returned when a run fails validation.
	ErrInvalidRun = errors.New("timeline: invalid run")

	// ErrInvalidEvent is returned when an event fails validation.
	ErrInvalidEvent = errors.New("timeline: invalid event")

	// ErrInvalidPerson is returned when a person has no usable name.
	ErrInvalidPerson = errors.New("timeline: invalid person")
)
