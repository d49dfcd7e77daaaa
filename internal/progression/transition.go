package progression

import (
	"time"

	"github.com/nerrad567/overlay-core/internal/timeline"
)

// Action names an operator command.
type Action string

const (
	ActionAdvance  Action = "advance"
	ActionRevert   Action = "revert"
	ActionMoveUp   Action = "move_up"
	ActionMoveDown Action = "move_down"
	ActionEdit     Action = "edit"
	ActionSync     Action = "sync"
)

// Direction is the way a run moves in the running order.
type Direction int

const (
	// Up moves a run to an earlier slot.
	Up Direction = iota
	// Down moves a run to a later slot.
	Down
)

// Action returns the operator command for a move in this direction.
func (d Direction) Action() Action {
	if d == Up {
		return ActionMoveUp
	}
	return ActionMoveDown
}

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// Transition is the committed state of an event after an operation.
type Transition struct {
	Action Action `json:"action"`

	// Changed is false when the operation was a no-op (exhausted timeline,
	// reorder past an end, locked run).
	Changed bool `json:"changed"`

	Event *timeline.Event `json:"event"`

	// Previous is the run that was current before the operation, if any.
	Previous *timeline.Run `json:"previous,omitempty"`

	// Current is the live run, nil when idle.
	Current *timeline.Run `json:"current,omitempty"`

	// NextSlot is the slot an advance would start, intermissions included.
	NextSlot *timeline.Run `json:"next_slot,omitempty"`

	// NextRun is the next non-intermission run, for "coming up" displays.
	NextRun *timeline.Run `json:"next_run,omitempty"`

	// Moved is the run a reorder acted on.
	Moved *timeline.Run `json:"moved,omitempty"`

	// Runs is the whole running order after the operation.
	Runs []*timeline.Run `json:"runs"`

	At time.Time `json:"at"`
}

// Lateness is the event shift as "Xh Ym".
func (t *Transition) Lateness() string {
	return timeline.FormatLateness(t.Event.Shift)
}

// RunDuration is how long the previous run took, when it has just finished.
func (t *Transition) RunDuration() (time.Duration, bool) {
	p := t.Previous
	if p == nil || p.ActualStart == nil || p.ActualEnd == nil {
		return 0, false
	}
	return p.ActualEnd.Sub(*p.ActualStart), true
}

// CanMove reports whether run may swap with its neighbour in direction d.
// Finished runs are fixed in place and may not be swapped with.
func CanMove(runs []*timeline.Run, run *timeline.Run, d Direction) bool {
	if locked(run) {
		return false
	}
	n := neighbour(runs, run, d)
	return n != nil && !locked(n)
}

// locked reports whether run is fixed in place. Only finished runs are;
// the current run may trade places with an upcoming one, and the event keeps
// pointing at it by ID.
func locked(run *timeline.Run) bool {
	return run.IsFinished
}

// neighbour finds the adjacent run in an index-ordered slice.
func neighbour(runs []*timeline.Run, run *timeline.Run, d Direction) *timeline.Run {
	for i, r := range runs {
		if r.ID != run.ID {
			continue
		}
		switch {
		case d == Up && i > 0:
			return runs[i-1]
		case d == Down && i+1 < len(runs):
			return runs[i+1]
		}
		return nil
	}
	return nil
}
