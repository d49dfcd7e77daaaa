package progression

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/overlay-core/internal/scheduler"
	"github.com/nerrad567/overlay-core/internal/timeline"
)

// Logger is the logging interface used by the machine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Machine moves an event's current-run cursor. It is the only writer of
// Event.CurrentRunID, run actual times and the finished flag.
//
// Every operation runs in one Store.Atomic transaction, so concurrent
// operations on the same event serialise in the database and a failed
// operation leaves no trace.
type Machine struct {
	store  *timeline.Store
	now    func() time.Time
	logger Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithLogger sets the machine's logger.
func WithLogger(l Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Machine over store.
func New(store *timeline.Store, opts ...Option) *Machine {
	m := &Machine{
		store:  store,
		now:    time.Now,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the timeline store the machine writes to.
func (m *Machine) Store() *timeline.Store {
	return m.store
}

// NextSlot returns the run after the cursor, intermissions included, or nil
// when the timeline is exhausted. With no current run the cursor sits after
// the last finished run, or before the first run if none has finished.
func NextSlot(ctx context.Context, repo timeline.Repository, event *timeline.Event) (*timeline.Run, error) {
	return nextAfterCursor(ctx, repo, event, true)
}

// NextRun is NextSlot without intermissions.
func NextRun(ctx context.Context, repo timeline.Repository, event *timeline.Event) (*timeline.Run, error) {
	return nextAfterCursor(ctx, repo, event, false)
}

func nextAfterCursor(ctx context.Context, repo timeline.Repository, event *timeline.Event, intermissions bool) (*timeline.Run, error) {
	cursor, err := cursorIndex(ctx, repo, event)
	if err != nil {
		return nil, err
	}
	return optional(repo.RunAfter(ctx, event.ID, cursor, intermissions))
}

func cursorIndex(ctx context.Context, repo timeline.Repository, event *timeline.Event) (int, error) {
	if event.CurrentRunID != nil {
		current, err := repo.GetRun(ctx, *event.CurrentRunID)
		if err != nil {
			return 0, fmt.Errorf("loading current run: %w", err)
		}
		return current.Index, nil
	}
	last, err := optional(repo.LastFinishedRun(ctx, event.ID))
	if err != nil || last == nil {
		return 0, err
	}
	return last.Index, nil
}

// State returns the event's current position without changing anything.
func (m *Machine) State(ctx context.Context, eventID int64) (*Transition, error) {
	var t *Transition
	err := m.store.Atomic(ctx, func(repo timeline.Repository) error {
		event, err := repo.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		t = &Transition{Action: ActionSync, Event: event, At: m.now().UTC()}
		return m.describe(ctx, repo, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Advance finishes the current run, if any, and starts the next slot.
//
// The event's shift becomes how late the new run started against its plan,
// floored at zero. Advancing past the last slot leaves the event idle.
// With nothing current and nothing left, Advance is a no-op.
func (m *Machine) Advance(ctx context.Context, eventID int64) (*Transition, error) {
	now := m.now().UTC()
	t := &Transition{Action: ActionAdvance, At: now}

	err := m.store.Atomic(ctx, func(repo timeline.Repository) error {
		event, err := repo.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		t.Event = event

		current, err := currentRun(ctx, repo, event)
		if err != nil {
			return err
		}
		next, err := NextSlot(ctx, repo, event)
		if err != nil {
			return err
		}
		if current == nil && next == nil {
			return m.describe(ctx, repo, t)
		}

		if current != nil {
			current.IsFinished = true
			current.ActualEnd = &now
			if err := repo.UpdateRun(ctx, current); err != nil {
				return fmt.Errorf("finishing run %d: %w", current.ID, err)
			}
			t.Previous = current
		}

		event.CurrentRunID = nil
		if next != nil {
			started := now
			next.ActualStart = &started
			next.ActualEnd = nil
			next.IsFinished = false
			if err := repo.UpdateRun(ctx, next); err != nil {
				return fmt.Errorf("starting run %d: %w", next.ID, err)
			}
			id := next.ID
			event.CurrentRunID = &id
			event.Shift = max(now.Sub(next.PlanningStart), 0)
		}
		if err := repo.UpdateEvent(ctx, event); err != nil {
			return fmt.Errorf("moving current run: %w", err)
		}
		if _, err := scheduler.RecomputeAll(ctx, repo, event); err != nil {
			return err
		}

		t.Changed = true
		return m.describe(ctx, repo, t)
	})
	if err != nil {
		return nil, err
	}

	m.logTransition(t)
	return t, nil
}

// Revert undoes the last advance. The current run loses its start, the run
// before it is reopened and becomes current. When the timeline has run out,
// the last finished run is reopened instead. The event's shift is kept as
// it is.
func (m *Machine) Revert(ctx context.Context, eventID int64) (*Transition, error) {
	t := &Transition{Action: ActionRevert, At: m.now().UTC()}

	err := m.store.Atomic(ctx, func(repo timeline.Repository) error {
		event, err := repo.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		t.Event = event

		current, err := currentRun(ctx, repo, event)
		if err != nil {
			return err
		}

		var reopen *timeline.Run
		if current != nil {
			t.Previous = current
			current.IsFinished = false
			current.ActualStart = nil
			if err := repo.UpdateRun(ctx, current); err != nil {
				return fmt.Errorf("clearing run %d: %w", current.ID, err)
			}
			if reopen, err = optional(repo.RunBefore(ctx, event.ID, current.Index)); err != nil {
				return err
			}
		} else {
			if reopen, err = optional(repo.LastFinishedRun(ctx, event.ID)); err != nil {
				return err
			}
			if reopen == nil {
				return m.describe(ctx, repo, t)
			}
		}

		event.CurrentRunID = nil
		if reopen != nil {
			reopen.IsFinished = false
			reopen.ActualEnd = nil
			if err := repo.UpdateRun(ctx, reopen); err != nil {
				return fmt.Errorf("reopening run %d: %w", reopen.ID, err)
			}
			id := reopen.ID
			event.CurrentRunID = &id
		}
		if err := repo.UpdateEvent(ctx, event); err != nil {
			return fmt.Errorf("moving current run: %w", err)
		}
		if _, err := scheduler.RecomputeAll(ctx, repo, event); err != nil {
			return err
		}

		t.Changed = true
		return m.describe(ctx, repo, t)
	})
	if err != nil {
		return nil, err
	}

	m.logTransition(t)
	return t, nil
}

// Reorder swaps a run with its neighbour in direction d and replans the
// event. The swap goes through timeline.ReservedIndex in three writes so
// the per-event index uniqueness holds after every statement.
//
// Moving past either end, moving a finished run, or swapping with one, is
// a no-op. The current run may be swapped; the event still points at it.
func (m *Machine) Reorder(ctx context.Context, runID int64, d Direction) (*Transition, error) {
	t := &Transition{Action: d.Action(), At: m.now().UTC()}

	err := m.store.Atomic(ctx, func(repo timeline.Repository) error {
		run, err := repo.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		event, err := repo.GetEvent(ctx, run.EventID)
		if err != nil {
			return err
		}
		t.Event = event
		t.Moved = run

		runs, err := repo.ListRuns(ctx, event.ID)
		if err != nil {
			return err
		}
		if !CanMove(runs, run, d) {
			return m.describe(ctx, repo, t)
		}
		other := neighbour(runs, run, d)

		from, to := run.Index, other.Index
		if err := repo.SetRunIndex(ctx, other.ID, timeline.ReservedIndex); err != nil {
			return fmt.Errorf("reserving index of run %d: %w", other.ID, err)
		}
		if err := repo.SetRunIndex(ctx, run.ID, to); err != nil {
			return fmt.Errorf("moving run %d: %w", run.ID, err)
		}
		if err := repo.SetRunIndex(ctx, other.ID, from); err != nil {
			return fmt.Errorf("moving run %d: %w", other.ID, err)
		}
		run.Index = to

		if _, err := scheduler.RecomputeAll(ctx, repo, event); err != nil {
			return err
		}
		// The pointer is by row id, so the swap cannot have moved it; write it
		// back so the event row is touched in the same transaction.
		if err := repo.UpdateEvent(ctx, event); err != nil {
			return fmt.Errorf("asserting current run: %w", err)
		}

		t.Changed = true
		return m.describe(ctx, repo, t)
	})
	if err != nil {
		return nil, err
	}

	m.logTransition(t)
	return t, nil
}

// EventEdit holds the event fields an operator may change. Nil fields are
// left as they are.
type EventEdit struct {
	Name    *string
	StartAt *time.Time
	EndAt   *time.Time
	Shift   *time.Duration

	// CurrentRunID moves the cursor by hand. ClearCurrent makes the event
	// idle and takes precedence.
	CurrentRunID *int64
	ClearCurrent bool
}

// EditEvent applies an operator edit and replans the event. A hand-picked
// current run must belong to the event and not be finished.
func (m *Machine) EditEvent(ctx context.Context, eventID int64, edit EventEdit) (*Transition, error) {
	t := &Transition{Action: ActionEdit, At: m.now().UTC()}

	err := m.store.Atomic(ctx, func(repo timeline.Repository) error {
		event, err := repo.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		t.Event = event

		if edit.Name != nil {
			event.Name = *edit.Name
		}
		if edit.StartAt != nil {
			event.StartAt = *edit.StartAt
		}
		if edit.EndAt != nil {
			event.EndAt = *edit.EndAt
		}
		if edit.Shift != nil {
			event.Shift = *edit.Shift
		}

		switch {
		case edit.ClearCurrent:
			event.CurrentRunID = nil
		case edit.CurrentRunID != nil:
			run, err := repo.GetRun(ctx, *edit.CurrentRunID)
			if err != nil {
				return err
			}
			if run.EventID != event.ID {
				return timeline.ErrRunNotInEvent
			}
			if run.IsFinished {
				return fmt.Errorf("%w: run %q is finished", timeline.ErrInvalidEvent, run.Name)
			}
			id := run.ID
			event.CurrentRunID = &id
		}

		if err := repo.UpdateEvent(ctx, event); err != nil {
			return err
		}
		if _, err := scheduler.RecomputeAll(ctx, repo, event); err != nil {
			return err
		}

		t.Changed = true
		return m.describe(ctx, repo, t)
	})
	if err != nil {
		return nil, err
	}

	m.logTransition(t)
	return t, nil
}

// describe fills in the read side of t from inside the transaction.
func (m *Machine) describe(ctx context.Context, repo timeline.Repository, t *Transition) error {
	event, err := repo.GetEvent(ctx, t.Event.ID)
	if err != nil {
		return err
	}
	t.Event = event

	if t.Current, err = currentRun(ctx, repo, event); err != nil {
		return err
	}
	if t.NextSlot, err = NextSlot(ctx, repo, event); err != nil {
		return err
	}
	if t.NextRun, err = NextRun(ctx, repo, event); err != nil {
		return err
	}
	if t.Runs, err = repo.ListRuns(ctx, event.ID); err != nil {
		return err
	}
	if t.Moved != nil {
		if t.Moved, err = repo.GetRun(ctx, t.Moved.ID); err != nil {
			return err
		}
	}
	if t.Previous != nil {
		if t.Previous, err = repo.GetRun(ctx, t.Previous.ID); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) logTransition(t *Transition) {
	if !t.Changed {
		m.logger.Debug("transition was a no-op", "action", t.Action, "event", t.Event.Name)
		return
	}
	args := []any{"action", t.Action, "event", t.Event.Name, "shift", t.Event.Shift.String()}
	if t.Current != nil {
		args = append(args, "current_run", t.Current.Name, "run_index", t.Current.Index)
	}
	m.logger.Info("event transition committed", args...)
}

func currentRun(ctx context.Context, repo timeline.Repository, event *timeline.Event) (*timeline.Run, error) {
	if event.CurrentRunID == nil {
		return nil, nil
	}
	run, err := repo.GetRun(ctx, *event.CurrentRunID)
	if err != nil {
		return nil, fmt.Errorf("loading current run: %w", err)
	}
	return run, nil
}

// optional turns ErrRunNotFound into a nil run.
func optional(run *timeline.Run, err error) (*timeline.Run, error) {
	if errors.Is(err, timeline.ErrRunNotFound) {
		return nil, nil
	}
	return run, err
}
