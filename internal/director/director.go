package director

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/overlay-core/internal/overlay"
	"github.com/nerrad567/overlay-core/internal/progression"
	"github.com/nerrad567/overlay-core/internal/timeline"
)

// Command sources recorded with every outcome.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
	SourceCLI  = "cli"
)

// ErrUnknownAction is returned for a command name the director does not know.
var ErrUnknownAction = errors.New("director: unknown action")

// Logger is the logging interface used by the director.
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

// Syncer pushes a committed transition to the overlay.
type Syncer interface {
	Sync(ctx context.Context, t *progression.Transition) *overlay.Report
}

// Publisher is told about every outcome, changed or not. Publish must not
// block for long; it runs on the command's goroutine.
type Publisher interface {
	Publish(ctx context.Context, o *Outcome)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, o *Outcome)

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, o *Outcome) { f(ctx, o) }

// Actor identifies who issued a command and over which surface.
type Actor struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// Outcome is what a command did.
type Outcome struct {
	Transition *progression.Transition `json:"transition"`

	// Overlay is nil when no overlay is configured.
	Overlay *overlay.Report `json:"overlay,omitempty"`

	Actor Actor `json:"actor"`
}

// Director composes the progression machine, the overlay adapter and the
// publishers.
type Director struct {
	machine    *progression.Machine
	syncer     Syncer
	publishers []Publisher
	now        func() time.Time
	logger     Logger
}

// Option configures a Director.
type Option func(*Director)

// WithSyncer sets the overlay adapter. Without one, commands skip the
// overlay step.
func WithSyncer(s Syncer) Option {
	return func(d *Director) { d.syncer = s }
}

// WithPublisher adds publishers, called in the order added.
func WithPublisher(p ...Publisher) Option {
	return func(d *Director) { d.publishers = append(d.publishers, p...) }
}

// WithClock replaces time.Now for default-event resolution.
func WithClock(now func() time.Time) Option {
	return func(d *Director) { d.now = now }
}

// WithLogger sets the director's logger.
func WithLogger(l Logger) Option {
	return func(d *Director) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Director over machine.
func New(machine *progression.Machine, opts ...Option) *Director {
	d := &Director{
		machine: machine,
		now:     time.Now,
		logger:  noopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddPublisher registers p after construction, for publishers that need
// the director themselves.
func (d *Director) AddPublisher(p Publisher) {
	d.publishers = append(d.publishers, p)
}

// Store returns the timeline store commands write to.
func (d *Director) Store() *timeline.Store {
	return d.machine.Store()
}

// Event looks an event up by name.
func (d *Director) Event(ctx context.Context, name string) (*timeline.Event, error) {
	return d.Store().Repository().GetEventByName(ctx, name)
}

// DefaultEvent returns the event a fresh operator screen should open on.
func (d *Director) DefaultEvent(ctx context.Context) (*timeline.Event, error) {
	return timeline.DefaultEvent(ctx, d.Store().Repository(), d.now())
}

// State returns the event's position without changing it.
func (d *Director) State(ctx context.Context, event string) (*progression.Transition, error) {
	e, err := d.Event(ctx, event)
	if err != nil {
		return nil, err
	}
	return d.machine.State(ctx, e.ID)
}

// Advance finishes the current run and starts the next slot.
func (d *Director) Advance(ctx context.Context, event string, actor Actor) (*Outcome, error) {
	return d.run(ctx, event, actor, func(e *timeline.Event) (*progression.Transition, error) {
		return d.machine.Advance(ctx, e.ID)
	})
}

// Revert reopens the previous run.
func (d *Director) Revert(ctx context.Context, event string, actor Actor) (*Outcome, error) {
	return d.run(ctx, event, actor, func(e *timeline.Event) (*progression.Transition, error) {
		return d.machine.Revert(ctx, e.ID)
	})
}

// Move swaps run runID with its neighbour in direction dir.
func (d *Director) Move(ctx context.Context, event string, runID int64, dir progression.Direction, actor Actor) (*Outcome, error) {
	return d.run(ctx, event, actor, func(e *timeline.Event) (*progression.Transition, error) {
		run, err := d.Store().Repository().GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		if run.EventID != e.ID {
			return nil, timeline.ErrRunNotInEvent
		}
		return d.machine.Reorder(ctx, runID, dir)
	})
}

// MoveIndex is Move addressed by run index, as button decks send it.
func (d *Director) MoveIndex(ctx context.Context, event string, index int, dir progression.Direction, actor Actor) (*Outcome, error) {
	e, err := d.Event(ctx, event)
	if err != nil {
		return nil, err
	}
	run, err := d.Store().Repository().GetRunByIndex(ctx, e.ID, index)
	if err != nil {
		return nil, err
	}
	return d.Move(ctx, event, run.ID, dir, actor)
}

// Edit applies an operator edit to the event's metadata.
func (d *Director) Edit(ctx context.Context, event string, edit progression.EventEdit, actor Actor) (*Outcome, error) {
	return d.run(ctx, event, actor, func(e *timeline.Event) (*progression.Transition, error) {
		return d.machine.EditEvent(ctx, e.ID, edit)
	})
}

// Refresh pushes the current state to the overlay again without moving
// the timeline.
func (d *Director) Refresh(ctx context.Context, event string, actor Actor) (*Outcome, error) {
	return d.run(ctx, event, actor, func(e *timeline.Event) (*progression.Transition, error) {
		return d.machine.State(ctx, e.ID)
	})
}

// Do runs a command by name: advance, revert or sync. Moves need a run and
// go through Move.
func (d *Director) Do(ctx context.Context, event string, action progression.Action, actor Actor) (*Outcome, error) {
	switch action {
	case progression.ActionAdvance:
		return d.Advance(ctx, event, actor)
	case progression.ActionRevert:
		return d.Revert(ctx, event, actor)
	case progression.ActionSync:
		return d.Refresh(ctx, event, actor)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func (d *Director) run(ctx context.Context, event string, actor Actor, op func(*timeline.Event) (*progression.Transition, error)) (*Outcome, error) {
	e, err := d.Event(ctx, event)
	if err != nil {
		return nil, err
	}

	t, err := op(e)
	if err != nil {
		d.logger.Warn("command failed", "event", event, "actor", actor.Name, "source", actor.Source, "error", err)
		return nil, err
	}

	o := &Outcome{Transition: t, Actor: actor}

	// No-ops are synced too; Refresh depends on it.
	if d.syncer != nil {
		o.Overlay = d.syncer.Sync(ctx, t)
		if !o.Overlay.OK() {
			d.logger.Warn("overlay sync incomplete",
				"event", event,
				"action", t.Action,
				"failed", o.Overlay.Failed,
				"total", o.Overlay.Total,
			)
		}
	}

	for _, p := range d.publishers {
		p.Publish(ctx, o)
	}
	return o, nil
}
