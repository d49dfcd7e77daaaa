// Package schedule reads running orders from YAML and loads them into the
// timeline store.
//
//	event:
//	  name: Marathon2024
//	  start: 2024-06-01T12:00:00Z
//	  end: 2024-06-03T12:00:00Z
//	people:
//	  - name: amy
//	    pronouns: she/her
//	    stream: amy
//	runs:
//	  - name: Celeste
//	    category: Any%
//	    estimate: "0:30:00"
//	    runners: [amy]
//	  - intermission: true
//	    name: Break
//	    estimate: 45m
//
// Runs are numbered from 1 in file order. People referenced by a run but
// not listed under people are created with just a name.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/overlay-core/internal/scheduler"
	"github.com/nerrad567/overlay-core/internal/timeline"
)

// ErrInvalid is returned for a schedule file that cannot be imported.
var ErrInvalid = errors.New("schedule: invalid file")

// File is a parsed schedule.
type File struct {
	Event  EventSpec    `yaml:"event"`
	People []PersonSpec `yaml:"people"`
	Runs   []RunSpec    `yaml:"runs"`
}

// EventSpec describes the event to create.
type EventSpec struct {
	Name  string    `yaml:"name"`
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

// PersonSpec describes a runner or commentator.
type PersonSpec struct {
	Name     string `yaml:"name"`
	Pronouns string `yaml:"pronouns"`
	Socials  string `yaml:"socials"`
	Stream   string `yaml:"stream"`
}

// RunSpec describes one slot of the running order.
type RunSpec struct {
	Name           string   `yaml:"name"`
	Platform       string   `yaml:"platform"`
	Category       string   `yaml:"category"`
	TriggerWarning string   `yaml:"trigger_warning"`
	Estimate       Estimate `yaml:"estimate"`
	Intermission   bool     `yaml:"intermission"`
	Scene          string   `yaml:"scene"`
	Runners        []string `yaml:"runners"`
	Commentators   []string `yaml:"commentators"`
}

// Estimate accepts either H:MM:SS or a Go duration such as 45m.
type Estimate time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Estimate) UnmarshalYAML(node *yaml.Node) error {
	d, err := ParseEstimate(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*e = Estimate(d)
	return nil
}

// ParseEstimate parses "1:30:00", "30:00" or a time.ParseDuration string.
func ParseEstimate(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if !strings.Contains(s, ":") {
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			return 0, fmt.Errorf("invalid estimate %q", s)
		}
		return d, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid estimate %q", s)
	}
	var total time.Duration
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid estimate %q", s)
		}
		total = total*60 + time.Duration(n)
	}
	return total * time.Second, nil
}

// Read parses and validates a schedule.
func Read(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate reports the first problem with f.
func (f *File) Validate() error {
	if strings.TrimSpace(f.Event.Name) == "" {
		return fmt.Errorf("%w: event.name is required", ErrInvalid)
	}
	if f.Event.Start.IsZero() {
		return fmt.Errorf("%w: event.start is required", ErrInvalid)
	}
	if !f.Event.End.IsZero() && f.Event.End.Before(f.Event.Start) {
		return fmt.Errorf("%w: event.end is before event.start", ErrInvalid)
	}
	if len(f.Runs) == 0 {
		return fmt.Errorf("%w: no runs", ErrInvalid)
	}

	seen := make(map[string]bool, len(f.People))
	for _, p := range f.People {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: person without a name", ErrInvalid)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: person %q listed twice", ErrInvalid, p.Name)
		}
		seen[p.Name] = true
	}
	for i, r := range f.Runs {
		if !r.Intermission && strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("%w: run %d has no name", ErrInvalid, i+1)
		}
	}
	return nil
}

// Import creates the event, its people and runs in one transaction and
// plans the running order. Nothing is written if any step fails.
func (f *File) Import(ctx context.Context, store *timeline.Store) (*timeline.Event, []*timeline.Run, error) {
	event := &timeline.Event{
		Name:    f.Event.Name,
		StartAt: f.Event.Start.UTC(),
		EndAt:   f.Event.End.UTC(),
	}
	if f.Event.End.IsZero() {
		event.EndAt = event.StartAt.Add(f.total())
	}

	var runs []*timeline.Run
	err := store.Atomic(ctx, func(repo timeline.Repository) error {
		if err := repo.CreateEvent(ctx, event); err != nil {
			return fmt.Errorf("creating event %q: %w", event.Name, err)
		}

		people, err := f.people(ctx, repo)
		if err != nil {
			return err
		}

		for i, spec := range f.Runs {
			run := &timeline.Run{
				EventID:        event.ID,
				Index:          i + 1,
				Name:           spec.Name,
				Platform:       spec.Platform,
				Category:       spec.Category,
				TriggerWarning: spec.TriggerWarning,
				Estimated:      time.Duration(spec.Estimate),
				IsIntermission: spec.Intermission,
				OBSScene:       spec.Scene,
			}
			if err := repo.CreateRun(ctx, run); err != nil {
				return fmt.Errorf("creating run %d %q: %w", run.Index, run.Name, err)
			}

			runners, err := people.ids(ctx, spec.Runners)
			if err != nil {
				return err
			}
			commentators, err := people.ids(ctx, spec.Commentators)
			if err != nil {
				return err
			}
			if len(runners)+len(commentators) > 0 {
				if err := repo.SetRunPeople(ctx, run.ID, runners, commentators); err != nil {
					return fmt.Errorf("assigning people to %q: %w", run.Name, err)
				}
			}
		}

		runs, err = scheduler.RecomputeAll(ctx, repo, event)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return event, runs, nil
}

// total is the sum of every estimate.
func (f *File) total() time.Duration {
	var d time.Duration
	for _, r := range f.Runs {
		d += time.Duration(r.Estimate)
	}
	return d
}

// directory resolves names to person IDs, creating people on first use.
type directory struct {
	repo  timeline.Repository
	known map[string]int64
}

// people stores every listed person that does not exist yet. Existing
// people are left as they are.
func (f *File) people(ctx context.Context, repo timeline.Repository) (*directory, error) {
	d := &directory{repo: repo, known: make(map[string]int64)}
	for _, spec := range f.People {
		p, err := repo.GetPersonByName(ctx, spec.Name)
		switch {
		case err == nil:
		case errors.Is(err, timeline.ErrPersonNotFound):
			p = &timeline.Person{
				Name:       spec.Name,
				Pronouns:   spec.Pronouns,
				Socials:    spec.Socials,
				StreamHost: spec.Stream,
			}
			if err := repo.CreatePerson(ctx, p); err != nil {
				return nil, fmt.Errorf("creating person %q: %w", spec.Name, err)
			}
		default:
			return nil, err
		}
		d.known[spec.Name] = p.ID
	}
	return d, nil
}

func (d *directory) ids(ctx context.Context, names []string) ([]int64, error) {
	out := make([]int64, 0, len(names))
	for _, name := range names {
		id, ok := d.known[name]
		if !ok {
			p, err := d.repo.GetPersonByName(ctx, name)
			if errors.Is(err, timeline.ErrPersonNotFound) {
				p = &timeline.Person{Name: name}
				err = d.repo.CreatePerson(ctx, p)
			}
			if err != nil {
				return nil, fmt.Errorf("resolving person %q: %w", name, err)
			}
			id = p.ID
			d.known[name] = id
		}
		out = append(out, id)
	}
	return out, nil
}
