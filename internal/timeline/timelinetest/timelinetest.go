// Package timelinetest provides an in-memory timeline database and a small
// schedule builder for tests in other packages.
package timelinetest

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/overlay-core/internal/infrastructure/database"
	"github.com/nerrad567/overlay-core/internal/timeline"
	"github.com/nerrad567/overlay-core/migrations"
)

// Open returns a migrated in-memory database. It is closed when the test
// ends.
func Open(t testing.TB) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db
}

// NewStore returns a Store over a fresh in-memory database.
func NewStore(t testing.TB) *timeline.Store {
	t.Helper()
	return timeline.NewStore(Open(t).DB)
}

// RunSpec describes one run to seed.
type RunSpec struct {
	Index        int
	Name         string
	Estimate     time.Duration
	Intermission bool
	Runners      []string
	Commentators []string
	Scene        string
}

// Seed creates an event starting at start with the given runs. People named
// as runners or commentators are created on first use. The returned runs are
// in the order given, with IDs set and planning left zero.
func Seed(t testing.TB, store *timeline.Store, name string, start time.Time, specs ...RunSpec) (*timeline.Event, []*timeline.Run) {
	t.Helper()

	ctx := context.Background()
	repo := store.Repository()

	event := &timeline.Event{Name: name, StartAt: start, EndAt: start.Add(48 * time.Hour)}
	if err := repo.CreateEvent(ctx, event); err != nil {
		t.Fatalf("creating event %q: %v", name, err)
	}

	person := func(n string) int64 {
		p, err := repo.GetPersonByName(ctx, n)
		if err == nil {
			return p.ID
		}
		p = &timeline.Person{Name: n}
		if err := repo.CreatePerson(ctx, p); err != nil {
			t.Fatalf("creating person %q: %v", n, err)
		}
		return p.ID
	}

	runs := make([]*timeline.Run, 0, len(specs))
	for _, s := range specs {
		run := &timeline.Run{
			EventID:        event.ID,
			Index:          s.Index,
			Name:           s.Name,
			Estimated:      s.Estimate,
			IsIntermission: s.Intermission,
			OBSScene:       s.Scene,
		}
		if err := repo.CreateRun(ctx, run); err != nil {
			t.Fatalf("creating run %q: %v", s.Name, err)
		}

		var runners, commentators []int64
		for _, n := range s.Runners {
			runners = append(runners, person(n))
		}
		for _, n := range s.Commentators {
			commentators = append(commentators, person(n))
		}
		if len(runners)+len(commentators) > 0 {
			if err := repo.SetRunPeople(ctx, run.ID, runners, commentators); err != nil {
				t.Fatalf("assigning people to %q: %v", s.Name, err)
			}
		}
		runs = append(runs, run)
	}
	return event, runs
}
