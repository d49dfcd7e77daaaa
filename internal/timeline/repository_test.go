package timeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/overlay-core/internal/timeline"
	"github.com/nerrad567/overlay-core/internal/timeline/timelinetest"
)

var eventStart = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestPeople(t *testing.T) {
	store := timelinetest.NewStore(t)
	repo := store.Repository()
	ctx := context.Background()

	for _, name := range []string{"zed", "Émile", "alice"} {
		if err := repo.CreatePerson(ctx, &timeline.Person{Name: name, Pronouns: "they/them"}); err != nil {
			t.Fatalf("CreatePerson(%q) error = %v", name, err)
		}
	}

	t.Run("duplicate name", func(t *testing.T) {
		err := repo.CreatePerson(ctx, &timeline.Person{Name: "alice"})
		if !errors.Is(err, timeline.ErrNameExists) {
			t.Errorf("CreatePerson() error = %v, want ErrNameExists", err)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		err := repo.CreatePerson(ctx, &timeline.Person{Name: "   "})
		if !errors.Is(err, timeline.ErrInvalidPerson) {
			t.Errorf("CreatePerson() error = %v, want ErrInvalidPerson", err)
		}
	})

	t.Run("list is collated by name", func(t *testing.T) {
		people, err := repo.ListPeople(ctx)
		if err != nil {
			t.Fatalf("ListPeople() error = %v", err)
		}
		var got []string
		for _, p := range people {
			got = append(got, p.Name)
		}
		want := []string{"alice", "Émile", "zed"}
		if len(got) != len(want) {
			t.Fatalf("ListPeople() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("ListPeople()[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("lookup by decomposed name", func(t *testing.T) {
		p, err := repo.GetPersonByName(ctx, "E\u0301mile")
		if err != nil {
			t.Fatalf("GetPersonByName() error = %v", err)
		}
		if p.Pronouns != "they/them" {
			t.Errorf("Pronouns = %q", p.Pronouns)
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := repo.GetPerson(ctx, 999); !errors.Is(err, timeline.ErrPersonNotFound) {
			t.Errorf("GetPerson() error = %v, want ErrPersonNotFound", err)
		}
	})
}

func TestEventLifecycle(t *testing.T) {
	store := timelinetest.NewStore(t)
	repo := store.Repository()
	ctx := context.Background()

	event, runs := timelinetest.Seed(t, store, "Marathon2024", eventStart,
		timelinetest.RunSpec{Index: 1, Name: "Celeste", Estimate: 30 * time.Minute},
		timelinetest.RunSpec{Index: 2, Name: "Break", Estimate: 45 * time.Minute, Intermission: true},
	)

	if err := repo.CreateEvent(ctx, &timeline.Event{Name: "Marathon2024", StartAt: eventStart, EndAt: eventStart}); !errors.Is(err, timeline.ErrNameExists) {
		t.Errorf("duplicate CreateEvent() error = %v, want ErrNameExists", err)
	}

	got, err := repo.GetEventByName(ctx, "Marathon2024")
	if err != nil {
		t.Fatalf("GetEventByName() error = %v", err)
	}
	if !got.StartAt.Equal(eventStart) || got.CurrentRunID != nil {
		t.Errorf("GetEventByName() = %+v", got)
	}

	id := runs[0].ID
	got.CurrentRunID = &id
	got.Shift = 90 * time.Second
	if err := repo.UpdateEvent(ctx, got); err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}

	reread, err := repo.GetEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if reread.CurrentRunID == nil || *reread.CurrentRunID != id {
		t.Errorf("CurrentRunID = %v, want %d", reread.CurrentRunID, id)
	}
	if reread.Shift != 90*time.Second {
		t.Errorf("Shift = %v, want 90s", reread.Shift)
	}

	reread.Shift = -time.Second
	if err := repo.UpdateEvent(ctx, reread); !errors.Is(err, timeline.ErrInvalidEvent) {
		t.Errorf("negative shift error = %v, want ErrInvalidEvent", err)
	}

	if err := repo.DeleteEvent(ctx, event.ID); err != nil {
		t.Fatalf("DeleteEvent() error = %v", err)
	}
	if _, err := repo.GetRun(ctx, id); !errors.Is(err, timeline.ErrRunNotFound) {
		t.Errorf("run survived event deletion: %v", err)
	}
	if _, err := repo.GetEvent(ctx, event.ID); !errors.Is(err, timeline.ErrEventNotFound) {
		t.Errorf("GetEvent() after delete error = %v", err)
	}
}

func TestCurrentRunMustBelongToEvent(t *testing.T) {
	store := timelinetest.NewStore(t)
	repo := store.Repository()
	ctx := context.Background()

	a, _ := timelinetest.Seed(t, store, "A", eventStart,
		timelinetest.RunSpec{Index: 1, Name: "a1", Estimate: time.Minute})
	_, bRuns := timelinetest.Seed(t, store, "B", eventStart,
		timelinetest.RunSpec{Index: 1, Name: "b1", Estimate: time.Minute})

	foreign := bRuns[0].ID
	a.CurrentRunID = &foreign
	if err := repo.UpdateEvent(ctx, a); !errors.Is(err, timeline.ErrRunNotInEvent) {
		t.Errorf("UpdateEvent() error = %v, want ErrRunNotInEvent", err)
	}
}

func TestRunIndexUniquePerEvent(t *testing.T) {
	store := timelinetest.NewStore(t)
	repo := store.Repository()
	ctx := context.Background()

	event, runs := timelinetest.Seed(t, store, "E", eventStart,
		timelinetest.RunSpec{Index: 1, Name: "one", Estimate: time.Minute},
		timelinetest.RunSpec{Index: 2, Name: "two", Estimate: time.Minute},
	)

	dup := &timeline.Run{EventID: event.ID, Index: 2, Name: "dup", Estimated: time.Minute}
	if err := repo.CreateRun(ctx, dup); !errors.Is(err, timeline.ErrRunIndexConflict) {
		t.Errorf("CreateRun() error = %v, want ErrRunIndexConflict", err)
	}

	if err := repo.SetRunIndex(ctx, runs[0].ID, 2); !errors.Is(err, timeline.ErrRunIndexConflict) {
		t.Errorf("SetRunIndex() error = %v, want ErrRunIndexConflict", err)
	}

	other, _ := timelinetest.Seed(t, store, "Other", eventStart)
	same := &timeline.Run{EventID: other.ID, Index: 2, Name: "fine", Estimated: time.Minute}
	if err := repo.CreateRun(ctx, same); err != nil {
		t.Errorf("same index in another event: %v", err)
	}

	orphan := &timeline.Run{EventID: 9999, Index: 1, Name: "orphan", Estimated: time.Minute}
	if err := repo.CreateRun(ctx, orphan); !errors.Is(err, timeline.ErrEventNotFound) {
		t.Errorf("CreateRun() for missing event error = %v, want ErrEventNotFound", err)
	}
}

func TestRunIndexStartsAtOne(t *testing.T) {
	store := timelinetest.NewStore(t)
	repo := store.Repository()
	ctx := context.Background()

	event, runs := timelinetest.Seed(t, store, "E", eventStart,
		timelinetest.RunSpec{Index: 1, Name: "Celeste", Estimate: time.Minute},
	)

	opening := &timeline.Run{EventID: event.ID, Index: 0, Name: "Opening", Estimated: time.Minute}
	if err := repo.CreateRun(ctx, opening); !errors.Is(err, timeline.ErrInvalidRun) {
		t.Errorf("CreateRun() at index 0 error = %v, want ErrInvalidRun", err)
	}

	if err := repo.SetRunIndex(ctx, runs[0].ID, 0); !errors.Is(err, timeline.ErrInvalidRun) {
		t.Errorf("SetRunIndex(0) error = %v, want ErrInvalidRun", err)
	}

	if err := repo.SetRunIndex(ctx, runs[0].ID, timeline.ReservedIndex); err != nil {
		t.Errorf("SetRunIndex(ReservedIndex) error = %v", err)
	}
}

func TestRunNeighbours(t *testing.T) {
	store := timelinetest.NewStore(t)
	repo := store.Repository()
	ctx := context.Background()

	event, _ := timelinetest.Seed(t, store, "E", eventStart,
		timelinetest.RunSpec{Index: 1, Name: "one", Estimate: time.Minute},
		timelinetest.RunSpec{Index: 5, Name: "break", Estimate: time.Minute, Intermission: true},
		timelinetest.RunSpec{Index: 9, Name: "three", Estimate: time.Minute},
	)

	tests := []struct {
		name  string
		query func() (*timeline.Run, error)
		want  string
	}{
		{"after 0 with breaks", func() (*timeline.Run, error) { return repo.RunAfter(ctx, event.ID, 0, true) }, "one"},
		{"after 1 with breaks", func() (*timeline.Run, error) { return repo.RunAfter(ctx, event.ID, 1, true) }, "break"},
		{"after 1 skipping breaks", func() (*timeline.Run, error) { return repo.RunAfter(ctx, event.ID, 1, false) }, "three"},
		{"after last", func() (*timeline.Run, error) { return repo.RunAfter(ctx, event.ID, 9, true) }, ""},
		{"before 9", func() (*timeline.Run, error) { return repo.RunBefore(ctx, event.ID, 9) }, "break"},
		{"before first", func() (*timeline.Run, error) { return repo.RunBefore(ctx, event.ID, 1) }, ""},
		{"none finished", func() (*timeline.Run, error) { return repo.LastFinishedRun(ctx, event.ID) }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, err := tt.query()
			if tt.want == "" {
				if !errors.Is(err, timeline.ErrRunNotFound) {
					t.Errorf("error = %v, want ErrRunNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if run.Name != tt.want {
				t.Errorf("got %q, want %q", run.Name, tt.want)
			}
		})
	}
}

func TestRunRoundTrip(t *testing.T) {
	store := timelinetest.NewStore(t)
	repo := store.Repository()
	ctx := context.Background()

	_, runs := timelinetest.Seed(t, store, "E", eventStart,
		timelinetest.RunSpec{
			Index: 1, Name: "Celeste", Estimate: 31*time.Minute + 500*time.Millisecond,
			Runners: []string{"zed", "amy"}, Commentators: []string{"bob"}, Scene: "Run 2p",
		},
	)

	run, err := repo.GetRun(ctx, runs[0].ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Estimated != 31*time.Minute+500*time.Millisecond {
		t.Errorf("Estimated = %v", run.Estimated)
	}
	if run.OBSScene != "Run 2p" {
		t.Errorf("OBSScene = %q", run.OBSScene)
	}
	if len(run.Runners) != 2 || run.Runners[0].Name != "amy" || run.Runners[1].Name != "zed" {
		t.Errorf("Runners = %+v, want amy then zed", run.Runners)
	}
	if len(run.Commentators) != 1 || run.Commentators[0].Name != "bob" {
		t.Errorf("Commentators = %+v", run.Commentators)
	}

	started := eventStart.Add(2 * time.Minute)
	run.ActualStart = &started
	run.TriggerWarning = "flashing lights"
	run.IsFinished = true
	if err := repo.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun() error = %v", err)
	}

	again, err := repo.GetRunByIndex(ctx, run.EventID, 1)
	if err != nil {
		t.Fatalf("GetRunByIndex() error = %v", err)
	}
	if again.ActualStart == nil || !again.ActualStart.Equal(started) {
		t.Errorf("ActualStart = %v, want %v", again.ActualStart, started)
	}
	if again.ActualEnd != nil {
		t.Errorf("ActualEnd = %v, want nil", again.ActualEnd)
	}
	if !again.IsFinished || again.TriggerWarning != "flashing lights" {
		t.Errorf("run = %+v", again)
	}

	if err := repo.SetRunPeople(ctx, run.ID, []int64{12345}, nil); !errors.Is(err, timeline.ErrPersonNotFound) {
		t.Errorf("SetRunPeople() unknown person error = %v, want ErrPersonNotFound", err)
	}
}

func TestAtomicRollsBack(t *testing.T) {
	store := timelinetest.NewStore(t)
	ctx := context.Background()

	_, runs := timelinetest.Seed(t, store, "E", eventStart,
		timelinetest.RunSpec{Index: 1, Name: "one", Estimate: time.Minute},
		timelinetest.RunSpec{Index: 2, Name: "two", Estimate: time.Minute},
	)

	boom := errors.New("boom")
	err := store.Atomic(ctx, func(repo timeline.Repository) error {
		if err := repo.SetRunIndex(ctx, runs[0].ID, timeline.ReservedIndex); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Atomic() error = %v, want boom", err)
	}

	run, err := store.Repository().GetRun(ctx, runs[0].ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Index != 1 {
		t.Errorf("Index = %d after rollback, want 1", run.Index)
	}
}
