package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/nerrad567/overlay-core/internal/infrastructure/database"
	"github.com/nerrad567/overlay-core/migrations"
)

func testDB(t *testing.T) *sql.DB {
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
	return db.DB
}

func TestRepository_CreateAndList(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	runID := int64(7)
	entries := []*Entry{
		{Action: "advance", Event: "Marathon2024", RunID: &runID, Actor: "desk", Source: "api",
			Details: map[string]any{"shift_ms": float64(600000)}, CreatedAt: base},
		{Action: "revert", Event: "Marathon2024", Actor: "deck", Source: "mqtt", CreatedAt: base.Add(time.Minute)},
		{Action: "advance", Event: "Other", Actor: "cli", Source: "cli", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if e.ID == "" {
			t.Fatal("Create() should generate an ID")
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 3 || all.Limit != 50 || len(all.Entries) != 3 {
		t.Fatalf("List() = %+v", all)
	}
	if all.Entries[0].Event != "Other" || all.Entries[2].Action != "advance" {
		t.Errorf("entries not most recent first: %+v", all.Entries)
	}

	oldest := all.Entries[2]
	if oldest.RunID == nil || *oldest.RunID != 7 || oldest.Details["shift_ms"] != float64(600000) {
		t.Errorf("round trip lost fields: %+v", oldest)
	}
	if !oldest.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", oldest.CreatedAt, base)
	}

	filtered, err := repo.List(ctx, Filter{Event: "Marathon2024", Action: "advance"})
	if err != nil {
		t.Fatalf("List(filter) error = %v", err)
	}
	if filtered.Total != 1 || filtered.Entries[0].Actor != "desk" {
		t.Errorf("filtered = %+v", filtered)
	}

	page, err := repo.List(ctx, Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List(page) error = %v", err)
	}
	if page.Total != 3 || len(page.Entries) != 1 || page.Entries[0].Action != "revert" {
		t.Errorf("page = %+v", page)
	}
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func TestWriter_DrainsOnShutdown(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	w := NewWriter(repo, nopLogger{})

	for i := 0; i < 5; i++ {
		w.Record(&Entry{Action: "advance", Event: "Marathon2024", Actor: "desk", Source: "api"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	select {
	case <-w.Done():
	default:
		t.Fatal("Done not closed after Run returned")
	}

	got, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Total != 5 {
		t.Errorf("Total = %d, want 5", got.Total)
	}
}

func TestWriter_DropsWhenFull(t *testing.T) {
	w := NewWriter(NewSQLiteRepository(testDB(t)), nopLogger{})
	for i := 0; i < chanSize+10; i++ {
		w.Record(&Entry{Action: "advance"})
	}
	if len(w.ch) != chanSize {
		t.Errorf("queued %d, want %d", len(w.ch), chanSize)
	}
}
