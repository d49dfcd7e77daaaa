package app

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/overlay-core/internal/audit"
	"github.com/nerrad567/overlay-core/internal/director"
	"github.com/nerrad567/overlay-core/internal/infrastructure/config"
	"github.com/nerrad567/overlay-core/internal/infrastructure/database"
	"github.com/nerrad567/overlay-core/internal/infrastructure/logging"
	"github.com/nerrad567/overlay-core/internal/timeline/timelinetest"
)

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Path: database.MemoryPath, BusyTimeout: 1},
		OBS:      config.OBSConfig{Enabled: true, Host: "127.0.0.1", Port: 4455, RequestTimeout: 1},
	}
}

func TestOpen_Offline(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	a, err := Open(ctx, testConfig(), logging.Discard(), Options{
		Offline: true,
		Clock:   func() time.Time { return start },
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()

	if a.OBS != nil || a.Overlay != nil || a.MQTT != nil || a.Influx != nil {
		t.Fatal("offline app should not open external clients")
	}

	timelinetest.Seed(t, a.Store, "Marathon2024", start,
		timelinetest.RunSpec{Index: 1, Name: "Celeste", Estimate: 30 * time.Minute},
	)

	o, err := a.Director.Advance(ctx, "Marathon2024", director.Actor{Name: "amy", Source: director.SourceCLI})
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if o.Overlay != nil {
		t.Error("offline advance should not sync the overlay")
	}

	// The audit writer is asynchronous.
	deadline := time.Now().Add(2 * time.Second)
	for {
		res, err := a.Audit.List(ctx, audit.Filter{Event: "Marathon2024"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Total == 1 {
			if got := res.Entries[0].Source; got != director.SourceCLI {
				t.Errorf("audit source = %q, want %q", got, director.SourceCLI)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("audit entry was not written")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOpen_OBSWithoutConnecting(t *testing.T) {
	// The OBS client connects lazily, so Open succeeds with OBS down.
	a, err := Open(context.Background(), testConfig(), logging.Discard(), Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()

	if a.OBS == nil || a.Overlay == nil {
		t.Fatal("OBS client and overlay adapter should be built when obs.enabled is true")
	}
}

func TestOpen_BadDatabasePath(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Path = "/dev/null/overlay.db"

	if _, err := Open(context.Background(), cfg, logging.Discard(), Options{Offline: true}); err == nil {
		t.Fatal("Open() should fail when the database cannot be created")
	}
}

func TestClose_Twice(t *testing.T) {
	a, err := Open(context.Background(), testConfig(), logging.Discard(), Options{Offline: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	a.Close()
	a.Close()
}
