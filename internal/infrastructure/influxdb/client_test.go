package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/overlay-core/internal/infrastructure/config"
	"github.com/nerrad567/overlay-core/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records line protocol sent to /api/v2/write.
type fakeInflux struct {
	mu    sync.Mutex
	lines []string
	query string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.query = r.URL.RawQuery
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeInflux) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func connect(t *testing.T) (*influxdb.Client, *fakeInflux) {
	t.Helper()

	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := influxdb.Connect(config.InfluxDBConfig{
		Enabled:       true,
		URL:           srv.URL,
		Token:         "test-token",
		Org:           "overlay",
		Bucket:        "timeline",
		BatchSize:     10,
		FlushInterval: 60,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client, fake
}

func TestConnect_Disabled(t *testing.T) {
	_, err := influxdb.Connect(config.InfluxDBConfig{URL: "http://127.0.0.1:8086"})
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(config.InfluxDBConfig{Enabled: true, URL: url})
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteTransition(t *testing.T) {
	client, fake := connect(t)

	at := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	client.WriteTransition(influxdb.Transition{
		Event:       "Marathon2024",
		Action:      "advance",
		Run:         "Hollow Knight",
		Shift:       10 * time.Minute,
		RunDuration: 40 * time.Minute,
		Estimated:   30 * time.Minute,
		At:          at,
	})
	client.WriteTransition(influxdb.Transition{Event: "Marathon2024", Action: "revert", At: at.Add(time.Minute)})
	client.Flush()

	lines := fake.written()
	if len(lines) != 2 {
		t.Fatalf("wrote %d lines, want 2: %v", len(lines), lines)
	}

	first := lines[0]
	for _, want := range []string{
		"run_transition,",
		"action=advance",
		"event=Marathon2024",
		`run=Hollow\ Knight`,
		"shift_s=600",
		"run_duration_s=2400",
		"estimate_delta_s=600",
	} {
		if !strings.Contains(first, want) {
			t.Errorf("line %q missing %q", first, want)
		}
	}
	if strings.Contains(lines[1], "run=") || strings.Contains(lines[1], "run_duration_s") {
		t.Errorf("idle revert carried run fields: %q", lines[1])
	}

	fake.mu.Lock()
	query := fake.query
	fake.mu.Unlock()
	if !strings.Contains(query, "bucket=timeline") || !strings.Contains(query, "org=overlay") {
		t.Errorf("write query = %q", query)
	}
}

func TestWriteOverlaySync(t *testing.T) {
	client, fake := connect(t)

	client.WriteOverlaySync("Marathon2024", 17, 2, 1, 340*time.Millisecond)
	client.Flush()

	lines := fake.written()
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "overlay_sync,event=Marathon2024 ") {
		t.Fatalf("lines = %v", lines)
	}
	for _, want := range []string{"calls=17i", "failed=2i", "skipped=1i", "duration_ms=340i"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q missing %q", lines[0], want)
		}
	}
}

func TestWritesAfterCloseAreDropped(t *testing.T) {
	client, fake := connect(t)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	client.WriteTransition(influxdb.Transition{Event: "Marathon2024", Action: "advance"})
	client.Flush()

	if lines := fake.written(); len(lines) != 0 {
		t.Errorf("wrote after Close: %v", lines)
	}
	if client.IsConnected() {
		t.Error("IsConnected() after Close")
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close = %v, want ErrNotConnected", err)
	}
}
