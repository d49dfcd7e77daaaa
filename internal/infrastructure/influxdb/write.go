package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementTransition  = "run_transition"
	MeasurementOverlaySync = "overlay_sync"
)

// Transition is one committed timeline move, as charted on the lateness
// dashboard.
type Transition struct {
	Event  string
	Action string
	Run    string // run now current, empty when idle
	Shift  time.Duration
	// RunDuration is how long the run that just finished took, zero when
	// no run finished.
	RunDuration time.Duration
	// Estimated is the finished run's estimate, for estimate/actual deltas.
	Estimated time.Duration
	At        time.Time
}

// WriteTransition records a run_transition point. Non-blocking; a no-op
// when the client is closed.
func (c *Client) WriteTransition(t Transition) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"event":  t.Event,
		"action": t.Action,
	}
	if t.Run != "" {
		tags["run"] = t.Run
	}

	fields := map[string]interface{}{
		"shift_s": t.Shift.Seconds(),
	}
	if t.RunDuration > 0 {
		fields["run_duration_s"] = t.RunDuration.Seconds()
		fields["estimate_delta_s"] = (t.RunDuration - t.Estimated).Seconds()
	}

	at := t.At
	if at.IsZero() {
		at = time.Now()
	}
	c.writeAPI.WritePoint(write.NewPoint(MeasurementTransition, tags, fields, at))
}

// WriteOverlaySync records how an overlay update went.
func (c *Client) WriteOverlaySync(event string, total, failed, skipped int, took time.Duration) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementOverlaySync,
		map[string]string{"event": event},
		map[string]interface{}{
			"calls":       total,
			"failed":      failed,
			"skipped":     skipped,
			"duration_ms": took.Milliseconds(),
		},
		time.Now(),
	))
}
