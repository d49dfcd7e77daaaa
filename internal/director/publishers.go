package director

import (
	"context"
	"time"

	"github.com/nerrad567/overlay-core/internal/audit"
	"github.com/nerrad567/overlay-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/overlay-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/overlay-core/internal/timeline"
)

// StatePayload is the retained MQTT state of an event, small enough for a
// microcontroller button deck to parse.
type StatePayload struct {
	Event    string       `json:"event"`
	Shift    int64        `json:"shift_s"`
	Lateness string       `json:"lateness"`
	Current  *RunSummary  `json:"current"`
	Next     *RunSummary  `json:"next"`
	Runs     int          `json:"runs"`
	Actor    *Actor       `json:"actor,omitempty"`
	Action   string       `json:"action,omitempty"`
	Overlay  *OverlayFlag `json:"overlay,omitempty"`
}

// RunSummary is a run as it appears in StatePayload.
type RunSummary struct {
	ID       int64  `json:"id"`
	Index    int    `json:"run_index"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Estimate string `json:"estimate"`
	Runners  string `json:"runners,omitempty"`
}

// OverlayFlag says whether the last overlay update went through.
type OverlayFlag struct {
	OK     bool `json:"ok"`
	Failed int  `json:"failed"`
}

func summarise(run *timeline.Run) *RunSummary {
	if run == nil {
		return nil
	}
	s := &RunSummary{
		ID:       run.ID,
		Index:    run.Index,
		Name:     run.Name,
		Category: run.Category,
		Estimate: timeline.FormatEstimate(run.Estimated),
	}
	for i, p := range run.Runners {
		if i > 0 {
			s.Runners += ", "
		}
		s.Runners += p.Name
	}
	return s
}

// NewStatePayload builds the MQTT state document for o.
func NewStatePayload(o *Outcome) StatePayload {
	t := o.Transition
	p := StatePayload{
		Event:    t.Event.Name,
		Shift:    int64(t.Event.Shift.Seconds()),
		Lateness: t.Lateness(),
		Current:  summarise(t.Current),
		Next:     summarise(t.NextSlot),
		Runs:     len(t.Runs),
		Action:   string(t.Action),
	}
	if o.Actor.Name != "" {
		actor := o.Actor
		p.Actor = &actor
	}
	if o.Overlay != nil {
		p.Overlay = &OverlayFlag{OK: o.Overlay.OK(), Failed: o.Overlay.Failed}
	}
	return p
}

// MQTTPublisher keeps {prefix}/event/{event}/state current and sends each
// change on {prefix}/event/{event}/transition.
type MQTTPublisher struct {
	client *mqtt.Client
	logger Logger
}

// NewMQTTPublisher creates an MQTTPublisher. A nil logger discards.
func NewMQTTPublisher(client *mqtt.Client, logger Logger) *MQTTPublisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTPublisher{client: client, logger: logger}
}

// Publish implements Publisher.
func (p *MQTTPublisher) Publish(_ context.Context, o *Outcome) {
	if !p.client.IsConnected() {
		return
	}

	topics := p.client.Topics()
	event := o.Transition.Event.Name
	state := NewStatePayload(o)

	if err := p.client.PublishJSON(topics.EventState(event), state, true); err != nil {
		p.logger.Warn("publishing event state failed", "event", event, "error", err)
	}
	if !o.Transition.Changed {
		return
	}
	if err := p.client.PublishJSON(topics.EventTransition(event), state, false); err != nil {
		p.logger.Warn("publishing transition failed", "event", event, "error", err)
	}
}

// InfluxPublisher writes a run_transition point per change and an
// overlay_sync point per overlay update.
type InfluxPublisher struct {
	client *influxdb.Client
}

// NewInfluxPublisher creates an InfluxPublisher.
func NewInfluxPublisher(client *influxdb.Client) *InfluxPublisher {
	return &InfluxPublisher{client: client}
}

// Publish implements Publisher.
func (p *InfluxPublisher) Publish(_ context.Context, o *Outcome) {
	t := o.Transition
	if t.Changed {
		point := influxdb.Transition{
			Event:  t.Event.Name,
			Action: string(t.Action),
			Shift:  t.Event.Shift,
			At:     t.At,
		}
		if t.Current != nil {
			point.Run = t.Current.Name
		}
		if d, ok := t.RunDuration(); ok {
			point.RunDuration = d
			point.Estimated = t.Previous.Estimated
		}
		p.client.WriteTransition(point)
	}
	if r := o.Overlay; r != nil {
		p.client.WriteOverlaySync(t.Event.Name, r.Total, r.Failed, r.Skipped, time.Duration(r.DurationMS)*time.Millisecond)
	}
}

// AuditPublisher records every changed outcome, and every outcome with a
// failed overlay update, in the audit trail.
type AuditPublisher struct {
	writer *audit.Writer
}

// NewAuditPublisher creates an AuditPublisher.
func NewAuditPublisher(w *audit.Writer) *AuditPublisher {
	return &AuditPublisher{writer: w}
}

// Publish implements Publisher.
func (p *AuditPublisher) Publish(_ context.Context, o *Outcome) {
	if e := AuditEntry(o); e != nil {
		p.writer.Record(e)
	}
}

// AuditEntry converts o into an audit entry, or nil when there is nothing
// worth recording.
func AuditEntry(o *Outcome) *audit.Entry {
	t := o.Transition
	overlayFailed := o.Overlay != nil && !o.Overlay.OK()
	if !t.Changed && !overlayFailed {
		return nil
	}

	details := map[string]any{
		"changed": t.Changed,
		"shift_s": int64(t.Event.Shift.Seconds()),
	}
	if t.Previous != nil {
		details["previous"] = t.Previous.Name
	}
	if t.Current != nil {
		details["current"] = t.Current.Name
	}
	if t.Moved != nil {
		details["moved"] = t.Moved.Name
		details["moved_to"] = t.Moved.Index
	}
	if o.Overlay != nil {
		details["overlay_failed"] = o.Overlay.Failed
	}

	e := &audit.Entry{
		Action:    string(t.Action),
		Event:     t.Event.Name,
		Actor:     o.Actor.Name,
		Source:    o.Actor.Source,
		Details:   details,
		CreatedAt: t.At,
	}
	switch {
	case t.Moved != nil:
		id := t.Moved.ID
		e.RunID = &id
	case t.Current != nil:
		id := t.Current.ID
		e.RunID = &id
	}
	return e
}
