package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// ReservedIndex is the run_index a run holds transiently while two runs swap
// places. Real runs never use it.
const ReservedIndex = -1

// Person is a runner or commentator. Runs reference people; they never own
// them.
type Person struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Pronouns string `json:"pronouns,omitempty"`
	Socials  string `json:"socials,omitempty"`

	// StreamHost is the RTMP stream key or full stream URL this person
	// publishes on, when it differs from their name.
	StreamHost string    `json:"stream_host,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Event is one production with a single ordered list of runs.
type Event struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`

	// Shift is how late the event was at the most recent advance. Never
	// negative.
	Shift time.Duration `json:"shift"`

	// CurrentRunID points at the live run, or nil when idle. Only the
	// progression package changes it.
	CurrentRunID *int64 `json:"current_run_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Run is one slot of the running order.
type Run struct {
	ID             int64         `json:"id"`
	EventID        int64         `json:"event_id"`
	Index          int           `json:"run_index"`
	Name           string        `json:"name"`
	Platform       string        `json:"platform"`
	Category       string        `json:"category"`
	TriggerWarning string        `json:"trigger_warning,omitempty"`
	Estimated      time.Duration `json:"estimated_time"`

	PlanningStart time.Time  `json:"planning_start_at"`
	PlanningEnd   time.Time  `json:"planning_end_at"`
	ActualStart   *time.Time `json:"actual_start_at,omitempty"`
	ActualEnd     *time.Time `json:"actual_end_at,omitempty"`

	IsIntermission bool `json:"is_intermission"`
	IsFinished     bool `json:"is_finished"`

	// OBSScene overrides the configured run scene for this run.
	OBSScene string `json:"obs_scene,omitempty"`

	Runners      []Person `json:"runners"`
	Commentators []Person `json:"commentators"`
}

// IsCurrent reports whether e points at r.
func (e *Event) IsCurrent(r *Run) bool {
	return r != nil && e.CurrentRunID != nil && *e.CurrentRunID == r.ID
}

// IsActiveOn reports whether day falls within the event's date window.
func (e *Event) IsActiveOn(day time.Time) bool {
	d := truncateDay(day)
	return !d.Before(truncateDay(e.StartAt)) && !d.After(truncateDay(e.EndAt))
}

// Validate checks the fields an operator may edit.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEvent)
	}
	if e.StartAt.IsZero() || e.EndAt.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidEvent)
	}
	if e.EndAt.Before(e.StartAt) {
		return fmt.Errorf("%w: end is before start", ErrInvalidEvent)
	}
	if e.Shift < 0 {
		return fmt.Errorf("%w: shift cannot be negative", ErrInvalidEvent)
	}
	return nil
}

// EffectiveStart is when the run did or is expected to start: the actual
// start once stamped, otherwise the plan pushed back by the event's shift.
func (r *Run) EffectiveStart(shift time.Duration) time.Time {
	if r.ActualStart != nil {
		return *r.ActualStart
	}
	return r.PlanningStart.Add(shift)
}

// IsStarted reports whether the run has an actual start time.
func (r *Run) IsStarted() bool {
	return r.ActualStart != nil
}

// Validate checks a run before it is stored.
func (r *Run) Validate() error {
	if r.Index < 1 {
		return fmt.Errorf("%w: run_index must be 1 or more", ErrInvalidRun)
	}
	if r.Estimated < 0 {
		return fmt.Errorf("%w: estimated time must not be negative", ErrInvalidRun)
	}
	if !r.IsIntermission && strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRun)
	}
	return nil
}

// FormatLateness renders a shift as "Xh Ym", leaving out a zero part. A
// shift under a minute renders as "" so the overlay field is cleared.
func FormatLateness(d time.Duration) string {
	total := int(d / time.Minute)
	hours, minutes := total/60, total%60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	return strings.Join(parts, " ")
}

// FormatEstimate renders an estimate as H:MM:SS.
func FormatEstimate(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// SortPeople orders people by name using Unicode collation, so "Émile"
// sorts with the E's rather than after "Zed".
func SortPeople(people []Person) {
	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(people, func(i, j int) bool {
		return c.CompareString(people[i].Name, people[j].Name) < 0
	})
}

// NormalizeName returns the NFC form of a display name, so that names typed
// on different systems compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
