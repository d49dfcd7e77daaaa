package overlay

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nerrad567/overlay-core/internal/infrastructure/config"
	"github.com/nerrad567/overlay-core/internal/progression"
	"github.com/nerrad567/overlay-core/internal/rtmp"
	"github.com/nerrad567/overlay-core/internal/timeline"
)

// defaultCallTimeout bounds a single controller request.
const defaultCallTimeout = 3 * time.Second

// Logger is the logging interface used by the adapter.
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

// StreamSource lists the streams currently being published.
type StreamSource interface {
	Streams(ctx context.Context) ([]rtmp.Stream, error)
}

// Adapter pushes a committed transition to the scene controller.
//
// Calls are made one after another, each with its own timeout and no
// retry. A failed call is logged and recorded in the Report, and the
// remaining calls still run.
type Adapter struct {
	ctrl    SceneController
	mapping config.OverlayConfig
	streams StreamSource
	timeout time.Duration
	logger  Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithStreams enables stream URL assignment for person slots that name a
// media input.
func WithStreams(s StreamSource) AdapterOption {
	return func(a *Adapter) { a.streams = s }
}

// WithCallTimeout sets the per-call timeout.
func WithCallTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the adapter's logger.
func WithLogger(l Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter creates an adapter that drives ctrl according to mapping.
func NewAdapter(ctrl SceneController, mapping config.OverlayConfig, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		ctrl:    ctrl,
		mapping: mapping,
		timeout: defaultCallTimeout,
		logger:  noopLogger{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sync brings the overlay in line with t. Cancelling ctx does not stop a
// sync that has started.
func (a *Adapter) Sync(ctx context.Context, t *progression.Transition) *Report {
	s := &syncRun{
		a:   a,
		ctx: context.WithoutCancel(ctx),
		report: &Report{
			Event:     t.Event.Name,
			StartedAt: time.Now().UTC(),
		},
	}
	if t.Current != nil {
		s.report.Run = t.Current.Name
	}

	m := a.mapping

	if scene := a.SceneFor(t.Current); scene != "" {
		s.do(CallProgramScene, scene, "", func(ctx context.Context) error {
			return a.ctrl.SetProgramScene(ctx, scene)
		})
	}
	if m.Scenes.Preview && t.NextSlot != nil {
		if scene := a.SceneFor(t.NextSlot); scene != "" {
			s.do(CallPreviewScene, scene, "", func(ctx context.Context) error {
				return a.ctrl.SetPreviewScene(ctx, scene)
			})
		}
	}

	s.runFields(m.Current, t.Current)
	s.runFields(m.Next, t.NextRun)
	s.text(m.Shift, timeline.FormatLateness(t.Event.Shift))

	var runners, commentators []timeline.Person
	if t.Current != nil {
		runners = sortedCopy(t.Current.Runners)
		commentators = sortedCopy(t.Current.Commentators)
	}
	urls := s.streamURLs(runners, commentators)
	s.people(m.Runners, runners, urls)
	s.people(m.Commentators, commentators, urls)

	s.report.DurationMS = time.Since(s.report.StartedAt).Milliseconds()
	if s.report.Failed > 0 {
		a.logger.Warn("overlay sync finished with failures",
			"event", s.report.Event,
			"run", s.report.Run,
			"failed", s.report.Failed,
			"total", s.report.Total,
		)
	} else {
		a.logger.Debug("overlay sync finished", "event", s.report.Event, "calls", s.report.Total)
	}
	return s.report
}

// SceneFor picks the program scene for run: its own override, else the
// intermission or run scene, else the idle scene when nothing is current.
func (a *Adapter) SceneFor(run *timeline.Run) string {
	sc := a.mapping.Scenes
	switch {
	case run == nil:
		return sc.Idle
	case run.OBSScene != "":
		return run.OBSScene
	case run.IsIntermission:
		return sc.Intermission
	default:
		return sc.Run
	}
}

// errSkipped marks a call that could not apply and is counted as skipped
// rather than failed.
var errSkipped = errors.New("overlay: call skipped")

type syncRun struct {
	a      *Adapter
	ctx    context.Context
	report *Report
}

func (s *syncRun) do(call Call, scene, target string, fn func(ctx context.Context) error) bool {
	s.report.Total++
	step := s.report.Total

	ctx, cancel := context.WithTimeout(s.ctx, s.a.timeout)
	defer cancel()

	err := fn(ctx)
	switch {
	case errors.Is(err, errSkipped):
		s.report.Skipped++
		return false
	case err != nil:
		s.fail(step, call, scene, target, err)
		return false
	}
	s.report.Completed++
	return true
}

func (s *syncRun) fail(step int, call Call, scene, target string, err error) {
	s.report.Failed++
	s.report.Failures = append(s.report.Failures, Failure{
		Step:   step,
		Call:   call,
		Scene:  scene,
		Target: target,
		Error:  err.Error(),
	})
	s.a.logger.Warn("overlay call failed",
		"event", s.report.Event,
		"run", s.report.Run,
		"call", string(call),
		"scene", scene,
		"target", target,
		"error", err,
	)
}

func (s *syncRun) text(input, value string) {
	if input == "" {
		return
	}
	s.do(CallSetText, "", input, func(ctx context.Context) error {
		return s.a.ctrl.SetText(ctx, input, value)
	})
}

// runFields fills a run's text inputs, or blanks them when run is nil.
func (s *syncRun) runFields(f config.RunFields, run *timeline.Run) {
	var name, category, platform, estimate, tw, runners string
	if run != nil {
		name = run.Name
		category = run.Category
		platform = run.Platform
		estimate = timeline.FormatEstimate(run.Estimated)
		tw = run.TriggerWarning
		runners = joinNames(sortedCopy(run.Runners))
	}
	s.text(f.Name, name)
	s.text(f.Category, category)
	s.text(f.Platform, platform)
	s.text(f.Estimate, estimate)
	s.text(f.TriggerWarning, tw)
	s.text(f.Runners, runners)
}

// people fills person slots in order. Extra people are not shown; unused
// slots are blanked.
func (s *syncRun) people(slots []config.PersonSlot, people []timeline.Person, urls map[int64]string) {
	for i, slot := range slots {
		var name, pronouns string
		var p *timeline.Person
		if i < len(people) {
			p = &people[i]
			name, pronouns = p.Name, p.Pronouns
		}

		s.text(slot.Name, name)
		s.text(slot.Pronouns, pronouns)

		if p == nil {
			continue
		}
		if url, ok := urls[p.ID]; ok && slot.Stream != "" {
			s.do(CallStreamURL, slot.Scene, slot.Stream, func(ctx context.Context) error {
				return s.a.ctrl.SetStreamURL(ctx, slot.Stream, url)
			})
		}
		if pronouns != "" && slot.Scene != "" && slot.Name != "" && slot.Pronouns != "" {
			s.layout(slot)
		}
	}
}

// layout moves a slot's pronoun element clear of its name element.
func (s *syncRun) layout(slot config.PersonSlot) {
	nameBox, ok := s.geometry(slot.Scene, slot.Name)
	if !ok {
		return
	}
	pronBox, ok := s.geometry(slot.Scene, slot.Pronouns)
	if !ok {
		return
	}

	l := s.a.mapping.Layout
	placed := PlacePronouns(nameBox, pronBox, l.Margin, l.MaxX)
	if placed == pronBox {
		return
	}
	s.do(CallSetGeometry, slot.Scene, slot.Pronouns, func(ctx context.Context) error {
		return s.a.ctrl.SetElementGeometry(ctx, slot.Scene, slot.Pronouns, placed)
	})
}

func (s *syncRun) geometry(scene, element string) (Geometry, bool) {
	var g Geometry
	ok := s.do(CallGetGeometry, scene, element, func(ctx context.Context) error {
		var err error
		g, err = s.a.ctrl.GetElementGeometry(ctx, scene, element)
		if errors.Is(err, ErrElementNotFound) {
			return errSkipped
		}
		return err
	})
	return g, ok
}

// streamURLs maps person IDs to their live stream URL. Only consulted when
// a slot names a stream input.
func (s *syncRun) streamURLs(groups ...[]timeline.Person) map[int64]string {
	if s.a.streams == nil || !s.a.wantsStreams() {
		return nil
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.a.timeout)
	defer cancel()

	streams, err := s.a.streams.Streams(ctx)
	if err != nil {
		s.report.Total++
		s.fail(s.report.Total, CallFetchStreams, "", "", err)
		return nil
	}

	wanted := make(map[int64]bool)
	for _, g := range groups {
		for _, p := range g {
			wanted[p.ID] = true
		}
	}

	urls := make(map[int64]string)
	for _, st := range streams {
		if st.Person != nil && wanted[st.Person.ID] {
			if _, seen := urls[st.Person.ID]; !seen {
				urls[st.Person.ID] = st.URL
			}
		}
	}
	return urls
}

func (a *Adapter) wantsStreams() bool {
	for _, slots := range [][]config.PersonSlot{a.mapping.Runners, a.mapping.Commentators} {
		for _, slot := range slots {
			if slot.Stream != "" {
				return true
			}
		}
	}
	return false
}

func sortedCopy(people []timeline.Person) []timeline.Person {
	out := make([]timeline.Person, len(people))
	copy(out, people)
	timeline.SortPeople(out)
	return out
}

func joinNames(people []timeline.Person) string {
	names := make([]string, len(people))
	for i, p := range people {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}
