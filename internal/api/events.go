package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/overlay-core/internal/director"
	"github.com/nerrad567/overlay-core/internal/progression"
	"github.com/nerrad567/overlay-core/internal/timeline"
)

// eventView is an event with its running order as the operator screen
// shows it.
type eventView struct {
	*timeline.Event
	Lateness string        `json:"lateness"`
	Current  *timeline.Run `json:"current,omitempty"`
	NextSlot *timeline.Run `json:"next_slot,omitempty"`
	NextRun  *timeline.Run `json:"next_run,omitempty"`
	Runs     []runView     `json:"runs"`
}

// runView adds the display and reorder flags to a run.
type runView struct {
	*timeline.Run
	Estimate    string `json:"estimate"`
	IsCurrent   bool   `json:"is_current"`
	CanMoveUp   bool   `json:"can_move_up"`
	CanMoveDown bool   `json:"can_move_down"`
}

func newEventView(t *progression.Transition) eventView {
	v := eventView{
		Event:    t.Event,
		Lateness: t.Lateness(),
		Current:  t.Current,
		NextSlot: t.NextSlot,
		NextRun:  t.NextRun,
		Runs:     make([]runView, 0, len(t.Runs)),
	}
	for _, run := range t.Runs {
		v.Runs = append(v.Runs, runView{
			Run:         run,
			Estimate:    timeline.FormatEstimate(run.Estimated),
			IsCurrent:   t.Event.IsCurrent(run),
			CanMoveUp:   progression.CanMove(t.Runs, run, progression.Up),
			CanMoveDown: progression.CanMove(t.Runs, run, progression.Down),
		})
	}
	return v
}

// outcomeView is the response to every operator command.
type outcomeView struct {
	Action  progression.Action `json:"action"`
	Changed bool               `json:"changed"`
	Event   eventView          `json:"event"`
	Moved   *timeline.Run      `json:"moved,omitempty"`
	Overlay any                `json:"overlay,omitempty"`
	Actor   director.Actor     `json:"actor"`
}

func newOutcomeView(o *director.Outcome) outcomeView {
	v := outcomeView{
		Action:  o.Transition.Action,
		Changed: o.Transition.Changed,
		Event:   newEventView(o.Transition),
		Moved:   o.Transition.Moved,
		Actor:   o.Actor,
	}
	if o.Overlay != nil {
		v.Overlay = o.Overlay
	}
	return v
}

// handleListEvents returns every event, soonest first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.director.Store().Repository().ListEvents(r.Context())
	if err != nil {
		s.writeTimelineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// handleCurrentEvent returns the event an operator most likely wants:
// running today, else the next one, else the last one.
func (s *Server) handleCurrentEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.director.DefaultEvent(r.Context())
	if err != nil {
		s.writeTimelineError(w, r, err)
		return
	}
	s.writeEvent(w, r, event.Name)
}

// handleGetEvent returns one event with its running order.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	s.writeEvent(w, r, chi.URLParam(r, "event"))
}

func (s *Server) writeEvent(w http.ResponseWriter, r *http.Request, name string) {
	t, err := s.director.State(r.Context(), name)
	if err != nil {
		s.writeTimelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventView(t))
}

// editEventRequest is the body of PATCH /events/{event}. Absent fields are
// left unchanged.
type editEventRequest struct {
	Name         *string    `json:"name,omitempty"`
	StartAt      *time.Time `json:"start_at,omitempty"`
	EndAt        *time.Time `json:"end_at,omitempty"`
	ShiftSeconds *int64     `json:"shift_seconds,omitempty"`
	CurrentRunID *int64     `json:"current_run_id,omitempty"`
	ClearCurrent bool       `json:"clear_current,omitempty"`
}

func (req editEventRequest) edit() (progression.EventEdit, error) {
	edit := progression.EventEdit{
		Name:         req.Name,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		CurrentRunID: req.CurrentRunID,
		ClearCurrent: req.ClearCurrent,
	}
	if req.Name != nil && *req.Name == "" {
		return edit, errors.New("name cannot be empty")
	}
	if req.ShiftSeconds != nil {
		if *req.ShiftSeconds < 0 {
			return edit, errors.New("shift_seconds cannot be negative")
		}
		shift := time.Duration(*req.ShiftSeconds) * time.Second
		edit.Shift = &shift
	}
	return edit, nil
}

// handleEditEvent applies an operator edit and replans the event.
func (s *Server) handleEditEvent(w http.ResponseWriter, r *http.Request) {
	var req editEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	edit, err := req.edit()
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	o, err := s.director.Edit(r.Context(), chi.URLParam(r, "event"), edit, actorFrom(r))
	if err != nil {
		s.writeTimelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOutcomeView(o))
}

// handleCurrentRun returns the live run, 404 when the event is idle.
func (s *Server) handleCurrentRun(w http.ResponseWriter, r *http.Request) {
	t, err := s.director.State(r.Context(), chi.URLParam(r, "event"))
	if err != nil {
		s.writeTimelineError(w, r, err)
		return
	}
	if t.Current == nil {
		writeNotFound(w, "no run is current")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":      t.Current,
		"estimate": timeline.FormatEstimate(t.Current.Estimated),
		"lateness": t.Lateness(),
	})
}

// handleRunner returns one runner of the live run by zero-based position
// in name order, the same order the overlay slots use.
func (s *Server) handleRunner(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeBadRequest(w, "runner index must be a non-negative integer")
		return
	}

	t, err := s.director.State(r.Context(), chi.URLParam(r, "event"))
	if err != nil {
		s.writeTimelineError(w, r, err)
		return
	}
	if t.Current == nil {
		writeNotFound(w, "no run is current")
		return
	}

	runners := append([]timeline.Person(nil), t.Current.Runners...)
	timeline.SortPeople(runners)
	if index >= len(runners) {
		writeNotFound(w, "no runner at index "+strconv.Itoa(index))
		return
	}

	p := runners[index]
	writeJSON(w, http.StatusOK, map[string]any{
		"name":     p.Name,
		"pronouns": p.Pronouns,
	})
}

// handleNextRun returns the next non-intermission run with its runners.
func (s *Server) handleNextRun(w http.ResponseWriter, r *http.Request) {
	t, err := s.director.State(r.Context(), chi.URLParam(r, "event"))
	if err != nil {
		s.writeTimelineError(w, r, err)
		return
	}
	if t.NextRun == nil {
		writeNotFound(w, "no run is coming up")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":      t.NextRun,
		"estimate": timeline.FormatEstimate(t.NextRun.Estimated),
		"starts":   t.NextRun.EffectiveStart(t.Event.Shift),
	})
}
