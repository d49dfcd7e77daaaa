package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/overlay-core/internal/director"
	"github.com/nerrad567/overlay-core/internal/progression"
)

// actorFrom names the caller of a command from their token.
func actorFrom(r *http.Request) director.Actor {
	actor := director.Actor{Source: director.SourceHTTP}
	if claims := claimsFromContext(r.Context()); claims != nil {
		actor.Name = claims.Username
	}
	return actor
}

type command func(ctx context.Context, event string, actor director.Actor) (*director.Outcome, error)

func (s *Server) runCommand(w http.ResponseWriter, r *http.Request, cmd command) {
	o, err := cmd(r.Context(), chi.URLParam(r, "event"), actorFrom(r))
	if err != nil {
		s.writeTimelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOutcomeView(o))
}

// handleAdvance finishes the current run and starts the next slot.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, s.director.Advance)
}

// handleRevert reopens the previous run.
func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, s.director.Revert)
}

// handleOverlaySync pushes the current state to OBS again.
func (s *Server) handleOverlaySync(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, s.director.Refresh)
}

func (s *Server) handleMoveUp(w http.ResponseWriter, r *http.Request) {
	s.handleMove(w, r, progression.Up)
}

func (s *Server) handleMoveDown(w http.ResponseWriter, r *http.Request) {
	s.handleMove(w, r, progression.Down)
}

// handleMove swaps a run with its neighbour. Moves that would break the
// running order answer 200 with changed=false.
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request, dir progression.Direction) {
	runID, err := strconv.ParseInt(chi.URLParam(r, "run"), 10, 64)
	if err != nil {
		writeBadRequest(w, "run id must be an integer")
		return
	}

	s.runCommand(w, r, func(ctx context.Context, event string, actor director.Actor) (*director.Outcome, error) {
		return s.director.Move(ctx, event, runID, dir, actor)
	})
}
