package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const (
	defaultScreenshotWidth = 640
	maxScreenshotWidth     = 3840
)

// handleOBSScenes lists the scenes OBS knows about.
func (s *Server) handleOBSScenes(w http.ResponseWriter, r *http.Request) {
	if s.obs == nil {
		writeUnavailable(w, "OBS is not configured")
		return
	}

	scenes, err := s.obs.Scenes(r.Context())
	if err != nil {
		s.logger.Warn("listing OBS scenes failed", "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "OBS did not answer")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scenes": scenes,
		"count":  len(scenes),
	})
}

// handleScreenshot returns a PNG of the scene the current run is shown on.
//
// Query parameters:
//   - width: image width in pixels (default 640, max 3840)
func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	if s.obs == nil {
		writeUnavailable(w, "OBS is not configured")
		return
	}

	width := defaultScreenshotWidth
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxScreenshotWidth {
			writeBadRequest(w, "width must be between 1 and 3840")
			return
		}
		width = n
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

	scene := t.Current.OBSScene
	if s.scenes != nil {
		scene = s.scenes.SceneFor(t.Current)
	}
	if scene == "" {
		writeNotFound(w, "current run has no scene")
		return
	}

	png, err := s.obs.Screenshot(r.Context(), scene, width)
	if err != nil {
		s.logger.Warn("OBS screenshot failed", "scene", scene, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "OBS did not answer")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png) //nolint:errcheck // Best-effort write; connection may be closed
}
