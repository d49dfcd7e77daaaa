package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/overlay-core/internal/audit"
	"github.com/nerrad567/overlay-core/internal/director"
)

// auditLog records an account change made over the API. Timeline
// commands are recorded by the director, not here.
func (s *Server) auditLog(r *http.Request, action string, details map[string]any) {
	if s.auditWriter == nil {
		return
	}
	s.auditWriter.Record(&audit.Entry{
		Action:  action,
		Actor:   actorFrom(r).Name,
		Source:  director.SourceHTTP,
		Details: details,
	})
}

// handleListAuditLogs returns paginated audit entries, most recent first.
//
// Query parameters:
//   - event: filter by event name
//   - action: filter by action (advance, revert, move_up, move_down, edit, sync, operator_*)
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeUnavailable(w, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Event:  q.Get("event"),
		Action: q.Get("action"),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
