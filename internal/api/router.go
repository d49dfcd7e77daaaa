package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/overlay-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket authenticates with a ticket, validated in the handler.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermTimelineRead))

				r.Get("/events", s.handleListEvents)
				r.Get("/events/current", s.handleCurrentEvent)

				r.Route("/events/{event}", func(r chi.Router) {
					r.Get("/", s.handleGetEvent)
					r.Get("/current", s.handleCurrentRun)
					r.Get("/current/runners/{index}", s.handleRunner)
					r.Get("/next", s.handleNextRun)

					r.Group(func(r chi.Router) {
						r.Use(s.requirePermission(auth.PermRunOperate))

						r.Post("/advance", s.handleAdvance)
						r.Post("/revert", s.handleRevert)
						r.Post("/runs/{run}/move-up", s.handleMoveUp)
						r.Post("/runs/{run}/move-down", s.handleMoveDown)
						r.Post("/overlay/sync", s.handleOverlaySync)
						r.Get("/current/screenshot", s.handleScreenshot)
					})

					r.With(s.requirePermission(auth.PermEventManage)).Patch("/", s.handleEditEvent)
				})
			})

			r.With(s.requirePermission(auth.PermRunOperate)).Get("/obs/scenes", s.handleOBSScenes)

			r.With(s.requirePermission(auth.PermEventManage)).Get("/audit", s.handleListAuditLogs)

			r.Route("/operators", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermOperatorManage))

				r.Get("/", s.handleListOperators)
				r.Post("/", s.handleCreateOperator)
				r.Patch("/{id}", s.handleUpdateOperator)
				r.Delete("/{id}", s.handleDeleteOperator)
				r.Put("/{id}/password", s.handleSetOperatorPassword)
			})
		})
	})

	return r
}
