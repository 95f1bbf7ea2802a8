package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
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

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Show library
			r.Route("/shows", func(r chi.Router) {
				r.Get("/", s.handleListShows)
				r.Get("/{id}", s.handleGetShow)
			})

			// Playback transport
			r.Route("/playback", func(r chi.Router) {
				r.Get("/", s.handlePlaybackStatus)
				r.Post("/start", s.handlePlaybackStart)
				r.Post("/pause", s.handlePlaybackPause)
				r.Post("/resume", s.handlePlaybackResume)
				r.Post("/seek", s.handlePlaybackSeek)
				r.Post("/stop", s.handlePlaybackStop)
			})

			// Dispatch history
			r.Route("/dispatches", func(r chi.Router) {
				r.Get("/", s.handleListDispatches)
				r.Get("/{id}", s.handleGetDispatch)
			})

			// Controller fleet
			r.Get("/controllers", s.handleListControllers)

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
