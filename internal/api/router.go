package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/smart-fridge/internal/panel"
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

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	// Device page contract. GET only, no request body.
	r.Get("/status", s.handleStatus)
	r.Get("/trancar", s.handleLock)
	r.Get("/destrancar", s.handleUnlock)
	r.Get("/desligaBuzzer", s.handleSilence)

	r.Route("/api/v1", func(r chi.Router) {
		r.NotFound(handleNotFound)
		r.MethodNotAllowed(handleMethodNotAllowed)

		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/status", s.handleSnapshot)
		r.Get("/history", s.handleHistory)

		r.Route("/latch", func(r chi.Router) {
			r.Post("/lock", s.handleLock)
			r.Post("/unlock", s.handleUnlock)
		})
		r.Post("/alarm/silence", s.handleSilence)

		r.Get("/ws", s.handleWebSocket)
	})

	// Operator page, embedded via go:embed.
	r.Get("/*", panel.Handler(s.cfg.PanelDir).ServeHTTP)

	return r
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeNotFound(w, "no such endpoint")
}

func handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
}
