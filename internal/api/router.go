package api

import (
	"context"
	"net/http"
	"time"

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
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				// Registering devices is tenant management, admin-only.
				r.With(s.adminMiddleware).Post("/", s.handleRegisterDevice)

				r.Route("/{serial}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Post("/open", s.handleOpenDevice)

					// Audit trail is admin-only
					r.With(s.adminMiddleware).Get("/logs", s.handleDeviceLogs)
				})
			})

			// WebSocket status stream (token validated by authMiddleware)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth reports the server and its backing components.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := map[string]string{}
	healthy := true

	if s.database != nil {
		components["database"] = healthStatus(s.database.HealthCheck(ctx))
		healthy = healthy && components["database"] == "ok"
	}
	if s.broker != nil {
		components["mqtt"] = healthStatus(s.broker.HealthCheck(ctx))
		healthy = healthy && components["mqtt"] == "ok"
	}

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"status":     overall,
		"version":    s.version,
		"components": components,
	})
}

func healthStatus(err error) string {
	if err != nil {
		return "unavailable"
	}
	return "ok"
}
