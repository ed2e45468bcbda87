package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/info", s.handleInfo)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Authentication.
	mux.HandleFunc("POST /auth/login", s.handleAuthLogin)
	mux.HandleFunc("POST /auth/logout", s.handleAuthLogout)
	mux.HandleFunc("GET /auth/me", s.handleAuthMe)

	// Cases collection.
	mux.HandleFunc("GET /api/cases", s.requireSession(s.handleListCases))
	mux.HandleFunc("POST /api/cases", s.requireSession(s.handleCreateCase))

	// Single case.
	mux.HandleFunc("GET /api/cases/{id}", s.requireSession(s.handleGetCase))
	mux.HandleFunc("PATCH /api/cases/{id}", s.requireSession(s.handleUpdateCase))
	mux.HandleFunc("DELETE /api/cases/{id}", s.requireSession(s.handleDeleteCase))

	// Attachment content.
	mux.HandleFunc("GET /api/cases/{id}/attachments/{key}", s.requireSession(s.handleGetAttachment))

	return s.withRequestLogging(mux)
}
