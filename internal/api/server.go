// Package api exposes the dashboard over HTTP: session lifecycle, dataset
// upload, filter updates, render payloads, grid pages, CSV export, and the
// embed token relay.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/insightdeck/insightdeck/internal/embed"
	"github.com/insightdeck/insightdeck/internal/runtime"
	"github.com/insightdeck/insightdeck/internal/session"
)

// Server wires the session manager, the embed relay, and the runtime
// guardrails into an http.Handler.
type Server struct {
	sessions *session.Manager
	relay    *embed.Relay
	ctrl     *runtime.Controller
	logger   zerolog.Logger
}

// NewServer constructs a Server with its collaborators.
func NewServer(sessions *session.Manager, relay *embed.Relay, ctrl *runtime.Controller, logger zerolog.Logger) *Server {
	return &Server{sessions: sessions, relay: relay, ctrl: ctrl, logger: logger}
}

// Handler builds the route table and wraps it in the middleware chain:
// panic recovery outermost, then request logging, then the concurrency gate
// and operation timeout.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/sessions", s.createSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/dataset", s.uploadDataset)
	mux.HandleFunc("PUT /api/sessions/{id}/filters", s.updateFilters)
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.resetSession)
	mux.HandleFunc("PUT /api/sessions/{id}/embed", s.setEmbedVisible)
	mux.HandleFunc("GET /api/sessions/{id}/summary", s.getSummary)
	mux.HandleFunc("GET /api/sessions/{id}/rows", s.getRows)
	mux.HandleFunc("GET /api/sessions/{id}/export", s.exportRows)
	mux.HandleFunc("GET /api/embed-token", s.embedToken)
	mux.HandleFunc("GET /health", s.health)

	var h http.Handler = mux
	h = s.limitMiddleware(h)
	h = s.logMiddleware(h)
	h = s.recoverMiddleware(h)
	return h
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
