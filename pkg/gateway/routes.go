package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	backendtypes "healthchat/pkg/backend/types"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type statusResponse struct {
	Status          string                  `json:"status"`
	UptimeSeconds   int64                   `json:"uptime_seconds"`
	Connection      string                  `json:"connection"`
	BackendLastOKAt string                  `json:"backend_last_ok_at,omitempty"`
	BackendLastErr  string                  `json:"backend_last_error,omitempty"`
	Channels        map[string]channelState `json:"channels"`
}

type backendStatusResponse struct {
	BackendURL  string `json:"backend_url"`
	BackendKind string `json:"backend_kind"`
	Connected   bool   `json:"connected"`
	StatusCode  int    `json:"status_code,omitempty"`
	Error       string `json:"error,omitempty"`
	CheckedAt   string `json:"checked_at"`
}

type sessionResponse struct {
	SessionID        string `json:"session_id,omitempty"`
	UserID           string `json:"user_id"`
	Connection       string `json:"connection"`
	Loading          bool   `json:"loading"`
	Debug            bool   `json:"debug"`
	LastError        string `json:"last_error,omitempty"`
	TranscriptLength int    `json:"transcript_length"`
}

func (s *Service) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(s.cfg.Gateway.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.Gateway.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Route("/debug", func(r chi.Router) {
		r.Get("/backend_status", s.handleBackendStatus)
		r.Get("/session", s.handleSession)
	})

	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.currentStatus("ok"))
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.writeJSON(w, statusCode, s.currentStatus(status))
}

// handleBackendStatus runs a live probe and reports its outcome.
func (s *Service) handleBackendStatus(w http.ResponseWriter, r *http.Request) {
	response := backendStatusResponse{
		BackendURL:  s.cfg.BackendURL(),
		BackendKind: s.cfg.Backend.Kind,
		Connected:   true,
	}

	if err := s.checkBackendHealth(r.Context()); err != nil {
		response.Connected = false
		response.StatusCode = backendtypes.StatusOf(err)
		response.Error = err.Error()
	}
	response.CheckedAt = time.Now().UTC().Format(time.RFC3339)

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Service) handleSession(w http.ResponseWriter, _ *http.Request) {
	snap := s.client.Snapshot()
	s.writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:        snap.SessionID,
		UserID:           snap.UserID,
		Connection:       snap.State.String(),
		Loading:          snap.Loading,
		Debug:            snap.Debug,
		LastError:        snap.LastError,
		TranscriptLength: len(snap.Transcript),
	})
}

func (s *Service) writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	connection := s.client.Snapshot().State

	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	backendLastOK := ""
	if !s.backendLastOKAt.IsZero() {
		backendLastOK = s.backendLastOKAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:          status,
		UptimeSeconds:   uptime,
		Connection:      connection.String(),
		BackendLastOKAt: backendLastOK,
		BackendLastErr:  s.backendLastErr,
		Channels:        channels,
	}
}
