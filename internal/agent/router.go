package agent

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/ghosttube/internal/bridge"
	"github.com/nerrad567/ghosttube/internal/hass"
)

// Handler returns the agent's HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/ws", s.handleWebSocket)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "not found")
	})

	return r
}

// healthCheckTimeout bounds each dependency probe.
const healthCheckTimeout = 2 * time.Second

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// handleHealth returns the server health status. A failing dependency
// reports "degraded" but keeps a 200: the bridge still serves without it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: s.version}

	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
		for name, check := range s.checks {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := check.HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = err.Error()
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// MediaResponse is the wire form of the published media state.
type MediaResponse struct {
	State       hass.PlayerState `json:"state"`
	Position    *float64         `json:"position,omitempty"`
	Duration    *float64         `json:"duration,omitempty"`
	Title       string           `json:"title,omitempty"`
	Artist      string           `json:"artist,omitempty"`
	AlbumArtURL string           `json:"album_art_url,omitempty"`
	VideoID     string           `json:"video_id,omitempty"`
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Connection    *bridge.ConnectionState `json:"connection,omitempty"`
	Media         MediaResponse           `json:"media"`
	SessionActive bool                    `json:"session_active"`
	HostConnected bool                    `json:"host_connected"`
	Location      string                  `json:"location,omitempty"`
}

// handleStatus reports the broker connection and the published media state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.hostMu.Lock()
	conn, media := s.connection, s.media
	hostConnected := s.host != nil
	s.hostMu.Unlock()

	resp := StatusResponse{
		Media:         MediaResponse{State: hass.StateIdle},
		HostConnected: hostConnected,
		Location:      s.Location(),
	}

	if conn != nil {
		state := conn.State()
		resp.Connection = &state
	}
	if media != nil {
		current, active := media.Current()
		resp.SessionActive = active
		resp.Media = MediaResponse{
			State:       current.State,
			Position:    current.Position,
			Duration:    current.Duration,
			Title:       current.Title,
			Artist:      current.Artist,
			AlbumArtURL: current.AlbumArtURL,
			VideoID:     current.VideoID,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
