// Package http exposes the operator surface: the visible notification,
// manual dismissal, the stream connectivity banner and metrics. It only
// reads published state and posts commands; it owns nothing.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"fleet-monitor/geofence/internal/metrics"
	"fleet-monitor/geofence/internal/notify"
	"fleet-monitor/geofence/internal/stream"
)

type Server struct {
	stream   *stream.Client
	notifier *notify.Manager
}

func NewServer(streamClient *stream.Client, notifier *notify.Manager) *Server {
	return &Server{stream: streamClient, notifier: notifier}
}

// Routes wires the operator API. Everything except health and metrics sits
// behind the API-key middleware.
func (s *Server) Routes(authMw *AuthMiddleware) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", metrics.HandleMetrics)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/notifications", s.handleNotifications)
	api.HandleFunc("POST /api/notifications/dismiss", s.handleDismiss)
	api.HandleFunc("GET /api/stream/status", s.handleStreamStatus)
	api.HandleFunc("POST /api/stream/reconnect", s.handleReconnect)
	mux.Handle("/api/", authMw.Wrap(api))

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	visible := s.notifier.Visible()
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  visible,
		"count": len(visible),
	})
}

type dismissRequest struct {
	NotificationID string `json:"notification_id"`
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	var req dismissRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NotificationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "notification_id is required"})
		return
	}

	s.notifier.Dismiss(req.NotificationID)
	log.Info().
		Str("notification_id", req.NotificationID).
		Str("operator", Operator(r.Context())).
		Msg("Operator dismissed notification")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "dismissed"})
}

func (s *Server) handleStreamStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stream.Status())
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	s.stream.Reconnect()
	log.Info().Str("operator", Operator(r.Context())).Msg("Operator requested stream reconnect")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reconnecting"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
