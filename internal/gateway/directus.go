// Package gateway holds the persistence gateway clients. The core invokes
// the gateway for every newly detected violation; it never reads back.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fleet-monitor/geofence/internal/config"
	"fleet-monitor/geofence/internal/domain"
)

// DirectusGateway posts violation records to a Directus-style items API:
// one geofence-event record and one alert record per violation.
type DirectusGateway struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewDirectusGateway(cfg *config.Config) *DirectusGateway {
	return &DirectusGateway{
		baseURL: cfg.DirectusURL,
		token:   cfg.DirectusToken,
		client:  &http.Client{Timeout: cfg.GatewayTimeout},
	}
}

type directusGeofenceEvent struct {
	VehicleID      string `json:"vehicle_id"`
	GeofenceID     string `json:"geofence_id"`
	Event          string `json:"event"`
	EventTimestamp string `json:"event_timestamp"`
}

type directusAlert struct {
	VehicleID    string `json:"vehicle_id"`
	AlertType    string `json:"alert_type"`
	AlertMessage string `json:"alert_message"`
	Location     string `json:"lokasi"`
	Timestamp    string `json:"timestamp"`
}

func (g *DirectusGateway) SaveGeofenceEvent(ctx context.Context, event domain.GeofenceEvent) error {
	payload := directusGeofenceEvent{
		VehicleID:      event.VehicleID,
		GeofenceID:     event.GeofenceID,
		Event:          string(event.Type),
		EventTimestamp: event.Timestamp.Format(time.RFC3339),
	}
	return g.post(ctx, "/items/geofence_events", "geofence_event", payload)
}

func (g *DirectusGateway) SaveAlert(ctx context.Context, n domain.Notification) error {
	payload := directusAlert{
		VehicleID:    n.VehicleID,
		AlertType:    string(n.EventType),
		AlertMessage: n.AlertMessage,
		Location:     n.Location,
		Timestamp:    n.Timestamp.Format(time.RFC3339),
	}
	return g.post(ctx, "/items/alerts", "alert", payload)
}

func (g *DirectusGateway) post(ctx context.Context, path, record string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.GatewayError{Record: record, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &domain.GatewayError{Record: record, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &domain.GatewayError{Record: record, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.GatewayError{
			Record: record,
			Err:    fmt.Errorf("unexpected status %d: %s", resp.StatusCode, detail),
		}
	}
	return nil
}
