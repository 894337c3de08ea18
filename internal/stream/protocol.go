package stream

import (
	"encoding/json"
	"time"

	"fleet-monitor/geofence/internal/domain"
)

// subscribeMessage is sent once per connection, right after the dial
// succeeds.
type subscribeMessage struct {
	Type       string         `json:"type"`
	Collection string         `json:"collection"`
	Query      subscribeQuery `json:"query"`
}

type subscribeQuery struct {
	Limit int    `json:"limit"`
	Sort  string `json:"sort"`
}

type pingMessage struct {
	Type string `json:"type"`
}

// envelope covers both inbound forms: a typed frame ({type:"pong"} or
// {type:"subscription", event, data:[...]}) and a bare position record
// sent without any wrapper.
type envelope struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`

	// Bare-record fields.
	positionRecord
}

// positionRecord is the wire form of one feed record. Lat/lng are pointers
// so a missing field is distinguishable from zero.
type positionRecord struct {
	VehicleID string   `json:"vehicle_id"`
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lng"`
	SpeedKmh  float64  `json:"speed"`
	Timestamp string   `json:"timestamp"`
}

// toPosition validates the record. A record without vehicle_id, lat or lng
// is a protocol error; a missing or unparseable timestamp falls back to the
// receive time.
func (r positionRecord) toPosition(source domain.PositionSource, now time.Time) (domain.VehiclePosition, error) {
	if r.VehicleID == "" {
		return domain.VehiclePosition{}, &domain.ProtocolError{Reason: "record missing vehicle_id"}
	}
	if r.Latitude == nil || r.Longitude == nil {
		return domain.VehiclePosition{}, &domain.ProtocolError{Reason: "record missing lat/lng"}
	}

	ts := now
	if r.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, r.Timestamp)
		if err != nil {
			return domain.VehiclePosition{}, &domain.ProtocolError{Reason: "unparseable timestamp", Err: err}
		}
		ts = parsed
	}

	return domain.VehiclePosition{
		VehicleID: r.VehicleID,
		Latitude:  *r.Latitude,
		Longitude: *r.Longitude,
		SpeedKmh:  r.SpeedKmh,
		Timestamp: ts,
		Source:    source,
	}, nil
}
