package domain

import "time"

type PositionSource string

const (
	SourceInit   PositionSource = "init"
	SourceCreate PositionSource = "create"
	SourceUpdate PositionSource = "update"
	SourceDirect PositionSource = "direct"
)

// VehiclePosition is one record from the position feed. Immutable once
// received; a later record for the same VehicleID supersedes it by
// timestamp, not arrival order.
type VehiclePosition struct {
	VehicleID string
	Latitude  float64
	Longitude float64
	SpeedKmh  float64
	Timestamp time.Time
	Source    PositionSource
}

// SamePoint reports whether two positions carry the exact same coordinate
// pair. Compared bit-for-bit, not by timestamp: the containment engine uses
// it to skip re-evaluating an unchanged location.
func (p VehiclePosition) SamePoint(other VehiclePosition) bool {
	return p.Latitude == other.Latitude && p.Longitude == other.Longitude
}

// Vehicle is a registry entry. The registry owns these; the core only reads
// the display name when building notifications.
type Vehicle struct {
	ID           string
	Name         string
	Make         string
	Model        string
	LicensePlate string
}

// DisplayName mirrors the dashboard fallback chain: explicit name, then
// make/model, then the licence plate.
func (v Vehicle) DisplayName() string {
	if v.Name != "" {
		return v.Name
	}
	if v.Make != "" || v.Model != "" {
		s := v.Make
		if v.Model != "" {
			if s != "" {
				s += " "
			}
			s += v.Model
		}
		return s
	}
	if v.LicensePlate != "" {
		return v.LicensePlate
	}
	return v.ID
}
