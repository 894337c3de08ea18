package domain

import (
	"fmt"
	"time"
)

// Notification is the single alert the operator sees. At most one is
// visible at any time; a new one evicts the previous one.
type Notification struct {
	ID           string    `json:"id"`
	VehicleID    string    `json:"vehicle_id"`
	VehicleName  string    `json:"vehicle_name"`
	GeofenceID   string    `json:"geofence_id"`
	GeofenceName string    `json:"geofence_name"`
	EventType    EventType `json:"event_type"`
	Timestamp    time.Time `json:"timestamp"`
	Location     string    `json:"location"`
	AlertMessage string    `json:"alert_message"`
	IsNew        bool      `json:"is_new"`
	IsReshow     bool      `json:"is_reshow"`
}

func (n Notification) Key() ViolationKey {
	return ViolationKey{VehicleID: n.VehicleID, GeofenceID: n.GeofenceID, EventType: n.EventType}
}

// AlertMessage builds the human-readable alert text stored alongside the
// violation record.
func AlertMessage(event EventType, vehicleName, geofenceName string, rule RuleType) string {
	switch event {
	case EventViolationEnter:
		return fmt.Sprintf("VIOLATION: vehicle %s entered geofence %s (FORBIDDEN)", vehicleName, geofenceName)
	case EventViolationExit:
		return fmt.Sprintf("VIOLATION: vehicle %s left geofence %s (%s)", vehicleName, geofenceName, rule)
	default:
		return fmt.Sprintf("vehicle %s triggered %s on geofence %s", vehicleName, event, geofenceName)
	}
}

// FormatLocation renders a position as the "lat, lng" string the alert
// record carries.
func FormatLocation(lat, lng float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lng)
}
