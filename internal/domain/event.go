package domain

import (
	"fmt"
	"time"
)

type EventType string

const (
	EventEnter          EventType = "enter"
	EventExit           EventType = "exit"
	EventViolationEnter EventType = "violation_enter"
	EventViolationExit  EventType = "violation_exit"
)

// IsViolation reports whether the base event type breaks the geofence rule:
// exiting a STAY_IN area or entering a FORBIDDEN one.
func IsViolation(event EventType, rule RuleType) bool {
	if rule == RuleStayIn && event == EventExit {
		return true
	}
	if rule == RuleForbidden && event == EventEnter {
		return true
	}
	return false
}

// ViolationKey is the dedup identity for one specific violation. All
// lifecycle state (active set, dismissed set, timers) is keyed by it.
type ViolationKey struct {
	VehicleID  string
	GeofenceID string
	EventType  EventType
}

func (k ViolationKey) String() string {
	return fmt.Sprintf("%s-%s-%s", k.VehicleID, k.GeofenceID, k.EventType)
}

// GeofenceEvent is a containment transition emitted by the engine.
type GeofenceEvent struct {
	Type         EventType
	VehicleID    string
	VehicleName  string
	GeofenceID   string
	GeofenceName string
	RuleType     RuleType
	Position     VehiclePosition
	Timestamp    time.Time
}

func (e GeofenceEvent) Key() ViolationKey {
	return ViolationKey{VehicleID: e.VehicleID, GeofenceID: e.GeofenceID, EventType: e.Type}
}
