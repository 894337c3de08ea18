// Package containment classifies position updates into geofence
// transitions. The Engine exclusively owns the per-vehicle containment
// status; it consumes immutable snapshots and emits domain events.
package containment

import (
	"context"

	"github.com/rs/zerolog/log"

	"fleet-monitor/geofence/internal/domain"
	"fleet-monitor/geofence/internal/geometry"
	"fleet-monitor/geofence/internal/metrics"
)

// GeofenceSource supplies the active geofence set. Implemented by the
// registry; evaluation order must be stable (ascending geofence id) so the
// first-match tie-break is deterministic.
type GeofenceSource interface {
	Geofences() []domain.Geofence
	VehicleName(id string) string
}

type Engine struct {
	source GeofenceSource
	events chan domain.GeofenceEvent

	// status and lastEvaluated are owned by the Run goroutine.
	status        map[string]domain.ContainmentStatus
	lastEvaluated map[string]domain.VehiclePosition
}

func NewEngine(source GeofenceSource, eventBuffer int) *Engine {
	return &Engine{
		source:        source,
		events:        make(chan domain.GeofenceEvent, eventBuffer),
		status:        make(map[string]domain.ContainmentStatus),
		lastEvaluated: make(map[string]domain.VehiclePosition),
	}
}

// Events delivers enter/exit/violation transitions, in per-vehicle
// timestamp order. No ordering is guaranteed across vehicles.
func (e *Engine) Events() <-chan domain.GeofenceEvent {
	return e.events
}

// Run consumes snapshots until the channel closes or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, snapshots <-chan []domain.VehiclePosition) {
	defer close(e.events)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			e.Evaluate(ctx, snap)
		}
	}
}

// Evaluate runs one pass over a snapshot. Safe to call directly when
// driving the engine on a polling cadence instead of Run.
func (e *Engine) Evaluate(ctx context.Context, snapshot []domain.VehiclePosition) {
	geofences := e.source.Geofences()
	if len(geofences) == 0 {
		return
	}

	for _, pos := range snapshot {
		if ctx.Err() != nil {
			return
		}
		e.evaluateVehicle(pos, geofences)
	}
}

func (e *Engine) evaluateVehicle(pos domain.VehiclePosition, geofences []domain.Geofence) {
	// Unchanged coordinates mean an unchanged verdict; re-evaluating would
	// only re-detect the same transition.
	if last, ok := e.lastEvaluated[pos.VehicleID]; ok && last.SamePoint(pos) {
		return
	}
	e.lastEvaluated[pos.VehicleID] = pos

	current := e.classify(pos, geofences)
	previous, seen := e.status[pos.VehicleID]

	if current.Inside {
		e.handleInside(pos, current, previous, seen)
	} else {
		e.handleOutside(pos, previous, seen)
	}

	// Status is updated unconditionally, whether or not an event fired.
	e.status[pos.VehicleID] = current
}

// classify finds the vehicle's containment verdict. Among containing
// geofences the first match in id order wins; when none contains the
// point the nearest boundary is recorded for display.
func (e *Engine) classify(pos domain.VehiclePosition, geofences []domain.Geofence) domain.ContainmentStatus {
	nearest := domain.ContainmentStatus{Inside: false, NearestDistanceMeters: -1}

	for _, g := range geofences {
		if err := geometry.Validate(g); err != nil {
			metrics.GeofencesSkipped.Add(1)
			log.Warn().Err(err).Str("geofence_id", g.ID).Msg("Skipping geofence with malformed geometry")
			continue
		}

		if geometry.Contains(g, pos.Latitude, pos.Longitude) {
			return domain.ContainmentStatus{
				Inside:       true,
				GeofenceID:   g.ID,
				GeofenceName: g.Name,
				GeofenceType: g.RuleType,
			}
		}

		d := geometry.Distance(g, pos.Latitude, pos.Longitude)
		if nearest.NearestDistanceMeters < 0 || d < nearest.NearestDistanceMeters {
			nearest.NearestDistanceMeters = d
			nearest.NearestGeofenceID = g.ID
		}
	}
	return nearest
}

func (e *Engine) handleInside(pos domain.VehiclePosition, current, previous domain.ContainmentStatus, seen bool) {
	// First observation counts as an entry.
	newEntry := !seen || !previous.Inside || previous.GeofenceID != current.GeofenceID

	if !newEntry {
		return
	}

	// Leaving one geofence straight into another still ends the previous
	// containment.
	if seen && previous.Inside && previous.GeofenceID != current.GeofenceID {
		e.emitExit(pos, previous)
	}

	eventType := domain.EventEnter
	if current.GeofenceType == domain.RuleForbidden {
		eventType = domain.EventViolationEnter
		metrics.ViolationsDetected.Add(1)
	}

	e.emit(domain.GeofenceEvent{
		Type:         eventType,
		VehicleID:    pos.VehicleID,
		VehicleName:  e.source.VehicleName(pos.VehicleID),
		GeofenceID:   current.GeofenceID,
		GeofenceName: current.GeofenceName,
		RuleType:     current.GeofenceType,
		Position:     pos,
		Timestamp:    pos.Timestamp,
	})
}

func (e *Engine) handleOutside(pos domain.VehiclePosition, previous domain.ContainmentStatus, seen bool) {
	if !seen || !previous.Inside {
		return
	}
	e.emitExit(pos, previous)
}

func (e *Engine) emitExit(pos domain.VehiclePosition, previous domain.ContainmentStatus) {
	eventType := domain.EventExit
	if previous.GeofenceType == domain.RuleStayIn {
		eventType = domain.EventViolationExit
		metrics.ViolationsDetected.Add(1)
	}

	e.emit(domain.GeofenceEvent{
		Type:         eventType,
		VehicleID:    pos.VehicleID,
		VehicleName:  e.source.VehicleName(pos.VehicleID),
		GeofenceID:   previous.GeofenceID,
		GeofenceName: previous.GeofenceName,
		RuleType:     previous.GeofenceType,
		Position:     pos,
		Timestamp:    pos.Timestamp,
	})
}

func (e *Engine) emit(event domain.GeofenceEvent) {
	select {
	case e.events <- event:
	default:
		// The notifier has stalled badly; dropping is preferable to
		// blocking the evaluation loop.
		log.Error().Str("key", event.Key().String()).Msg("Event channel full, dropping geofence event")
	}
}

// Status returns the recorded containment status for a vehicle. Only safe
// from the goroutine driving Evaluate; the status map is not locked.
func (e *Engine) Status(vehicleID string) (domain.ContainmentStatus, bool) {
	s, ok := e.status[vehicleID]
	return s, ok
}
