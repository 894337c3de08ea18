package domain

type RuleType string

const (
	// RuleStayIn is violated by exiting the geofence.
	RuleStayIn RuleType = "STAY_IN"
	// RuleForbidden is violated by entering the geofence.
	RuleForbidden RuleType = "FORBIDDEN"
)

type GeometryKind string

const (
	GeometryPolygon GeometryKind = "polygon"
	GeometryCircle  GeometryKind = "circle"
)

// Point is a WGS84 coordinate.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Geofence is read-only to the core; the registry owns the set.
type Geofence struct {
	ID       string
	Name     string
	RuleType RuleType
	Kind     GeometryKind

	// Ring is the polygon boundary when Kind is GeometryPolygon. The ring
	// is open: the closing point is implied, not stored.
	Ring []Point

	// Center and RadiusMeters define the circle when Kind is GeometryCircle.
	Center       Point
	RadiusMeters float64
}

// ContainmentStatus is the per-vehicle record the containment engine owns.
// One entry is created on first observation of a vehicle and persists for
// the process lifetime.
type ContainmentStatus struct {
	Inside       bool
	GeofenceID   string
	GeofenceName string
	GeofenceType RuleType

	// NearestDistanceMeters is the distance to the nearest geofence when the
	// vehicle is outside all of them. Display data only.
	NearestDistanceMeters float64
	NearestGeofenceID     string
}
