// Package geometry holds the stateless containment primitives. Everything
// here is pure computation over lat/lng pairs; malformed geometry fails
// with a domain.GeometryError and the caller skips that geofence only.
package geometry

import (
	"math"

	"fleet-monitor/geofence/internal/domain"
)

const earthRadiusMeters = 6371000

// PointInPolygon reports whether the point lies inside the ring using ray
// casting. Tie-break for points exactly on an edge or vertex: an edge
// counts a crossing when one endpoint is strictly above the ray and the
// other is not, so a point on a bottom edge or left vertex lands inside
// and a point on a top edge lands outside. The rule is arbitrary but
// deterministic.
func PointInPolygon(lat, lng float64, ring []domain.Point) bool {
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		yi, xi := ring[i].Latitude, ring[i].Longitude
		yj, xj := ring[j].Latitude, ring[j].Longitude

		if (yi > lat) != (yj > lat) &&
			lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// PointInCircle reports whether the point lies within radiusMeters of the
// center by great-circle distance.
func PointInCircle(lat, lng float64, center domain.Point, radiusMeters float64) bool {
	return Haversine(lat, lng, center.Latitude, center.Longitude) <= radiusMeters
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// DistanceToPolygon returns the minimum distance in meters from the point
// to any edge of the ring. Only meaningful when the point is outside; the
// engine uses it to pick the nearest geofence among non-containing ones.
// The nearest point on each segment is found by planar projection, which
// is a close approximation at geofence scales, then measured by haversine.
func DistanceToPolygon(lat, lng float64, ring []domain.Point) float64 {
	minDistance := math.Inf(1)
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		d := distanceToSegment(lat, lng, ring[j], ring[i])
		if d < minDistance {
			minDistance = d
		}
	}
	return minDistance
}

func distanceToSegment(lat, lng float64, a, b domain.Point) float64 {
	dLat := b.Latitude - a.Latitude
	dLng := b.Longitude - a.Longitude

	lenSq := dLat*dLat + dLng*dLng
	if lenSq == 0 {
		// Degenerate segment, both endpoints coincide.
		return Haversine(lat, lng, a.Latitude, a.Longitude)
	}

	t := ((lat-a.Latitude)*dLat + (lng-a.Longitude)*dLng) / lenSq
	t = math.Max(0, math.Min(1, t))

	nearestLat := a.Latitude + t*dLat
	nearestLng := a.Longitude + t*dLng
	return Haversine(lat, lng, nearestLat, nearestLng)
}

// Validate checks a geofence's geometry before evaluation.
func Validate(g domain.Geofence) error {
	switch g.Kind {
	case domain.GeometryPolygon:
		if len(g.Ring) < 3 {
			return &domain.GeometryError{GeofenceID: g.ID, Reason: "polygon ring has fewer than 3 points"}
		}
		for _, p := range g.Ring {
			if !validCoordinate(p.Latitude, p.Longitude) {
				return &domain.GeometryError{GeofenceID: g.ID, Reason: "non-numeric ring coordinate"}
			}
		}
	case domain.GeometryCircle:
		if !validCoordinate(g.Center.Latitude, g.Center.Longitude) {
			return &domain.GeometryError{GeofenceID: g.ID, Reason: "non-numeric circle center"}
		}
		if g.RadiusMeters <= 0 || math.IsNaN(g.RadiusMeters) || math.IsInf(g.RadiusMeters, 0) {
			return &domain.GeometryError{GeofenceID: g.ID, Reason: "non-positive circle radius"}
		}
	default:
		return &domain.GeometryError{GeofenceID: g.ID, Reason: "unknown geometry kind"}
	}
	return nil
}

// Contains reports whether the point lies inside the geofence. The caller
// is expected to have validated the geometry.
func Contains(g domain.Geofence, lat, lng float64) bool {
	if g.Kind == domain.GeometryCircle {
		return PointInCircle(lat, lng, g.Center, g.RadiusMeters)
	}
	return PointInPolygon(lat, lng, g.Ring)
}

// Distance returns the distance in meters from the point to the geofence
// boundary. For circles the distance is measured to the circumference and
// clamped at zero.
func Distance(g domain.Geofence, lat, lng float64) float64 {
	if g.Kind == domain.GeometryCircle {
		d := Haversine(lat, lng, g.Center.Latitude, g.Center.Longitude) - g.RadiusMeters
		if d < 0 {
			return 0
		}
		return d
	}
	return DistanceToPolygon(lat, lng, g.Ring)
}

func validCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return true
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
