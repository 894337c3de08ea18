package registry

import (
	"encoding/json"
	"fmt"

	"fleet-monitor/geofence/internal/domain"
)

// geofence definitions arrive GeoJSON-style with [lng, lat] coordinate
// order, either a Polygon or a legacy Circle with an explicit center and
// radius. The registry converts to [lat, lng] once, on ingest.

type polygonDefinition struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

type circleDefinition struct {
	Type        string `json:"type"`
	Coordinates struct {
		Center []float64 `json:"center"`
		Radius float64   `json:"radius"`
	} `json:"coordinates"`
}

func parseGeofence(item geofenceItem) (domain.Geofence, error) {
	id := item.id()
	if id == "" {
		return domain.Geofence{}, fmt.Errorf("geofence without id")
	}

	rule := domain.RuleType(item.RuleType)
	if rule != domain.RuleForbidden {
		rule = domain.RuleStayIn
	}

	g := domain.Geofence{
		ID:       id,
		Name:     item.Name,
		RuleType: rule,
	}
	if g.Name == "" {
		g.Name = "Geofence " + id
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(item.Definition, &probe); err != nil {
		return domain.Geofence{}, fmt.Errorf("definition of %s: %w", id, err)
	}

	switch probe.Type {
	case "Polygon":
		var def polygonDefinition
		if err := json.Unmarshal(item.Definition, &def); err != nil {
			return domain.Geofence{}, fmt.Errorf("polygon definition of %s: %w", id, err)
		}
		if len(def.Coordinates) == 0 || len(def.Coordinates[0]) < 3 {
			return domain.Geofence{}, fmt.Errorf("polygon %s has no usable ring", id)
		}
		ring := make([]domain.Point, 0, len(def.Coordinates[0]))
		for _, coord := range def.Coordinates[0] {
			if len(coord) < 2 {
				return domain.Geofence{}, fmt.Errorf("polygon %s has a short coordinate pair", id)
			}
			ring = append(ring, domain.Point{Latitude: coord[1], Longitude: coord[0]})
		}
		// Drop an explicit closing point; the ring is stored open.
		if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
			ring = ring[:len(ring)-1]
		}
		g.Kind = domain.GeometryPolygon
		g.Ring = ring

	case "Circle":
		var def circleDefinition
		if err := json.Unmarshal(item.Definition, &def); err != nil {
			return domain.Geofence{}, fmt.Errorf("circle definition of %s: %w", id, err)
		}
		if len(def.Coordinates.Center) < 2 {
			return domain.Geofence{}, fmt.Errorf("circle %s has no center", id)
		}
		g.Kind = domain.GeometryCircle
		g.Center = domain.Point{
			Latitude:  def.Coordinates.Center[1],
			Longitude: def.Coordinates.Center[0],
		}
		g.RadiusMeters = def.Coordinates.Radius

	default:
		return domain.Geofence{}, fmt.Errorf("geofence %s has unsupported geometry type %q", id, probe.Type)
	}

	return g, nil
}
