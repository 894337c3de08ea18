package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/geofence/internal/domain"
)

func TestParseGeofence_Polygon(t *testing.T) {
	item := geofenceItem{
		GeofenceID: "zone-1",
		Name:       "Depot",
		RuleType:   "STAY_IN",
		Definition: json.RawMessage(`{
			"type": "Polygon",
			"coordinates": [[
				[106.80, -6.20],
				[106.82, -6.20],
				[106.82, -6.18],
				[106.80, -6.18],
				[106.80, -6.20]
			]]
		}`),
	}

	g, err := parseGeofence(item)
	require.NoError(t, err)
	assert.Equal(t, "zone-1", g.ID)
	assert.Equal(t, "Depot", g.Name)
	assert.Equal(t, domain.RuleStayIn, g.RuleType)
	assert.Equal(t, domain.GeometryPolygon, g.Kind)

	// GeoJSON [lng, lat] pairs become Points, and the explicit closing
	// point is dropped.
	require.Len(t, g.Ring, 4)
	assert.Equal(t, domain.Point{Latitude: -6.20, Longitude: 106.80}, g.Ring[0])
	assert.Equal(t, domain.Point{Latitude: -6.18, Longitude: 106.82}, g.Ring[2])
}

func TestParseGeofence_Circle(t *testing.T) {
	item := geofenceItem{
		ID:       "gf-2",
		RuleType: "FORBIDDEN",
		Definition: json.RawMessage(`{
			"type": "Circle",
			"coordinates": {"center": [106.8456, -6.2088], "radius": 500}
		}`),
	}

	g, err := parseGeofence(item)
	require.NoError(t, err)
	assert.Equal(t, "gf-2", g.ID)
	assert.Equal(t, domain.RuleForbidden, g.RuleType)
	assert.Equal(t, domain.GeometryCircle, g.Kind)
	assert.Equal(t, domain.Point{Latitude: -6.2088, Longitude: 106.8456}, g.Center)
	assert.Equal(t, 500.0, g.RadiusMeters)

	// Missing name falls back to a generated one.
	assert.Equal(t, "Geofence gf-2", g.Name)
}

func TestParseGeofence_RuleDefaultsToStayIn(t *testing.T) {
	item := geofenceItem{
		GeofenceID: "g",
		RuleType:   "something-else",
		Definition: json.RawMessage(`{"type":"Circle","coordinates":{"center":[0,0],"radius":10}}`),
	}
	g, err := parseGeofence(item)
	require.NoError(t, err)
	assert.Equal(t, domain.RuleStayIn, g.RuleType)
}

func TestParseGeofence_Errors(t *testing.T) {
	tests := []struct {
		name string
		item geofenceItem
	}{
		{"missing id", geofenceItem{Definition: json.RawMessage(`{"type":"Circle"}`)}},
		{"unsupported type", geofenceItem{GeofenceID: "g", Definition: json.RawMessage(`{"type":"MultiPolygon"}`)}},
		{"no usable ring", geofenceItem{GeofenceID: "g", Definition: json.RawMessage(`{"type":"Polygon","coordinates":[[[106.8,-6.2],[106.9,-6.2]]]}`)}},
		{"short coordinate pair", geofenceItem{GeofenceID: "g", Definition: json.RawMessage(`{"type":"Polygon","coordinates":[[[106.8,-6.2],[106.9],[106.9,-6.1]]]}`)}},
		{"circle without center", geofenceItem{GeofenceID: "g", Definition: json.RawMessage(`{"type":"Circle","coordinates":{"radius":10}}`)}},
		{"garbage definition", geofenceItem{GeofenceID: "g", Definition: json.RawMessage(`"round-ish"`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseGeofence(tt.item)
			assert.Error(t, err)
		})
	}
}

func TestGeofenceItemID(t *testing.T) {
	assert.Equal(t, "a", geofenceItem{GeofenceID: "a", ID: "b"}.id())
	assert.Equal(t, "b", geofenceItem{ID: "b"}.id())
	assert.Empty(t, geofenceItem{}.id())
}
