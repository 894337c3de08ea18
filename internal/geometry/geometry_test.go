package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/geofence/internal/domain"
)

// Unit square around the origin, stored open.
var square = []domain.Point{
	{Latitude: -1, Longitude: -1},
	{Latitude: -1, Longitude: 1},
	{Latitude: 1, Longitude: 1},
	{Latitude: 1, Longitude: -1},
}

func TestPointInPolygon(t *testing.T) {
	tests := []struct {
		name   string
		lat    float64
		lng    float64
		inside bool
	}{
		{"center", 0, 0, true},
		{"outside east", 0, 2, false},
		{"outside north", 2, 0, false},
		{"just inside corner", 0.99, 0.99, true},
		{"just outside corner", 1.01, 1.01, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.inside, PointInPolygon(tt.lat, tt.lng, square))
		})
	}
}

func TestPointInPolygon_Concave(t *testing.T) {
	// U shape: the notch between the prongs is outside.
	u := []domain.Point{
		{Latitude: 0, Longitude: 0},
		{Latitude: 0, Longitude: 3},
		{Latitude: 3, Longitude: 3},
		{Latitude: 3, Longitude: 2},
		{Latitude: 1, Longitude: 2},
		{Latitude: 1, Longitude: 1},
		{Latitude: 3, Longitude: 1},
		{Latitude: 3, Longitude: 0},
	}
	assert.True(t, PointInPolygon(0.5, 1.5, u), "base of the U")
	assert.False(t, PointInPolygon(2, 1.5, u), "notch between prongs")
	assert.True(t, PointInPolygon(2, 0.5, u), "left prong")
}

func TestPointInCircle(t *testing.T) {
	center := domain.Point{Latitude: 0, Longitude: 0}

	// 1 degree of longitude at the equator is roughly 111.19 km.
	assert.True(t, PointInCircle(0, 0, center, 100))
	assert.True(t, PointInCircle(0, 0.0005, center, 100))
	assert.False(t, PointInCircle(0, 0.001, center, 100))
	assert.False(t, PointInCircle(0, 1, center, 100000))
	assert.True(t, PointInCircle(0, 1, center, 112000))
}

func TestHaversine(t *testing.T) {
	// One degree of arc along the equator.
	d := Haversine(0, 0, 0, 1)
	assert.InDelta(t, 111195, d, 10)

	// Symmetry and identity.
	assert.Equal(t, Haversine(0, 0, 0, 1), Haversine(0, 1, 0, 0))
	assert.Zero(t, Haversine(-6.2, 106.8, -6.2, 106.8))

	// Monas to Kota Tua, Jakarta: roughly 4.5 km.
	d = Haversine(-6.1754, 106.8272, -6.1352, 106.8133)
	assert.InDelta(t, 4700, d, 300)
}

func TestDistanceToPolygon(t *testing.T) {
	// One degree east of the square's right edge.
	d := DistanceToPolygon(0, 2, square)
	assert.InDelta(t, 111195, d, 200)

	// Nearest to a vertex, not an edge interior.
	d = DistanceToPolygon(2, 2, square)
	expected := Haversine(2, 2, 1, 1)
	assert.InDelta(t, expected, d, 200)
}

func TestValidate(t *testing.T) {
	valid := domain.Geofence{ID: "g1", Kind: domain.GeometryPolygon, Ring: square}
	require.NoError(t, Validate(valid))

	circle := domain.Geofence{
		ID: "g2", Kind: domain.GeometryCircle,
		Center: domain.Point{Latitude: 0, Longitude: 0}, RadiusMeters: 100,
	}
	require.NoError(t, Validate(circle))

	tests := []struct {
		name string
		g    domain.Geofence
	}{
		{"short ring", domain.Geofence{ID: "x", Kind: domain.GeometryPolygon, Ring: square[:2]}},
		{"nan ring coordinate", domain.Geofence{ID: "x", Kind: domain.GeometryPolygon, Ring: []domain.Point{
			{Latitude: math.NaN(), Longitude: 0}, {Latitude: 0, Longitude: 1}, {Latitude: 1, Longitude: 0},
		}}},
		{"zero radius", domain.Geofence{ID: "x", Kind: domain.GeometryCircle, RadiusMeters: 0}},
		{"negative radius", domain.Geofence{ID: "x", Kind: domain.GeometryCircle, RadiusMeters: -5}},
		{"unknown kind", domain.Geofence{ID: "x", Kind: "blob"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.g)
			require.Error(t, err)
			var geomErr *domain.GeometryError
			require.ErrorAs(t, err, &geomErr)
			assert.Equal(t, "x", geomErr.GeofenceID)
		})
	}
}

func TestDistance_CircleClampsAtZero(t *testing.T) {
	g := domain.Geofence{
		ID: "g", Kind: domain.GeometryCircle,
		Center: domain.Point{Latitude: 0, Longitude: 0}, RadiusMeters: 5000,
	}
	// Inside the circle the boundary distance clamps to zero.
	assert.Zero(t, Distance(g, 0, 0.01))

	// Outside it is distance-to-center minus radius.
	d := Distance(g, 0, 1)
	assert.InDelta(t, 111195-5000, d, 20)
}
