// Package registry consumes the geometry source and vehicle registry. The
// core treats both as external collaborators: it fetches the active
// geofence set and vehicle names over the management API, caches them and
// refreshes on an interval.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"fleet-monitor/geofence/internal/config"
	"fleet-monitor/geofence/internal/domain"
)

type Registry struct {
	baseURL string
	token   string
	client  *http.Client
	refresh time.Duration

	mu        sync.RWMutex
	geofences []domain.Geofence
	vehicles  map[string]domain.Vehicle
}

func New(cfg *config.Config) *Registry {
	return &Registry{
		baseURL:  cfg.RegistryURL,
		token:    cfg.RegistryToken,
		client:   &http.Client{Timeout: 10 * time.Second},
		refresh:  cfg.RegistryRefresh,
		vehicles: make(map[string]domain.Vehicle),
	}
}

// Geofences returns the cached geofence set in ascending id order. The
// slice is a copy; callers may iterate without holding anything.
func (r *Registry) Geofences() []domain.Geofence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Geofence, len(r.geofences))
	copy(out, r.geofences)
	return out
}

// VehicleName resolves a vehicle id to its display name, falling back to
// the id for vehicles the registry does not know yet.
func (r *Registry) VehicleName(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.vehicles[id]; ok {
		return v.DisplayName()
	}
	return id
}

// Refresh reloads both collections. Either fetch failing leaves the
// previous cache for that collection in place.
func (r *Registry) Refresh(ctx context.Context) error {
	geofences, gErr := r.fetchGeofences(ctx)
	if gErr != nil {
		log.Warn().Err(gErr).Msg("Geofence refresh failed, keeping cached set")
	}
	vehicles, vErr := r.fetchVehicles(ctx)
	if vErr != nil {
		log.Warn().Err(vErr).Msg("Vehicle refresh failed, keeping cached set")
	}

	r.mu.Lock()
	if gErr == nil {
		r.geofences = geofences
	}
	if vErr == nil {
		r.vehicles = vehicles
	}
	r.mu.Unlock()

	if gErr != nil {
		return gErr
	}
	return vErr
}

// Run refreshes the cache on the configured interval.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				log.Warn().Err(err).Msg("Registry refresh failed")
			}
		}
	}
}

type itemsResponse struct {
	Data json.RawMessage `json:"data"`
}

type geofenceItem struct {
	GeofenceID string          `json:"geofence_id"`
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	RuleType   string          `json:"rule_type"`
	Type       string          `json:"type"`
	Definition json.RawMessage `json:"definition"`
}

type vehicleItem struct {
	VehicleID    string `json:"vehicle_id"`
	Name         string `json:"name"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	LicensePlate string `json:"license_plate"`
}

func (r *Registry) fetchGeofences(ctx context.Context) ([]domain.Geofence, error) {
	var items []geofenceItem
	if err := r.get(ctx, "/items/geofences", &items); err != nil {
		return nil, err
	}

	geofences := make([]domain.Geofence, 0, len(items))
	for _, item := range items {
		g, err := parseGeofence(item)
		if err != nil {
			// A malformed entry never takes the rest of the set down.
			log.Warn().Err(err).Str("geofence_id", item.id()).Msg("Skipping malformed geofence definition")
			continue
		}
		geofences = append(geofences, g)
	}

	// Stable id order is the documented tie-break for overlapping
	// geofences downstream.
	sort.Slice(geofences, func(i, j int) bool { return geofences[i].ID < geofences[j].ID })
	return geofences, nil
}

func (r *Registry) fetchVehicles(ctx context.Context) (map[string]domain.Vehicle, error) {
	var items []vehicleItem
	if err := r.get(ctx, "/items/vehicles", &items); err != nil {
		return nil, err
	}

	vehicles := make(map[string]domain.Vehicle, len(items))
	for _, item := range items {
		if item.VehicleID == "" {
			continue
		}
		vehicles[item.VehicleID] = domain.Vehicle{
			ID:           item.VehicleID,
			Name:         item.Name,
			Make:         item.Make,
			Model:        item.Model,
			LicensePlate: item.LicensePlate,
		}
	}
	return vehicles, nil
}

func (r *Registry) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return err
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, detail)
	}

	var wrapper itemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return json.Unmarshal(wrapper.Data, out)
}

func (i geofenceItem) id() string {
	if i.GeofenceID != "" {
		return i.GeofenceID
	}
	return i.ID
}
