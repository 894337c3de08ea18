// feed_sim is a stand-in for the live telemetry feed. It serves the same
// websocket subscription protocol the monitor speaks: a client sends
// {"type":"subscribe"}, gets an init batch of current positions, then
// receives a create event every tick as the simulated vehicles move.
// Pings are answered with pongs.
//
// Usage:
//
//	go run ./scripts/feed_sim            # listens on :8055
//	FEED_WS_URL=ws://localhost:8055/websocket go run ./cmd/geofence-monitor
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type simVehicle struct {
	ID      string
	Lat     float64
	Lng     float64
	Heading float64 // degrees
	Speed   float64 // km/h
}

type record struct {
	VehicleID string  `json:"vehicle_id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Speed     float64 `json:"speed"`
	Timestamp string  `json:"timestamp"`
}

type message struct {
	Type  string   `json:"type"`
	Event string   `json:"event,omitempty"`
	Data  []record `json:"data,omitempty"`
}

type simulator struct {
	mu       sync.Mutex
	vehicles []*simVehicle
}

// Routes around central Jakarta. Vehicle B-9012-CD starts inside the
// depot STAY_IN zone and wanders, so violations show up within a
// minute or two of starting the monitor.
func newSimulator() *simulator {
	return &simulator{
		vehicles: []*simVehicle{
			{ID: "B-1234-AB", Lat: -6.2088, Lng: 106.8456, Heading: 45, Speed: 40},
			{ID: "B-5678-CD", Lat: -6.1751, Lng: 106.8650, Heading: 200, Speed: 55},
			{ID: "B-9012-CD", Lat: -6.2297, Lng: 106.8295, Heading: 90, Speed: 30},
			{ID: "B-3456-EF", Lat: -6.1900, Lng: 106.8229, Heading: 320, Speed: 25},
		},
	}
}

// advance moves every vehicle one tick along its heading, with a small
// random drift so the paths are not perfectly straight.
func (s *simulator) advance(dt time.Duration) []record {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	out := make([]record, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		v.Heading += (rand.Float64() - 0.5) * 20
		distKm := v.Speed * dt.Hours()
		rad := v.Heading * math.Pi / 180
		// 1 degree latitude ≈ 111 km
		v.Lat += distKm * math.Cos(rad) / 111.0
		v.Lng += distKm * math.Sin(rad) / (111.0 * math.Cos(v.Lat*math.Pi/180))

		out = append(out, record{
			VehicleID: v.ID,
			Lat:       v.Lat,
			Lng:       v.Lng,
			Speed:     v.Speed,
			Timestamp: now.Format(time.RFC3339),
		})
	}
	return out
}

func (s *simulator) snapshot() []record {
	return s.advance(0)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func serveWS(sim *simulator, tick time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		log.Printf("client connected: %s", r.RemoteAddr)

		// Wait for the subscribe message before sending anything.
		var sub struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&sub); err != nil || sub.Type != "subscribe" {
			log.Printf("expected subscribe, got %q (err=%v) — closing", sub.Type, err)
			return
		}

		outgoing := make(chan message, 16)
		done := make(chan struct{})

		// Reader: only pings arrive after subscribe.
		go func() {
			defer close(done)
			for {
				var m struct {
					Type string `json:"type"`
				}
				if err := conn.ReadJSON(&m); err != nil {
					return
				}
				if m.Type == "ping" {
					select {
					case outgoing <- message{Type: "pong"}:
					case <-done:
						return
					}
				}
			}
		}()

		outgoing <- message{Type: "subscription", Event: "init", Data: sim.snapshot()}

		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				log.Printf("client gone: %s", r.RemoteAddr)
				return
			case msg := <-outgoing:
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			case <-ticker.C:
				for _, rec := range sim.advance(tick) {
					msg := message{Type: "subscription", Event: "create", Data: []record{rec}}
					if err := conn.WriteJSON(msg); err != nil {
						return
					}
				}
			}
		}
	}
}

// serveItems mimics the registry endpoints so the monitor can run
// fully offline: two geofences around the simulated routes.
func serveItems(w http.ResponseWriter, r *http.Request) {
	var payload any
	switch r.URL.Path {
	case "/items/geofences":
		payload = map[string]any{"data": []map[string]any{
			{
				"geofence_id": "depot-zone",
				"name":        "Depot Zone",
				"rule_type":   "STAY_IN",
				"type":        "Circle",
				"definition": map[string]any{
					"type":   "Circle",
					"center": []float64{106.8295, -6.2297},
					"radius": 1500,
				},
			},
			{
				"geofence_id": "restricted-area",
				"name":        "Restricted Area",
				"rule_type":   "FORBIDDEN",
				"type":        "Polygon",
				"definition": map[string]any{
					"type": "Polygon",
					"coordinates": [][][]float64{{
						{106.8400, -6.2000},
						{106.8550, -6.2000},
						{106.8550, -6.1850},
						{106.8400, -6.1850},
						{106.8400, -6.2000},
					}},
				},
			},
		}}
	case "/items/vehicles":
		payload = map[string]any{"data": []map[string]any{
			{"vehicle_id": "B-1234-AB", "name": "Truck Alpha"},
			{"vehicle_id": "B-5678-CD", "name": "Truck Bravo"},
			{"vehicle_id": "B-9012-CD", "name": "Van Charlie"},
			{"vehicle_id": "B-3456-EF", "name": "Van Delta"},
		}}
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func main() {
	addr := simGetEnv("FEED_SIM_ADDR", ":8055")
	tick, err := time.ParseDuration(simGetEnv("FEED_SIM_TICK", "2s"))
	if err != nil {
		log.Fatalf("bad FEED_SIM_TICK: %v", err)
	}

	sim := newSimulator()
	mux := http.NewServeMux()
	mux.HandleFunc("/websocket", serveWS(sim, tick))
	mux.HandleFunc("/items/", serveItems)

	fmt.Printf("feed simulator listening on %s (tick %s)\n", addr, tick)
	fmt.Printf("  websocket: ws://localhost%s/websocket\n", addr)
	fmt.Printf("  registry:  http://localhost%s/items/geofences\n", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func simGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
