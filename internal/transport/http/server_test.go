package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/geofence/internal/auth"
	"fleet-monitor/geofence/internal/config"
	"fleet-monitor/geofence/internal/domain"
	"fleet-monitor/geofence/internal/notify"
	"fleet-monitor/geofence/internal/stream"
)

type nullGateway struct{}

func (nullGateway) SaveGeofenceEvent(ctx context.Context, ev domain.GeofenceEvent) error { return nil }
func (nullGateway) SaveAlert(ctx context.Context, n domain.Notification) error           { return nil }

func newTestServer(t *testing.T) (http.Handler, chan domain.GeofenceEvent, *notify.Manager) {
	t.Helper()
	cfg := &config.Config{
		StalenessWindow:     24 * time.Hour,
		SnapshotChannelSize: 8,
		AutoExpiry:          time.Minute,
		ReshowDelay:         time.Minute,
		GatewayTimeout:      time.Second,
		ValidAPIKeys:        []string{"test-key"},
	}

	notifier := notify.NewManager(cfg, nullGateway{}, nil)
	events := make(chan domain.GeofenceEvent, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		notifier.Run(ctx, events)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	srv := NewServer(stream.NewClient(cfg), notifier)
	authMw := NewAuthMiddleware(auth.NewAuthenticator(cfg, nil))
	return srv.Routes(authMw), events, notifier
}

func doRequest(t *testing.T, h http.Handler, method, path, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "geofence_messages_received_total")
}

func TestAPIRequiresKey(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/api/notifications", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/notifications", "wrong-key", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/notifications", "test-key", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareResolvesOperator(t *testing.T) {
	cfg := &config.Config{ValidAPIKeys: []string{"test-key"}, AuthCacheTTLSeconds: 300}
	mw := NewAuthMiddleware(auth.NewAuthenticator(cfg, nil))

	var seen string
	h := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = Operator(r.Context())
	}))

	rec := doRequest(t, h, http.MethodGet, "/api/notifications", "test-key", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.ConfigOperator, seen)

	// Outside the middleware the context carries no operator.
	assert.Empty(t, Operator(context.Background()))
}

func TestNotificationsEndpoint(t *testing.T) {
	h, events, _ := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/api/notifications", "test-key", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var empty struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Zero(t, empty.Count)

	events <- domain.GeofenceEvent{
		Type: domain.EventViolationEnter, VehicleID: "v1", VehicleName: "Truck Alpha",
		GeofenceID: "gf-1", GeofenceName: "Port Area", RuleType: domain.RuleForbidden,
		Timestamp: time.Now(),
	}

	require.Eventually(t, func() bool {
		rec := doRequest(t, h, http.MethodGet, "/api/notifications", "test-key", "")
		var got struct {
			Count int                   `json:"count"`
			Data  []domain.Notification `json:"data"`
		}
		if json.Unmarshal(rec.Body.Bytes(), &got) != nil || got.Count != 1 {
			return false
		}
		return got.Data[0].VehicleID == "v1" && got.Data[0].EventType == domain.EventViolationEnter
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDismissEndpoint(t *testing.T) {
	h, events, notifier := newTestServer(t)

	events <- domain.GeofenceEvent{
		Type: domain.EventViolationEnter, VehicleID: "v1",
		GeofenceID: "gf-1", RuleType: domain.RuleForbidden, Timestamp: time.Now(),
	}
	var id string
	require.Eventually(t, func() bool {
		visible := notifier.Visible()
		if len(visible) != 1 {
			return false
		}
		id = visible[0].ID
		return true
	}, 2*time.Second, 5*time.Millisecond)

	rec := doRequest(t, h, http.MethodPost, "/api/notifications/dismiss", "test-key", `{"notification_id":"`+id+`"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return len(notifier.Visible()) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDismissRejectsMissingID(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/api/notifications/dismiss", "test-key", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/notifications/dismiss", "test-key", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamStatusEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/api/stream/status", "test-key", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status stream.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, stream.StateDisconnected, status.State)
	assert.False(t, status.Terminal)
}

func TestReconnectEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/api/stream/reconnect", "test-key", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
