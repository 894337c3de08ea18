package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8002", cfg.HTTPPort)
	assert.Equal(t, "vehicle_datas", cfg.FeedCollection)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 5*time.Second, cfg.ReconnectBase)
	assert.Equal(t, 1.5, cfg.ReconnectMultiplier)
	assert.Equal(t, 30*time.Second, cfg.ReconnectMaxInterval)
	assert.Equal(t, 10, cfg.ReconnectMaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.StalenessWindow)
	assert.Equal(t, 10*time.Second, cfg.AutoExpiry)
	assert.Equal(t, 10*time.Second, cfg.ReshowDelay)
	assert.Equal(t, "directus", cfg.GatewayDriver)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "3")
	t.Setenv("RECONNECT_MULTIPLIER", "2.0")
	t.Setenv("STALENESS_WINDOW", "1h")
	t.Setenv("VALID_API_KEYS", "key-a,key-b")

	cfg := Load()
	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, 3, cfg.ReconnectMaxAttempts)
	assert.Equal(t, 2.0, cfg.ReconnectMultiplier)
	assert.Equal(t, time.Hour, cfg.StalenessWindow)
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.ValidAPIKeys)
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "lots")
	t.Setenv("HEARTBEAT_INTERVAL", "soonish")
	t.Setenv("RECONNECT_MULTIPLIER", "fast")

	cfg := Load()
	assert.Equal(t, 10, cfg.ReconnectMaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 1.5, cfg.ReconnectMultiplier)
}
