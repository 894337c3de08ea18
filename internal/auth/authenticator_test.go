package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"fleet-monitor/geofence/internal/config"
)

func TestAuthenticateStaticKeys(t *testing.T) {
	a := NewAuthenticator(&config.Config{
		ValidAPIKeys:        []string{"ops-key", "", "dashboard-key"},
		AuthCacheTTLSeconds: 300,
	}, nil)

	ctx := context.Background()

	// Static keys are shared ops keys; they resolve to the config identity.
	op, ok := a.Authenticate(ctx, "ops-key")
	assert.True(t, ok)
	assert.Equal(t, ConfigOperator, op)

	_, ok = a.Authenticate(ctx, "dashboard-key")
	assert.True(t, ok)

	_, ok = a.Authenticate(ctx, "unknown-key")
	assert.False(t, ok)

	// Empty entries from a trailing comma never become valid keys.
	_, ok = a.Authenticate(ctx, "")
	assert.False(t, ok)
}

func TestAuthenticateWithoutRedis(t *testing.T) {
	a := NewAuthenticator(&config.Config{AuthCacheTTLSeconds: 300}, nil)

	// No static keys and no provisioned-key level: everything is rejected.
	_, ok := a.Authenticate(context.Background(), "anything")
	assert.False(t, ok)
}
