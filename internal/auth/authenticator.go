// Package auth resolves operator API keys to an operator identity for the
// audit trail. Keys come from two places: the static VALID_API_KEYS list
// (shared ops keys, no individual identity) and per-operator keys
// provisioned in Redis by scripts/seed_redis.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"fleet-monitor/geofence/internal/config"
	"fleet-monitor/geofence/internal/store"
)

// ConfigOperator is the identity reported for requests authenticated by a
// static config key.
const ConfigOperator = "config"

type cacheEntry struct {
	operatorID string
	expiresAt  time.Time
}

type Authenticator struct {
	localCache sync.Map
	redis      *store.RedisStore
	ttl        time.Duration
	staticKeys map[string]struct{}
}

// NewAuthenticator builds the key resolver. A nil redis store disables the
// provisioned-key level; only static keys authenticate then.
func NewAuthenticator(cfg *config.Config, redis *store.RedisStore) *Authenticator {
	staticKeys := make(map[string]struct{}, len(cfg.ValidAPIKeys))
	for _, k := range cfg.ValidAPIKeys {
		if k != "" {
			staticKeys[k] = struct{}{}
		}
	}

	return &Authenticator{
		redis:      redis,
		ttl:        time.Duration(cfg.AuthCacheTTLSeconds) * time.Second,
		staticKeys: staticKeys,
	}
}

// Authenticate resolves an API key to the operator behind it. The second
// return is false for unknown keys.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, bool) {
	if apiKey == "" {
		return "", false
	}
	if _, ok := a.staticKeys[apiKey]; ok {
		return ConfigOperator, true
	}

	if raw, ok := a.localCache.Load(apiKey); ok {
		entry := raw.(cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return entry.operatorID, true
		}
		a.localCache.Delete(apiKey)
	}

	if a.redis == nil {
		return "", false
	}
	operatorID, err := a.redis.GetAPIKey(ctx, apiKey)
	if err != nil {
		log.Warn().Err(err).Msg("Operator key lookup failed")
		return "", false
	}
	if operatorID == "" {
		return "", false
	}

	a.localCache.Store(apiKey, cacheEntry{
		operatorID: operatorID,
		expiresAt:  time.Now().Add(a.ttl),
	})
	return operatorID, true
}
