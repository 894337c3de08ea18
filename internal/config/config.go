package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP
	HTTPPort string

	// Position feed
	FeedURL            string
	FeedCollection     string
	FeedSubscribeLimit int
	FeedSubscribeSort  string
	HeartbeatInterval  time.Duration

	// Reconnect policy
	ReconnectBase        time.Duration
	ReconnectMultiplier  float64
	ReconnectMaxInterval time.Duration
	ReconnectMaxAttempts int

	// Freshness policy
	StalenessWindow time.Duration

	// Notification lifecycle
	AutoExpiry  time.Duration
	ReshowDelay time.Duration

	// Persistence gateway
	GatewayDriver  string // "directus" or "postgres"
	GatewayTimeout time.Duration
	DirectusURL    string
	DirectusToken  string

	// Postgres (postgres gateway driver)
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Registry (geometry source / vehicle registry)
	RegistryURL     string
	RegistryToken   string
	RegistryRefresh time.Duration

	// Redis (dashboard state mirror; disabled when addr is empty)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	FleetID       string

	// Pipeline channels
	SnapshotChannelSize int
	EventChannelSize    int

	// Auth
	AuthCacheTTLSeconds int
	ValidAPIKeys        []string

	LogLevel string
}

func Load() *Config {
	return &Config{
		HTTPPort:             getEnv("HTTP_PORT", "8002"),
		FeedURL:              getEnv("FEED_WS_URL", "wss://localhost:8055/websocket"),
		FeedCollection:       getEnv("FEED_COLLECTION", "vehicle_datas"),
		FeedSubscribeLimit:   getEnvInt("FEED_SUBSCRIBE_LIMIT", 500),
		FeedSubscribeSort:    getEnv("FEED_SUBSCRIBE_SORT", "-timestamp"),
		HeartbeatInterval:    getEnvDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		ReconnectBase:        getEnvDuration("RECONNECT_BASE", 5*time.Second),
		ReconnectMultiplier:  getEnvFloat("RECONNECT_MULTIPLIER", 1.5),
		ReconnectMaxInterval: getEnvDuration("RECONNECT_MAX_INTERVAL", 30*time.Second),
		ReconnectMaxAttempts: getEnvInt("RECONNECT_MAX_ATTEMPTS", 10),
		StalenessWindow:      getEnvDuration("STALENESS_WINDOW", 24*time.Hour),
		AutoExpiry:           getEnvDuration("NOTIFY_AUTO_EXPIRY", 10*time.Second),
		ReshowDelay:          getEnvDuration("NOTIFY_RESHOW_DELAY", 10*time.Second),
		GatewayDriver:        getEnv("GATEWAY_DRIVER", "directus"),
		GatewayTimeout:       getEnvDuration("GATEWAY_TIMEOUT", 3*time.Second),
		DirectusURL:          getEnv("DIRECTUS_URL", "http://localhost:8055"),
		DirectusToken:        getEnv("DIRECTUS_TOKEN", ""),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "5432"),
		DBUser:               getEnv("DB_USER", "fleet_user"),
		DBPassword:           getEnv("DB_PASSWORD", "fleet_password"),
		DBName:               getEnv("DB_NAME", "fleet_monitor"),
		DBMaxConns:           int32(getEnvInt("DB_MAX_CONNS", 5)),
		RegistryURL:          getEnv("REGISTRY_URL", "http://localhost:8055"),
		RegistryToken:        getEnv("REGISTRY_TOKEN", ""),
		RegistryRefresh:      getEnvDuration("REGISTRY_REFRESH_INTERVAL", time.Minute),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		FleetID:              getEnv("FLEET_ID", "default"),
		SnapshotChannelSize:  getEnvInt("SNAPSHOT_CHANNEL_SIZE", 64),
		EventChannelSize:     getEnvInt("EVENT_CHANNEL_SIZE", 1024),
		AuthCacheTTLSeconds:  getEnvInt("AUTH_CACHE_TTL_SECONDS", 300),
		ValidAPIKeys:         strings.Split(getEnv("VALID_API_KEYS", ""), ","),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
