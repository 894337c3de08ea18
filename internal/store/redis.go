package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"fleet-monitor/geofence/internal/config"
	"fleet-monitor/geofence/internal/domain"
)

// RedisStore mirrors the latest-position table into Redis for the
// dashboard serving layer: a state hash and geo set per vehicle, plus
// pub/sub fan-out of positions and alerts. The core never reads any of it
// back.
type RedisStore struct {
	client  *redis.Client
	fleetID string
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, fleetID: cfg.FleetID}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// MirrorPosition writes one vehicle's latest state. Keys expire so a
// vehicle that stops reporting drops off the live map.
func (r *RedisStore) MirrorPosition(ctx context.Context, pos domain.VehiclePosition) error {
	stateData := map[string]interface{}{
		"vehicle_id": pos.VehicleID,
		"lat":        pos.Latitude,
		"lng":        pos.Longitude,
		"speed_kmh":  pos.SpeedKmh,
		"timestamp":  pos.Timestamp.Unix(),
		"source":     string(pos.Source),
	}

	pubPayload, err := json.Marshal(stateData)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	vehicleStateKey := fmt.Sprintf("vehicle:%s:state", pos.VehicleID)
	geoKey := fmt.Sprintf("fleet:%s:geo", r.fleetID)
	pubChannel := fmt.Sprintf("fleet:%s:positions", r.fleetID)

	pipe := r.client.Pipeline()

	pipe.HSet(ctx, vehicleStateKey, stateData)
	pipe.Expire(ctx, vehicleStateKey, 30*time.Second)
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      pos.VehicleID,
		Longitude: pos.Longitude,
		Latitude:  pos.Latitude,
	})
	pipe.Publish(ctx, pubChannel, pubPayload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// PublishAlert pushes a violation notification onto the fleet alert
// channel for live dashboard consumers.
func (r *RedisStore) PublishAlert(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	channel := fmt.Sprintf("fleet:%s:alerts", r.fleetID)
	return r.client.Publish(ctx, channel, payload).Err()
}

// GetAPIKey resolves an operator API key to its owner, empty when unknown.
func (r *RedisStore) GetAPIKey(ctx context.Context, apiKey string) (string, error) {
	key := fmt.Sprintf("operator:auth:%s", apiKey)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get api key failed: %w", err)
	}
	return val, nil
}

// RunMirror consumes position snapshots and mirrors each changed vehicle
// state, tracking the last written timestamp per vehicle so unchanged
// entries are not rewritten on every snapshot.
func (r *RedisStore) RunMirror(ctx context.Context, snapshots <-chan []domain.VehiclePosition) {
	lastWritten := make(map[string]int64)

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			for _, pos := range snap {
				ts := pos.Timestamp.UnixNano()
				if lastWritten[pos.VehicleID] == ts {
					continue
				}
				if err := r.MirrorPosition(ctx, pos); err != nil {
					log.Warn().Err(err).Str("vehicle_id", pos.VehicleID).Msg("Redis state mirror failed")
					continue
				}
				lastWritten[pos.VehicleID] = ts
			}
		}
	}
}
