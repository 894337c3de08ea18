package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file — using system environment variables")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisGetEnv("REDIS_ADDR", "localhost:6379"),
		Password: redisGetEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer client.Close()

	ctx := context.Background()

	fmt.Println("Connecting to Redis...")
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Redis is running:\n  docker-compose up -d redis", err)
	}
	fmt.Println("✓ Connected")

	step1_operator_keys(ctx, client)
	step2_verify(ctx, client)

	fmt.Println("\n✅ Redis seeded successfully")
	fmt.Println("   Run next: go run ./cmd/geofence-monitor")
}

func step1_operator_keys(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 1: Seeding operator API keys ───────────")

	// Key pattern: operator:auth:{api_key} → operator_id
	// This is what authenticator.go looks up when the static
	// VALID_API_KEYS list does not match.
	// TTL = 0 means permanent — these never expire
	apiKeys := map[string]string{
		"operator:auth:ops_dispatch_key":  "ops_dispatch",
		"operator:auth:ops_security_key":  "ops_security",
		"operator:auth:ops_dashboard_key": "ops_dashboard",
		"operator:auth:test_key":          "test_operator",
	}

	for key, operatorID := range apiKeys {
		err := client.Set(ctx, key, operatorID, 0).Err()
		if err != nil {
			log.Fatalf("Failed to set key %s: %v", key, err)
		}
		fmt.Printf("  ✓ %-40s → %s\n", key, operatorID)
	}
}

func step2_verify(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 2: Verification ────────────────────────")

	// Check all keys exist
	keys, err := client.Keys(ctx, "operator:auth:*").Result()
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}
	fmt.Printf("  ✓ %d API keys found in Redis\n", len(keys))

	// Spot check one key
	val, err := client.Get(ctx, "operator:auth:test_key").Result()
	if err != nil {
		log.Fatalf("Spot check failed: %v", err)
	}
	fmt.Printf("  ✓ spot check: operator:auth:test_key → %s\n", val)
}

func redisGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
