package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "fleet_user"),
		dbGetEnv("DB_PASSWORD", "fleet_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "fleet_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to Postgres...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Postgres is running:\n  docker-compose up -d postgres", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	// Run all steps in order
	step1_events_table(ctx, conn)
	step2_alerts_table(ctx, conn)
	step3_indexes(ctx, conn)
	step4_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run ./cmd/geofence-monitor")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — geofence_events table
// ─────────────────────────────────────────────────────────────
func step1_events_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: geofence_events table ───────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS geofence_events (

			id               BIGSERIAL        PRIMARY KEY,

			-- Identity
			vehicle_id       TEXT             NOT NULL,
			geofence_id      TEXT             NOT NULL,

			-- Transition classification
			-- Must exactly match domain.EventType constants
			event            TEXT             NOT NULL,

			-- When the position that caused the transition was recorded
			event_timestamp  TIMESTAMPTZ      NOT NULL,

			-- Server receipt time — separate from the vehicle clock
			created_at       TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			CONSTRAINT chk_event CHECK (
				event IN ('enter', 'exit', 'violation_enter', 'violation_exit')
			)
		);
	`, "geofence_events table created")
}

// ─────────────────────────────────────────────────────────────
// Step 2 — vehicle_alerts table
// ─────────────────────────────────────────────────────────────
func step2_alerts_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: vehicle_alerts table ────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS vehicle_alerts (

			id               BIGSERIAL        PRIMARY KEY,

			vehicle_id       TEXT             NOT NULL,

			-- Only violations ever land here
			alert_type       TEXT             NOT NULL,

			-- Human-readable message shown in the notification feed
			alert_message    TEXT             NOT NULL,

			-- "lat, lng" string of the position that triggered the alert
			location         TEXT,

			timestamp        TIMESTAMPTZ      NOT NULL,
			created_at       TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			-- Operator acknowledgment — NULL means not yet acknowledged
			acknowledged_at  TIMESTAMPTZ,
			acknowledged_by  TEXT,

			CONSTRAINT chk_alert_type CHECK (
				alert_type IN ('violation_enter', 'violation_exit')
			)
		);
	`, "vehicle_alerts table created")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — Indexes
// ─────────────────────────────────────────────────────────────
func step3_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_events_vehicle_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_events_vehicle_time
				  ON geofence_events (vehicle_id, event_timestamp DESC);`,
			why: "query: event history for one vehicle",
		},
		{
			name: "idx_events_geofence_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_events_geofence_time
				  ON geofence_events (geofence_id, event_timestamp DESC);`,
			why: "query: all events on one geofence",
		},
		{
			name: "idx_alerts_vehicle",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_vehicle
				  ON vehicle_alerts (vehicle_id, created_at DESC);`,
			why: "query: alerts for one vehicle",
		},
		{
			name: "idx_alerts_unacknowledged",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_unacknowledged
				  ON vehicle_alerts (created_at DESC)
				  WHERE acknowledged_at IS NULL;`,
			why: "query: unacknowledged alerts only (partial index)",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 4 — Verify everything was created
// ─────────────────────────────────────────────────────────────
func step4_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: Verification ────────────────────────")

	tables := []string{"geofence_events", "vehicle_alerts"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	var indexCount int
	err := conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename IN ('geofence_events', 'vehicle_alerts')
		AND indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
