package gateway

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-monitor/geofence/internal/config"
	"fleet-monitor/geofence/internal/domain"
)

// PostgresGateway writes violation records straight into Postgres, for
// deployments without a Directus instance in front of the database.
type PostgresGateway struct {
	pool *pgxpool.Pool
}

func NewPostgresGateway(ctx context.Context, cfg *config.Config) (*PostgresGateway, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresGateway{pool: pool}, nil
}

func (g *PostgresGateway) Close() {
	g.pool.Close()
}

func (g *PostgresGateway) Ping(ctx context.Context) error {
	return g.pool.Ping(ctx)
}

func (g *PostgresGateway) SaveGeofenceEvent(ctx context.Context, event domain.GeofenceEvent) error {
	query := `
		INSERT INTO geofence_events
			(vehicle_id, geofence_id, event, event_timestamp, created_at)
		VALUES
			($1, $2, $3, $4, NOW())
	`
	_, err := g.pool.Exec(
		ctx,
		query,
		event.VehicleID,
		event.GeofenceID,
		string(event.Type),
		event.Timestamp,
	)
	if err != nil {
		return &domain.GatewayError{Record: "geofence_event", Err: err}
	}
	return nil
}

func (g *PostgresGateway) SaveAlert(ctx context.Context, n domain.Notification) error {
	query := `
		INSERT INTO vehicle_alerts
			(vehicle_id, alert_type, alert_message, location, timestamp, created_at)
		VALUES
			($1, $2, $3, $4, $5, NOW())
		ON CONFLICT DO NOTHING
	`
	_, err := g.pool.Exec(
		ctx,
		query,
		n.VehicleID,
		string(n.EventType),
		n.AlertMessage,
		n.Location,
		n.Timestamp,
	)
	if err != nil {
		return &domain.GatewayError{Record: "alert", Err: err}
	}
	return nil
}
