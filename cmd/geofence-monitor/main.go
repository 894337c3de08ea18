package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fleet-monitor/geofence/internal/auth"
	"fleet-monitor/geofence/internal/config"
	"fleet-monitor/geofence/internal/containment"
	"fleet-monitor/geofence/internal/domain"
	"fleet-monitor/geofence/internal/gateway"
	"fleet-monitor/geofence/internal/notify"
	"fleet-monitor/geofence/internal/registry"
	"fleet-monitor/geofence/internal/store"
	"fleet-monitor/geofence/internal/stream"
	transporthttp "fleet-monitor/geofence/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Geometry source / vehicle registry.
	reg := registry.New(cfg)
	if err := reg.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial registry load failed, starting with an empty geofence set")
	}
	go reg.Run(ctx)

	// Persistence gateway.
	var gw notify.Gateway
	switch cfg.GatewayDriver {
	case "postgres":
		pg, err := gateway.NewPostgresGateway(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect postgres gateway")
		}
		defer pg.Close()
		gw = pg
	default:
		gw = gateway.NewDirectusGateway(cfg)
	}

	// Optional Redis mirror for the dashboard serving layer.
	var redisStore *store.RedisStore
	var sink notify.AlertSink
	if cfg.RedisAddr != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect redis")
		}
		defer redisStore.Close()
		sink = redisStore
	}

	// Ingestion channel → containment engine → notification manager.
	client := stream.NewClient(cfg)
	engine := containment.NewEngine(reg, cfg.EventChannelSize)
	notifier := notify.NewManager(cfg, gw, sink)

	dispatcher := stream.NewDispatcher(cfg.SnapshotChannelSize)
	engineSnapshots := dispatcher.Subscribe()
	var mirrorSnapshots <-chan []domain.VehiclePosition
	if redisStore != nil {
		mirrorSnapshots = dispatcher.Subscribe()
	}

	go client.Run(ctx)
	go dispatcher.Run(ctx, client.Snapshots())
	go engine.Run(ctx, engineSnapshots)
	go notifier.Run(ctx, engine.Events())
	if redisStore != nil {
		go redisStore.RunMirror(ctx, mirrorSnapshots)
	}

	go func() {
		err := <-client.Fatal()
		log.Error().Err(err).Msg("Position stream is permanently down, operator action required")
	}()

	// Operator API.
	authenticator := auth.NewAuthenticator(cfg, redisStore)
	server := transporthttp.NewServer(client, notifier)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Routes(transporthttp.NewAuthMiddleware(authenticator)),
	}
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("Operator API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("Shutting down")

	// Normal-closure close suppresses the reconnect path before anything
	// else stops.
	client.Close()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown did not finish cleanly")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
