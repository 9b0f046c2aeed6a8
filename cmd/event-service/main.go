package main

import (
	"context"
	"time"

	"github.com/wb-go/wbf/zlog"

	"roombooker/cmd/buildCFG"
	"roombooker/internal/api/api"
	"roombooker/internal/app"
	"roombooker/internal/clients"
	rabbitReader "roombooker/internal/consumerWorker"
	"roombooker/internal/repo"
	"roombooker/internal/resilience"
	"roombooker/internal/service"
	"roombooker/internal/telemetry"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	cfg, err := buildCFG.Load("config.yaml", buildCFG.EventService, &log)
	if err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	tel, err := telemetry.Init(context.Background(), buildCFG.BuildTelemetryConfig(cfg), &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init telemetry")
	}

	dbCfg, err := buildCFG.BuildDBConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	database, err := app.OpenDatabase(dbCfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	var events repo.EventRepository = repo.NewMemoryEventRepository()
	if database != nil {
		events, err = repo.NewEventRepository(database.DB, &log)
		if err != nil {
			log.Fatal().Msgf("failed to initialize repository: %v", err)
		}
	}

	sub, err := app.NewSubscriber(cfg, &log)
	if err != nil {
		log.Fatal().Msgf("Failed to connect to broker: %v", err)
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	registrar := rabbitReader.NewReader(sub, events, &log)
	registrar.Start(workerCtx)

	resCfg, err := buildCFG.BuildResilienceConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build resilience config")
	}
	registry := resilience.NewRegistry(resCfg, &log)
	services, httpCfg := buildCFG.BuildServicesConfig(cfg)

	eventService := service.NewEventService(service.EventDeps{
		Events: events,
		Users: clients.NewResilientUserClient(
			clients.NewHTTPUserClient(services.UserURL, httpCfg), registry.Policy("user-service"),
		),
		Rooms: clients.NewResilientRoomClient(
			clients.NewHTTPRoomClient(services.RoomURL, httpCfg), registry.Policy("room-service"),
		),
		Bookings: clients.NewResilientBookingClient(
			clients.NewHTTPBookingClient(services.BookingURL, httpCfg), registry.Policy("booking-service"),
		),
		Log: &log,
	})

	router := api.NewRouters(&api.Routers{
		ServiceName: buildCFG.EventService,
		Events:      api.NewEventHandler(eventService, &log),
	})

	app.Serve(router, serverCfg.Port, &log,
		func() {
			cancelWorkers()
			registrar.Stop()
		},
		sub.Close,
		database.Close,
		func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("failed to flush traces")
			}
		},
	)
}
