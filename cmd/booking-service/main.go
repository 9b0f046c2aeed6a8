package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wb-go/wbf/zlog"

	"roombooker/cmd/buildCFG"
	"roombooker/internal/api/api"
	"roombooker/internal/app"
	"roombooker/internal/clients"
	"roombooker/internal/mailer"
	"roombooker/internal/repo"
	"roombooker/internal/resilience"
	"roombooker/internal/roomlock"
	"roombooker/internal/service"
	"roombooker/internal/telemetry"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	cfg, err := buildCFG.Load("config.yaml", buildCFG.BookingService, &log)
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

	var bookings repo.BookingRepository = repo.NewMemoryBookingRepository()
	if database != nil {
		bookings, err = repo.NewBookingRepository(database.DB, &log)
		if err != nil {
			log.Fatal().Msgf("failed to initialize repository: %v", err)
		}
	}

	var locker roomlock.Locker = roomlock.NewLocal()
	var rdb *redis.Client
	if redisCfg := buildCFG.BuildRedisConfig(cfg); redisCfg.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", redisCfg.Addr).Msg("Redis ping failed")
		}
		locker = roomlock.NewRedis(rdb, redisCfg.LockTTL)
		log.Info().Str("addr", redisCfg.Addr).Msg("room locks held in Redis")
	}

	pub, err := app.NewPublisher(cfg, &log)
	if err != nil {
		log.Fatal().Msgf("Failed to connect to broker: %v", err)
	}

	resCfg, err := buildCFG.BuildResilienceConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build resilience config")
	}
	registry := resilience.NewRegistry(resCfg, &log)
	services, httpCfg := buildCFG.BuildServicesConfig(cfg)

	bookingService := service.NewBookingService(service.BookingDeps{
		Bookings: bookings,
		Rooms: clients.NewResilientRoomClient(
			clients.NewHTTPRoomClient(services.RoomURL, httpCfg), registry.Policy("room-service"),
		),
		Users: clients.NewResilientUserClient(
			clients.NewHTTPUserClient(services.UserURL, httpCfg), registry.Policy("user-service"),
		),
		Locker:    locker,
		Publisher: pub,
		Alerter:   mailer.New(buildCFG.BuildMailerConfig(cfg), &log),
		Log:       &log,
	})

	router := api.NewRouters(&api.Routers{
		ServiceName: buildCFG.BookingService,
		Bookings:    api.NewBookingHandler(bookingService, &log),
	})

	app.Serve(router, serverCfg.Port, &log,
		pub.Close,
		func() {
			if rdb != nil {
				_ = rdb.Close()
			}
		},
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
