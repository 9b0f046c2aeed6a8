package main

import (
	"context"
	"time"

	"github.com/wb-go/wbf/zlog"

	"roombooker/cmd/buildCFG"
	"roombooker/internal/api/api"
	"roombooker/internal/app"
	"roombooker/internal/clients"
	"roombooker/internal/repo"
	"roombooker/internal/resilience"
	"roombooker/internal/service"
	"roombooker/internal/telemetry"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	cfg, err := buildCFG.Load("config.yaml", buildCFG.ApprovalService, &log)
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

	var approvals repo.ApprovalRepository = repo.NewMemoryApprovalRepository()
	if database != nil {
		approvals, err = repo.NewApprovalRepository(database.DB, &log)
		if err != nil {
			log.Fatal().Msgf("failed to initialize repository: %v", err)
		}
	}

	resCfg, err := buildCFG.BuildResilienceConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build resilience config")
	}
	registry := resilience.NewRegistry(resCfg, &log)
	services, httpCfg := buildCFG.BuildServicesConfig(cfg)

	approvalService := service.NewApprovalService(service.ApprovalDeps{
		Approvals: approvals,
		Users: clients.NewResilientUserClient(
			clients.NewHTTPUserClient(services.UserURL, httpCfg), registry.Policy("user-service"),
		),
		Events: clients.NewResilientEventClient(
			clients.NewHTTPEventClient(services.EventURL, httpCfg), registry.Policy("event-service"),
		),
		Log: &log,
	})

	router := api.NewRouters(&api.Routers{
		ServiceName: buildCFG.ApprovalService,
		Approvals:   api.NewApprovalHandler(approvalService, &log),
	})

	app.Serve(router, serverCfg.Port, &log,
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
