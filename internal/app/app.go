// Package app holds the process wiring shared by the three service binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"

	"roombooker/cmd/buildCFG"
	"roombooker/internal/broker"
	"roombooker/internal/kafka"
	"roombooker/internal/rabbit"
	"roombooker/internal/repo"
)

const shutdownTimeout = 10 * time.Second

// Database is an open Postgres connection with the service's migrations applied.
type Database struct {
	DB       *dbpg.DB
	migrator *repo.Migrator
	dir      string
	rollback bool
	log      *zerolog.Logger
}

// OpenDatabase connects and migrates. It returns nil for the memory driver.
func OpenDatabase(cfg buildCFG.DBConfig, log *zerolog.Logger) (*Database, error) {
	if cfg.Driver == buildCFG.DriverMem {
		log.Warn().Msg("using in-memory storage, data is lost on exit")
		return nil, nil
	}

	db, err := dbpg.New(cfg.MasterDSN, cfg.SlaveDSNs, cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("DB ping failed: %w", err)
	}
	log.Info().Msg("Database connected successfully")

	m, err := repo.NewMigrator(db, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}
	dir := cfg.MigrationsDir
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("cannot get working directory: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}
	if err := m.MigrateUp(dir); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	log.Info().Str("dir", dir).Msg("Migrations applied successfully")

	return &Database{DB: db, migrator: m, dir: dir, rollback: cfg.RollbackOnExit, log: log}, nil
}

func (d *Database) Close() {
	if d == nil {
		return
	}
	if d.rollback {
		d.log.Info().Msg("Rolling back migrations...")
		if err := d.migrator.MigrateDown(d.dir); err != nil {
			d.log.Error().Err(err).Msg("failed to rollback migrations")
		}
	}
	if err := d.DB.Master.Close(); err != nil {
		d.log.Error().Err(err).Msg("failed to close DB")
	}
}

// NewPublisher connects the producing side of the booking channel.
func NewPublisher(cfg *config.Config, log *zerolog.Logger) (broker.Publisher, error) {
	kind, err := buildCFG.BuildBrokerKind(cfg)
	if err != nil {
		return nil, err
	}
	if kind == buildCFG.BrokerKafka {
		kc, err := buildCFG.BuildKafkaConfig(cfg, log)
		if err != nil {
			return nil, err
		}
		return kafka.NewProducer(kc, log)
	}
	rc, err := buildCFG.BuildRabbitConfig(cfg, log)
	if err != nil {
		return nil, err
	}
	// The queue is declared on the producing side as well, so bookings published before the
	// registrar first connects are kept.
	return rabbit.NewRabbit(rc, log)
}

// NewSubscriber connects the consuming side of the booking channel.
func NewSubscriber(cfg *config.Config, log *zerolog.Logger) (broker.Subscriber, error) {
	kind, err := buildCFG.BuildBrokerKind(cfg)
	if err != nil {
		return nil, err
	}
	if kind == buildCFG.BrokerKafka {
		kc, err := buildCFG.BuildKafkaConfig(cfg, log)
		if err != nil {
			return nil, err
		}
		return kafka.NewConsumer(kc, log)
	}
	rc, err := buildCFG.BuildRabbitConfig(cfg, log)
	if err != nil {
		return nil, err
	}
	if rc.Queue == "" {
		return nil, errors.New("rabbit.queue is required to consume")
	}
	return rabbit.NewRabbit(rc, log)
}

// Serve runs handler on port until SIGINT/SIGTERM or a server error, then shuts the server down.
// onStop runs after the server stopped accepting requests, in order.
func Serve(handler http.Handler, port string, log *zerolog.Logger, onStop ...func()) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Msgf("Server error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Msgf("Error shutting down server: %v", err)
	}

	for _, stop := range onStop {
		stop()
	}
	log.Info().Msg("Shutdown complete")
}
