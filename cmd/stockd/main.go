// Command stockd runs the inventory engine daemon: it owns the stock
// ledger database and drives the reservation expiration and metrics
// rollup loops until interrupted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/carstock/carstock/pkg/application/scheduler"
	"github.com/carstock/carstock/pkg/application/services"
	"github.com/carstock/carstock/pkg/domain/repositories"
	"github.com/carstock/carstock/pkg/infrastructure/config"
	"github.com/carstock/carstock/pkg/infrastructure/repositories/memory"
	"github.com/carstock/carstock/pkg/infrastructure/repositories/sqlite"
)

type repoSet struct {
	cars         repositories.CarRepository
	warehouses   repositories.WarehouseRepository
	stocks       repositories.StockRepository
	reservations repositories.ReservationRepository
	jobs         repositories.JobExecutionRepository
	metrics      repositories.MetricsRepository
}

func main() {
	dbPath := flag.String("db", "", "sqlite database file (overrides CARSTOCK_DB_PATH)")
	logLevel := flag.String("log-level", "", "log level (overrides CARSTOCK_LOG_LEVEL)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("invalid log level")
	}
	log = log.Level(level)

	repos, cleanup, err := buildRepositories(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open storage")
	}
	defer cleanup()

	ledger := services.NewStockLedger(repos.stocks, repos.warehouses, repos.cars, log)
	manager := services.NewReservationManager(ledger, repos.reservations, repos.cars, repos.stocks, cfg.ReservationTTL, log)
	aggregator := services.NewMetricsAggregator(repos.cars, repos.stocks, repos.reservations, repos.metrics, log)
	alerts := services.NewAlertEngine(repos.cars, repos.stocks, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if summary, err := alerts.Alerts(ctx); err != nil {
		log.Warn().Err(err).Msg("startup stock health check failed")
	} else if len(summary.Alerts) > 0 {
		log.Warn().
			Int("critical", summary.CriticalCount).
			Int("warning", summary.WarningCount).
			Msg("startup stock health check found cars below reorder band")
	}

	sched := scheduler.New(repos.jobs, log)
	expiration := scheduler.NewExpirationJob(manager, repos.reservations, log)
	rollup := scheduler.NewMetricsJob(aggregator)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sched.RunLoop(ctx, expiration, cfg.ExpirationInterval, cfg.JobBudget)
	}()
	go func() {
		defer wg.Done()
		sched.RunLoop(ctx, rollup, cfg.MetricsInterval, cfg.JobBudget)
	}()

	log.Info().
		Str("db", cfg.DBPath).
		Dur("expiration_interval", cfg.ExpirationInterval).
		Dur("metrics_interval", cfg.MetricsInterval).
		Msg("stockd started")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	wg.Wait()
}

// buildRepositories selects the storage backend: sqlite when a database
// path is configured, in-memory otherwise.
func buildRepositories(cfg *config.Config, log zerolog.Logger) (*repoSet, func(), error) {
	if cfg.DBPath == "" {
		log.Warn().Msg("no database path configured, state will not survive restarts")
		return &repoSet{
			cars:         memory.NewCarRepository(),
			warehouses:   memory.NewWarehouseRepository(),
			stocks:       memory.NewStockRepository(),
			reservations: memory.NewReservationRepository(),
			jobs:         memory.NewJobExecutionRepository(),
			metrics:      memory.NewMetricsRepository(),
		}, func() {}, nil
	}

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return &repoSet{
		cars:         sqlite.NewCarRepository(db),
		warehouses:   sqlite.NewWarehouseRepository(db),
		stocks:       sqlite.NewStockRepository(db),
		reservations: sqlite.NewReservationRepository(db),
		jobs:         sqlite.NewJobExecutionRepository(db),
		metrics:      sqlite.NewMetricsRepository(db),
	}, func() { db.Close() }, nil
}
