package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/coachledger-backend/internal/cron"
	"github.com/angelmondragon/coachledger-backend/internal/wiring"
	"github.com/angelmondragon/coachledger-backend/pkg/bigquery"
	"github.com/angelmondragon/coachledger-backend/pkg/config"
	"github.com/angelmondragon/coachledger-backend/pkg/db"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
	"github.com/angelmondragon/coachledger-backend/pkg/metrics"
	"github.com/angelmondragon/coachledger-backend/pkg/migrate"
	"github.com/angelmondragon/coachledger-backend/pkg/redis"
)

func main() {
	jobName := flag.String("job", "", "run a single named job once and exit")
	once := flag.Bool("once", false, "run every job once and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	services, err := wiring.Build(cfg, logg, dbClient, redisClient, prometheus.DefaultRegisterer)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	registry, closeJobs, err := buildRegistry(context.Background(), cfg, logg, services, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}
	defer closeJobs()

	locker, err := cron.NewRedisLocker(redisClient, lockScope(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron locker", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locker:   locker,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	switch {
	case *jobName != "":
		logg.Info(logg.WithField(ctx, "job", *jobName), "running single cron job")
		if err := service.RunJob(ctx, *jobName); err != nil {
			logg.Error(ctx, "cron job failed", err)
			os.Exit(1)
		}
		return
	case *once:
		logg.Info(ctx, "running cron cycle once")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildRegistry registers the payout jobs and, when enabled, the BigQuery ledger export.
func buildRegistry(ctx context.Context, cfg *config.Config, logg *logger.Logger, services *wiring.Services, redisClient *redis.Client) (*cron.Registry, func(), error) {
	closer := func() {}

	monthly, err := cron.NewMonthlyPayoutJob(cron.MonthlyPayoutJobParams{
		Logger:   logg,
		Coaches:  services.CoachRepo,
		Balances: services.Balance,
		Settings: services.Settings,
		Payouts:  services.Payouts,
	})
	if err != nil {
		return nil, closer, fmt.Errorf("monthly payout job: %w", err)
	}

	reconcile, err := cron.NewPayoutReconcileJob(cron.PayoutReconcileJobParams{
		Logger:      logg,
		Payouts:     services.Payouts,
		BatchSize:   cfg.Payout.ReconcileBatchSize,
		MinAge:      cfg.Payout.ReconcileMinAge,
		Parallelism: cfg.Payout.ReconcileParallelism,
	})
	if err != nil {
		return nil, closer, fmt.Errorf("payout reconcile job: %w", err)
	}

	registry, err := cron.NewRegistry(monthly, reconcile)
	if err != nil {
		return nil, closer, err
	}
	if !cfg.BigQuery.Enabled {
		logg.Info(ctx, "bigquery ledger export disabled")
		return registry, closer, nil
	}

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return nil, closer, fmt.Errorf("bigquery client: %w", err)
	}
	closer = func() {
		if err := bqClient.Close(); err != nil {
			logg.Error(ctx, "error closing bigquery", err)
		}
	}
	export, err := cron.NewLedgerExportJob(cron.LedgerExportJobParams{
		Logger:     logg,
		Ledger:     services.LedgerRepo,
		Sink:       bqClient,
		Watermarks: redisClient,
	})
	if err != nil {
		closer()
		return nil, func() {}, fmt.Errorf("ledger export job: %w", err)
	}
	if err := registry.Register(export); err != nil {
		closer()
		return nil, func() {}, err
	}
	return registry, closer, nil
}

func lockScope(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
