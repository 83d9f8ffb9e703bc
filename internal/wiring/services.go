// Package wiring builds the domain services shared by the api, worker and cron binaries.
package wiring

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/coachledger-backend/internal/balance"
	"github.com/angelmondragon/coachledger-backend/internal/coaches"
	"github.com/angelmondragon/coachledger-backend/internal/commissions"
	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	"github.com/angelmondragon/coachledger-backend/internal/payouts"
	"github.com/angelmondragon/coachledger-backend/internal/sales"
	"github.com/angelmondragon/coachledger-backend/internal/settings"
	"github.com/angelmondragon/coachledger-backend/pkg/config"
	"github.com/angelmondragon/coachledger-backend/pkg/db"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
	"github.com/angelmondragon/coachledger-backend/pkg/metrics"
	"github.com/angelmondragon/coachledger-backend/pkg/payoutgateway"
	"github.com/angelmondragon/coachledger-backend/pkg/redis"
)

// Services holds every domain service plus the repositories the jobs read directly.
type Services struct {
	LedgerRepo  ledger.Repository
	CoachRepo   coaches.Repository
	Settings    settings.Service
	Ledger      ledger.Service
	Coaches     coaches.Service
	Commissions commissions.Engine
	Balance     balance.Service
	Payouts     payouts.Service
	Sales       sales.Service
	Metrics     *metrics.LedgerMetrics
}

// Build wires the services against the shared database and redis clients. Ledger
// metrics register on reg when it is non-nil.
func Build(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*Services, error) {
	if cfg == nil || logg == nil || dbClient == nil || redisClient == nil {
		return nil, fmt.Errorf("config, logger, database and redis are required")
	}
	ledgerMetrics := metrics.NewLedgerMetrics(reg)

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	coachRepo := coaches.NewRepository(dbClient.DB())

	settingsSvc, err := settings.NewService(settings.ServiceParams{
		Repo:     settings.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Logger:   logg,
		CacheTTL: cfg.Settings.CacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("settings service: %w", err)
	}

	ledgerSvc, err := ledger.NewService(ledgerRepo, dbClient, logg)
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	coachSvc, err := coaches.NewService(coachRepo, logg)
	if err != nil {
		return nil, fmt.Errorf("coach service: %w", err)
	}

	engine, err := commissions.NewEngine(commissions.EngineParams{
		Ledger:  ledgerRepo,
		Coaches: coachRepo,
		Logger:  logg,
		Metrics: ledgerMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("commission engine: %w", err)
	}

	balanceSvc, err := balance.NewService(ledgerRepo, settingsSvc)
	if err != nil {
		return nil, fmt.Errorf("balance service: %w", err)
	}

	gateway, err := payoutgateway.NewClient(cfg.Gateway)
	if err != nil {
		return nil, fmt.Errorf("payout gateway: %w", err)
	}
	locker, err := payouts.NewRedisLocker(redisClient, cfg.Payout.LockTTL, cfg.Payout.LockWait)
	if err != nil {
		return nil, fmt.Errorf("payout locker: %w", err)
	}
	payoutSvc, err := payouts.NewService(payouts.ServiceParams{
		Ledger:         ledgerRepo,
		Coaches:        coachRepo,
		Settings:       settingsSvc,
		Gateway:        gateway,
		Locker:         locker,
		Tx:             dbClient,
		Logger:         logg,
		Metrics:        ledgerMetrics,
		GatewayTimeout: cfg.Gateway.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("payout service: %w", err)
	}

	salesSvc, err := sales.NewService(sales.ServiceParams{
		Ledger:   ledgerRepo,
		Coaches:  coachRepo,
		Settings: settingsSvc,
		Engine:   engine,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("sales service: %w", err)
	}

	return &Services{
		LedgerRepo:  ledgerRepo,
		CoachRepo:   coachRepo,
		Settings:    settingsSvc,
		Ledger:      ledgerSvc,
		Coaches:     coachSvc,
		Commissions: engine,
		Balance:     balanceSvc,
		Payouts:     payoutSvc,
		Sales:       salesSvc,
		Metrics:     ledgerMetrics,
	}, nil
}
