package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/carelink-scheduling/internal/appointment"
	"github.com/hackgods/carelink-scheduling/internal/config"
	"github.com/hackgods/carelink-scheduling/internal/db"
	"github.com/hackgods/carelink-scheduling/internal/logging"
	"github.com/hackgods/carelink-scheduling/internal/schedule"
)

// sweepLimit bounds the appointments cancelled in one run; a backlog drains
// over consecutive ticks.
const sweepLimit = 500

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("expiry-worker")

	logger.Info("expiry worker starting up",
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Duration("grace", cfg.LapseGrace),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	catalog, err := schedule.NewCatalog(cfg.SlotFirstHour, cfg.SlotLastHour, cfg.ClinicLocation)
	if err != nil {
		logger.Fatal("slot catalog error", zap.Error(err))
	}

	// The sweep only cancels, so it needs no booking lock.
	svc := appointment.NewService(appointment.NewPgRepository(pgPool), nil, catalog, appointment.WithLogger(logger))

	// Run once at startup
	runOnce(rootCtx, svc, cfg.LapseGrace, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.LapseGrace, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, grace time.Duration, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.CancelLapsed(runCtx, start, grace, sweepLimit)
	if err != nil {
		logger.Error("expiry run error", zap.Error(err), zap.Int("cancelled", n))
		return
	}
	logger.Info("expiry run complete", zap.Int("cancelled", n), zap.Duration("took", time.Since(start)))
}
