package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hackgods/carelink-scheduling/internal/config"
	"github.com/hackgods/carelink-scheduling/internal/db"
	"github.com/hackgods/carelink-scheduling/internal/events"
	"github.com/hackgods/carelink-scheduling/internal/logging"
	"github.com/hackgods/carelink-scheduling/internal/observability/metrics"
	"github.com/hackgods/carelink-scheduling/internal/observability/tracing"
)

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
	logger = logger.Named("event-relay")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(rootCtx, tracing.Config{
		ServiceName:  "carelink-event-relay",
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   cfg.TraceSampleRate,
	})
	if err != nil {
		logger.Fatal("tracing init error", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()

	pub, err := events.NewKafkaPublisher(events.KafkaConfig{Brokers: cfg.KafkaBrokers}, logger)
	if err != nil {
		logger.Fatal("kafka client error", zap.Error(err))
	}
	defer pub.Close()

	topicCtx, cancelTopic := context.WithTimeout(rootCtx, 15*time.Second)
	if err := pub.EnsureTopic(topicCtx, cfg.EventsTopic, 3, 1); err != nil {
		logger.Warn("ensure topic", zap.String("topic", cfg.EventsTopic), zap.Error(err))
	}
	cancelTopic()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// Metrics only; the relay has no other HTTP surface.
	metricsSrv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: metrics.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server", zap.Error(err))
		}
	}()

	relay := events.NewRelay(events.NewPgStore(pgPool), pub, events.RelayConfig{
		Topic:     cfg.EventsTopic,
		BatchSize: cfg.RelayBatch,
		Interval:  cfg.RelayInterval,
	}, m, logger)

	logger.Info("event relay running",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.EventsTopic),
	)
	relay.Run(rootCtx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("event relay stopped")
}
