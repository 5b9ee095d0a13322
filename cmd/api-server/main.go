package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hackgods/carelink-scheduling/internal/api"
	"github.com/hackgods/carelink-scheduling/internal/appointment"
	"github.com/hackgods/carelink-scheduling/internal/assistant"
	"github.com/hackgods/carelink-scheduling/internal/auth"
	"github.com/hackgods/carelink-scheduling/internal/config"
	"github.com/hackgods/carelink-scheduling/internal/db"
	"github.com/hackgods/carelink-scheduling/internal/logging"
	"github.com/hackgods/carelink-scheduling/internal/observability/metrics"
	"github.com/hackgods/carelink-scheduling/internal/observability/tracing"
	"github.com/hackgods/carelink-scheduling/internal/prescription"
	redisclient "github.com/hackgods/carelink-scheduling/internal/redis"
	"github.com/hackgods/carelink-scheduling/internal/schedule"
)

const (
	serviceName = "carelink-api"
	version     = "0.3.0"
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

	logger.Info("api-server starting up", zap.String("http_port", cfg.HTTPPort))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(rootCtx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
	})
	if err != nil {
		logger.Fatal("tracing init error", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 20, MinConns: 2})
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	applied, err := db.Migrate(rootCtx, pgPool)
	if err != nil {
		logger.Fatal("migration error", zap.Error(err))
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", zap.Strings("versions", applied))
	}

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	catalog, err := schedule.NewCatalog(cfg.SlotFirstHour, cfg.SlotLastHour, cfg.ClinicLocation)
	if err != nil {
		logger.Fatal("slot catalog error", zap.Error(err))
	}

	appointments := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		redisclient.NewRedisDayLocker(rdb, cfg.LockTTL),
		catalog,
		appointment.WithCache(redisclient.NewRedisCache(rdb, "carelink:"), cfg.DoctorCacheTTL),
		appointment.WithMetrics(m),
		appointment.WithLogger(logger.Named("appointment")),
	)
	prescriptions := prescription.NewService(prescription.NewPgRepository(pgPool), logger.Named("prescription"))

	var gen assistant.Generator
	if cfg.AIAPIKey != "" {
		gen = assistant.NewBreakerGenerator(assistant.NewGeminiClient(assistant.GeminiConfig{
			Endpoint: cfg.AIEndpoint,
			Model:    cfg.AIModel,
			APIKey:   cfg.AIAPIKey,
			Timeout:  cfg.AITimeout,
		}), assistant.BreakerConfig{}, logger.Named("assistant"))
	} else {
		logger.Warn("AI_API_KEY not set, assistant will serve fallback summaries only")
	}
	assist := assistant.NewService(gen, m, logger.Named("assistant"))

	router := api.NewRouter(api.RouterConfig{
		Appointments:  appointments,
		Prescriptions: prescriptions,
		Assistant:     assist,
		Verifier:      auth.NewVerifier(cfg.JWTSecret),
		Health: api.NewHealthHandler(cfg.Env, version,
			pgPool.Ping,
			func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		),
		Metrics:     metrics.Handler(reg),
		Logger:      logger,
		ServiceName: serviceName,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
