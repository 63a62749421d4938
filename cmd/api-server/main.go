package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clinicware/outpatient-queue/internal/api"
	"github.com/clinicware/outpatient-queue/internal/booking"
	"github.com/clinicware/outpatient-queue/internal/chat"
	"github.com/clinicware/outpatient-queue/internal/clinic"
	"github.com/clinicware/outpatient-queue/internal/config"
	"github.com/clinicware/outpatient-queue/internal/db"
	"github.com/clinicware/outpatient-queue/internal/observability/metrics"
	"github.com/clinicware/outpatient-queue/internal/queue"
	redisclient "github.com/clinicware/outpatient-queue/internal/redis"
	"github.com/clinicware/outpatient-queue/internal/report"
	"github.com/clinicware/outpatient-queue/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort, "version", version)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Error("redis connection error", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", "error", err)
		}
	}()
	logger.Info("connected to Redis")

	registry := prometheus.DefaultRegisterer

	clinicSvc := clinic.NewService(clinic.NewPgRepository(pgPool))
	bookingSvc := booking.NewService(
		booking.NewPgRepository(pgPool),
		redisclient.NewRedisSlotLocker(rdb, cfg.SlotLockTTL),
		metrics.NewBookingMetrics(registry),
		logger,
	)
	queueSvc := queue.NewService(queue.NewPgRepository(pgPool), metrics.NewQueueMetrics(registry), logger)
	reportSvc := report.NewService(pgPool)

	sessions := chat.NewSessionStore(cfg.SessionTTL, logger)
	go sessions.RunJanitor(rootCtx, cfg.SessionSweep)

	messenger := chat.NewClient(chat.ClientConfig{
		BaseURL:     cfg.ChatAPIBaseURL,
		AccessToken: cfg.ChatAccessToken,
		Logger:      logger,
	})
	machine := chat.NewMachine(sessions, messenger, clinicSvc, clinicSvc, clinicSvc, bookingSvc, queueSvc, logger)
	webhook := chat.NewWebhookHandler(
		machine,
		redisclient.NewRedisDeduper(rdb, cfg.WebhookDedupeTTL),
		cfg.ChatChannelSecret,
		metrics.NewChatMetrics(registry),
		logger,
	)

	router := api.NewRouter(api.RouterConfig{
		Clinic:  clinicSvc,
		Booking: bookingSvc,
		Queue:   queueSvc,
		Reports: reportSvc,
		Webhook: webhook,
		PgPool:  pgPool,
		Redis:   rdb,
		Logger:  logger,
		Env:     cfg.Env,
		Version: version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
