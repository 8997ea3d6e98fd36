package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingcheckapp "github.com/billingwatch/backend/internal/application/billingcheck"
	"github.com/billingwatch/backend/internal/domain/billingcheck"
	"github.com/billingwatch/backend/internal/infrastructure/auth"
	"github.com/billingwatch/backend/internal/infrastructure/billingstate"
	"github.com/billingwatch/backend/internal/infrastructure/cache"
	"github.com/billingwatch/backend/internal/infrastructure/config"
	"github.com/billingwatch/backend/internal/infrastructure/gcp"
	"github.com/billingwatch/backend/internal/infrastructure/lease"
	"github.com/billingwatch/backend/internal/infrastructure/logger"
	"github.com/billingwatch/backend/internal/infrastructure/scheduler"
	"github.com/billingwatch/backend/internal/infrastructure/session"
	"github.com/billingwatch/backend/internal/infrastructure/telemetry"
	"github.com/billingwatch/backend/internal/interfaces/http/handler"
	"github.com/billingwatch/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// Telemetry providers
	providers, err := telemetry.Setup(ctx, telemetry.ProvidersConfig{
		Enabled:               cfg.Telemetry.Enabled,
		CollectorEndpoint:     cfg.Telemetry.CollectorEndpoint,
		ServiceName:           cfg.Telemetry.ServiceName,
		Insecure:              cfg.Telemetry.Insecure,
		SamplingRatio:         cfg.Telemetry.SamplingRatio,
		MetricsExportInterval: cfg.Telemetry.MetricsExportInterval,
		LogsEnabled:           cfg.Telemetry.LogsEnabled,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	// Application logger, teed to the collector when log export is on
	log, err := logger.New(logCfg, logger.WithCore(providers.LogCore(logger.ParseLevel(cfg.Log.Level))))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting billing check worker",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("key_prefix", cfg.BillingCheck.KeyPrefix),
	)

	// Shared store
	store, err := cache.NewSharedStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.Store.AllowInMemoryFallback),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create shared store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing shared store", zap.Error(err))
		}
	}()

	// Billing check components
	keys := billingcheck.NewKeySpace(cfg.BillingCheck.KeyPrefix)
	exchange := session.NewCredentialExchange(store, keys, session.WithTTL(cfg.BillingCheck.SessionTTL))
	tracker := billingstate.NewTracker(store, keys, cfg.BillingCheck.StateTTL)

	checker, err := gcp.NewBillingAdapter(&gcp.BillingConfig{
		ResourceManagerURL: cfg.GCP.ResourceManagerURL,
		BillingURL:         cfg.GCP.BillingURL,
		MaxConcurrency:     cfg.GCP.MaxConcurrency,
		RequestTimeout:     cfg.GCP.RequestTimeout,
	}, gcp.WithAdapterLogger(log.Named("gcp")))
	if err != nil {
		log.Fatal("Invalid GCP billing configuration", zap.Error(err))
	}

	checkMetrics, err := telemetry.NewCheckMetrics(providers.Meter(telemetry.TracerName))
	if err != nil {
		log.Fatal("Failed to create check metrics", zap.Error(err))
	}

	checkService := billingcheckapp.NewCheckService(
		exchange,
		lease.NewExclusiveLease(store),
		tracker,
		checker,
		keys,
		billingcheckapp.WithLeaseTimeout(cfg.BillingCheck.LeaseTimeout),
		billingcheckapp.WithCheckMetrics(checkMetrics),
		billingcheckapp.WithCheckLogger(log.Named("billing_check")),
	)

	// Scheduler
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		QueueSize:         cfg.Scheduler.QueueSize,
		JobTimeout:        cfg.Scheduler.JobTimeout,
	}, scheduler.NewCheckExecutor(checkService, log), log.Named("scheduler"))

	schedCtx, cancelSched := context.WithCancel(ctx)
	defer cancelSched()
	if err := sched.Start(schedCtx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	requestService := billingcheckapp.NewRequestService(exchange, sched, log.Named("billing_check"))

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var pinger handler.StorePinger
	if p, ok := store.(handler.StorePinger); ok {
		pinger = p
	}

	engine := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		Logger:         log,
		Meter:          providers.Meter("http.server"),
		TracingEnabled: providers.TracingEnabled(),
		TokenValidator: auth.NewServiceTokenService(cfg.Auth),
		System:         handler.NewSystemHandler(cfg.App.Name, pinger, sched, log),
		BillingCheck:   handler.NewBillingCheckHandler(requestService),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting requests first, then drain queued checks
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error("Scheduler did not drain before deadline", zap.Error(err))
	}

	if err := providers.Shutdown(shutdownCtx); err != nil {
		bootLog.Error("Error shutting down telemetry", zap.Error(err))
	}

	log.Info("Worker exited gracefully")
}
