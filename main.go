package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/insightqa/insight-engine/pkg/config"
	"github.com/insightqa/insight-engine/pkg/database"
	"github.com/insightqa/insight-engine/pkg/detect"
	"github.com/insightqa/insight-engine/pkg/handlers"
	"github.com/insightqa/insight-engine/pkg/logging"
	"github.com/insightqa/insight-engine/pkg/metrics"
	"github.com/insightqa/insight-engine/pkg/middleware"
	"github.com/insightqa/insight-engine/pkg/repositories"
	"github.com/insightqa/insight-engine/pkg/services"
	"github.com/insightqa/insight-engine/pkg/services/workqueue"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.Database.Database),
		zap.Int("detection_workers", cfg.Detection.Workers),
		zap.Int("detection_queue_size", cfg.Detection.QueueSize))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:             cfg.Database.URL(),
		MaxConnections:  cfg.Database.MaxConnections,
		MaxConnLifetime: time.Duration(cfg.Database.ConnMaxLifetimeMinutes) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.Database.ConnMaxIdleMinutes) * time.Minute,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Repositories
	timingRepo := repositories.NewTimingRepository(db)
	patternRepo := repositories.NewPatternRepository(db)
	alertRepo := repositories.NewAlertRepository(db)

	// Services
	alertService := services.NewAlertService(alertRepo, patternRepo, m, logger)
	patternService := services.NewPatternService(patternRepo)
	matcher := services.NewRecurrenceMatcher(patternRepo, logger)
	detectionService := services.NewDetectionService(
		timingRepo, patternRepo, alertService, matcher,
		services.DetectionOptions{
			Params: detect.Params{
				ExcessRatio:             cfg.Detection.StepExcessRatio,
				CriticalRatio:           cfg.Detection.CriticalRatio,
				TrendSamples:            cfg.Detection.TrendSampleCount,
				TrendMinIncreasePercent: cfg.Detection.TrendMinIncreasePercent,
			},
			CohortWindow: time.Duration(cfg.Detection.CohortWindowDays) * 24 * time.Hour,
			RuleTimeout:  time.Duration(cfg.Detection.RuleTimeoutSeconds) * time.Second,
		},
		m, logger)

	queue := workqueue.New(cfg.Detection.QueueSize, cfg.Detection.Workers,
		func(jobCtx context.Context, job workqueue.Job) {
			if _, err := detectionService.AnalyzeUnit(jobCtx, job.UnitID); err != nil {
				logger.Warn("Detection run finished with errors",
					zap.String("unit_id", job.UnitID),
					zap.Error(err))
			}
		}, m, logger)
	// Workers get their own context so draining jobs survive the signal;
	// the shutdown deadline below still bounds them.
	queue.Start(context.Background())

	go runReconcileSweep(ctx, alertService,
		time.Duration(cfg.Detection.SweepIntervalMinutes)*time.Minute, logger)

	// HTTP routes
	mux := http.NewServeMux()
	handlers.NewHealthHandler(db, cfg.Version, logger).RegisterRoutes(mux)
	handlers.NewPatternHandler(patternService, logger).RegisterRoutes(mux)
	handlers.NewAlertHandler(alertService, logger).RegisterRoutes(mux)
	handlers.NewDetectionHandler(queue, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting insight-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	// Stop taking new jobs and let workers drain before the HTTP server
	// closes, so in-flight detections finish writing.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := queue.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Queue did not drain before deadline", zap.Error(err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger)
}

// runReconcileSweep periodically re-generates alerts for patterns that lost
// theirs between pattern insert and alert insert.
func runReconcileSweep(ctx context.Context, alerts services.AlertService, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := alerts.ReconcileMissingAlerts(ctx); err != nil {
				logger.Warn("Reconcile sweep failed", zap.Error(err))
			}
		}
	}
}
