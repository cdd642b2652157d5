package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Dan9191/vehicle-valuation/internal/cache"
	"github.com/Dan9191/vehicle-valuation/internal/config"
	"github.com/Dan9191/vehicle-valuation/internal/handler"
	"github.com/Dan9191/vehicle-valuation/internal/integrations/gemini"
	"github.com/Dan9191/vehicle-valuation/internal/integrations/rc"
	"github.com/Dan9191/vehicle-valuation/internal/metrics"
	"github.com/Dan9191/vehicle-valuation/internal/repository"
	"github.com/Dan9191/vehicle-valuation/internal/service"
	"github.com/Dan9191/vehicle-valuation/internal/utils/email"
	"github.com/Dan9191/vehicle-valuation/internal/valuation"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	tuning, err := config.LoadValuationConfig(cfg.ValuationConfigPath, cfg.ValuationPreset)
	if err != nil {
		logger.Fatalf("Failed to load valuation config: %v", err)
	}
	engine, err := valuation.NewEngine(tuning, valuation.WithLogger(logger))
	if err != nil {
		logger.Fatalf("Failed to build valuation engine: %v", err)
	}
	logger.Infof("Valuation engine ready with policy %s (preset %s)", engine.PolicyName(), cfg.ValuationPreset)

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	ctx := context.Background()
	opts := []service.Option{service.WithMetrics(metrics.New(prometheus.DefaultRegisterer))}

	// Optional integrations
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		opts = append(opts, service.WithCache(cache.NewOracleCache(rdb, cfg.OracleCacheTTL, logger)))
	} else {
		logger.Warn("REDIS_ADDR not set, oracle estimates will not be cached")
	}
	if cfg.GeminiAPIKey != "" {
		oracle, err := gemini.NewOracle(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.OracleRPS, logger)
		if err != nil {
			logger.Fatalf("Failed to create price oracle: %v", err)
		}
		defer oracle.Close()
		opts = append(opts, service.WithOracle(oracle))
	} else {
		logger.Warn("GEMINI_API_KEY not set, valuations without market data use book value only")
	}
	if cfg.RCAPIToken != "" {
		opts = append(opts, service.WithRCLookup(rc.NewClient(cfg, logger)))
	}
	if sender := email.NewSender(cfg, logger); sender.Enabled() {
		opts = append(opts, service.WithNotifier(sender))
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, engine, logger, cfg, opts...)
	h := handler.NewHandler(svc, logger)

	// Background jobs
	c := cron.New()
	if err := svc.ScheduleJobs(c); err != nil {
		logger.Fatalf("Failed to schedule jobs: %v", err)
	}
	c.Start()
	defer c.Stop()

	// Setup router
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
