package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/code-100-precent/LingCRM/cmd/bootstrap"
	handlers "github.com/code-100-precent/LingCRM/internal/handler"
	"github.com/code-100-precent/LingCRM/internal/listeners"
	"github.com/code-100-precent/LingCRM/internal/task"
	"github.com/code-100-precent/LingCRM/pkg/cache"
	"github.com/code-100-precent/LingCRM/pkg/config"
	"github.com/code-100-precent/LingCRM/pkg/events"
	"github.com/code-100-precent/LingCRM/pkg/logger"
	"github.com/code-100-precent/LingCRM/pkg/metrics"
	"github.com/code-100-precent/LingCRM/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 1. Parse Command Line Parameters
	mode := flag.String("mode", "", "running environment (development, test, production)")
	initSQL := flag.String("init-sql", "", "path to database init .sql script (optional)")
	rulesFile := flag.String("rules", "", "YAML file with phone lines and routing rules to import (optional)")
	migrate := flag.Bool("migrate", true, "migrate database entities on startup")
	flag.Parse()

	// 2. Set Environment Variables
	if *mode != "" {
		os.Setenv("APP_ENV", *mode)
	}

	// 3. Load Global Configuration
	if err := config.Load(); err != nil {
		panic("config load failed: " + err.Error())
	}
	cfg := config.GlobalConfig
	if *rulesFile == "" {
		*rulesFile = cfg.SeedRulesFile
	}

	// 4. Load Log Configuration
	if err := logger.Init(&cfg.Log, cfg.Mode); err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.Info("checked config",
		zap.String("addr", cfg.Addr),
		zap.String("db-driver", cfg.DBDriver),
		zap.String("mode", cfg.Mode),
		zap.String("cache", cfg.Cache.Type),
		zap.Bool("api-key", cfg.APISecretKey != ""))

	// 5. Load Data Source
	db, err := bootstrap.SetupDatabase(os.Stdout, &bootstrap.Options{
		InitSQLPath: *initSQL,
		AutoMigrate: *migrate,
		SeedNonProd: os.Getenv("APP_ENV") != "production",
		RulesFile:   *rulesFile,
	})
	if err != nil {
		logger.Error("database setup failed", zap.Error(err))
		return
	}

	// 6. Load Global Cache
	if err := cache.InitGlobalCache(cfg.Cache); err != nil {
		logger.Error("failed to initialize cache", zap.Error(err))
		logger.Info("falling back to default local cache")
	}
	defer cache.CloseGlobalCache()

	// 7. New App
	m := metrics.NewMetrics()
	bus := events.GetEventBus()
	app := handlers.NewHandlers(db, cache.GetGlobalCache(), bus, m)

	// 8. Initialize System Listener
	listeners.InitSystemListeners(db, bus)

	// 9. Start Timed task
	scheduler, err := task.StartScheduler(db, app.RuleCache(), bus, cfg)
	if err != nil {
		logger.Error("failed to start scheduled tasks", zap.Error(err))
		return
	}

	// 10. Initialize Gin Routing
	if cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.Use(middleware.RequestID())
	r.Use(metrics.MonitorMiddleware(m))
	r.Use(middleware.LoggerMiddleware(zap.L()))

	// 11. Register Routes
	app.Register(r)

	// 12. Start HTTP Server
	httpServer := &http.Server{
		Addr:           cfg.Addr,
		Handler:        r,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server run failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	<-scheduler.Stop().Done()
	bus.Drain()
}
