// Package main is the entry point for the calendar sync server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/stayflow/backend/internal/api"
	"github.com/stayflow/backend/internal/conflict"
	"github.com/stayflow/backend/internal/config"
	"github.com/stayflow/backend/internal/feed"
	"github.com/stayflow/backend/internal/keylock"
	"github.com/stayflow/backend/internal/logger"
	"github.com/stayflow/backend/internal/projector"
	"github.com/stayflow/backend/internal/realtime"
	"github.com/stayflow/backend/internal/storage"
	"github.com/stayflow/backend/internal/workflow"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.HTTP.Addr); err != nil {
			fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}
	log.Info("starting calendar sync server", zap.String("version", version))

	// Database and migrations
	dbPath := cfg.Storage.DataDir + "/calendar-sync.db"
	db, err := storage.NewDB(dbPath)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := storage.RunMigrations(db, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Repositories
	bookings := storage.NewBookingRepository(db)
	jobs := storage.NewJobRepository(db)
	events := storage.NewEventRepository(db)
	conflicts := storage.NewConflictRepository(db)
	syncConfigs := storage.NewSyncConfigRepository(db)

	// Fan-out hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := realtime.NewHub(cfg.Realtime.BufferSize, cfg.HeartbeatInterval(), log)
	go hub.Run(hubCtx)
	broadcaster := realtime.NewBroadcaster(hub)

	// Core services
	locks := keylock.NewRegistry()
	proj := projector.New(events, cfg.Projector.MaxOccurrences, log)
	detector := conflict.NewDetector(bookings, events, jobs, conflicts, log)

	var notifier workflow.Notifier = workflow.NoopNotifier{}
	if cfg.Workflow.WebhookURL != "" {
		notifier = workflow.NewWebhookNotifier(cfg.Workflow.WebhookURL, log)
	}

	wf := workflow.New(bookings, jobs, conflicts, proj, detector, notifier, broadcaster, locks, workflow.Options{
		AutoJobType:        cfg.Workflow.AutoJobType,
		AutoJobDurationMin: cfg.Workflow.AutoJobDurationMin,
	}, log)

	// Feed ingestion
	fetcher := feed.NewFetcher(cfg.FetchTimeout(), cfg.Sync.FetchRetries, log)
	engine := feed.NewEngine(syncConfigs, bookings, fetcher, wf, locks,
		cfg.Sync.CheckinTime, cfg.Sync.CheckoutTime, log)

	scheduler := feed.NewScheduler(engine, syncConfigs, cfg.Sync.DefaultIntervalMin, log)
	if err := scheduler.Start(context.Background()); err != nil {
		log.Warn("failed to start sync scheduler", zap.Error(err))
	}

	// HTTP server
	router := api.NewRouter(api.Deps{
		DB:          db,
		Bookings:    bookings,
		Jobs:        jobs,
		Events:      events,
		Conflicts:   conflicts,
		SyncConfigs: syncConfigs,
		Workflow:    wf,
		Engine:      engine,
		Scheduler:   scheduler,
		Hub:         hub,
		StaticDir:   cfg.HTTP.StaticDir,
		Log:         log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	scheduler.Stop()
	stopHub()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server shutdown error", zap.Error(err))
	}

	log.Info("server stopped")
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return nil
}
