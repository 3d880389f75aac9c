package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pulseboard/internal/alert"
	"pulseboard/internal/api"
	"pulseboard/internal/api/handlers"
	"pulseboard/internal/board"
	"pulseboard/internal/collector"
	"pulseboard/internal/external/binance"
	"pulseboard/internal/external/twitter"
	"pulseboard/internal/growth"
	"pulseboard/internal/scheduler"
	"pulseboard/internal/scheduler/jobs"
	"pulseboard/internal/score"
	"pulseboard/internal/tracker/store"
	"pulseboard/pkg/config"
	"pulseboard/pkg/database"
	"pulseboard/pkg/httputil"
	"pulseboard/pkg/logger"
	"pulseboard/pkg/metrics"
	"pulseboard/pkg/redis"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the collector loop and API server",
	Long: `Starts the full service: the collector loop, the REST API,
the websocket feed and the background scheduler.

This command:
- Fetches tracked accounts every tick
- Computes growth rates and popularity scores
- Publishes the leaderboard atomically
- Serves REST and websocket consumers

Endpoints:
  GET  /health                            - Health check
  GET  /api/leaderboard                   - Current leaderboard
  GET  /api/alerts                        - Alerts from the last tick
  GET  /api/accounts/{username}/history   - Follower history
  GET  /ws                                - Leaderboard push feed

Example:
  go run ./cmd/pulseboard serve
  go run ./cmd/pulseboard serve --port 8080`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	// Flags
	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Pulseboard Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override port if flag is set
	if servePort != "" {
		cfg.Port = servePort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port":     cfg.Port,
		"env":      cfg.Env,
		"accounts": len(cfg.Tracker.Accounts),
	}).Info("Initializing server")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	snapStore := store.NewPostgresStore(db.Pool)
	if err := snapStore.InitSchema(context.Background()); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	log.Info("Connected to database")

	// 4. Connect to Redis (optional, rate limiting only)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	rateLimiter := redis.NewRateLimiter(redisClient, "pulseboard")
	cache := redis.NewCache(redisClient, "pulseboard")

	// 5. Create external API clients
	twitterHTTP := httputil.New(cfg, log).
		WithUserAgent(cfg.Twitter.UserAgent).
		WithRateLimiter(rateLimiter, redis.TwitterRateLimit)
	twitterClient := twitter.NewClient(twitterHTTP, log, cfg.Twitter)

	var market collector.MarketProvider
	if cfg.Binance.Enabled {
		binanceHTTP := httputil.New(cfg, log).
			WithRateLimiter(rateLimiter, redis.BinanceRateLimit)
		market = binance.NewClient(binanceHTTP, log, cfg.Binance)
	}

	// 6. Create the compute pipeline
	calc := growth.NewCalculator(snapStore, cfg.Tracker.SpikeThreshold, cfg.Tracker.FastThreshold)
	scorer := score.NewEngine(cfg.Tracker.ReferenceAccount, cfg.Tracker.FollowerWeight, cfg.Tracker.EngagementWeight)
	alerts := alert.NewGenerator(cfg.Tracker.AlertThreshold)
	publisher := board.NewPublisher()

	// 7. Create the collector loop
	loop := collector.NewLoop(
		collector.Config{
			Accounts:     cfg.Tracker.Accounts,
			TickInterval: cfg.Tracker.TickInterval,
			FetchTimeout: cfg.Tracker.FetchTimeout,
			RetentionAge: cfg.Tracker.RetentionMaxAge,
		},
		twitterClient, market, snapStore, calc, scorer, alerts, publisher,
		collector.NewClock(), log,
	)

	// 8. Create handlers, websocket hub and router
	healthHandler := handlers.NewHealthHandler(db, publisher)
	leaderboardHandler := handlers.NewLeaderboardHandler(publisher, log)
	historyHandler := handlers.NewHistoryHandler(snapStore, cache, log)
	hub := api.NewHub(publisher, log)

	router := api.NewRouter(healthHandler, leaderboardHandler, historyHandler, hub, log)
	server := api.New(cfg, log, router)

	// 9. Create scheduler with background jobs
	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewLeaderboardExportJob(publisher, cfg.Tracker.ExportDir, log)); err != nil {
		return fmt.Errorf("register export job: %w", err)
	}
	if err := sched.AddJob(jobs.NewHistoryRetentionJob(snapStore, cfg.Tracker.RetentionMaxAge, log)); err != nil {
		return fmt.Errorf("register retention job: %w", err)
	}

	// 10. Start everything
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()

	go hub.Watch(ctx)

	sched.Start()

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Metrics endpoint on its own listener
	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metrics.Handler(),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	log.Info("Server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	if cfg.MetricsEnabled {
		fmt.Printf("   Metrics on http://localhost:%s/metrics\n", cfg.MetricsPort)
	}
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/leaderboard")
	fmt.Println("  GET  /api/alerts")
	fmt.Println("  GET  /api/accounts/{username}/history")
	fmt.Println("  GET  /ws")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	// Stop the loop and the scheduler, then drain HTTP
	cancel()
	<-loopDone
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
