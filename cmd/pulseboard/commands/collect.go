package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pulseboard/internal/alert"
	"pulseboard/internal/board"
	"pulseboard/internal/collector"
	"pulseboard/internal/external/binance"
	"pulseboard/internal/external/twitter"
	"pulseboard/internal/growth"
	"pulseboard/internal/score"
	"pulseboard/internal/tracker"
	"pulseboard/internal/tracker/store"
	"pulseboard/pkg/config"
	"pulseboard/pkg/database"
	"pulseboard/pkg/httputil"
	"pulseboard/pkg/logger"
	"pulseboard/pkg/redis"
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run a single collection tick",
	Long: `Fetches every tracked account once, stores the snapshots and
prints the resulting leaderboard.

Useful for seeding history or checking the pipeline without
starting the full server.

Example:
  go run ./cmd/pulseboard collect`,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Pulseboard Collection Tick ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

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

	// 4. Connect to Redis (optional)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	rateLimiter := redis.NewRateLimiter(redisClient, "pulseboard")

	// 5. Create external clients and the pipeline
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

	calc := growth.NewCalculator(snapStore, cfg.Tracker.SpikeThreshold, cfg.Tracker.FastThreshold)
	scorer := score.NewEngine(cfg.Tracker.ReferenceAccount, cfg.Tracker.FollowerWeight, cfg.Tracker.EngagementWeight)
	alerts := alert.NewGenerator(cfg.Tracker.AlertThreshold)
	publisher := board.NewPublisher()
	clock := collector.NewClock()

	loop := collector.NewLoop(
		collector.Config{
			Accounts:     cfg.Tracker.Accounts,
			TickInterval: cfg.Tracker.TickInterval,
			FetchTimeout: cfg.Tracker.FetchTimeout,
			RetentionAge: cfg.Tracker.RetentionMaxAge,
		},
		twitterClient, market, snapStore, calc, scorer, alerts, publisher,
		clock, log,
	)

	// 6. Run one tick
	fmt.Printf("\nFetching %d accounts...\n\n", len(cfg.Tracker.Accounts))
	start := time.Now()

	if err := loop.Tick(context.Background(), clock.Now()); err != nil {
		return fmt.Errorf("collection tick failed: %w", err)
	}

	snap := publisher.Current()
	if snap == nil {
		return fmt.Errorf("no leaderboard produced")
	}

	// 7. Print the leaderboard
	printLeaderboard(snap)

	fmt.Println()
	PrintSuccess(fmt.Sprintf("Tick completed in %.2fs", time.Since(start).Seconds()))
	return nil
}

func printLeaderboard(snap *tracker.LeaderboardSnapshot) {
	widths := []int{4, 16, 10, 8, 8, 8, 14}
	PrintTableHeader([]string{"#", "Account", "Followers", "Change", "24h", "Score", "Status"}, widths)

	for _, e := range snap.Entries {
		h24 := "-"
		if v := e.Growth.H24; v != nil {
			h24 = fmt.Sprintf("%+.1f%%", *v)
		}
		username := e.Username
		if e.Stale {
			username += " *"
		}
		PrintTableRow([]string{
			fmt.Sprintf("%d", e.Rank),
			username,
			tracker.FormatCount(e.Followers),
			fmt.Sprintf("%+d", e.FollowerChange),
			h24,
			fmt.Sprintf("%.0f", e.Score),
			string(e.Status),
		}, widths)
	}

	if len(snap.Alerts) > 0 {
		fmt.Println()
		fmt.Printf("🔔 Alerts (%d):\n", len(snap.Alerts))
		for _, a := range snap.Alerts {
			fmt.Printf("   • %s\n", a.Message)
		}
	}
}
