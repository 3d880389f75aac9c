package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pulseboard/internal/tracker"
	"pulseboard/internal/tracker/store"
	"pulseboard/pkg/config"
	"pulseboard/pkg/database"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [username]",
	Short: "Show stored follower history for an account",
	Long: `Prints the stored snapshots for one tracked account.

Example:
  go run ./cmd/pulseboard history ethereum
  go run ./cmd/pulseboard history bitcoin --hours 48`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

var historyHours int

func init() {
	rootCmd.AddCommand(historyCmd)

	// Flags
	historyCmd.Flags().IntVar(&historyHours, "hours", 24, "how far back to look")
}

func runHistory(cmd *cobra.Command, args []string) error {
	username := args[0]

	// Load config and connect
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	snapStore := store.NewPostgresStore(db.Pool)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	to := time.Now().UTC()
	from := to.Add(-time.Duration(historyHours) * time.Hour)

	snaps, err := snapStore.Range(ctx, username, from, to)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	fmt.Printf("=== History: %s (last %dh) ===\n\n", username, historyHours)

	if len(snaps) == 0 {
		fmt.Println("No snapshots in range")
		return nil
	}

	widths := []int{21, 12, 10, 12}
	PrintTableHeader([]string{"Observed", "Followers", "Posts", "Engagement"}, widths)
	for _, s := range snaps {
		PrintTableRow([]string{
			s.ObservedAt.Format("2006-01-02 15:04:05"),
			tracker.FormatCount(s.Followers),
			tracker.FormatCount(s.Posts),
			fmt.Sprintf("%.6f", s.EngagementRate),
		}, widths)
	}

	first, last := snaps[0], snaps[len(snaps)-1]
	fmt.Printf("\n%d snapshots, follower change %+d\n", len(snaps), last.Followers-first.Followers)
	return nil
}
