package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"pulseboard/internal/board"
	"pulseboard/pkg/logger"
)

// LeaderboardExportJob writes the current leaderboard snapshot to a JSON
// file so external consumers can read it without hitting the API.
type LeaderboardExportJob struct {
	publisher *board.Publisher
	dir       string
	logger    *logger.Logger
}

// NewLeaderboardExportJob creates a new leaderboard export job
func NewLeaderboardExportJob(publisher *board.Publisher, dir string, log *logger.Logger) *LeaderboardExportJob {
	return &LeaderboardExportJob{
		publisher: publisher,
		dir:       dir,
		logger:    log,
	}
}

// Name returns the job name
func (j *LeaderboardExportJob) Name() string {
	return "leaderboard_export"
}

// Schedule returns the cron schedule (every 10 minutes)
func (j *LeaderboardExportJob) Schedule() string {
	return "0 */10 * * * *" // Every 10 minutes
}

// Run exports the current leaderboard snapshot
func (j *LeaderboardExportJob) Run(ctx context.Context) error {
	snap := j.publisher.Current()
	if snap == nil {
		j.logger.Debug("No leaderboard published yet, skipping export")
		return nil
	}

	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %w", err)
	}

	// Write to a temp file first so readers never see a partial file
	target := filepath.Join(j.dir, "leaderboard.json")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to replace export file: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"file":    target,
		"entries": len(snap.Entries),
		"tick":    snap.Tick,
	}).Info("Leaderboard exported")

	return nil
}
