package jobs

import (
	"context"
	"time"

	"pulseboard/internal/tracker/store"
	"pulseboard/pkg/logger"
)

// HistoryRetentionJob trims old snapshots from the store
type HistoryRetentionJob struct {
	store  store.Store
	maxAge time.Duration
	logger *logger.Logger
}

// NewHistoryRetentionJob creates a new history retention job
func NewHistoryRetentionJob(s store.Store, maxAge time.Duration, log *logger.Logger) *HistoryRetentionJob {
	return &HistoryRetentionJob{
		store:  s,
		maxAge: maxAge,
		logger: log,
	}
}

// Name returns the job name
func (j *HistoryRetentionJob) Name() string {
	return "history_retention"
}

// Schedule returns the cron schedule (daily at 03:30)
func (j *HistoryRetentionJob) Schedule() string {
	return "0 30 3 * * *" // Daily at 03:30
}

// Run executes the history trim
func (j *HistoryRetentionJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled history retention")

	deleted, err := j.store.Retain(ctx, time.Now().UTC(), j.maxAge)
	if err != nil {
		return err
	}

	if deleted > 0 {
		j.logger.WithField("deleted", deleted).Info("History retention completed")
	}

	return nil
}
