package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// PurgeSnapshots deletes market snapshots older than the retention window
func (s *Service) PurgeSnapshots(ctx context.Context) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -s.config.SnapshotRetentionDays)
	n, err := s.repo.PurgeMarketSnapshots(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.metrics.AddPurged(n)
	s.log.Infof("Purged %d market snapshots observed before %s", n, cutoff.Format(time.DateOnly))
	return n, nil
}

// ScheduleJobs registers the background jobs on c
func (s *Service) ScheduleJobs(c *cron.Cron) error {
	_, err := c.AddFunc(s.config.PurgeSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.PurgeSnapshots(ctx); err != nil {
			s.log.Errorf("Market snapshot purge failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule snapshot purge %q: %w", s.config.PurgeSchedule, err)
	}
	return nil
}
