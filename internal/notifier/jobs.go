package notifier

import (
	"context"

	"valubot/internal/analytics"
)

// StatsSource is what the scheduled report jobs read.
type StatsSource interface {
	AbandonedLastHour(ctx context.Context) (int, error)
	MainStats(ctx context.Context) (analytics.MainStats, error)
}

// Job names registered on the scheduler.
const (
	JobAbandonedCheck = "abandoned-check"
	JobDailyReport    = "daily-report"

	DefaultAbandonedSpec = "@every 1h"
	DefaultDailySpec     = "0 9 * * *"
)

// AbandonedCheckJob counts the last hour's abandoned checkouts and alerts
// operators above their thresholds.
func (a *Alerts) AbandonedCheckJob(src StatsSource) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		n, err := src.AbandonedLastHour(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		return a.AbandonedCheckouts(ctx, n)
	}
}

func (a *Alerts) DailyReportJob(src StatsSource) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		st, err := src.MainStats(ctx)
		if err != nil {
			return err
		}
		return a.DailyReport(ctx, st)
	}
}
