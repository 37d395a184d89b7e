package jobs

import (
	"context"
	"log/slog"
	"time"

	"linkpulse/internal/analytics"
	"linkpulse/internal/realtime"
)

// BroadcastJob periodically recomputes the global rollup and pushes it
// to live dashboard subscribers, so global numbers stay fresh even when
// no click happens to trigger a publish.
type BroadcastJob struct {
	rollup *analytics.Rollup
	broker *realtime.Broker
	logger *slog.Logger
}

func NewBroadcastJob(rollup *analytics.Rollup, broker *realtime.Broker, logger *slog.Logger) *BroadcastJob {
	return &BroadcastJob{
		rollup: rollup,
		broker: broker,
		logger: logger,
	}
}

// Run publishes a fresh global rollup. Skipped when nobody is
// listening; the rollup scans click history and there is no point
// paying for it with zero subscribers.
func (j *BroadcastJob) Run() error {
	if j.broker.SubscriberCount(realtime.GlobalTopic) == 0 {
		j.logger.Debug("No global analytics subscribers, skipping broadcast")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := j.rollup.ComputeGlobalStats(ctx)
	if err != nil {
		return err
	}

	j.broker.Publish(realtime.GlobalTopic, stats)
	j.logger.Debug("Broadcast global stats",
		slog.Int64("total_clicks", stats.TotalClicks),
		slog.Int("countries", len(stats.Countries)))
	return nil
}
