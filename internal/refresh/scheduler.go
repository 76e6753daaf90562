package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/opsboard/metricsd/internal/core/day"
	"github.com/opsboard/metricsd/internal/core/storage"
)

// Scheduler triggers periodic aggregation runs for the current day.
// It is stateless: each tick independently recomputes every column from
// scratch, so a missed or failed tick is absorbed by the next one.
//
// The scheduler also owns day rollover: at each tick it makes sure today's
// snapshot row exists before running. The writer itself never creates rows,
// so without this (or an equivalent external trigger) a fresh day would
// only ever report not_initialized.
type Scheduler struct {
	interval  time.Duration
	runner    *Runner
	snapshots storage.SnapshotStore
	loc       *time.Location
	nowFn     func() time.Time
}

// NewScheduler creates a periodic refresh scheduler.
func NewScheduler(
	interval time.Duration,
	runner *Runner,
	snapshots storage.SnapshotStore,
	loc *time.Location,
) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		interval:  interval,
		runner:    runner,
		snapshots: snapshots,
		loc:       loc,
		nowFn:     time.Now,
	}
}

// Start begins periodic aggregation. Runs until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting refresh scheduler", "interval", s.interval)

	// Initial run so a restart does not wait a full interval.
	s.tick(ctx)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")
			return nil
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	today := day.Of(s.nowFn().In(s.loc))

	if err := s.snapshots.InitDay(ctx, today); err != nil {
		slog.Error("[Scheduler] Failed to ensure snapshot row", "day", today.String(), "error", err)
		return
	}

	if _, err := s.runner.Run(ctx, today); err != nil {
		slog.Error("[Scheduler] Scheduled run failed", "day", today.String(), "error", err)
	}
}
