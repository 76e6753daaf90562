package snapshot

import (
	"context"
	"errors"

	"github.com/opsboard/metricsd/internal/core/day"
	"github.com/opsboard/metricsd/internal/core/metrics"
)

// ErrNotFound is returned when no snapshot row exists for a day key.
var ErrNotFound = errors.New("snapshot not found")

// DailySnapshot is the per-day metric record: one row per calendar day,
// created once at day start and mutated in place for the rest of the day.
// Once the day rolls over no further writes target it.
type DailySnapshot struct {
	Day     day.Key
	Columns map[string]metrics.ColumnValue
}

// Column returns the named column's value and whether it is present.
func (s *DailySnapshot) Column(name string) (metrics.ColumnValue, bool) {
	if s == nil {
		return metrics.ColumnValue{}, false
	}
	v, ok := s.Columns[name]
	return v, ok
}

// HistoryReader provides read access to stored snapshots for backfill.
// Absent days are reported as ErrNotFound, never as an empty snapshot.
type HistoryReader interface {
	Snapshot(ctx context.Context, d day.Key) (*DailySnapshot, error)
}
