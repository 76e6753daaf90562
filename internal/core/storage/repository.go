package storage

import (
	"context"

	"github.com/opsboard/metricsd/internal/core/day"
	"github.com/opsboard/metricsd/internal/core/metrics"
	"github.com/opsboard/metricsd/internal/core/rules"
	"github.com/opsboard/metricsd/internal/core/snapshot"
)

// SnapshotStore defines persistence for daily snapshot rows.
//
// UpdateColumns is deliberately an update-by-day-key, not an upsert: the
// snapshot row is created once per day (InitDay) and thereafter only mutated.
// The rows-affected count is the staleness signal of the optimistic write
// loop — zero rows affected means the day key no longer resolves to a row.
type SnapshotStore interface {
	// Snapshot reads the snapshot for a day. Returns snapshot.ErrNotFound
	// when no row exists.
	Snapshot(ctx context.Context, d day.Key) (*snapshot.DailySnapshot, error)

	// UpdateColumns merges the given column set into the day's snapshot row
	// in a single statement and returns the number of rows affected.
	// Columns not present in the map are left untouched.
	UpdateColumns(ctx context.Context, d day.Key, columns map[string]metrics.ColumnValue) (int64, error)

	// InitDay creates an empty snapshot row for the day if none exists.
	InitDay(ctx context.Context, d day.Key) error
}

// SourceRowStore reads raw operational rows from a named source table.
// The engine treats these relations as read-only external collaborators.
type SourceRowStore interface {
	// FetchRows returns the rows of the source table, optionally restricted
	// to the day window [d.Start, d.End) on dateColumn. All column values
	// are delivered as strings; SQL NULL reads as the empty string.
	FetchRows(ctx context.Context, table, dateColumn string, restrictToDay bool, d day.Key) ([]rules.Row, error)
}
