package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opsboard/metricsd/internal/core/day"
	"github.com/opsboard/metricsd/internal/core/metrics"
	"github.com/opsboard/metricsd/internal/core/snapshot"
	"github.com/opsboard/metricsd/internal/core/storage"
)

// Outcome classifies the result of one snapshot write invocation.
type Outcome string

const (
	// OutcomeSuccess means the recomputed column set was persisted.
	OutcomeSuccess Outcome = "success"

	// OutcomeNotInitialized means no snapshot row exists for the day.
	// The day-start trigger has not run yet; this is a distinct non-error
	// outcome and is never retried.
	OutcomeNotInitialized Outcome = "not_initialized"

	// OutcomeConflict means every attempt saw zero rows affected.
	// Best effort: the caller logs and gives up; the next trigger retries.
	OutcomeConflict Outcome = "conflict"

	// OutcomeFatal means a datastore error aborted the run immediately.
	OutcomeFatal Outcome = "fatal"
)

const (
	maxWriteAttempts = 5
	backoffStep      = 200 * time.Millisecond
)

// ComputeFunc recomputes the full column set from the snapshot as currently
// stored. It is re-invoked on every attempt so a concurrent writer's changes
// are folded in rather than clobbered.
type ComputeFunc func(current *snapshot.DailySnapshot) (map[string]metrics.ColumnValue, error)

// Writer persists snapshot updates with optimistic-concurrency retry.
//
// There is no in-process or distributed lock. Each attempt re-reads the
// snapshot by day key, recomputes all tracked columns in one pass, and
// issues a single update filtered by the day key. A zero-rows-affected
// update signals staleness and is retried with linear backoff
// (200ms * attemptNumber), at most 5 attempts. Any datastore error is fatal
// and aborts immediately.
type Writer struct {
	store storage.SnapshotStore
	sleep func(time.Duration) // injectable for tests
}

// NewWriter creates a snapshot writer over the given store.
func NewWriter(store storage.SnapshotStore) *Writer {
	return &Writer{store: store, sleep: time.Sleep}
}

// Write runs the optimistic write loop for one day key.
// The returned error is non-nil only for OutcomeFatal.
func (w *Writer) Write(ctx context.Context, d day.Key, compute ComputeFunc) (Outcome, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		current, err := w.store.Snapshot(ctx, d)
		if errors.Is(err, snapshot.ErrNotFound) {
			// No row for today: the day was never initialized. Distinct from
			// a write conflict, and not retryable — a retry cannot create
			// the row.
			slog.Info("[Writer] Snapshot row not initialized, skipping",
				"day", d.String())
			return OutcomeNotInitialized, nil
		}
		if err != nil {
			return OutcomeFatal, fmt.Errorf("read snapshot %s: %w", d, err)
		}

		columns, err := compute(current)
		if err != nil {
			return OutcomeFatal, fmt.Errorf("recompute columns for %s: %w", d, err)
		}

		affected, err := w.store.UpdateColumns(ctx, d, columns)
		if err != nil {
			return OutcomeFatal, fmt.Errorf("write snapshot %s: %w", d, err)
		}
		if affected > 0 {
			if attempt > 1 {
				slog.Info("[Writer] Write succeeded after retry",
					"day", d.String(),
					"attempt", attempt)
			}
			return OutcomeSuccess, nil
		}

		slog.Warn("[Writer] Snapshot write affected zero rows",
			"day", d.String(),
			"attempt", attempt,
			"max_attempts", maxWriteAttempts)

		if attempt < maxWriteAttempts {
			w.sleep(backoffStep * time.Duration(attempt))
		}
	}

	return OutcomeConflict, nil
}
