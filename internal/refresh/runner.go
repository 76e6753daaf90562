package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/opsboard/metricsd/internal/core/day"
	"github.com/opsboard/metricsd/internal/core/metrics"
	"github.com/opsboard/metricsd/internal/core/rules"
	"github.com/opsboard/metricsd/internal/core/snapshot"
	"github.com/opsboard/metricsd/internal/core/storage"
)

const defaultFetchConcurrency = 4

// Runner executes one full aggregation pass: fetch source rows for every
// rule-set, resolve and merge each column, and persist the recomputed set
// through the optimistic writer.
//
// Runs may overlap — a status change and an explicit refresh can trigger
// concurrently for the same day. Correctness under that overlap lives
// entirely in the Writer's read-recompute-write-retry loop.
type Runner struct {
	ruleSets         []rules.MetricRuleSet
	sourceRows       storage.SourceRowStore
	snapshots        storage.SnapshotStore
	writer           *Writer
	fetchConcurrency int
}

// NewRunner wires a runner over the configured rule-sets and stores.
func NewRunner(
	ruleSets []rules.MetricRuleSet,
	sourceRows storage.SourceRowStore,
	snapshots storage.SnapshotStore,
) *Runner {
	return &Runner{
		ruleSets:         ruleSets,
		sourceRows:       sourceRows,
		snapshots:        snapshots,
		writer:           NewWriter(snapshots),
		fetchConcurrency: defaultFetchConcurrency,
	}
}

// Run performs one aggregation pass for the given day.
//
// All source reads complete before any write attempt, so every column in
// the run is computed from one consistent read of source rows. Source read
// failures abort the whole run with nothing persisted.
func (r *Runner) Run(ctx context.Context, d day.Key) (Outcome, error) {
	runID := uuid.NewString()
	slog.Info("[Refresh] Starting aggregation run",
		"run_id", runID,
		"day", d.String(),
		"rule_sets", len(r.ruleSets))

	rowsByColumn, err := r.fetchAllSourceRows(ctx, d)
	if err != nil {
		slog.Error("[Refresh] Source row fetch failed, aborting run",
			"run_id", runID,
			"day", d.String(),
			"error", err)
		return OutcomeFatal, err
	}

	compute := func(current *snapshot.DailySnapshot) (map[string]metrics.ColumnValue, error) {
		columns := make(map[string]metrics.ColumnValue, len(r.ruleSets))
		for _, rs := range r.ruleSets {
			rows := rowsByColumn[rs.Column]

			if !rs.IsGrouped() {
				columns[rs.Column] = metrics.Aggregate(rs, rows, d)
				continue
			}

			currentValue, _ := current.Column(rs.Column)
			seed, err := snapshot.ResolveSeed(ctx, r.snapshots, d, rs.Column, currentValue, rs.Backfill)
			if err != nil {
				return nil, err
			}
			columns[rs.Column] = snapshot.Merge(seed, rs, rows, d)
		}
		return columns, nil
	}

	outcome, err := r.writer.Write(ctx, d, compute)
	switch outcome {
	case OutcomeSuccess:
		slog.Info("[Refresh] Run complete",
			"run_id", runID,
			"day", d.String(),
			"columns", len(r.ruleSets))
	case OutcomeConflict:
		// Accepted best-effort policy: give up silently for this invocation,
		// the next trigger recomputes from scratch.
		slog.Warn("[Refresh] Run gave up after write conflicts",
			"run_id", runID,
			"day", d.String())
	case OutcomeNotInitialized:
		slog.Info("[Refresh] Run skipped, day not initialized",
			"run_id", runID,
			"day", d.String())
	case OutcomeFatal:
		slog.Error("[Refresh] Run aborted",
			"run_id", runID,
			"day", d.String(),
			"error", err)
	}
	return outcome, err
}

// fetchAllSourceRows reads the source rows of every rule-set concurrently,
// keyed by the computed column. Distinct metrics may share a source table;
// each fetch stays independent so one slow relation cannot skew another's
// window.
func (r *Runner) fetchAllSourceRows(ctx context.Context, d day.Key) (map[string][]rules.Row, error) {
	rowsByColumn := make(map[string][]rules.Row, len(r.ruleSets))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fetchConcurrency)

	for _, rs := range r.ruleSets {
		g.Go(func() error {
			// The SQL fetch pre-scopes restricted rule-sets to the day
			// window; the aggregator re-applies the same filter in memory,
			// so a wider hand-off is still counted correctly.
			rows, err := r.sourceRows.FetchRows(ctx, rs.SourceTable, rs.DateColumn, rs.RestrictToToday, d)
			if err != nil {
				return fmt.Errorf("fetch source rows for %q: %w", rs.Column, err)
			}
			mu.Lock()
			rowsByColumn[rs.Column] = rows
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rowsByColumn, nil
}
