package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opsboard/metricsd/internal/core/day"
	"github.com/opsboard/metricsd/internal/core/metrics"
	"github.com/opsboard/metricsd/internal/core/rules"
)

// backfillLookbackDays bounds the prior-day scan when seeding an empty
// grouped column.
const backfillLookbackDays = 7

// ResolveSeed determines the effective entity seed for a grouped column
// before fresh counts are merged in.
//
// A present, non-empty entity list seeds itself. An absent or empty list
// with backfill enabled is seeded from the most recent prior day (up to 7
// days back) that has a non-empty entity list for this column: entity names
// are copied, counts reset to zero. Counts are never carried across days;
// they are always re-derived from the target day's rows. If no prior day
// qualifies, or backfill is disabled, the seed is empty.
func ResolveSeed(
	ctx context.Context,
	history HistoryReader,
	d day.Key,
	column string,
	current metrics.ColumnValue,
	backfill bool,
) ([]metrics.EntityCount, error) {
	if current.Kind == metrics.KindEntities && len(current.Entities) > 0 {
		seed := make([]metrics.EntityCount, len(current.Entities))
		copy(seed, current.Entities)
		return seed, nil
	}

	if !backfill {
		return []metrics.EntityCount{}, nil
	}

	for back := 1; back <= backfillLookbackDays; back++ {
		prior := d.AddDays(-back)
		snap, err := history.Snapshot(ctx, prior)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("backfill %q: read prior day %s: %w", column, prior, err)
		}

		value, ok := snap.Column(column)
		if !ok || value.Kind != metrics.KindEntities || len(value.Entities) == 0 {
			continue
		}

		seed := make([]metrics.EntityCount, 0, len(value.Entities))
		for _, ec := range value.Entities {
			seed = append(seed, metrics.EntityCount{Entity: ec.Entity, Count: 0})
		}
		slog.Info("[Lifecycle] Backfilled entity seed",
			"column", column,
			"day", d.String(),
			"from_day", prior.String(),
			"entities", len(seed),
		)
		return seed, nil
	}

	return []metrics.EntityCount{}, nil
}

// Merge folds freshly attributed counts into the seed and produces the
// column's new value.
//
// Grouped columns: every seeded entity's count is recomputed from the target
// day's rows using that entity's own rules; a seeded entity with no rule
// item or no matching rows gets 0, which is expected and not an error.
// Entities the rule-set defines but the seed lacks are appended in item
// order — a non-empty grouped value only grows or updates, the engine never
// drops an entity on its own.
//
// Scalar columns never backfill; the fresh aggregate replaces the value.
func Merge(
	seed []metrics.EntityCount,
	rs rules.MetricRuleSet,
	rows []rules.Row,
	d day.Key,
) metrics.ColumnValue {
	if !rs.IsGrouped() {
		return metrics.Aggregate(rs, rows, d)
	}

	dayRows := metrics.FilterToDay(rs, rows, d)

	merged := make([]metrics.EntityCount, 0, len(seed)+len(rs.Grouped))
	seen := make(map[string]struct{}, len(seed))

	for _, ec := range seed {
		seen[ec.Entity] = struct{}{}
		count := int64(0)
		if item, ok := rs.Item(ec.Entity); ok {
			count = metrics.CountMatching(item.Rules, dayRows)
		}
		merged = append(merged, metrics.EntityCount{Entity: ec.Entity, Count: count})
	}

	for _, item := range rs.Grouped {
		if _, dup := seen[item.Name]; dup {
			continue
		}
		merged = append(merged, metrics.EntityCount{
			Entity: item.Name,
			Count:  metrics.CountMatching(item.Rules, dayRows),
		})
	}

	return metrics.NewEntityList(merged)
}
