package rollup

import (
	"github.com/shopspring/decimal"

	"github.com/opsboard/metricsd/internal/core/metrics"
	"github.com/opsboard/metricsd/internal/core/snapshot"
)

// Pure rollup functions over a stored snapshot. None of them ever error:
// absent data degrades to a not-found report or to zero, so presentation
// code can render without defensive branching.

// IndividualValue looks up one column's scalar directly.
// The second return distinguishes "no data" from a stored zero: an absent
// day (nil snapshot), an absent column, or a non-scalar column all report
// not found rather than 0.
func IndividualValue(s *snapshot.DailySnapshot, column string) (decimal.Decimal, bool) {
	value, ok := s.Column(column)
	if !ok || value.Kind != metrics.KindScalar {
		return decimal.Zero, false
	}
	return value.Scalar, true
}

// GroupTotal sums the entity counts of a grouped column.
// Absent, empty, or scalar columns total 0.
func GroupTotal(s *snapshot.DailySnapshot, column string) decimal.Decimal {
	value, ok := s.Column(column)
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromInt(value.GroupTotal())
}

// SubitemValue returns the count of the first entity with the given name in
// a grouped column, or 0 when the column or entity is absent.
func SubitemValue(s *snapshot.DailySnapshot, column, entity string) int64 {
	value, ok := s.Column(column)
	if !ok {
		return 0
	}
	for _, ec := range value.Entities {
		if ec.Entity == entity {
			return ec.Count
		}
	}
	return 0
}

// SumTotal adds up a cross-column total: scalar columns contribute their
// value, grouped columns contribute their group total, and anything absent
// coerces to 0.
func SumTotal(s *snapshot.DailySnapshot, columns []string) decimal.Decimal {
	total := decimal.Zero
	for _, column := range columns {
		value, ok := s.Column(column)
		if !ok {
			continue
		}
		switch value.Kind {
		case metrics.KindScalar:
			total = total.Add(value.Scalar)
		case metrics.KindEntities:
			total = total.Add(decimal.NewFromInt(value.GroupTotal()))
		}
	}
	return total
}
