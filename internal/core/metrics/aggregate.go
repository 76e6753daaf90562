package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/opsboard/metricsd/internal/core/day"
	"github.com/opsboard/metricsd/internal/core/rules"
)

// rowTimeLayouts are the accepted on-row timestamp formats, tried in order.
// Source tables are external relations; their date columns arrive as text.
var rowTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Aggregate attributes a batch of source rows according to a rule-set and
// produces the column's fresh value: a scalar count for scalar rule-sets, an
// ordered entity list for grouped ones.
//
// Output is exactly reproducible for fixed rows and rule-set; the only
// time-dependent input is the explicit day window.
func Aggregate(rs rules.MetricRuleSet, rows []rules.Row, d day.Key) ColumnValue {
	rows = FilterToDay(rs, rows, d)

	if !rs.IsGrouped() {
		return NewScalar(decimal.NewFromInt(CountMatching(rs.Scalar, rows)))
	}

	entities := make([]EntityCount, 0, len(rs.Grouped))
	for _, item := range rs.Grouped {
		entities = append(entities, EntityCount{
			Entity: item.Name,
			Count:  CountMatching(item.Rules, rows),
		})
	}
	return NewEntityList(entities)
}

// CountMatching counts rows satisfying every rule in the list.
// Rules within one rule-set are AND-ed together as independent filters;
// each rule's own terms use its own combinator.
func CountMatching(ruleList []rules.Rule, rows []rules.Row) int64 {
	var count int64
	for _, row := range rows {
		if rules.MatchesAll(row, ruleList) {
			count++
		}
	}
	return count
}

// FilterToDay keeps rows whose date column falls within [dayStart, dayEnd)
// when the rule-set restricts to the target day. Rows whose date column
// cannot be parsed as a timestamp are excluded from a restricted window.
// Unrestricted rule-sets pass all rows through unchanged: the caller has
// already scoped the row set to the metric's source table.
func FilterToDay(rs rules.MetricRuleSet, rows []rules.Row, d day.Key) []rules.Row {
	if !rs.RestrictToToday {
		return rows
	}

	filtered := make([]rules.Row, 0, len(rows))
	for _, row := range rows {
		t, ok := parseRowTime(row.Field(rs.DateColumn), d.Start().Location())
		if !ok {
			continue
		}
		if d.Contains(t) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

func parseRowTime(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range rowTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
