package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/opsboard/metricsd/internal/core/day"
	"github.com/opsboard/metricsd/internal/core/metrics"
	"github.com/opsboard/metricsd/internal/core/rules"
)

// fakeHistory serves stored snapshots keyed by day string.
type fakeHistory struct {
	snapshots map[string]*DailySnapshot
	reads     []string
}

func (f *fakeHistory) Snapshot(_ context.Context, d day.Key) (*DailySnapshot, error) {
	f.reads = append(f.reads, d.String())
	snap, ok := f.snapshots[d.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return snap, nil
}

func mustDay(t *testing.T, s string) day.Key {
	t.Helper()
	d, err := day.Parse(s, time.UTC)
	require.NoError(t, err)
	return d
}

func entityList(pairs ...metrics.EntityCount) metrics.ColumnValue {
	return metrics.NewEntityList(pairs)
}

func TestResolveSeed_KeepsExistingEntities(t *testing.T) {
	history := &fakeHistory{}
	current := entityList(metrics.EntityCount{Entity: "Ana", Count: 3})

	seed, err := ResolveSeed(context.Background(), history, mustDay(t, "2024-05-20"), "criados_pp", current, true)
	require.NoError(t, err)
	require.Equal(t, []metrics.EntityCount{{Entity: "Ana", Count: 3}}, seed)
	require.Empty(t, history.reads, "non-empty current value must not hit history")
}

func TestResolveSeed_BackfillsNamesOnly(t *testing.T) {
	history := &fakeHistory{snapshots: map[string]*DailySnapshot{
		"2024-05-17": {
			Day: mustDay(t, "2024-05-17"),
			Columns: map[string]metrics.ColumnValue{
				"criados_pp": entityList(
					metrics.EntityCount{Entity: "Ana", Count: 7},
					metrics.EntityCount{Entity: "Bia", Count: 4},
				),
			},
		},
		// More recent day exists but has an empty list; scan keeps going.
		"2024-05-19": {
			Day:     mustDay(t, "2024-05-19"),
			Columns: map[string]metrics.ColumnValue{"criados_pp": entityList()},
		},
	}}

	seed, err := ResolveSeed(context.Background(), history, mustDay(t, "2024-05-20"), "criados_pp", metrics.ColumnValue{}, true)
	require.NoError(t, err)
	// Names copied from the first non-empty prior day, counts reset to zero.
	require.Equal(t, []metrics.EntityCount{{Entity: "Ana", Count: 0}, {Entity: "Bia", Count: 0}}, seed)
	require.Equal(t, []string{"2024-05-19", "2024-05-18", "2024-05-17"}, history.reads)
}

func TestResolveSeed_LookbackIsBounded(t *testing.T) {
	history := &fakeHistory{snapshots: map[string]*DailySnapshot{
		// Non-empty data 8 days back: outside the lookback window.
		"2024-05-12": {
			Day: mustDay(t, "2024-05-12"),
			Columns: map[string]metrics.ColumnValue{
				"criados_pp": entityList(metrics.EntityCount{Entity: "Ana", Count: 1}),
			},
		},
	}}

	seed, err := ResolveSeed(context.Background(), history, mustDay(t, "2024-05-20"), "criados_pp", metrics.ColumnValue{}, true)
	require.NoError(t, err)
	require.Empty(t, seed)
	require.Len(t, history.reads, 7)
}

func TestResolveSeed_DisabledBackfillNeverReadsHistory(t *testing.T) {
	history := &fakeHistory{snapshots: map[string]*DailySnapshot{
		"2024-05-19": {
			Day: mustDay(t, "2024-05-19"),
			Columns: map[string]metrics.ColumnValue{
				"curated": entityList(metrics.EntityCount{Entity: "Ana", Count: 1}),
			},
		},
	}}

	seed, err := ResolveSeed(context.Background(), history, mustDay(t, "2024-05-20"), "curated", metrics.ColumnValue{}, false)
	require.NoError(t, err)
	require.Empty(t, seed)
	require.Empty(t, history.reads)
}

func TestMerge_RecomputesSeedCountsAndAppendsNewItems(t *testing.T) {
	rs := rules.MetricRuleSet{
		Column:      "criados_pp",
		SourceTable: "leads",
		Grouped: []rules.GroupItem{
			{Name: "Ana", Rules: []rules.Rule{{SourceColumn: "obs", Comparator: rules.Contains, Terms: []string{"ana"}, Combinator: rules.Or}}},
			{Name: "Caio", Rules: []rules.Rule{{SourceColumn: "obs", Comparator: rules.Contains, Terms: []string{"caio"}, Combinator: rules.Or}}},
		},
	}
	rows := []rules.Row{
		{"obs": "Ana fechou"},
		{"obs": "Ana de novo"},
		{"obs": "Caio ligou"},
	}

	// Seed carries a stale count for Ana and an entity (Bia) with no rule
	// item: Ana is recomputed, Bia stays at zero, Caio is appended.
	seed := []metrics.EntityCount{
		{Entity: "Ana", Count: 99},
		{Entity: "Bia", Count: 0},
	}

	got := Merge(seed, rs, rows, mustDay(t, "2024-05-20"))
	require.Equal(t, metrics.KindEntities, got.Kind)
	require.Equal(t, []metrics.EntityCount{
		{Entity: "Ana", Count: 2},
		{Entity: "Bia", Count: 0},
		{Entity: "Caio", Count: 1},
	}, got.Entities)
}

func TestMerge_ScalarReplacesOutright(t *testing.T) {
	rs := rules.MetricRuleSet{
		Column:      "vendas",
		SourceTable: "leads",
		Scalar: []rules.Rule{
			{SourceColumn: "status", Comparator: rules.Contains, Terms: []string{"vendedor"}, Combinator: rules.Or},
		},
	}
	rows := []rules.Row{
		{"status": "Vendedor A"},
		{"status": "Inválido"},
	}

	got := Merge(nil, rs, rows, mustDay(t, "2024-05-20"))
	require.Equal(t, metrics.KindScalar, got.Kind)
	require.True(t, got.Scalar.Equal(decimal.NewFromInt(1)))
}

func TestBackfillSeedCountsAreRederived(t *testing.T) {
	// End-to-end over resolve + merge: seeded names come from the prior
	// day, every count comes from today's rows.
	history := &fakeHistory{snapshots: map[string]*DailySnapshot{
		"2024-05-19": {
			Day: mustDay(t, "2024-05-19"),
			Columns: map[string]metrics.ColumnValue{
				"criados_pp": entityList(
					metrics.EntityCount{Entity: "Ana", Count: 7},
					metrics.EntityCount{Entity: "Bia", Count: 4},
				),
			},
		},
	}}
	rs := rules.MetricRuleSet{
		Column:      "criados_pp",
		SourceTable: "leads",
		Grouped: []rules.GroupItem{
			{Name: "Ana", Rules: []rules.Rule{{SourceColumn: "obs", Comparator: rules.Contains, Terms: []string{"ana"}, Combinator: rules.Or}}},
			{Name: "Bia", Rules: []rules.Rule{{SourceColumn: "obs", Comparator: rules.Contains, Terms: []string{"bia"}, Combinator: rules.Or}}},
		},
	}
	today := mustDay(t, "2024-05-20")

	seed, err := ResolveSeed(context.Background(), history, today, "criados_pp", metrics.ColumnValue{}, true)
	require.NoError(t, err)

	got := Merge(seed, rs, []rules.Row{{"obs": "Ana fechou hoje"}}, today)
	require.Equal(t, []metrics.EntityCount{
		{Entity: "Ana", Count: 1},
		{Entity: "Bia", Count: 0},
	}, got.Entities)
}
