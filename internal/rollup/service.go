package rollup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opsboard/metricsd/internal/core/day"
	"github.com/opsboard/metricsd/internal/core/metrics"
	"github.com/opsboard/metricsd/internal/core/snapshot"
)

// Cell is one rendered report row. Value is null (not zero) when the
// underlying data is absent; Found preserves that distinction for dividers'
// sake too, where both stay unset.
type Cell struct {
	Kind     ItemKind              `json:"kind"`
	Label    string                `json:"label,omitempty"`
	Column   string                `json:"column,omitempty"`
	Columns  []string              `json:"columns,omitempty"`
	Value    *decimal.Decimal      `json:"value,omitempty"`
	Found    bool                  `json:"found"`
	Subitems []metrics.EntityCount `json:"subitems,omitempty"`
	Style    map[string]string     `json:"style,omitempty"`
}

// Report is the rendered report for one day.
type Report struct {
	Day   string `json:"day"`
	Cells []Cell `json:"cells"`
}

// Service evaluates the authored display layout against stored snapshots.
type Service struct {
	layout  Layout
	history snapshot.HistoryReader
	loc     *time.Location
	nowFn   func() time.Time
}

// NewService creates the rollup/report service.
func NewService(layout Layout, history snapshot.HistoryReader, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{layout: layout, history: history, loc: loc, nowFn: time.Now}
}

// BuildReport renders the layout for one day. An absent snapshot is not an
// error: every cell degrades to its not-found or zero form per the rollup
// semantics, and dividers pass through regardless.
func (s *Service) BuildReport(ctx context.Context, d day.Key) (Report, error) {
	snap, err := s.history.Snapshot(ctx, d)
	if err != nil && !errors.Is(err, snapshot.ErrNotFound) {
		return Report{}, fmt.Errorf("read snapshot %s: %w", d, err)
	}
	// snap stays nil on ErrNotFound; the evaluator handles nil uniformly.

	cells := make([]Cell, 0, len(s.layout.Items))
	for _, item := range s.layout.Items {
		cells = append(cells, s.renderCell(snap, item))
	}
	return Report{Day: d.String(), Cells: cells}, nil
}

func (s *Service) renderCell(snap *snapshot.DailySnapshot, item DisplayItem) Cell {
	cell := Cell{
		Kind:    item.Kind,
		Label:   item.Label,
		Column:  item.Column,
		Columns: item.Columns,
		Style:   item.Style,
	}

	switch item.Kind {
	case KindIndividual:
		if v, found := IndividualValue(snap, item.Column); found {
			cell.Value = &v
			cell.Found = true
		}
	case KindGroup:
		total := GroupTotal(snap, item.Column)
		cell.Value = &total
		cell.Found = true
		if value, ok := snap.Column(item.Column); ok {
			cell.Subitems = value.Entities
		}
	case KindSum:
		total := SumTotal(snap, item.Columns)
		cell.Value = &total
		cell.Found = true
	case KindDivider:
		// Passed through unchanged: no value, no lookup.
	}
	return cell
}
