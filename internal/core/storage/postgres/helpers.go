package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/opsboard/metricsd/internal/core/rules"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSourceRow scans one row of arbitrary shape into a string-keyed map.
// Source tables differ per rule-set, so columns are discovered at query time
// rather than bound to a struct. NULL values are stored as empty strings:
// the predicate evaluator's Empty comparator treats both alike.
func scanSourceRow(row scanner, columns []string) (rules.Row, error) {
	raw := make([]interface{}, len(columns))
	for i := range raw {
		raw[i] = new(sql.RawBytes)
	}
	if err := row.Scan(raw...); err != nil {
		return nil, fmt.Errorf("failed to scan source row: %w", err)
	}

	out := make(rules.Row, len(columns))
	for i, name := range columns {
		out[name] = string(*(raw[i].(*sql.RawBytes)))
	}
	return out, nil
}

// formatRowTime renders a timestamp in the canonical on-row wire form used
// when source fixtures are built in tests.
func formatRowTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
