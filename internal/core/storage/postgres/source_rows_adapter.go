package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/opsboard/metricsd/internal/core/day"
	"github.com/opsboard/metricsd/internal/core/rules"
)

// SourceRowAdapter implements storage.SourceRowStore for PostgreSQL.
// Source tables are external relations owned by the dashboard's record
// store; this adapter only ever reads them.
//
// Table and date-column names come from authored rule-set configuration, so
// they are interpolated as quoted identifiers, never as parameters.
type SourceRowAdapter struct {
	db *sql.DB
}

// NewSourceRowAdapter creates a source-row reader over a shared connection pool.
func NewSourceRowAdapter(db *sql.DB) *SourceRowAdapter {
	return &SourceRowAdapter{db: db}
}

// FetchRows reads all rows of a source table, optionally restricted to the
// day window [d.Start, d.End) on dateColumn. Every column value is returned
// as text; SQL NULL reads as the empty string, which the predicate evaluator
// treats as an empty field.
func (a *SourceRowAdapter) FetchRows(
	ctx context.Context,
	table, dateColumn string,
	restrictToDay bool,
	d day.Key,
) ([]rules.Row, error) {
	if table == "" {
		return nil, fmt.Errorf("source table name must not be empty")
	}

	query := fmt.Sprintf("SELECT * FROM %s", pq.QuoteIdentifier(table))
	var args []interface{}
	if restrictToDay {
		if dateColumn == "" {
			return nil, fmt.Errorf("source table %q: date column required for day-scoped fetch", table)
		}
		query += fmt.Sprintf(" WHERE %s >= $1 AND %s < $2",
			pq.QuoteIdentifier(dateColumn), pq.QuoteIdentifier(dateColumn))
		args = append(args, d.Start(), d.End())
	}

	sqlRows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query source table %q: %w", table, err)
	}
	defer sqlRows.Close()

	columns, err := sqlRows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of source table %q: %w", table, err)
	}

	var out []rules.Row
	for sqlRows.Next() {
		row, err := scanSourceRow(sqlRows, columns)
		if err != nil {
			return nil, fmt.Errorf("source table %q: %w", table, err)
		}
		out = append(out, row)
	}
	if err := sqlRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source table %q: %w", table, err)
	}

	slog.Debug("[Postgres] Fetched source rows",
		"table", table,
		"day", d.String(),
		"restricted", restrictToDay,
		"rows", len(out))
	return out, nil
}
