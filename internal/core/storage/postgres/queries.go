package postgres

// SQL for daily snapshot persistence.

const (
	// querySelectSnapshot reads the full column set for one day.
	// sql.ErrNoRows means the day was never initialized.
	querySelectSnapshot = `
		SELECT columns
		FROM daily_snapshots
		WHERE day = $1
	`

	// queryUpdateSnapshotColumns merges the recomputed column set into the
	// day's row in a single statement. The jsonb concatenation keeps columns
	// written by external collaborators (manually curated values) intact.
	//
	// The WHERE day = $1 filter is the "compare" of the optimistic write:
	// zero rows affected signals the day key no longer resolves to a row.
	queryUpdateSnapshotColumns = `
		UPDATE daily_snapshots
		SET columns = columns || $2::jsonb, updated_at = $3
		WHERE day = $1
	`

	// queryInitSnapshotDay creates the empty snapshot row at day start.
	// Idempotent: concurrent triggers at day rollover are harmless.
	queryInitSnapshotDay = `
		INSERT INTO daily_snapshots (day, columns, updated_at)
		VALUES ($1, '{}'::jsonb, $2)
		ON CONFLICT (day) DO NOTHING
	`
)
