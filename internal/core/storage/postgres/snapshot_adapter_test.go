package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/opsboard/metricsd/internal/core/day"
	"github.com/opsboard/metricsd/internal/core/metrics"
	"github.com/opsboard/metricsd/internal/core/snapshot"
)

func newMockSnapshotAdapter(t *testing.T) (*SnapshotAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectPrepare(regexp.QuoteMeta(querySelectSnapshot))
	mock.ExpectPrepare(regexp.QuoteMeta(queryUpdateSnapshotColumns))
	mock.ExpectPrepare(regexp.QuoteMeta(queryInitSnapshotDay))

	adapter, err := NewSnapshotAdapter(db)
	require.NoError(t, err)
	return adapter, mock
}

func mockDay(t *testing.T) day.Key {
	t.Helper()
	d, err := day.Parse("2024-05-20", time.UTC)
	require.NoError(t, err)
	return d
}

func TestSnapshotAdapter_Snapshot(t *testing.T) {
	adapter, mock := newMockSnapshotAdapter(t)
	d := mockDay(t)

	columnsJSON := `{
		"faturamento": {"kind": "scalar", "value": "150"},
		"por_vendedor": {"kind": "entities", "entities": [{"entity": "Ana", "count": 3}]}
	}`
	mock.ExpectQuery(regexp.QuoteMeta(querySelectSnapshot)).
		WithArgs(d.Start()).
		WillReturnRows(sqlmock.NewRows([]string{"columns"}).AddRow([]byte(columnsJSON)))

	snap, err := adapter.Snapshot(context.Background(), d)
	require.NoError(t, err)
	require.True(t, snap.Day.Equal(d))

	faturamento, ok := snap.Column("faturamento")
	require.True(t, ok)
	require.True(t, faturamento.Scalar.Equal(decimal.NewFromInt(150)))

	porVendedor, ok := snap.Column("por_vendedor")
	require.True(t, ok)
	require.Equal(t, []metrics.EntityCount{{Entity: "Ana", Count: 3}}, porVendedor.Entities)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotAdapter_SnapshotNotFound(t *testing.T) {
	adapter, mock := newMockSnapshotAdapter(t)
	d := mockDay(t)

	mock.ExpectQuery(regexp.QuoteMeta(querySelectSnapshot)).
		WithArgs(d.Start()).
		WillReturnRows(sqlmock.NewRows([]string{"columns"}))

	_, err := adapter.Snapshot(context.Background(), d)
	require.ErrorIs(t, err, snapshot.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotAdapter_UpdateColumnsReportsRowsAffected(t *testing.T) {
	adapter, mock := newMockSnapshotAdapter(t)
	d := mockDay(t)

	columns := map[string]metrics.ColumnValue{
		"vendas": metrics.NewScalar(decimal.NewFromInt(3)),
	}

	mock.ExpectExec(regexp.QuoteMeta(queryUpdateSnapshotColumns)).
		WithArgs(d.Start(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := adapter.UpdateColumns(context.Background(), d, columns)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotAdapter_UpdateColumnsZeroRowsIsNotAnError(t *testing.T) {
	adapter, mock := newMockSnapshotAdapter(t)
	d := mockDay(t)

	mock.ExpectExec(regexp.QuoteMeta(queryUpdateSnapshotColumns)).
		WithArgs(d.Start(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := adapter.UpdateColumns(context.Background(), d, nil)
	require.NoError(t, err, "zero rows affected is the staleness signal, not a failure")
	require.Zero(t, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotAdapter_InitDay(t *testing.T) {
	adapter, mock := newMockSnapshotAdapter(t)
	d := mockDay(t)

	mock.ExpectExec(regexp.QuoteMeta(queryInitSnapshotDay)).
		WithArgs(d.Start(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.InitDay(context.Background(), d))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSnapshotAdapter_FailsWhenTableMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare(regexp.QuoteMeta(querySelectSnapshot)).
		WillReturnError(errors.New(`relation "daily_snapshots" does not exist`))

	_, err = NewSnapshotAdapter(db)
	require.Error(t, err)
}
