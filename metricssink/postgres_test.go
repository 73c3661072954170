package metricssink

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestRecordInsertsOneRowPerCycle(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`insert into "cycle_completed"`).
		WithArgs(int64(1000), 12.5, 10, 9, 1, 0.8, int64(4)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	p := &Postgres{DB: db}
	err = p.Record(context.Background(), CycleStats{
		FinishedAt:     1000,
		DurationSec:    12.5,
		TasksSeen:      10,
		TasksSucceeded: 9,
		TasksFailed:    1,
		CacheHitRate:   0.8,
		APICallsSaved:  4,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordNoOpsWhenDisabled(t *testing.T) {
	var p *Postgres
	require.NoError(t, p.Record(context.Background(), CycleStats{}))

	disabled := &Postgres{}
	require.NoError(t, disabled.Record(context.Background(), CycleStats{}))
}

func TestOpenDisabledOnEmptyConnString(t *testing.T) {
	p, err := Open("")
	require.NoError(t, err)
	require.Nil(t, p.DB)
}
