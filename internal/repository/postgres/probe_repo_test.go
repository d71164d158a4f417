package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

func TestProbeRepo_WriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	results := []domain.ProbeResult{
		{WorkerID: 0, RequestID: "r1", StartedAt: started, Elapsed: 250 * time.Millisecond, Outcome: domain.OutcomeSuccess, StatusCode: 200},
		{WorkerID: 1, RequestID: "r2", StartedAt: started, Elapsed: time.Second, Outcome: domain.OutcomeTransportError, Err: "timeout"},
	}

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO probe_results (run_id, worker_id, request_id, started_at, elapsed_ms, outcome, status_code, error) VALUES " +
			"($1, $2, $3, $4, $5, $6, $7, $8),($9, $10, $11, $12, $13, $14, $15, $16)")).
		WithArgs(
			"run-1", 0, "r1", started, 250.0, "success", 200, nil,
			"run-1", 1, "r2", started, 1000.0, "transport_error", nil, "timeout",
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	repo := NewProbeRepoFromDB(db)
	require.NoError(t, repo.WriteBatch(context.Background(), "run-1", results))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProbeRepo_WriteBatchEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, NewProbeRepoFromDB(db).WriteBatch(context.Background(), "run-1", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProbeRepo_WriteBatchError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO probe_results").
		WithArgs(anyArgs(8)...).
		WillReturnError(errors.New("connection reset"))

	err = NewProbeRepoFromDB(db).WriteBatch(context.Background(), "run-1", []domain.ProbeResult{{RequestID: "r1"}})
	require.ErrorContains(t, err, "insert probe results")
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func TestProbeRepo_WriteBatchSplitsLargeBatches(t *testing.T) {
	require.Equal(t, 8191, maxRowsPerInsert)
	require.LessOrEqual(t, maxRowsPerInsert*probeFields, 65535)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	results := make([]domain.ProbeResult, 5)
	for i := range results {
		results[i] = domain.ProbeResult{WorkerID: i, RequestID: "r", Outcome: domain.OutcomeSuccess, StatusCode: 200}
	}

	for _, rows := range []int{2, 2, 1} {
		mock.ExpectExec("INSERT INTO probe_results").
			WithArgs(anyArgs(rows * probeFields)...).
			WillReturnResult(sqlmock.NewResult(0, int64(rows)))
	}

	repo := NewProbeRepoFromDB(db)
	repo.maxRows = 2
	require.NoError(t, repo.WriteBatch(context.Background(), "run-1", results))
	require.NoError(t, mock.ExpectationsWereMet())
}
