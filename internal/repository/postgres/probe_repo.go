package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// Количество колонок в таблице probe_results
const probeFields = 8

// maxRowsPerInsert — предел протокола Postgres: не более 65535 параметров на запрос.
const maxRowsPerInsert = 65535 / probeFields

// ProbeRepo хранит сырые результаты проб для последующего разбора прогонов.
//
//	CREATE TABLE probe_results (
//	    run_id      uuid        NOT NULL,
//	    worker_id   int         NOT NULL,
//	    request_id  uuid        NOT NULL,
//	    started_at  timestamptz NOT NULL,
//	    elapsed_ms  double precision NOT NULL,
//	    outcome     text        NOT NULL,
//	    status_code int,
//	    error       text
//	);
type ProbeRepo struct {
	db      *sql.DB
	maxRows int
}

func NewProbeRepo(connString string) (*ProbeRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open probe store: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &ProbeRepo{db: db, maxRows: maxRowsPerInsert}, nil
}

// NewProbeRepoFromDB оборачивает уже открытое соединение.
func NewProbeRepoFromDB(db *sql.DB) *ProbeRepo {
	return &ProbeRepo{db: db, maxRows: maxRowsPerInsert}
}

func (r *ProbeRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *ProbeRepo) Close() error {
	return r.db.Close()
}

// WriteBatch реализует recorder.Store многострочными вставками.
// Пачка больше maxRows режется на несколько INSERT.
func (r *ProbeRepo) WriteBatch(ctx context.Context, runID string, results []domain.ProbeResult) error {
	for len(results) > 0 {
		n := min(len(results), r.maxRows)
		if err := r.insert(ctx, runID, results[:n]); err != nil {
			return err
		}
		results = results[n:]
	}
	return nil
}

func (r *ProbeRepo) insert(ctx context.Context, runID string, results []domain.ProbeResult) error {
	var placeholders strings.Builder
	vals := make([]interface{}, 0, len(results)*probeFields)

	// Динамически строим запрос для пакетной вставки
	for i, res := range results {
		p := i * probeFields
		if i > 0 {
			placeholders.WriteByte(',')
		}
		fmt.Fprintf(&placeholders, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8)

		var status, errText interface{}
		if res.StatusCode != 0 {
			status = res.StatusCode
		}
		if res.Err != "" {
			errText = res.Err
		}

		vals = append(vals,
			runID, res.WorkerID, res.RequestID, res.StartedAt,
			float64(res.Elapsed)/float64(time.Millisecond), res.Outcome.String(), status, errText,
		)
	}

	query := "INSERT INTO probe_results (run_id, worker_id, request_id, started_at, elapsed_ms, outcome, status_code, error) VALUES " +
		placeholders.String()

	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("insert probe results: %w", err)
	}
	return nil
}
