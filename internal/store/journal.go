package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

// DB is the subset of *pgxpool.Pool the journal needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Journal appends workflow runs to monitoring.rfq_workflow_run.
type Journal struct {
	db     DB
	logger *zap.Logger
}

func NewJournal(db DB, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{db: db, logger: logger}
}

const insertRunSQL = `
	INSERT INTO monitoring.rfq_workflow_run (
		run_id,
		profile,
		pair,
		side,
		started_at,
		finished_at,
		quote_id,
		quote_validity_ms,
		order_id,
		idempotency_key,
		attempts,
		visible,
		outcome,
		error
	)
	VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		$8, $9, $10, $11, $12, $13, $14
	)
	ON CONFLICT (run_id)
	DO UPDATE SET
		finished_at = EXCLUDED.finished_at,
		order_id = EXCLUDED.order_id,
		attempts = EXCLUDED.attempts,
		visible = EXCLUDED.visible,
		outcome = EXCLUDED.outcome,
		error = EXCLUDED.error;
`

const recentRunsSQL = `
	SELECT run_id, profile, pair, side, started_at, finished_at,
	       COALESCE(quote_id, ''), COALESCE(quote_validity_ms, 0),
	       COALESCE(order_id, ''), COALESCE(idempotency_key, ''),
	       attempts, visible, outcome, COALESCE(error, '')
	FROM monitoring.rfq_workflow_run
	WHERE profile = $1
	ORDER BY started_at DESC
	LIMIT $2;
`

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Record upserts run keyed by its run ID.
func (j *Journal) Record(ctx context.Context, run *model.RunResult) error {
	if run == nil {
		return nil
	}

	_, err := j.db.Exec(ctx, insertRunSQL,
		run.RunID,                        // run_id
		run.Profile,                      // profile
		run.Pair,                         // pair
		string(run.Side),                 // side
		run.StartedAt,                    // started_at
		run.FinishedAt,                   // finished_at
		nullable(run.QuoteID),            // quote_id
		run.QuoteValidity.Milliseconds(), // quote_validity_ms
		nullable(run.OrderID),            // order_id
		nullable(run.IdempotencyKey),     // idempotency_key
		run.Attempts,                     // attempts
		run.Visible,                      // visible
		string(run.Outcome),              // outcome
		nullable(run.Error),              // error
	)
	if err != nil {
		j.logger.Error("store.journal.record_failed",
			zap.String("run_id", run.RunID.String()),
			zap.String("profile", run.Profile),
			zap.Error(err))
		return err
	}

	j.logger.Debug("store.journal.recorded",
		zap.String("run_id", run.RunID.String()),
		zap.String("profile", run.Profile),
		zap.String("outcome", string(run.Outcome)))
	return nil
}

// Recent returns up to limit runs for profile, newest first.
func (j *Journal) Recent(ctx context.Context, profile string, limit int) ([]model.RunResult, error) {
	rows, err := j.db.Query(ctx, recentRunsSQL, profile, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunResult
	for rows.Next() {
		var (
			r          model.RunResult
			side       string
			outcome    string
			validityMS int64
		)
		if err := rows.Scan(&r.RunID, &r.Profile, &r.Pair, &side, &r.StartedAt, &r.FinishedAt,
			&r.QuoteID, &validityMS, &r.OrderID, &r.IdempotencyKey,
			&r.Attempts, &r.Visible, &outcome, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Side = model.Side(side)
		r.Outcome = model.RunOutcome(outcome)
		r.QuoteValidity = time.Duration(validityMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
