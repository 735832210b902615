package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lugondev/anchorlite/internal/storage"
)

type postgresSelectionRepository struct {
	pool *pgxpool.Pool
}

func (r *postgresSelectionRepository) Load(ctx context.Context) (string, error) {
	var key string
	err := r.pool.QueryRow(ctx, `SELECT key FROM chain_selection WHERE id = 1`).Scan(&key)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", storage.ErrNotFound
		}
		return "", err
	}
	return key, nil
}

func (r *postgresSelectionRepository) Save(ctx context.Context, key string) error {
	query := `
		INSERT INTO chain_selection (id, key, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET key = $1, updated_at = $2
	`
	_, err := r.pool.Exec(ctx, query, key, time.Now().UTC())
	return err
}

type postgresAttemptRepository struct {
	pool *pgxpool.Pool
}

const attemptColumns = `id, chain, cluster, program, instruction, wallet, signature, status,
	error_code, error_name, error_number, error_message, logs, units_consumed, duration_ms, created_at`

func (r *postgresAttemptRepository) Save(ctx context.Context, attempt *storage.AttemptModel) error {
	query := `
		INSERT INTO flow_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			signature = $7, status = $8, error_code = $9, error_name = $10, error_number = $11,
			error_message = $12, logs = $13, units_consumed = $14, duration_ms = $15
	`

	var errorNumber *int64
	if attempt.ErrorNumber != nil {
		n := int64(*attempt.ErrorNumber)
		errorNumber = &n
	}
	var unitsConsumed *int64
	if attempt.UnitsConsumed != nil {
		n := int64(*attempt.UnitsConsumed)
		unitsConsumed = &n
	}

	_, err := r.pool.Exec(ctx, query,
		attempt.ID, attempt.Chain, attempt.Cluster, attempt.Program, attempt.Instruction, attempt.Wallet,
		nullString(attempt.Signature), string(attempt.Status),
		nullString(attempt.ErrorCode), nullString(attempt.ErrorName), errorNumber, nullString(attempt.ErrorMessage),
		attempt.Logs, unitsConsumed, attempt.DurationMs, attempt.CreatedAt,
	)
	return err
}

func (r *postgresAttemptRepository) FindBySignature(ctx context.Context, signature string) (*storage.AttemptModel, error) {
	query := `SELECT ` + attemptColumns + ` FROM flow_attempts WHERE signature = $1`

	attempt, err := QueryOne[storage.AttemptModel](r.pool, ctx, query, func(row pgx.Row) (*storage.AttemptModel, error) {
		return scanAttempt(row)
	}, signature)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return attempt, nil
}

func (r *postgresAttemptRepository) FindRecent(ctx context.Context, wallet string, limit int) ([]*storage.AttemptModel, error) {
	if limit <= 0 {
		limit = 1000
	}

	scan := func(rows pgx.Rows) (*storage.AttemptModel, error) { return scanAttempt(rows) }

	if wallet == "" {
		query := `SELECT ` + attemptColumns + ` FROM flow_attempts ORDER BY created_at DESC LIMIT $1`
		return QueryMany[storage.AttemptModel](r.pool, ctx, query, scan, limit)
	}

	query := `SELECT ` + attemptColumns + ` FROM flow_attempts WHERE wallet = $1 ORDER BY created_at DESC LIMIT $2`
	return QueryMany[storage.AttemptModel](r.pool, ctx, query, scan, wallet, limit)
}

func scanAttempt(row pgx.Row) (*storage.AttemptModel, error) {
	var (
		attempt                                   storage.AttemptModel
		signature, errorCode, errorName, errorMsg *string
		status                                    string
		errorNumber, unitsConsumed                *int64
	)

	err := row.Scan(
		&attempt.ID, &attempt.Chain, &attempt.Cluster, &attempt.Program, &attempt.Instruction, &attempt.Wallet,
		&signature, &status, &errorCode, &errorName, &errorNumber, &errorMsg,
		&attempt.Logs, &unitsConsumed, &attempt.DurationMs, &attempt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	attempt.Status = storage.AttemptStatus(status)
	attempt.Signature = deref(signature)
	attempt.ErrorCode = deref(errorCode)
	attempt.ErrorName = deref(errorName)
	attempt.ErrorMessage = deref(errorMsg)
	if errorNumber != nil {
		n := uint32(*errorNumber)
		attempt.ErrorNumber = &n
	}
	if unitsConsumed != nil {
		n := uint64(*unitsConsumed)
		attempt.UnitsConsumed = &n
	}
	return &attempt, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
