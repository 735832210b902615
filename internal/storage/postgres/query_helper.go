package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScanFunc scans the current row of rows into a new T.
type ScanFunc[T any] func(rows pgx.Rows) (*T, error)

// QueryMany runs query and scans every row.
func QueryMany[T any](
	pool *pgxpool.Pool,
	ctx context.Context,
	query string,
	scanFunc ScanFunc[T],
	args ...any,
) ([]*T, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*T
	for rows.Next() {
		item, err := scanFunc(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}

	return results, rows.Err()
}

func QueryOne[T any](
	pool *pgxpool.Pool,
	ctx context.Context,
	query string,
	scanFunc func(row pgx.Row) (*T, error),
	args ...any,
) (*T, error) {
	row := pool.QueryRow(ctx, query, args...)
	return scanFunc(row)
}
