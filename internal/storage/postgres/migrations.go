package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Migration struct {
	Version     int
	Description string
	Up          string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Chain selection and flow attempts",
		Up: `
		CREATE TABLE IF NOT EXISTS chain_selection (
			id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			key TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS flow_attempts (
			id TEXT PRIMARY KEY,
			chain TEXT NOT NULL,
			cluster TEXT NOT NULL,
			program TEXT NOT NULL,
			instruction TEXT NOT NULL,
			wallet TEXT NOT NULL,
			signature TEXT,
			status TEXT NOT NULL,
			error_code TEXT,
			error_name TEXT,
			error_number BIGINT,
			error_message TEXT,
			logs TEXT[],
			units_consumed BIGINT,
			duration_ms BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_flow_attempts_wallet ON flow_attempts(wallet, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_flow_attempts_created_at ON flow_attempts(created_at DESC);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_flow_attempts_signature ON flow_attempts(signature) WHERE signature IS NOT NULL;
		`,
	},
}

type Migrator struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewMigrator(pool *pgxpool.Pool) *Migrator {
	return &Migrator{pool: pool, logger: slog.Default()}
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	`
	_, err := m.pool.Exec(ctx, query)
	return err
}

// Version returns the highest applied migration version.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	var version int
	err := m.pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Up applies every pending migration in one transaction.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := m.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	pending := pendingMigrations(currentVersion)
	if len(pending) == 0 {
		return nil
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, migration := range pending {
		if _, err := tx.Exec(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}

	m.logger.Info("applied migrations", "count", len(pending), "version", pending[len(pending)-1].Version)
	return nil
}

func pendingMigrations(currentVersion int) []Migration {
	var pending []Migration
	for _, migration := range migrations {
		if migration.Version > currentVersion {
			pending = append(pending, migration)
		}
	}
	return pending
}
