// Package remote is the thin client over the remote relational backend. It
// exposes per-table read-all and upsert-many operations scoped to the
// authenticated user, plus a LISTEN/NOTIFY-based pub/sub channel used to
// nudge re-pulls on other connected clients.
package remote

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/yiadomb/return-visit-tracker/internal/config"
)

// Store wraps the backend connection pool.
type Store struct {
	Pool   *pgxpool.Pool
	config *config.DatabaseConfig
}

// New creates the backend connection pool and verifies reachability.
func New(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping backend: %w", err)
	}

	slog.Info("connected to remote backend",
		"host", cfg.Host,
		"database", cfg.Database)

	return &Store{Pool: pool, config: cfg}, nil
}

// Close closes the backend connection pool.
func (r *Store) Close() {
	if r.Pool != nil {
		r.Pool.Close()
		slog.Info("remote connection closed")
	}
}

// Ping checks if the backend is reachable.
func (r *Store) Ping(ctx context.Context) error {
	return r.Pool.Ping(ctx)
}

// RunMigrations executes all pending backend migrations.
func (r *Store) RunMigrations(ctx context.Context, migrationsDir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	stdDB, err := sql.Open("pgx", r.config.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open stdlib connection: %w", err)
	}
	defer stdDB.Close()

	if err := goose.Up(stdDB, migrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("remote migrations completed")
	return nil
}

// Status summarizes the remote dataset for one user.
type Status struct {
	Connected bool
	Counts    map[string]int
}

// GetStatus counts the user's rows per table.
func (r *Store) GetStatus(ctx context.Context, userID string) (*Status, error) {
	status := &Status{Connected: true, Counts: make(map[string]int)}

	for _, table := range Tables {
		var n int
		err := r.Pool.QueryRow(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE user_id = $1", table), userID).Scan(&n)
		if err != nil {
			return nil, wrap("count", table, err)
		}
		status.Counts[table] = n
	}
	return status, nil
}
