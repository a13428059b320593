package store

import (
	"context"
	"database/sql"
	"fmt"

	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// OpenPostgres applies pending migrations over a dedicated connection, then
// connects a pgx pool to dsn and exposes it through database/sql.
func OpenPostgres(ctx context.Context, dsn string, log *zap.Logger) (*SQLStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := migratePostgres(dsn, log); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	log.Info("postgres store ready")
	return &SQLStore{
		db:      stdlib.OpenDBFromPool(pool),
		dialect: dialectPostgres,
		log:     log,
		closers: []func(){pool.Close},
	}, nil
}

// migratePostgres holds one connection for the migrate lock; the driver's
// Close releases it along with the migration-only *sql.DB.
func migratePostgres(dsn string, log *zap.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("store: open postgres: %w", err)
	}
	drv, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("store: postgres migration driver: %w", err)
	}
	defer drv.Close()
	return migrateUp("migrations/postgres", "pgx5", drv, log)
}
