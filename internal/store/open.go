package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Open returns the store selected by cfg.Driver ("sqlite" or "postgres").
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*SQLStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return OpenSQLite(cfg.DSN, log)
	case "postgres", "pgx":
		return OpenPostgres(ctx, cfg.DSN, log)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// migrateUp applies the embedded migrations under dir. The migrate instance
// is not closed since that would close the caller's *sql.DB.
func migrateUp(dir, dbName string, drv database.Driver, log *zap.Logger) error {
	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("store: migrations %s: %w", dir, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, dbName, drv)
	if err != nil {
		return fmt.Errorf("store: migrate init: %w", err)
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug("no new database migrations to apply")
			return nil
		}
		return fmt.Errorf("store: migrate up: %w", err)
	}
	log.Info("database migrations applied", zap.String("source", dir))
	return nil
}
