package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jrazmi/todolist/core/repositories"
	"github.com/jrazmi/todolist/infrastructure/postgresdb"
	"github.com/jrazmi/todolist/infrastructure/sqlitedb"
)

// Migrate applies pending schema migrations for backend. Redis has no schema.
func Migrate(ctx context.Context, log *slog.Logger, prefix string, backend repositories.Backend) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	log.InfoContext(ctx, "migration started", "backend", backend)

	switch backend {
	case repositories.BackendSQLite:
		db, err := sqlitedb.NewFromEnv(ctx, prefix, sqlitedb.WithLogger(log), sqlitedb.WithMigrate(true))
		if err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
		defer db.Close()
		if err := sqlitedb.StatusCheck(ctx, db); err != nil {
			return fmt.Errorf("database status check failed: %w", err)
		}

	case repositories.BackendPostgres:
		pool, err := postgresdb.NewFromEnv(ctx, prefix, postgresdb.WithLogger(log), postgresdb.WithMigrate(true))
		if err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		defer pool.Close()
		if err := postgresdb.StatusCheck(ctx, pool); err != nil {
			return fmt.Errorf("database status check failed: %w", err)
		}

	case repositories.BackendRedis:
		log.InfoContext(ctx, "redis store has no schema, nothing to migrate")
		return nil

	default:
		return fmt.Errorf("unknown store backend %q", backend)
	}

	log.InfoContext(ctx, "migrations completed successfully")
	return nil
}
