// Package repositories wires the configured storage backend into the
// repositories the application uses.
package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jrazmi/todolist/core/repositories/todosrepo"
	"github.com/jrazmi/todolist/core/repositories/todosrepo/stores/todospgxstore"
	"github.com/jrazmi/todolist/core/repositories/todosrepo/stores/todosredisstore"
	"github.com/jrazmi/todolist/core/repositories/todosrepo/stores/todossqlitestore"
	"github.com/jrazmi/todolist/infrastructure/postgresdb"
	"github.com/jrazmi/todolist/infrastructure/redisdb"
	"github.com/jrazmi/todolist/infrastructure/sqlitedb"
	"github.com/jrazmi/todolist/sdk/environment"
	"github.com/jrazmi/todolist/sdk/logger"
)

// Backend names a storage engine.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
)

// ParseBackend validates a backend name, case-insensitively.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendSQLite, BackendPostgres, BackendRedis:
		return b, nil
	default:
		return "", fmt.Errorf("unknown store backend %q", s)
	}
}

// Repositories holds the repositories for one process. There is exactly one
// store behind them; Close releases it.
type Repositories struct {
	Backend Backend
	Todos   *todosrepo.Repository
}

func NewSQLiteRepositories(log *logger.Logger, db *sqlitedb.DB) Repositories {
	return Repositories{
		Backend: BackendSQLite,
		Todos:   todosrepo.NewRepository(log, todossqlitestore.NewStore(log, db)),
	}
}

func NewPostgresRepositories(log *logger.Logger, pool *postgresdb.Pool) Repositories {
	return Repositories{
		Backend: BackendPostgres,
		Todos:   todosrepo.NewRepository(log, todospgxstore.NewStore(log, pool)),
	}
}

func NewRedisRepositories(log *logger.Logger, client *redisdb.Client, prefix string) Repositories {
	return Repositories{
		Backend: BackendRedis,
		Todos:   todosrepo.NewRepository(log, todosredisstore.NewStore(log, client, prefix)),
	}
}

// Close closes the underlying store.
func (r Repositories) Close() error {
	if r.Todos == nil {
		return nil
	}
	return r.Todos.Close()
}

// OpenFromEnv opens the given backend using its environment configuration
// under prefix. Any error here means the process has no data store.
func OpenFromEnv(ctx context.Context, log *logger.Logger, prefix string, backend Backend) (Repositories, error) {
	switch backend {
	case BackendSQLite:
		db, err := sqlitedb.NewFromEnv(ctx, prefix, sqlitedb.WithLogger(log.Logger))
		if err != nil {
			return Repositories{}, fmt.Errorf("configuring sqlite support: %w", err)
		}
		return NewSQLiteRepositories(log, db), nil

	case BackendPostgres:
		pool, err := postgresdb.NewFromEnv(ctx, prefix, postgresdb.WithLogger(log.Logger))
		if err != nil {
			return Repositories{}, fmt.Errorf("configuring postgres support: %w", err)
		}
		return NewPostgresRepositories(log, pool), nil

	case BackendRedis:
		client, err := redisdb.NewFromEnv(ctx, prefix)
		if err != nil {
			return Repositories{}, fmt.Errorf("configuring redis support: %w", err)
		}
		keyPrefix := environment.GetNamespaceEnvOrDefault(prefix, "REDIS_KEY_PREFIX", todosredisstore.DefaultPrefix)
		return NewRedisRepositories(log, client, keyPrefix), nil

	default:
		return Repositories{}, fmt.Errorf("unknown store backend %q", backend)
	}
}
