// Package todospgxstore implements todosrepo.Storer on postgres through pgx.
package todospgxstore

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jrazmi/todolist/core/repositories/todosrepo"
	"github.com/jrazmi/todolist/infrastructure/postgresdb"
	"github.com/jrazmi/todolist/sdk/logger"
)

// Store provides database access for Task.
type Store struct {
	log  *logger.Logger
	pool *postgresdb.Pool
}

// NewStore creates a new Task store. The store owns pool and closes it on Close.
func NewStore(log *logger.Logger, pool *postgresdb.Pool) *Store {
	return &Store{
		log:  log,
		pool: pool,
	}
}

func (s *Store) GetAll(ctx context.Context) ([]todosrepo.Task, error) {
	query := `SELECT id, task, "isCompleted"
		FROM todo_items
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, postgresdb.HandlePgError(err)
	}
	defer rows.Close()

	tasks, err := pgx.CollectRows(rows, pgx.RowToStructByName[todosrepo.Task])
	if err != nil {
		return nil, postgresdb.HandlePgError(err)
	}
	return tasks, nil
}

func (s *Store) Insert(ctx context.Context, input todosrepo.CreateTask) (todosrepo.Task, error) {
	query := `INSERT INTO todo_items (task, "isCompleted")
		VALUES (@task, FALSE)
		RETURNING id, task, "isCompleted"`

	args := pgx.NamedArgs{"task": input.Text}
	rows, err := s.pool.Query(ctx, query, args)
	if err != nil {
		return todosrepo.Task{}, postgresdb.HandlePgError(err)
	}
	defer rows.Close()

	task, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[todosrepo.Task])
	if err != nil {
		return todosrepo.Task{}, postgresdb.HandlePgError(err)
	}
	return task, nil
}

func (s *Store) UpdateCompletion(ctx context.Context, id int64, completed bool) error {
	query := `UPDATE todo_items
		SET "isCompleted" = @completed
		WHERE id = @id`

	args := pgx.NamedArgs{
		"id":        id,
		"completed": completed,
	}
	tag, err := s.pool.Exec(ctx, query, args)
	if err != nil {
		return postgresdb.HandlePgError(err)
	}
	if tag.RowsAffected() == 0 {
		s.log.DebugContext(ctx, "update completion: no such task", "id", id)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM todo_items WHERE id = @id`

	if _, err := s.pool.Exec(ctx, query, pgx.NamedArgs{"id": id}); err != nil {
		return postgresdb.HandlePgError(err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return postgresdb.StatusCheck(ctx, s.pool)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
