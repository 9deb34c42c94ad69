// Package todossqlitestore implements todosrepo.Storer on the embedded sqlite
// database.
package todossqlitestore

import (
	"context"
	"fmt"

	"github.com/jrazmi/todolist/core/repositories/todosrepo"
	"github.com/jrazmi/todolist/infrastructure/sqlitedb"
	"github.com/jrazmi/todolist/sdk/logger"
)

// Store provides database access for Task.
type Store struct {
	log *logger.Logger
	db  *sqlitedb.DB
}

// NewStore creates a new Task store. The store owns db and closes it on Close.
func NewStore(log *logger.Logger, db *sqlitedb.DB) *Store {
	return &Store{
		log: log,
		db:  db,
	}
}

func (s *Store) GetAll(ctx context.Context) ([]todosrepo.Task, error) {
	const query = `SELECT id, task, isCompleted FROM todo_items ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []todosrepo.Task{}
	for rows.Next() {
		var t todosrepo.Task
		if err := rows.Scan(&t.ID, &t.Text, &t.Completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (s *Store) Insert(ctx context.Context, input todosrepo.CreateTask) (todosrepo.Task, error) {
	const query = `INSERT INTO todo_items (task, isCompleted) VALUES (?, 0) RETURNING id, task, isCompleted`

	var t todosrepo.Task
	if err := s.db.QueryRowContext(ctx, query, input.Text).Scan(&t.ID, &t.Text, &t.Completed); err != nil {
		return todosrepo.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

func (s *Store) UpdateCompletion(ctx context.Context, id int64, completed bool) error {
	const query = `UPDATE todo_items SET isCompleted = ? WHERE id = ?`

	res, err := s.db.ExecContext(ctx, query, completed, id)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.log.DebugContext(ctx, "update completion: no such task", "id", id)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM todo_items WHERE id = ?`

	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return sqlitedb.StatusCheck(ctx, s.db)
}

func (s *Store) Close() error {
	return s.db.Close()
}
