// Package todosrepo provides durable CRUD access to to-do tasks. Storage
// backends live under stores/ and implement Storer.
package todosrepo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jrazmi/todolist/sdk/logger"
)

var (
	ErrEmptyText = errors.New("task text is empty")
)

// Storer is the storage contract every backend implements. UpdateCompletion
// and Delete treat an unknown id as a no-op.
type Storer interface {
	GetAll(ctx context.Context) ([]Task, error)
	Insert(ctx context.Context, input CreateTask) (Task, error)
	UpdateCompletion(ctx context.Context, id int64, completed bool) error
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
	Close() error
}

// Repository provides access to task storage. Writes go through a single
// writer at a time regardless of the backend's own locking.
type Repository struct {
	log    *logger.Logger
	storer Storer

	writeMu sync.Mutex
}

// NewRepository creates a new Task repository
func NewRepository(log *logger.Logger, storer Storer) *Repository {
	return &Repository{
		log:    log,
		storer: storer,
	}
}

// GetAll returns every stored task ordered by id.
func (r *Repository) GetAll(ctx context.Context) ([]Task, error) {
	tasks, err := r.storer.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("todos repository get all: %w", err)
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

// Insert validates and stores a new task, returning it with its assigned id.
func (r *Repository) Insert(ctx context.Context, input CreateTask) (Task, error) {
	if err := input.Validate(); err != nil {
		return Task{}, err
	}
	input = input.Normalize()

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	task, err := r.storer.Insert(ctx, input)
	if err != nil {
		return Task{}, fmt.Errorf("todos repository insert: %w", err)
	}

	r.log.DebugContext(ctx, "task inserted", "id", task.ID)
	return task, nil
}

func (r *Repository) UpdateCompletion(ctx context.Context, id int64, completed bool) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.storer.UpdateCompletion(ctx, id, completed); err != nil {
		return fmt.Errorf("todos repository update completion [%d]: %w", id, err)
	}

	r.log.DebugContext(ctx, "task completion updated", "id", id, "completed", completed)
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.storer.Delete(ctx, id); err != nil {
		return fmt.Errorf("todos repository delete [%d]: %w", id, err)
	}

	r.log.DebugContext(ctx, "task deleted", "id", id)
	return nil
}

// Ping checks the backing store is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.storer.Ping(ctx)
}

func (r *Repository) Close() error {
	return r.storer.Close()
}
