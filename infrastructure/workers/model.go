package workers

import "context"

// Task interface - any task must have an ID
type Task interface {
	GetID() string
}

// Processor supplies and settles the tasks a pool runs.
type Processor[T Task] interface {
	// Checkout gets the next available task. It must be safe for concurrent
	// workers and may block until work arrives or ctx is done. It returns
	// ErrWorkerShutdown when the worker should exit and ErrPoolShutdown when
	// the whole pool must stop.
	Checkout(ctx context.Context, workerID string) (T, error)

	// Process executes the task and returns the updated task.
	Process(ctx context.Context, task T) (T, error)

	// Complete is called when a task completes successfully
	Complete(ctx context.Context, task T, processingTimeMS int) error

	// Fail is called when a task fails after all attempts
	Fail(ctx context.Context, task T, err error) error
}

// WorkFunc is the signature for the work function
type WorkFunc func(ctx context.Context, workerID string) error

// Middleware wraps a WorkFunc with additional behavior
type Middleware func(WorkFunc) WorkFunc
