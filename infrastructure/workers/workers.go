// Package workers runs tasks supplied by a Processor on a fixed set of
// goroutines, with middleware, retries and metrics.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jrazmi/todolist/sdk/environment"
)

var (
	ErrWorkerShutdown = errors.New("worker should shutdown")
	ErrPoolShutdown   = errors.New("pool should shutdown")
	ErrPoolRunning    = errors.New("pool already running")
)

// Options represents the exportable worker configuration
type Options struct {
	Name         string        `env:"WORKER_NAME" default:"worker"`
	WorkerCount  int           `env:"WORKER_COUNT" default:"2"`
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" default:"100ms"`
	MaxRetries   int           `env:"WORKER_MAX_RETRIES" default:"1"`
	RetryDelay   time.Duration `env:"WORKER_RETRY_DELAY" default:"250ms"`
}

type options struct {
	name         string
	workerCount  int
	pollInterval time.Duration
	maxRetries   int
	retryDelay   time.Duration
	middlewares  []Middleware
	metrics      WorkerPoolMetrics
	logger       *slog.Logger
}

// Option is a function that configures the worker pool options
type Option func(*options)

// WorkerPool runs tasks from a Processor.
type WorkerPool[T Task] struct {
	processor    Processor[T]
	name         string
	workerCount  int
	pollInterval time.Duration
	maxRetries   int
	retryDelay   time.Duration
	log          *slog.Logger

	workFunc    WorkFunc
	middlewares []Middleware
	metrics     WorkerPoolMetrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	workers sync.WaitGroup
	errors  chan error
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMaxRetries sets the maximum number of attempts per task. 1 disables retries.
func WithMaxRetries(maxRetries int) Option {
	return func(o *options) {
		o.maxRetries = maxRetries
	}
}

// WithRetryDelay sets the first retry delay; later retries double it.
func WithRetryDelay(delay time.Duration) Option {
	return func(o *options) {
		o.retryDelay = delay
	}
}

// WithMiddleware appends middleware; the first added runs outermost.
func WithMiddleware(middlewares ...Middleware) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, middlewares...)
	}
}

// WithMetrics sets a custom metrics collector
func WithMetrics(metrics WorkerPoolMetrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// OptionsFromEnv reads the pool configuration from environment variables.
func OptionsFromEnv(prefix string) (Options, error) {
	var cfg Options
	if err := environment.ParseEnvTags(prefix, &cfg); err != nil {
		return Options{}, fmt.Errorf("parsing worker config: %w", err)
	}
	return cfg, nil
}

// New creates a worker pool from cfg. Zero values fall back to defaults.
func New[T Task](processor Processor[T], cfg Options, opts ...Option) *WorkerPool[T] {
	o := &options{
		name:         cfg.Name,
		workerCount:  cfg.WorkerCount,
		pollInterval: cfg.PollInterval,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		metrics:      NewNoOpMetrics(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.name == "" {
		o.name = "worker"
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.workerCount <= 0 {
		o.workerCount = 1
	}
	if o.pollInterval <= 0 {
		o.pollInterval = 100 * time.Millisecond
	}
	if o.maxRetries <= 0 {
		o.maxRetries = 1
	}
	if o.retryDelay <= 0 {
		o.retryDelay = 250 * time.Millisecond
	}

	pool := &WorkerPool[T]{
		processor:    processor,
		name:         o.name,
		workerCount:  o.workerCount,
		pollInterval: o.pollInterval,
		maxRetries:   o.maxRetries,
		retryDelay:   o.retryDelay,
		log:          o.logger,
		middlewares:  o.middlewares,
		metrics:      o.metrics,
	}
	pool.buildMiddlewareChain()

	return pool
}

// Start runs the workers and blocks until the context is cancelled or every
// worker has exited. It returns the first critical error a
// worker reported with ErrPoolShutdown, if any.
func (wp *WorkerPool[T]) Start(ctx context.Context) error {
	wp.mu.Lock()
	if wp.running {
		wp.mu.Unlock()
		return ErrPoolRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	wp.cancel = cancel
	wp.running = true
	wp.errors = make(chan error, wp.workerCount)
	wp.mu.Unlock()

	startTime := time.Now()
	wp.log.InfoContext(ctx, "starting worker pool",
		"name", wp.name,
		"worker_count", wp.workerCount)
	wp.metrics.Start(ctx, wp.name)

	for i := range wp.workerCount {
		workerID := fmt.Sprintf("%s-worker-%d", wp.name, i+1)
		wp.workers.Add(1)
		go wp.worker(ctx, workerID)
	}
	wp.workers.Wait()
	cancel()

	close(wp.errors)
	var poolErr error
	for err := range wp.errors {
		if poolErr == nil {
			poolErr = err
		}
	}

	wp.metrics.Stop(ctx)
	wp.log.InfoContext(context.WithoutCancel(ctx), "worker pool stopped",
		"name", wp.name,
		"total_runtime", time.Since(startTime))

	wp.mu.Lock()
	wp.running = false
	wp.mu.Unlock()

	return poolErr
}

// shutdown cancels every worker after a critical error.
func (wp *WorkerPool[T]) shutdown(ctx context.Context) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.running || wp.cancel == nil {
		return
	}
	wp.log.InfoContext(ctx, "stopping worker pool", "name", wp.name)
	wp.cancel()
}

func (wp *WorkerPool[T]) worker(ctx context.Context, workerID string) {
	defer wp.workers.Done()
	defer wp.metrics.RecordWorkerStopped()

	wp.metrics.RecordWorkerStarted()
	wp.log.DebugContext(ctx, "worker started", "worker_id", workerID, "pool", wp.name)
	defer wp.log.Debug("worker stopped", "worker_id", workerID, "pool", wp.name)

	for {
		if ctx.Err() != nil {
			return
		}

		err := wp.workWithPanicRecovery(ctx, workerID)

		switch {
		case err == nil:
			continue

		case errors.Is(err, ErrWorkerShutdown):
			return

		case errors.Is(err, ErrPoolShutdown):
			wp.log.ErrorContext(ctx, "worker requesting pool shutdown",
				"worker_id", workerID,
				"error", err)
			select {
			case wp.errors <- fmt.Errorf("worker %s: %w", workerID, err):
			default:
			}
			wp.shutdown(ctx)
			return

		default:
			wp.log.ErrorContext(ctx, "task processing error",
				"worker_id", workerID,
				"error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wp.pollInterval):
		}
	}
}

// workWithPanicRecovery wraps the entire work function with panic recovery.
func (wp *WorkerPool[T]) workWithPanicRecovery(ctx context.Context, workerID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			wp.log.ErrorContext(ctx, "panic recovered in worker",
				"worker_id", workerID,
				"panic", r,
				"stack_trace", string(debug.Stack()))
			wp.metrics.RecordWorkerPanic()
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()

	return wp.workFunc(ctx, workerID)
}

// work runs Checkout -> Process -> Complete/Fail. Once a task is checked out
// it runs to completion even if the pool is stopping.
func (wp *WorkerPool[T]) work(ctx context.Context, workerID string) error {
	task, err := wp.processor.Checkout(ctx, workerID)
	if err != nil {
		if errors.Is(err, ErrWorkerShutdown) {
			return err
		}
		wp.metrics.RecordCheckoutError()
		return fmt.Errorf("checkout failed: %w", err)
	}
	wp.metrics.RecordTaskCheckedOut()
	notifyCheckout(ctx)

	ctx = context.WithoutCancel(ctx)

	var (
		processErr    error
		processedTask T
		startTime     = time.Now()
	)

	defer func() {
		duration := time.Since(startTime)

		if r := recover(); r != nil {
			wp.log.ErrorContext(ctx, "panic recovered in task",
				"worker_id", workerID,
				"task_id", task.GetID(),
				"panic", r,
				"stack_trace", string(debug.Stack()))
			wp.metrics.RecordWorkerPanic()
			processErr = fmt.Errorf("panic: %v", r)
		}

		if processErr != nil {
			wp.metrics.RecordTaskFailed(duration)
			if failErr := wp.processor.Fail(ctx, task, processErr); failErr != nil {
				wp.log.ErrorContext(ctx, "failed to mark task as failed",
					"task_id", task.GetID(),
					"error", failErr)
			}
			return
		}

		wp.metrics.RecordTaskCompleted(duration)
		if completeErr := wp.processor.Complete(ctx, processedTask, int(duration.Milliseconds())); completeErr != nil {
			wp.log.ErrorContext(ctx, "failed to mark task as complete",
				"task_id", task.GetID(),
				"error", completeErr)
		}
	}()

	wp.log.DebugContext(ctx, "processing task",
		"worker_id", workerID,
		"task_id", task.GetID())

	processedTask, processErr = wp.processWithRetry(ctx, task)
	if processErr != nil {
		return fmt.Errorf("task %s: %w", task.GetID(), processErr)
	}
	return nil
}

// processWithRetry calls Process up to maxRetries times with exponential backoff.
func (wp *WorkerPool[T]) processWithRetry(ctx context.Context, task T) (T, error) {
	var (
		lastErr       error
		processedTask T
	)

	for attempt := 1; attempt <= wp.maxRetries; attempt++ {
		if attempt > 1 {
			wp.metrics.RecordRetryAttempt()
			delay := wp.retryDelay * time.Duration(1<<(attempt-2))
			wp.log.InfoContext(ctx, "retrying task",
				"task_id", task.GetID(),
				"attempt", attempt,
				"max_attempts", wp.maxRetries,
				"delay", delay)
			time.Sleep(delay)
		}

		processedTask, lastErr = wp.processor.Process(ctx, task)
		if lastErr == nil {
			if attempt > 1 {
				wp.metrics.RecordRetrySuccess()
			}
			return processedTask, nil
		}

		wp.log.ErrorContext(ctx, "task processing attempt failed",
			"task_id", task.GetID(),
			"attempt", attempt,
			"error", lastErr)
	}

	if wp.maxRetries > 1 {
		wp.metrics.RecordRetryExhausted()
		return processedTask, fmt.Errorf("failed after %d attempts: %w", wp.maxRetries, lastErr)
	}
	return processedTask, lastErr
}

// GetMetrics returns a snapshot of the pool metrics.
func (wp *WorkerPool[T]) GetMetrics() MetricsSnapshot {
	return wp.metrics.GetSnapshot()
}
