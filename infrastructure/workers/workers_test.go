package workers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type testTask struct {
	id       string
	failures int
	panics   bool
	delay    time.Duration
}

func (t testTask) GetID() string { return t.id }

type chanProcessor struct {
	tasks   chan testTask
	settled chan string

	mu        sync.Mutex
	attempts  map[string]int
	completed []string
	failed    map[string]error
}

func newChanProcessor() *chanProcessor {
	return &chanProcessor{
		tasks:    make(chan testTask, 64),
		settled:  make(chan string, 64),
		attempts: map[string]int{},
		failed:   map[string]error{},
	}
}

func (p *chanProcessor) Checkout(ctx context.Context, workerID string) (testTask, error) {
	select {
	case t, ok := <-p.tasks:
		if !ok {
			return testTask{}, ErrWorkerShutdown
		}
		return t, nil
	case <-ctx.Done():
		return testTask{}, ErrWorkerShutdown
	}
}

func (p *chanProcessor) Process(ctx context.Context, t testTask) (testTask, error) {
	p.mu.Lock()
	p.attempts[t.id]++
	attempt := p.attempts[t.id]
	p.mu.Unlock()

	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	if t.panics {
		panic("kaboom")
	}
	if attempt <= t.failures {
		return t, errBoom
	}
	return t, nil
}

func (p *chanProcessor) Complete(ctx context.Context, t testTask, processingTimeMS int) error {
	p.mu.Lock()
	p.completed = append(p.completed, t.id)
	p.mu.Unlock()
	p.settled <- t.id
	return nil
}

func (p *chanProcessor) Fail(ctx context.Context, t testTask, err error) error {
	p.mu.Lock()
	p.failed[t.id] = err
	p.mu.Unlock()
	p.settled <- t.id
	return nil
}

func (p *chanProcessor) waitSettled(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-p.settled:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %d settled tasks, got %d", n, i)
		}
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startPool[T Task](t *testing.T, pool *WorkerPool[T]) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Start(ctx) }()

	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("pool did not stop")
			return nil
		}
	}
}

func newPool(name string, count int, p Processor[testTask], opts ...Option) *WorkerPool[testTask] {
	return New(p, Options{Name: name, WorkerCount: count}, opts...)
}

func TestWorkerPool_ProcessesAllTasks(t *testing.T) {
	p := newChanProcessor()
	metrics := NewInMemoryMetrics()
	pool := newPool("test", 3, p, WithLogger(quietLogger()), WithMetrics(metrics))
	stop := startPool(t, pool)

	for i := range 10 {
		p.tasks <- testTask{id: fmt.Sprintf("t%d", i)}
	}
	p.waitSettled(t, 10)
	require.NoError(t, stop())

	assert.Len(t, p.completed, 10)
	assert.Empty(t, p.failed)

	snap := pool.GetMetrics()
	assert.Equal(t, "test", snap.PoolName)
	assert.Equal(t, int64(10), snap.TasksCheckedOut)
	assert.Equal(t, int64(10), snap.TasksCompleted)
	assert.Equal(t, int64(0), snap.TasksInFlight)
	assert.Equal(t, int64(0), snap.ActiveWorkers)
	assert.InDelta(t, 1.0, snap.SuccessRate, 0.0001)
}

func TestWorkerPool_FailedTaskIsReported(t *testing.T) {
	p := newChanProcessor()
	pool := newPool("test", 1, p, WithLogger(quietLogger()))
	stop := startPool(t, pool)

	p.tasks <- testTask{id: "bad", failures: 1}
	p.waitSettled(t, 1)
	require.NoError(t, stop())

	require.Contains(t, p.failed, "bad")
	assert.ErrorIs(t, p.failed["bad"], errBoom)
	assert.Equal(t, 1, p.attempts["bad"], "no retries by default")
}

func TestWorkerPool_Retries(t *testing.T) {
	tests := []struct {
		name          string
		failures      int
		wantCompleted bool
		wantAttempts  int
	}{
		{name: "succeeds on retry", failures: 2, wantCompleted: true, wantAttempts: 3},
		{name: "exhausts retries", failures: 5, wantCompleted: false, wantAttempts: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newChanProcessor()
			metrics := NewInMemoryMetrics()
			pool := newPool("retry", 1, p,
				WithLogger(quietLogger()),
				WithMaxRetries(3),
				WithRetryDelay(time.Millisecond),
				WithMetrics(metrics))
			stop := startPool(t, pool)

			p.tasks <- testTask{id: "job", failures: tt.failures}
			p.waitSettled(t, 1)
			require.NoError(t, stop())

			assert.Equal(t, tt.wantAttempts, p.attempts["job"])
			snap := metrics.GetSnapshot()
			if tt.wantCompleted {
				assert.Equal(t, []string{"job"}, p.completed)
				assert.Equal(t, int64(1), snap.RetrySuccesses)
				return
			}
			require.Contains(t, p.failed, "job")
			assert.ErrorIs(t, p.failed["job"], errBoom)
			assert.Contains(t, p.failed["job"].Error(), "failed after 3 attempts")
			assert.Equal(t, int64(1), snap.RetryExhausted)
		})
	}
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	p := newChanProcessor()
	metrics := NewInMemoryMetrics()
	pool := newPool("panic", 1, p, WithLogger(quietLogger()), WithMetrics(metrics))
	stop := startPool(t, pool)

	p.tasks <- testTask{id: "panics", panics: true}
	p.tasks <- testTask{id: "fine"}
	p.waitSettled(t, 2)
	require.NoError(t, stop())

	require.Contains(t, p.failed, "panics")
	assert.Contains(t, p.failed["panics"].Error(), "kaboom")
	assert.Equal(t, []string{"fine"}, p.completed)
	assert.Equal(t, int64(1), metrics.GetSnapshot().WorkerPanics)
}

func TestWorkerPool_MiddlewareOrder(t *testing.T) {
	p := newChanProcessor()

	var mu sync.Mutex
	var calls []string
	record := func(name string) Middleware {
		return func(next WorkFunc) WorkFunc {
			return func(ctx context.Context, workerID string) error {
				mu.Lock()
				calls = append(calls, name)
				mu.Unlock()
				return next(ctx, workerID)
			}
		}
	}

	pool := newPool("mw", 1, p, WithLogger(quietLogger()),
		WithMiddleware(record("outer"), record("inner")))
	stop := startPool(t, pool)

	p.tasks <- testTask{id: "one"}
	p.waitSettled(t, 1)
	require.NoError(t, stop())

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(calls), 2)
	assert.Equal(t, []string{"outer", "inner"}, calls[:2])
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSlowWorkLogger(t *testing.T) {
	var out syncBuffer
	log := slog.New(slog.NewTextHandler(&out, nil))

	p := newChanProcessor()
	pool := newPool("slow", 1, p,
		WithLogger(quietLogger()),
		WithMiddleware(SlowWorkLogger(log, 5*time.Millisecond)))
	stop := startPool(t, pool)

	// Blocking in Checkout is not counted as work.
	time.Sleep(20 * time.Millisecond)
	p.tasks <- testTask{id: "quick"}
	p.waitSettled(t, 1)
	assert.NotContains(t, out.String(), "slow work")

	p.tasks <- testTask{id: "sluggish", delay: 30 * time.Millisecond}
	p.waitSettled(t, 1)
	require.NoError(t, stop())

	assert.Contains(t, out.String(), "slow work")
}

type shutdownProcessor struct {
	*chanProcessor
}

func (p *shutdownProcessor) Checkout(ctx context.Context, workerID string) (testTask, error) {
	return testTask{}, fmt.Errorf("database gone: %w", ErrPoolShutdown)
}

func TestWorkerPool_PoolShutdownError(t *testing.T) {
	p := &shutdownProcessor{chanProcessor: newChanProcessor()}
	pool := newPool("fatal", 2, p, WithLogger(quietLogger()))

	errCh := make(chan error, 1)
	go func() { errCh <- pool.Start(context.Background()) }()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrPoolShutdown)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not shut down")
	}
}

func TestWorkerPool_StartTwice(t *testing.T) {
	p := newChanProcessor()
	pool := newPool("twice", 1, p, WithLogger(quietLogger()))
	stop := startPool(t, pool)

	// Wait until the first Start has marked the pool running.
	require.Eventually(t, func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		return pool.running
	}, 2*time.Second, time.Millisecond)

	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolRunning)
	require.NoError(t, stop())
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("WQ_WORKER_NAME", "persist")
	t.Setenv("WQ_WORKER_COUNT", "4")
	t.Setenv("WQ_WORKER_MAX_RETRIES", "2")

	cfg, err := OptionsFromEnv("WQ")
	require.NoError(t, err)

	pool := New[testTask](newChanProcessor(), cfg, WithLogger(quietLogger()))
	assert.Equal(t, "persist", pool.name)
	assert.Equal(t, 4, pool.workerCount)
	assert.Equal(t, 2, pool.maxRetries)
	assert.Equal(t, 100*time.Millisecond, pool.pollInterval)
}

func TestLoggerMetrics(t *testing.T) {
	var out syncBuffer
	metrics := NewLoggerMetrics(slog.New(slog.NewTextHandler(&out, nil)), 5*time.Millisecond)

	metrics.Start(context.Background(), "logged")
	metrics.RecordTaskCheckedOut()
	metrics.RecordTaskCompleted(time.Millisecond)

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("trigger=interval"))
	}, time.Second, 5*time.Millisecond)

	metrics.Stop(context.Background())
	assert.Contains(t, out.String(), "trigger=stop")
	assert.Contains(t, out.String(), "pool=logged")
	assert.Contains(t, out.String(), "completed=1")
}
