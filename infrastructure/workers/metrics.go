package workers

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// WorkerPoolMetrics collects pool activity.
type WorkerPoolMetrics interface {
	Start(ctx context.Context, poolName string)
	Stop(ctx context.Context)

	RecordWorkerStarted()
	RecordWorkerStopped()
	RecordWorkerPanic()

	RecordTaskCheckedOut()
	RecordTaskCompleted(duration time.Duration)
	RecordTaskFailed(duration time.Duration)
	RecordCheckoutError()

	RecordRetryAttempt()
	RecordRetrySuccess()
	RecordRetryExhausted()

	GetSnapshot() MetricsSnapshot
}

// MetricsSnapshot is a point-in-time copy of the pool counters.
type MetricsSnapshot struct {
	PoolName      string    `json:"poolName"`
	StartedAt     time.Time `json:"startedAt"`
	ActiveWorkers int64     `json:"activeWorkers"`
	WorkerPanics  int64     `json:"workerPanics"`

	TasksCheckedOut int64 `json:"tasksCheckedOut"`
	TasksCompleted  int64 `json:"tasksCompleted"`
	TasksFailed     int64 `json:"tasksFailed"`
	TasksInFlight   int64 `json:"tasksInFlight"`
	CheckoutErrors  int64 `json:"checkoutErrors"`

	RetryAttempts  int64 `json:"retryAttempts"`
	RetrySuccesses int64 `json:"retrySuccesses"`
	RetryExhausted int64 `json:"retryExhausted"`

	AvgDuration time.Duration `json:"avgDurationNs"`
	MinDuration time.Duration `json:"minDurationNs"`
	MaxDuration time.Duration `json:"maxDurationNs"`
	SuccessRate float64       `json:"successRate"`
}

// NoOpMetrics discards everything.
type NoOpMetrics struct{}

func NewNoOpMetrics() WorkerPoolMetrics {
	return &NoOpMetrics{}
}

func (n *NoOpMetrics) Start(ctx context.Context, poolName string) {}
func (n *NoOpMetrics) Stop(ctx context.Context)                   {}
func (n *NoOpMetrics) RecordWorkerStarted()                       {}
func (n *NoOpMetrics) RecordWorkerStopped()                       {}
func (n *NoOpMetrics) RecordWorkerPanic()                         {}
func (n *NoOpMetrics) RecordTaskCheckedOut()                      {}
func (n *NoOpMetrics) RecordTaskCompleted(duration time.Duration) {}
func (n *NoOpMetrics) RecordTaskFailed(duration time.Duration)    {}
func (n *NoOpMetrics) RecordCheckoutError()                       {}
func (n *NoOpMetrics) RecordRetryAttempt()                        {}
func (n *NoOpMetrics) RecordRetrySuccess()                        {}
func (n *NoOpMetrics) RecordRetryExhausted()                      {}
func (n *NoOpMetrics) GetSnapshot() MetricsSnapshot               { return MetricsSnapshot{} }

// InMemoryMetrics keeps counters in memory for GetSnapshot.
type InMemoryMetrics struct {
	activeWorkers   atomic.Int64
	workerPanics    atomic.Int64
	tasksCheckedOut atomic.Int64
	tasksCompleted  atomic.Int64
	tasksFailed     atomic.Int64
	checkoutErrors  atomic.Int64
	retryAttempts   atomic.Int64
	retrySuccesses  atomic.Int64
	retryExhausted  atomic.Int64

	mu            sync.RWMutex
	poolName      string
	startedAt     time.Time
	totalDuration time.Duration
	minDuration   time.Duration
	maxDuration   time.Duration
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{}
}

func (m *InMemoryMetrics) Start(ctx context.Context, poolName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poolName = poolName
	m.startedAt = time.Now()
}

func (m *InMemoryMetrics) Stop(ctx context.Context) {}

func (m *InMemoryMetrics) RecordWorkerStarted() { m.activeWorkers.Add(1) }
func (m *InMemoryMetrics) RecordWorkerStopped() { m.activeWorkers.Add(-1) }
func (m *InMemoryMetrics) RecordWorkerPanic()   { m.workerPanics.Add(1) }
func (m *InMemoryMetrics) RecordTaskCheckedOut() {
	m.tasksCheckedOut.Add(1)
}

func (m *InMemoryMetrics) RecordTaskCompleted(duration time.Duration) {
	m.tasksCompleted.Add(1)
	m.recordDuration(duration)
}

func (m *InMemoryMetrics) RecordTaskFailed(duration time.Duration) {
	m.tasksFailed.Add(1)
	m.recordDuration(duration)
}

func (m *InMemoryMetrics) RecordCheckoutError()  { m.checkoutErrors.Add(1) }
func (m *InMemoryMetrics) RecordRetryAttempt()   { m.retryAttempts.Add(1) }
func (m *InMemoryMetrics) RecordRetrySuccess()   { m.retrySuccesses.Add(1) }
func (m *InMemoryMetrics) RecordRetryExhausted() { m.retryExhausted.Add(1) }

func (m *InMemoryMetrics) recordDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalDuration += d
	if m.minDuration == 0 || d < m.minDuration {
		m.minDuration = d
	}
	if d > m.maxDuration {
		m.maxDuration = d
	}
}

func (m *InMemoryMetrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := MetricsSnapshot{
		PoolName:        m.poolName,
		StartedAt:       m.startedAt,
		ActiveWorkers:   m.activeWorkers.Load(),
		WorkerPanics:    m.workerPanics.Load(),
		TasksCheckedOut: m.tasksCheckedOut.Load(),
		TasksCompleted:  m.tasksCompleted.Load(),
		TasksFailed:     m.tasksFailed.Load(),
		CheckoutErrors:  m.checkoutErrors.Load(),
		RetryAttempts:   m.retryAttempts.Load(),
		RetrySuccesses:  m.retrySuccesses.Load(),
		RetryExhausted:  m.retryExhausted.Load(),
		MinDuration:     m.minDuration,
		MaxDuration:     m.maxDuration,
	}
	settled := s.TasksCompleted + s.TasksFailed
	s.TasksInFlight = s.TasksCheckedOut - settled
	if settled > 0 {
		s.AvgDuration = m.totalDuration / time.Duration(settled)
		s.SuccessRate = float64(s.TasksCompleted) / float64(settled)
	}
	return s
}

// LoggerMetrics records in memory and logs a summary every interval and on Stop.
type LoggerMetrics struct {
	*InMemoryMetrics
	log      *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoggerMetrics returns metrics that log a summary every interval. An
// interval <= 0 only logs on Stop.
func NewLoggerMetrics(log *slog.Logger, interval time.Duration) *LoggerMetrics {
	return &LoggerMetrics{
		InMemoryMetrics: NewInMemoryMetrics(),
		log:             log,
		interval:        interval,
	}
}

func (l *LoggerMetrics) Start(ctx context.Context, poolName string) {
	l.InMemoryMetrics.Start(ctx, poolName)
	if l.interval <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	ctx, l.cancel = context.WithCancel(context.WithoutCancel(ctx))
	l.done = make(chan struct{})
	go l.periodicLog(ctx, l.done)
}

func (l *LoggerMetrics) Stop(ctx context.Context) {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		<-l.done
		l.cancel = nil
	}
	l.mu.Unlock()
	l.logSnapshot(ctx, "stop")
}

func (l *LoggerMetrics) periodicLog(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.logSnapshot(ctx, "interval")
		}
	}
}

func (l *LoggerMetrics) logSnapshot(ctx context.Context, trigger string) {
	s := l.GetSnapshot()
	l.log.InfoContext(ctx, "worker pool metrics",
		"trigger", trigger,
		"pool", s.PoolName,
		"active_workers", s.ActiveWorkers,
		"checked_out", s.TasksCheckedOut,
		"completed", s.TasksCompleted,
		"failed", s.TasksFailed,
		"in_flight", s.TasksInFlight,
		"avg_duration", s.AvgDuration,
		"success_rate", s.SuccessRate)
}
