// Package tasklist keeps an ordered in-memory task list in sync with the task
// store. Store writes run on a background worker pool; every change to the
// list happens on a single loop goroutine started by Run, and subscribers are
// notified from that goroutine.
package tasklist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jrazmi/todolist/core/repositories/todosrepo"
	"github.com/jrazmi/todolist/infrastructure/workers"
	"github.com/jrazmi/todolist/sdk/logger"
)

var (
	ErrIgnored        = errors.New("blank task ignored")
	ErrAlreadyLoaded  = errors.New("task list already loaded")
	ErrStopped        = errors.New("task list stopped")
	ErrAlreadyRunning = errors.New("task list already running")
)

// Mode controls when the list reflects a toggle or delete.
type Mode int

const (
	// ModeConfirmed changes the list only after the store write succeeds.
	ModeConfirmed Mode = iota
	// ModeOptimistic changes the list first and rolls back if the write
	// fails. Adds are always confirmed because the store assigns the id.
	ModeOptimistic
)

func (m Mode) String() string {
	if m == ModeOptimistic {
		return "optimistic"
	}
	return "confirmed"
}

// ParseMode parses "confirmed" or "optimistic".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "confirmed":
		return ModeConfirmed, nil
	case "optimistic":
		return ModeOptimistic, nil
	}
	return ModeConfirmed, fmt.Errorf("unknown task list mode %q", s)
}

// Store is the persistence the list is kept in sync with.
type Store interface {
	GetAll(ctx context.Context) ([]todosrepo.Task, error)
	Insert(ctx context.Context, input todosrepo.CreateTask) (todosrepo.Task, error)
	UpdateCompletion(ctx context.Context, id int64, completed bool) error
	Delete(ctx context.Context, id int64) error
}

type options struct {
	mode        Mode
	poolConfig  workers.Options
	poolOptions []workers.Option
	slowWrite   time.Duration
	metricsLog  time.Duration
}

// Option configures a Synchronizer.
type Option func(*options)

// WithMode sets the ordering mode. The default is ModeConfirmed.
func WithMode(mode Mode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithPoolConfig sets the persistence worker pool configuration.
func WithPoolConfig(cfg workers.Options) Option {
	return func(o *options) {
		o.poolConfig = cfg
	}
}

// WithPoolOptions appends options for the persistence worker pool.
func WithPoolOptions(opts ...workers.Option) Option {
	return func(o *options) {
		o.poolOptions = append(o.poolOptions, opts...)
	}
}

// WithSlowWriteThreshold sets when a store write is logged as slow.
func WithSlowWriteThreshold(d time.Duration) Option {
	return func(o *options) {
		o.slowWrite = d
	}
}

// WithMetricsLogInterval logs pool metrics every d and when Run returns.
// Zero disables metrics logging.
func WithMetricsLogInterval(d time.Duration) Option {
	return func(o *options) {
		o.metricsLog = d
	}
}

type loadState int

const (
	loadIdle loadState = iota
	loadRunning
	loadDone
)

// Synchronizer owns the task list.
type Synchronizer struct {
	log   *logger.Logger
	store Store
	mode  Mode
	queue *jobQueue
	pool  *workers.WorkerPool[*job]
	subs  subscribers

	mu      sync.Mutex
	inbox   []func()
	signal  chan struct{}
	started bool
	closed  bool

	// Owned by the loop.
	tasks    []todosrepo.Task
	load     loadState
	deferred []func()
	writes   map[int64]*inflight
}

// inflight counts the optimistic writes for one task that have not settled
// and remembers the completion the store last confirmed.
type inflight struct {
	pending   int
	confirmed bool
}

// New creates a Synchronizer. Nothing runs until Run is called.
func New(log *logger.Logger, store Store, opts ...Option) *Synchronizer {
	o := options{
		mode: ModeConfirmed,
		poolConfig: workers.Options{
			Name:        "persistence",
			WorkerCount: 2,
			MaxRetries:  1,
		},
		slowWrite: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.poolConfig.Name == "" {
		o.poolConfig.Name = "persistence"
	}

	s := &Synchronizer{
		log:    log,
		store:  store,
		mode:   o.mode,
		queue:  newJobQueue(),
		signal: make(chan struct{}, 1),
		tasks:  []todosrepo.Task{},
		writes: map[int64]*inflight{},
	}

	var metrics workers.WorkerPoolMetrics = workers.NewInMemoryMetrics()
	if o.metricsLog > 0 {
		metrics = workers.NewLoggerMetrics(log.Logger, o.metricsLog)
	}

	poolOpts := []workers.Option{
		workers.WithLogger(log.Logger),
		workers.WithMetrics(metrics),
		workers.WithMiddleware(workers.SlowWorkLogger(log.Logger, o.slowWrite)),
	}
	s.pool = workers.New[*job](s.queue, o.poolConfig, append(poolOpts, o.poolOptions...)...)

	return s
}

// Mode reports the ordering mode.
func (s *Synchronizer) Mode() Mode {
	return s.mode
}

// Metrics returns the persistence worker pool metrics.
func (s *Synchronizer) Metrics() workers.MetricsSnapshot {
	return s.pool.GetMetrics()
}

// Run runs the loop and the persistence pool until ctx is done. Writes already
// issued are completed and applied before Run returns; later actions resolve
// with ErrStopped. A Synchronizer can only be run once.
func (s *Synchronizer) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.started = true
	s.mu.Unlock()

	poolCtx, cancelPool := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelPool()

	poolDone := make(chan error, 1)
	go func() {
		poolDone <- s.pool.Start(poolCtx)
	}()

	s.log.InfoContext(ctx, "task list running", "mode", s.mode.String())

	stopping := ctx.Done()
	for {
		select {
		case <-s.signal:
			for _, fn := range s.takeInbox() {
				fn()
			}

		case <-stopping:
			stopping = nil
			s.log.InfoContext(ctx, "task list stopping", "queued_writes", s.queue.len())
			s.queue.close()

		case err := <-poolDone:
			s.queue.close()
			s.shutdown()
			s.log.InfoContext(context.WithoutCancel(ctx), "task list stopped")
			if err != nil {
				return fmt.Errorf("persistence pool: %w", err)
			}
			return nil
		}
	}
}

// post schedules fn on the loop. It reports false once the loop has stopped.
func (s *Synchronizer) post(fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.inbox = append(s.inbox, fn)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
	return true
}

func (s *Synchronizer) takeInbox() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	fns := s.inbox
	s.inbox = nil
	return fns
}

// shutdown closes the inbox and runs whatever was posted before it closed.
func (s *Synchronizer) shutdown() {
	s.mu.Lock()
	s.closed = true
	fns := s.inbox
	s.inbox = nil
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// dispatch runs action on the loop once any load in progress has been applied.
func (s *Synchronizer) dispatch(p *Pending, action func()) {
	ok := s.post(func() {
		if s.load == loadRunning {
			s.deferred = append(s.deferred, action)
			return
		}
		action()
	})
	if !ok {
		p.resolve(todosrepo.Task{}, ErrStopped)
	}
}

// enqueue submits a store operation. then runs on the loop with its result.
// Must be called on the loop.
func (s *Synchronizer) enqueue(key string, barrier bool, run func(ctx context.Context) error, then func(err error)) {
	j := &job{
		id:      uuid.NewString(),
		key:     key,
		run:     run,
		barrier: barrier,
	}
	j.settle = func(err error) {
		s.post(func() { then(err) })
	}
	if err := s.queue.push(j); err != nil {
		then(err)
	}
}

// Load reads every task from the store into the list. Actions issued while the
// load is running are applied after it. Load succeeds once per Synchronizer;
// after a failed load it may be called again.
func (s *Synchronizer) Load(ctx context.Context) error {
	p := newPending()
	ok := s.post(func() {
		if s.load != loadIdle {
			p.resolve(todosrepo.Task{}, ErrAlreadyLoaded)
			return
		}
		s.load = loadRunning

		var loaded []todosrepo.Task
		s.enqueue(loadKey, true, func(ctx context.Context) error {
			var err error
			loaded, err = s.store.GetAll(ctx)
			return err
		}, func(err error) {
			if err != nil {
				s.load = loadIdle
				s.log.ErrorContext(ctx, "loading tasks", "error", err)
				s.publish(Event{Kind: EventFailed, Err: err})
				p.resolve(todosrepo.Task{}, err)
			} else {
				s.load = loadDone
				s.tasks = append(s.tasks[:0], loaded...)
				s.log.InfoContext(ctx, "tasks loaded", "count", len(s.tasks))
				s.publish(Event{Kind: EventLoaded})
				p.resolve(todosrepo.Task{}, nil)
			}

			deferred := s.deferred
			s.deferred = nil
			for _, action := range deferred {
				action()
			}
		})
	})
	if !ok {
		return ErrStopped
	}

	_, err := p.Wait(ctx)
	return err
}

// AddTask stores a new task and appends it to the list. Blank text is
// ignored: nothing is stored and the result resolves with ErrIgnored. ctx is
// used for logging only; the write is never cancelled once issued.
func (s *Synchronizer) AddTask(ctx context.Context, text string) *Pending {
	input := todosrepo.CreateTask{Text: text}
	if err := input.Validate(); err != nil {
		return resolved(todosrepo.Task{}, ErrIgnored)
	}
	input = input.Normalize()

	p := newPending()
	s.dispatch(p, func() {
		var created todosrepo.Task
		s.enqueue(insertKey, false, func(ctx context.Context) error {
			var err error
			created, err = s.store.Insert(ctx, input)
			return err
		}, func(err error) {
			if err != nil {
				s.fail(ctx, p, "adding task", todosrepo.Task{Text: input.Text}, err)
				return
			}
			s.tasks = append(s.tasks, created)
			s.publish(Event{Kind: EventAdded, Task: created})
			p.resolve(created, nil)
		})
	})
	return p
}

// ToggleCompletion sets the completed flag of task id. An id not in the list
// is a no-op that resolves with the zero Task.
func (s *Synchronizer) ToggleCompletion(ctx context.Context, id int64, completed bool) *Pending {
	p := newPending()
	s.dispatch(p, func() {
		i := s.indexOf(id)
		if i < 0 {
			p.resolve(todosrepo.Task{}, nil)
			return
		}

		write := func(ctx context.Context) error {
			return s.store.UpdateCompletion(ctx, id, completed)
		}

		if s.mode == ModeOptimistic {
			w := s.beginWrite(s.tasks[i])
			s.tasks[i].Completed = completed
			updated := s.tasks[i]
			s.publish(Event{Kind: EventUpdated, Task: updated})

			s.enqueue(taskKey(id), false, write, func(err error) {
				if s.endWrite(id, w, completed, err) {
					if j := s.indexOf(id); j >= 0 {
						s.tasks[j].Completed = w.confirmed
					}
				}
				if err != nil {
					s.fail(ctx, p, "updating task", updated, err)
					return
				}
				p.resolve(updated, nil)
			})
			return
		}

		s.enqueue(taskKey(id), false, write, func(err error) {
			j := s.indexOf(id)
			if err != nil {
				task := todosrepo.Task{ID: id, Completed: completed}
				if j >= 0 {
					task = s.tasks[j]
				}
				s.fail(ctx, p, "updating task", task, err)
				return
			}
			if j < 0 {
				p.resolve(todosrepo.Task{}, nil)
				return
			}
			s.tasks[j].Completed = completed
			updated := s.tasks[j]
			s.publish(Event{Kind: EventUpdated, Task: updated})
			p.resolve(updated, nil)
		})
	})
	return p
}

// DeleteTask removes task id from the store and the list. An id not in the
// list is a no-op that resolves with the zero Task.
func (s *Synchronizer) DeleteTask(ctx context.Context, id int64) *Pending {
	p := newPending()
	s.dispatch(p, func() {
		i := s.indexOf(id)
		if i < 0 {
			p.resolve(todosrepo.Task{}, nil)
			return
		}

		removed := s.tasks[i]
		write := func(ctx context.Context) error {
			return s.store.Delete(ctx, id)
		}

		if s.mode == ModeOptimistic {
			w := s.beginWrite(removed)
			s.tasks = slices.Delete(s.tasks, i, i+1)
			s.publish(Event{Kind: EventDeleted, Task: removed})

			s.enqueue(taskKey(id), false, write, func(err error) {
				if err != nil {
					if s.endWrite(id, w, removed.Completed, err) && s.indexOf(id) < 0 {
						restored := removed
						restored.Completed = w.confirmed
						s.insertOrdered(restored)
					}
					s.fail(ctx, p, "deleting task", removed, err)
					return
				}
				s.endWrite(id, w, removed.Completed, nil)
				p.resolve(removed, nil)
			})
			return
		}

		s.enqueue(taskKey(id), false, write, func(err error) {
			if err != nil {
				s.fail(ctx, p, "deleting task", removed, err)
				return
			}
			j := s.indexOf(id)
			if j < 0 {
				p.resolve(todosrepo.Task{}, nil)
				return
			}
			s.tasks = slices.Delete(s.tasks, j, j+1)
			s.publish(Event{Kind: EventDeleted, Task: removed})
			p.resolve(removed, nil)
		})
	})
	return p
}

// Tasks returns a copy of the list.
func (s *Synchronizer) Tasks(ctx context.Context) ([]todosrepo.Task, error) {
	reply := make(chan []todosrepo.Task, 1)
	if !s.post(func() { reply <- s.snapshot() }) {
		return nil, ErrStopped
	}

	select {
	case tasks := <-reply:
		return tasks, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe registers fn for every list change and persistence failure. fn is
// called on the loop goroutine and must not block on the Synchronizer.
func (s *Synchronizer) Subscribe(fn func(Event)) (unsubscribe func()) {
	return s.subs.add(fn)
}

// beginWrite registers an optimistic write for task before the list is
// changed. With no write in flight the list holds what the store confirmed.
func (s *Synchronizer) beginWrite(task todosrepo.Task) *inflight {
	w, ok := s.writes[task.ID]
	if !ok {
		w = &inflight{confirmed: task.Completed}
		s.writes[task.ID] = w
	}
	w.pending++
	return w
}

// endWrite settles one optimistic write. A successful write of completed
// becomes the confirmed value. It reports whether the list must be rolled back
// to w.confirmed: the write failed and no later write for the task is queued.
func (s *Synchronizer) endWrite(id int64, w *inflight, completed bool, err error) bool {
	w.pending--
	if w.pending == 0 {
		delete(s.writes, id)
	}
	if err == nil {
		w.confirmed = completed
		return false
	}
	return w.pending == 0
}

func (s *Synchronizer) fail(ctx context.Context, p *Pending, op string, task todosrepo.Task, err error) {
	if !errors.Is(err, ErrStopped) {
		s.log.ErrorContext(ctx, op, "task_id", task.ID, "error", err)
		s.publish(Event{Kind: EventFailed, Task: task, Err: err})
	}
	p.resolve(todosrepo.Task{}, err)
}

func (s *Synchronizer) publish(ev Event) {
	ev.Tasks = s.snapshot()
	for _, fn := range s.subs.snapshot() {
		fn(ev)
	}
}

func (s *Synchronizer) snapshot() []todosrepo.Task {
	out := make([]todosrepo.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *Synchronizer) indexOf(id int64) int {
	return slices.IndexFunc(s.tasks, func(t todosrepo.Task) bool {
		return t.ID == id
	})
}

// insertOrdered puts task back in id order.
func (s *Synchronizer) insertOrdered(task todosrepo.Task) {
	i, _ := slices.BinarySearchFunc(s.tasks, task.ID, func(t todosrepo.Task, id int64) int {
		switch {
		case t.ID < id:
			return -1
		case t.ID > id:
			return 1
		}
		return 0
	})
	s.tasks = slices.Insert(s.tasks, i, task)
}
