package tasklist

import (
	"context"
	"strconv"
	"sync"

	"github.com/jrazmi/todolist/infrastructure/workers"
)

const (
	loadKey   = "load"
	insertKey = "insert"
)

func taskKey(id int64) string {
	return "task:" + strconv.FormatInt(id, 10)
}

// job is one unit of persistence work. Jobs sharing a key run one at a time
// in submission order.
type job struct {
	id     string
	key    string
	run    func(ctx context.Context) error
	settle func(err error)

	// barrier jobs wait for every earlier job to finish and run alone.
	barrier bool
}

func (j *job) GetID() string { return j.id }

// jobQueue feeds the worker pool. It implements workers.Processor.
type jobQueue struct {
	mu       sync.Mutex
	jobs     []*job
	inFlight map[string]bool
	barrier  bool
	closed   bool
	wake     chan struct{}
}

var _ workers.Processor[*job] = (*jobQueue)(nil)

func newJobQueue() *jobQueue {
	return &jobQueue{
		inFlight: make(map[string]bool),
		wake:     make(chan struct{}),
	}
}

// push appends j. It fails with ErrStopped once the queue is closed.
func (q *jobQueue) push(j *job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrStopped
	}
	q.jobs = append(q.jobs, j)
	q.broadcast()
	return nil
}

// close stops accepting jobs. Queued jobs are still handed out.
func (q *jobQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.broadcast()
}

func (q *jobQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// broadcast wakes every waiting Checkout. Caller holds mu.
func (q *jobQueue) broadcast() {
	close(q.wake)
	q.wake = make(chan struct{})
}

// next removes and returns the oldest job whose key is idle. Caller holds mu.
func (q *jobQueue) next() *job {
	if q.barrier {
		return nil
	}
	for i, j := range q.jobs {
		if j.barrier {
			if len(q.inFlight) > 0 {
				return nil
			}
			q.barrier = true
		} else if q.inFlight[j.key] {
			continue
		}
		q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
		q.inFlight[j.key] = true
		return j
	}
	return nil
}

func (q *jobQueue) release(j *job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.inFlight, j.key)
	if j.barrier {
		q.barrier = false
	}
	q.broadcast()
}

// Checkout blocks until a runnable job exists. A closed queue is drained
// before workers are told to shut down.
func (q *jobQueue) Checkout(ctx context.Context, workerID string) (*job, error) {
	for {
		q.mu.Lock()
		if j := q.next(); j != nil {
			q.mu.Unlock()
			return j, nil
		}
		if q.closed && len(q.jobs) == 0 {
			q.mu.Unlock()
			return nil, workers.ErrWorkerShutdown
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, workers.ErrWorkerShutdown
		}
	}
}

func (q *jobQueue) Process(ctx context.Context, j *job) (*job, error) {
	return j, j.run(ctx)
}

func (q *jobQueue) Complete(ctx context.Context, j *job, processingTimeMS int) error {
	q.finish(j, nil)
	return nil
}

func (q *jobQueue) Fail(ctx context.Context, j *job, err error) error {
	q.finish(j, err)
	return nil
}

// finish settles j before releasing its key so continuations for one key
// reach the loop in submission order.
func (q *jobQueue) finish(j *job, err error) {
	j.settle(err)
	q.release(j)
}
