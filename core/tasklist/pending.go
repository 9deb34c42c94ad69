package tasklist

import (
	"context"
	"sync"

	"github.com/jrazmi/todolist/core/repositories/todosrepo"
)

// Pending is the result of an action. It resolves once the action's effect
// has been applied to the list, or once it has failed.
type Pending struct {
	once sync.Once
	done chan struct{}
	task todosrepo.Task
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func resolved(task todosrepo.Task, err error) *Pending {
	p := newPending()
	p.resolve(task, err)
	return p
}

func (p *Pending) resolve(task todosrepo.Task, err error) {
	p.once.Do(func() {
		p.task = task
		p.err = err
		close(p.done)
	})
}

// Done is closed when the action has resolved.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the action resolves or ctx is done. The returned task is
// the affected record; it is the zero Task for no-ops.
func (p *Pending) Wait(ctx context.Context) (todosrepo.Task, error) {
	select {
	case <-p.done:
		return p.task, p.err
	case <-ctx.Done():
		return todosrepo.Task{}, ctx.Err()
	}
}
