package tasklist

import (
	"sync"

	"github.com/jrazmi/todolist/core/repositories/todosrepo"
)

// EventKind identifies what changed.
type EventKind int

const (
	EventLoaded EventKind = iota + 1
	EventAdded
	EventUpdated
	EventDeleted
	// EventFailed reports a persistence failure. Tasks reflects any rollback.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventAdded:
		return "added"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	case EventFailed:
		return "failed"
	}
	return "unknown"
}

// Event is delivered to subscribers on the loop goroutine. Tasks is a copy of
// the list after the change; Task is the record the change concerned.
type Event struct {
	Kind  EventKind
	Tasks []todosrepo.Task
	Task  todosrepo.Task
	Err   error
}

type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Event)
}

func (s *subscribers) add(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fns == nil {
		s.fns = make(map[int]func(Event))
	}
	id := s.next
	s.next++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

// snapshot returns the subscribers in registration order.
func (s *subscribers) snapshot() []func(Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fns := make([]func(Event), 0, len(s.fns))
	for id := 0; id < s.next; id++ {
		if fn, ok := s.fns[id]; ok {
			fns = append(fns, fn)
		}
	}
	return fns
}
