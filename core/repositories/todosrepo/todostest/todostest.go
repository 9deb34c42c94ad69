// Package todostest holds a behavioural test suite every todosrepo.Storer
// backend must pass.
package todostest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrazmi/todolist/core/repositories/todosrepo"
)

// Backend returns a function opening a store over one isolated, initially
// empty data set. Calling the opener again after closing the previous store
// simulates a process restart.
type Backend func(t *testing.T) (open func() todosrepo.Storer)

// RunStorerSuite runs the storage contract against a backend.
func RunStorerSuite(t *testing.T, backend Backend) {
	t.Helper()

	t.Run("insert assigns id and defaults", func(t *testing.T) {
		ctx := context.Background()
		s := backend(t)()
		defer s.Close()

		task, err := s.Insert(ctx, todosrepo.CreateTask{Text: "Buy milk"})
		require.NoError(t, err)
		assert.Positive(t, task.ID)
		assert.Equal(t, "Buy milk", task.Text)
		assert.False(t, task.Completed)
	})

	t.Run("buy milk scenario", func(t *testing.T) {
		ctx := context.Background()
		s := backend(t)()
		defer s.Close()

		task, err := s.Insert(ctx, todosrepo.CreateTask{Text: "Buy milk"})
		require.NoError(t, err)

		require.NoError(t, s.UpdateCompletion(ctx, task.ID, true))
		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, todosrepo.Task{ID: task.ID, Text: "Buy milk", Completed: true}, all[0])

		require.NoError(t, s.Delete(ctx, task.ID))
		all, err = s.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("every insert appears once with a unique id", func(t *testing.T) {
		ctx := context.Background()
		s := backend(t)()
		defer s.Close()

		texts := []string{"A", "B", "A", "C", "D"}
		for _, text := range texts {
			_, err := s.Insert(ctx, todosrepo.CreateTask{Text: text})
			require.NoError(t, err)
		}

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, len(texts))

		seen := map[int64]bool{}
		for i, task := range all {
			assert.False(t, seen[task.ID], "duplicate id %d", task.ID)
			seen[task.ID] = true
			assert.Equal(t, texts[i], task.Text)
			assert.False(t, task.Completed)
			if i > 0 {
				assert.Greater(t, task.ID, all[i-1].ID)
			}
		}
	})

	t.Run("toggle flips only the target", func(t *testing.T) {
		ctx := context.Background()
		s := backend(t)()
		defer s.Close()

		a, err := s.Insert(ctx, todosrepo.CreateTask{Text: "A"})
		require.NoError(t, err)
		b, err := s.Insert(ctx, todosrepo.CreateTask{Text: "B"})
		require.NoError(t, err)

		require.NoError(t, s.UpdateCompletion(ctx, b.ID, true))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, todosrepo.Task{ID: a.ID, Text: "A"}, all[0])
		assert.Equal(t, todosrepo.Task{ID: b.ID, Text: "B", Completed: true}, all[1])

		require.NoError(t, s.UpdateCompletion(ctx, b.ID, false))
		all, err = s.GetAll(ctx)
		require.NoError(t, err)
		assert.False(t, all[1].Completed)
	})

	t.Run("unknown ids are no-ops", func(t *testing.T) {
		ctx := context.Background()
		s := backend(t)()
		defer s.Close()

		a, err := s.Insert(ctx, todosrepo.CreateTask{Text: "A"})
		require.NoError(t, err)

		require.NoError(t, s.UpdateCompletion(ctx, a.ID+100, true))
		require.NoError(t, s.Delete(ctx, a.ID+100))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []todosrepo.Task{{ID: a.ID, Text: "A"}}, all)
	})

	t.Run("ids are never reused", func(t *testing.T) {
		ctx := context.Background()
		s := backend(t)()
		defer s.Close()

		a, err := s.Insert(ctx, todosrepo.CreateTask{Text: "A"})
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, a.ID))

		b, err := s.Insert(ctx, todosrepo.CreateTask{Text: "B"})
		require.NoError(t, err)
		assert.Greater(t, b.ID, a.ID)
	})

	t.Run("survives reopen", func(t *testing.T) {
		ctx := context.Background()
		open := backend(t)

		s := open()
		a, err := s.Insert(ctx, todosrepo.CreateTask{Text: "Persist me"})
		require.NoError(t, err)
		require.NoError(t, s.UpdateCompletion(ctx, a.ID, true))
		b, err := s.Insert(ctx, todosrepo.CreateTask{Text: "And me"})
		require.NoError(t, err)
		require.NoError(t, s.Close())

		s = open()
		defer s.Close()

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []todosrepo.Task{
			{ID: a.ID, Text: "Persist me", Completed: true},
			{ID: b.ID, Text: "And me"},
		}, all)
		require.NoError(t, s.Ping(ctx))
	})
}
