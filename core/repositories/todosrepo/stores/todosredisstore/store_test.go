package todosredisstore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrazmi/todolist/core/repositories/todosrepo"
	"github.com/jrazmi/todolist/core/repositories/todosrepo/stores/todosredisstore"
	"github.com/jrazmi/todolist/core/repositories/todosrepo/todostest"
	"github.com/jrazmi/todolist/infrastructure/redisdb"
	"github.com/jrazmi/todolist/sdk/logger"
)

func open(t *testing.T, srv *miniredis.Miniredis) *todosredisstore.Store {
	client, err := redisdb.Open(context.Background(), redisdb.Options{Addr: srv.Addr(), PoolSize: 2})
	require.NoError(t, err)
	return todosredisstore.NewStore(logger.NewDiscard(), client, "test")
}

func TestStore(t *testing.T) {
	todostest.RunStorerSuite(t, func(t *testing.T) func() todosrepo.Storer {
		srv := miniredis.RunT(t)
		return func() todosrepo.Storer {
			return open(t, srv)
		}
	})
}

func TestStore_KeyLayout(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	s := open(t, srv)
	defer s.Close()

	task, err := s.Insert(ctx, todosrepo.CreateTask{Text: "Buy milk"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, task.ID)

	assert.Equal(t, "Buy milk", srv.HGet("test:todo_items:1", "task"))
	assert.Equal(t, "0", srv.HGet("test:todo_items:1", "isCompleted"))

	require.NoError(t, s.UpdateCompletion(ctx, 1, true))
	assert.Equal(t, "1", srv.HGet("test:todo_items:1", "isCompleted"))

	// unknown ids must not leave partial hashes behind
	require.NoError(t, s.UpdateCompletion(ctx, 42, true))
	assert.False(t, srv.Exists("test:todo_items:42"))

	require.NoError(t, s.Delete(ctx, 1))
	assert.False(t, srv.Exists("test:todo_items:1"))
	members, err := srv.ZMembers("test:todo_items:ids")
	if err == nil {
		assert.Empty(t, members)
	}
}
