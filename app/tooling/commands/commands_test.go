package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrazmi/todolist/core/repositories"
	"github.com/jrazmi/todolist/infrastructure/sqlitedb"
	"github.com/jrazmi/todolist/sdk/logger"
)

func newStore(t *testing.T) TaskStore {
	t.Helper()

	log := logger.NewDiscard()
	db, err := sqlitedb.NewTestDB(context.Background(), filepath.Join(t.TempDir(), "todo.db"), sqlitedb.WithLogger(log.Logger))
	require.NoError(t, err)

	repos := repositories.NewSQLiteRepositories(log, db)
	t.Cleanup(func() { repos.Close() })
	return repos.Todos
}

func TestTaskCommands(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	var out bytes.Buffer
	require.NoError(t, AddTask(ctx, &out, store, []string{"Buy", "milk"}))
	assert.Equal(t, "added 1\n", out.String())

	require.NoError(t, SetCompleted(ctx, store, []string{"1"}, true))

	out.Reset()
	require.NoError(t, ListTasks(ctx, &out, store))
	assert.Contains(t, out.String(), "[x]")
	assert.Contains(t, out.String(), "Buy milk")

	require.NoError(t, DeleteTask(ctx, store, []string{"1"}))

	tasks, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskCommands_Usage(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	tests := []struct {
		name string
		run  func() error
	}{
		{"add blank", func() error { return AddTask(ctx, &bytes.Buffer{}, store, []string{"  "}) }},
		{"add nothing", func() error { return AddTask(ctx, &bytes.Buffer{}, store, nil) }},
		{"done no id", func() error { return SetCompleted(ctx, store, nil, true) }},
		{"done bad id", func() error { return SetCompleted(ctx, store, []string{"abc"}, true) }},
		{"rm zero id", func() error { return DeleteTask(ctx, store, []string{"0"}) }},
		{"rm two ids", func() error { return DeleteTask(ctx, store, []string{"1", "2"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), ErrUsage)
		})
	}
}

func TestMigrate_SQLite(t *testing.T) {
	t.Setenv("MIGTEST_SQLITE_PATH", filepath.Join(t.TempDir(), "nested", "todo.db"))
	t.Setenv("MIGTEST_SQLITE_JOURNAL_MODE", "DELETE")

	err := Migrate(context.Background(), logger.NewDiscard().Logger, "MIGTEST", repositories.BackendSQLite)
	require.NoError(t, err)
}

func TestMigrate_Redis(t *testing.T) {
	err := Migrate(context.Background(), logger.NewDiscard().Logger, "MIGTEST", repositories.BackendRedis)
	assert.NoError(t, err)
}
