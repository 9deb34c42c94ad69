package todossqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrazmi/todolist/core/repositories/todosrepo"
	"github.com/jrazmi/todolist/core/repositories/todosrepo/stores/todossqlitestore"
	"github.com/jrazmi/todolist/core/repositories/todosrepo/todostest"
	"github.com/jrazmi/todolist/infrastructure/sqlitedb"
	"github.com/jrazmi/todolist/sdk/logger"
)

func TestStore(t *testing.T) {
	todostest.RunStorerSuite(t, func(t *testing.T) func() todosrepo.Storer {
		path := filepath.Join(t.TempDir(), "todo.db")
		return func() todosrepo.Storer {
			db, err := sqlitedb.NewTestDB(context.Background(), path)
			require.NoError(t, err)
			return todossqlitestore.NewStore(logger.NewDiscard(), db)
		}
	})
}
