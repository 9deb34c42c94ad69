package tasklistbridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrazmi/todolist/bridge/scaffolding/mid"
	"github.com/jrazmi/todolist/bridge/tasklistbridge"
	"github.com/jrazmi/todolist/core/repositories/todosrepo"
	"github.com/jrazmi/todolist/core/repositories/todosrepo/stores/todossqlitestore"
	"github.com/jrazmi/todolist/core/tasklist"
	"github.com/jrazmi/todolist/infrastructure/sqlitedb"
	"github.com/jrazmi/todolist/infrastructure/web"
	"github.com/jrazmi/todolist/sdk/logger"
)

type storer interface {
	tasklist.Store
	tasklistbridge.Pinger
}

func newServer(t *testing.T, store storer) *web.WebHandler {
	t.Helper()
	log := logger.NewDiscard()

	list := tasklist.New(log, store)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- list.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("task list did not stop")
		}
	})

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelLoad()
	require.NoError(t, list.Load(loadCtx))

	wh := web.NewWebHandler(web.HandlerOptions{},
		web.WithLogging(log.Logger),
		web.WithGlobalMiddleware(mid.Logger(log), mid.Errors(log), mid.Panics()))

	cfg := tasklistbridge.Config{Log: log, TaskList: list, Store: store}
	tasklistbridge.AddHttpRoutes(wh.Group("/api/v1"), cfg)
	tasklistbridge.AddHealthRoutes(wh, cfg)
	return wh
}

func newSQLiteRepo(t *testing.T) *todosrepo.Repository {
	t.Helper()
	db, err := sqlitedb.NewTestDB(context.Background(), filepath.Join(t.TempDir(), "todo.db"))
	require.NoError(t, err)
	repo := todosrepo.NewRepository(logger.NewDiscard(), todossqlitestore.NewStore(logger.NewDiscard(), db))
	t.Cleanup(func() { repo.Close() })
	return repo
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeTasks(t *testing.T, rec *httptest.ResponseRecorder) []todosrepo.Task {
	t.Helper()
	var tasks []todosrepo.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	return tasks
}

func TestTaskRoutes_BuyMilk(t *testing.T) {
	h := newServer(t, newSQLiteRepo(t))

	rec := do(t, h, http.MethodGet, "/api/v1/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/tasks", `{"text":"Buy milk"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":1,"text":"Buy milk","completed":false}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/v1/tasks/1/completion", `{"completed":true}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/tasks", "")
	assert.Equal(t, []todosrepo.Task{{ID: 1, Text: "Buy milk", Completed: true}}, decodeTasks(t, rec))

	rec = do(t, h, http.MethodDelete, "/api/v1/tasks/1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/tasks", "")
	assert.Empty(t, decodeTasks(t, rec))
}

func TestTaskRoutes_BlankTextIgnored(t *testing.T) {
	h := newServer(t, newSQLiteRepo(t))

	rec := do(t, h, http.MethodPost, "/api/v1/tasks", `{"text":"   "}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/tasks", "")
	assert.Empty(t, decodeTasks(t, rec))
}

func TestTaskRoutes_BadInput(t *testing.T) {
	h := newServer(t, newSQLiteRepo(t))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "malformed json", method: http.MethodPost, path: "/api/v1/tasks", body: `{"text":`},
		{name: "empty body", method: http.MethodPost, path: "/api/v1/tasks"},
		{name: "non numeric id", method: http.MethodDelete, path: "/api/v1/tasks/abc"},
		{name: "missing completed", method: http.MethodPut, path: "/api/v1/tasks/1/completion", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestTaskRoutes_UnknownIDIsNoop(t *testing.T) {
	h := newServer(t, newSQLiteRepo(t))

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/v1/tasks/42", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPut, "/api/v1/tasks/42/completion", `{"completed":true}`).Code)
}

// brokenStore loads fine and fails every write.
type brokenStore struct{}

var errBroken = errors.New("database is locked")

func (brokenStore) GetAll(ctx context.Context) ([]todosrepo.Task, error) {
	return []todosrepo.Task{{ID: 1, Text: "one"}}, nil
}

func (brokenStore) Insert(ctx context.Context, input todosrepo.CreateTask) (todosrepo.Task, error) {
	return todosrepo.Task{}, errBroken
}

func (brokenStore) UpdateCompletion(ctx context.Context, id int64, completed bool) error {
	return errBroken
}

func (brokenStore) Delete(ctx context.Context, id int64) error {
	return errBroken
}

func (brokenStore) Ping(ctx context.Context) error {
	return errBroken
}

func TestTaskRoutes_PersistenceFailure(t *testing.T) {
	h := newServer(t, brokenStore{})

	rec := do(t, h, http.MethodPost, "/api/v1/tasks", `{"text":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"database is locked"}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/v1/tasks/1/completion", `{"completed":true}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/tasks/1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/tasks", "")
	assert.Equal(t, []todosrepo.Task{{ID: 1, Text: "one"}}, decodeTasks(t, rec))

	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newServer(t, newSQLiteRepo(t))

	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/v1/tasks", `{"text":"a"}`).Code)

	rec = do(t, h, http.MethodGet, "/api/v1/persistence/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		PoolName       string `json:"poolName"`
		TasksCompleted int64  `json:"tasksCompleted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "persistence", snap.PoolName)
	assert.Equal(t, int64(2), snap.TasksCompleted)
}
