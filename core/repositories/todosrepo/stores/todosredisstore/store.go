// Package todosredisstore implements todosrepo.Storer on redis.
//
// Layout, for a key prefix P:
//
//	P:todo_items:seq   INCR counter handing out ids, never decremented
//	P:todo_items:ids   sorted set of ids scored by id, gives GetAll its order
//	P:todo_items:<id>  hash with fields "task" and "isCompleted" ("0"/"1")
package todosredisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/jrazmi/todolist/core/repositories/todosrepo"
	"github.com/jrazmi/todolist/infrastructure/redisdb"
	"github.com/jrazmi/todolist/sdk/logger"
)

const (
	DefaultPrefix = "todolist"

	fieldTask      = "task"
	fieldCompleted = "isCompleted"

	maxWatchRetries = 5
)

// Store provides redis access for Task.
type Store struct {
	log    *logger.Logger
	client *redisdb.Client
	prefix string
}

// NewStore creates a new Task store under the given key prefix. An empty
// prefix uses DefaultPrefix. The store owns client and closes it on Close.
func NewStore(log *logger.Logger, client *redisdb.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		log:    log,
		client: client,
		prefix: prefix,
	}
}

func (s *Store) seqKey() string {
	return s.prefix + ":todo_items:seq"
}

func (s *Store) idsKey() string {
	return s.prefix + ":todo_items:ids"
}

func (s *Store) itemKey(id int64) string {
	return s.prefix + ":todo_items:" + strconv.FormatInt(id, 10)
}

func (s *Store) GetAll(ctx context.Context) ([]todosrepo.Task, error) {
	ids, err := s.client.ZRange(ctx, s.idsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}

	tasks := make([]todosrepo.Task, 0, len(ids))
	if len(ids) == 0 {
		return tasks, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, raw := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.prefix+":todo_items:"+raw)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			s.log.WarnContext(ctx, "dangling task id", "id", ids[i])
			continue
		}
		task, err := decodeTask(ids[i], fields)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *Store) Insert(ctx context.Context, input todosrepo.CreateTask) (todosrepo.Task, error) {
	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return todosrepo.Task{}, fmt.Errorf("next id: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.itemKey(id), fieldTask, input.Text, fieldCompleted, "0")
		pipe.ZAdd(ctx, s.idsKey(), redis.Z{Score: float64(id), Member: strconv.FormatInt(id, 10)})
		return nil
	})
	if err != nil {
		return todosrepo.Task{}, fmt.Errorf("insert task: %w", err)
	}

	return todosrepo.Task{ID: id, Text: input.Text}, nil
}

// UpdateCompletion only writes when the task hash exists, so an unknown id
// never creates a partial record.
func (s *Store) UpdateCompletion(ctx context.Context, id int64, completed bool) error {
	key := s.itemKey(id)
	value := "0"
	if completed {
		value = "1"
	}

	update := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			s.log.DebugContext(ctx, "update completion: no such task", "id", id)
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldCompleted, value)
			return nil
		})
		return err
	}

	for range maxWatchRetries {
		err := s.client.Watch(ctx, update, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	}
	return fmt.Errorf("update task: %w", redis.TxFailedErr)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.itemKey(id))
		pipe.ZRem(ctx, s.idsKey(), strconv.FormatInt(id, 10))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return redisdb.StatusCheck(ctx, s.client)
}

func (s *Store) Close() error {
	return s.client.Close()
}

func decodeTask(rawID string, fields map[string]string) (todosrepo.Task, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return todosrepo.Task{}, fmt.Errorf("decode task id %q: %w", rawID, err)
	}
	completed, err := strconv.ParseBool(fields[fieldCompleted])
	if err != nil {
		return todosrepo.Task{}, fmt.Errorf("decode task %d completion: %w", id, err)
	}
	return todosrepo.Task{
		ID:        id,
		Text:      fields[fieldTask],
		Completed: completed,
	}, nil
}
