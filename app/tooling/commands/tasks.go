// Package commands implements the todolist admin tool's subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/jrazmi/todolist/core/repositories/todosrepo"
)

// ErrUsage reports missing or malformed command arguments.
var ErrUsage = errors.New("usage")

// TaskStore is the subset of the task repository the commands use.
type TaskStore interface {
	GetAll(ctx context.Context) ([]todosrepo.Task, error)
	Insert(ctx context.Context, input todosrepo.CreateTask) (todosrepo.Task, error)
	UpdateCompletion(ctx context.Context, id int64, completed bool) error
	Delete(ctx context.Context, id int64) error
}

// ListTasks prints every stored task.
func ListTasks(ctx context.Context, w io.Writer, store TaskStore) error {
	tasks, err := store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDONE\tTEXT")
	for _, t := range tasks {
		done := " "
		if t.Completed {
			done = "x"
		}
		fmt.Fprintf(tw, "%d\t[%s]\t%s\n", t.ID, done, t.Text)
	}
	return tw.Flush()
}

// AddTask stores the arguments, joined by spaces, as a new task.
func AddTask(ctx context.Context, w io.Writer, store TaskStore, args []string) error {
	text := strings.Join(args, " ")
	task, err := store.Insert(ctx, todosrepo.CreateTask{Text: text})
	if err != nil {
		if errors.Is(err, todosrepo.ErrEmptyText) {
			return fmt.Errorf("%w: add <text>", ErrUsage)
		}
		return fmt.Errorf("add: %w", err)
	}
	fmt.Fprintf(w, "added %d\n", task.ID)
	return nil
}

// SetCompleted marks the task named by args[0] complete or not.
func SetCompleted(ctx context.Context, store TaskStore, args []string, completed bool) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := store.UpdateCompletion(ctx, id, completed); err != nil {
		return fmt.Errorf("set completed: %w", err)
	}
	return nil
}

// DeleteTask removes the task named by args[0].
func DeleteTask(ctx context.Context, store TaskStore, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected a single task id", ErrUsage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid task id %q", ErrUsage, args[0])
	}
	return id, nil
}
