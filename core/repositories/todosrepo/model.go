package todosrepo

import (
	"strings"
)

// Task is a single to-do record as stored in the todo_items table.
type Task struct {
	ID        int64  `json:"id" db:"id"`
	Text      string `json:"text" db:"task"`
	Completed bool   `json:"completed" db:"isCompleted"`
}

// CreateTask contains the fields for creating a new task. The id is assigned by
// the store and completed always starts false.
type CreateTask struct {
	Text string `json:"text"`
}

// Normalize trims surrounding whitespace from the text.
func (c CreateTask) Normalize() CreateTask {
	c.Text = strings.TrimSpace(c.Text)
	return c
}

// Validate reports ErrEmptyText when the text is empty or whitespace only.
func (c CreateTask) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return ErrEmptyText
	}
	return nil
}
