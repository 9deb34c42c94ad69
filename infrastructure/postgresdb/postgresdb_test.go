package postgresdb

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestHandlePgError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"unique", &pgconn.PgError{Code: uniqueViolation}, ErrDBDuplicatedEntry},
		{"undefined table", &pgconn.PgError{Code: undefinedTable}, ErrUndefinedTable},
		{"no rows", pgx.ErrNoRows, ErrDBNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HandlePgError(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.True(t, errors.Is(got, tt.want), "got %v", got)
		})
	}

	other := errors.New("boom")
	assert.Same(t, other, HandlePgError(other))
}

func TestCompactSQL(t *testing.T) {
	in := `
		SELECT id, task
		FROM   todo_items
		WHERE  id = @id
	`
	assert.Equal(t, "SELECT id, task FROM todo_items WHERE id = @id", compactSQL(in))
}
