package telemetry_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrazmi/todolist/sdk/telemetry"
)

func TestTraceID(t *testing.T) {
	tel := telemetry.NewTelemetry()

	assert.Equal(t, telemetry.NoTrace, tel.GetTraceID(context.Background()))

	ctx := tel.SetTraceID(context.Background())
	id := tel.GetTraceID(ctx)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	// a second call keeps the existing id
	assert.Equal(t, id, tel.GetTraceID(tel.SetTraceID(ctx)))

	assert.Equal(t, "abc", tel.GetTraceID(tel.WithTraceID(ctx, "abc")))
}
