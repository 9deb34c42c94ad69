package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrazmi/todolist/sdk/logger"
	"github.com/jrazmi/todolist/sdk/telemetry"
)

func TestLogger_TraceIDAndService(t *testing.T) {
	var buf bytes.Buffer
	tel := telemetry.NewTelemetry()

	log := logger.NewDefault(
		logger.WithOutput(&buf),
		logger.WithService("todolist"),
		logger.WithTraceID(tel.GetTraceID),
	)

	ctx := tel.WithTraceID(context.Background(), "trace-1")
	log.InfoContext(ctx, "added task", "id", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "added task", rec["msg"])
	assert.Equal(t, "todolist", rec["service"])
	assert.Equal(t, "trace-1", rec["trace_id"])
	assert.EqualValues(t, 1, rec["id"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewDefault(logger.WithOutput(&buf), logger.WithLevel("warn"))

	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_FromEnv(t *testing.T) {
	t.Setenv("TEST_LOG_FORMAT", "text")
	t.Setenv("TEST_LOG_LEVEL", "debug")

	var buf bytes.Buffer
	log, err := logger.NewFromEnv("TEST", logger.WithOutput(&buf))
	require.NoError(t, err)

	log.Debug("debugging", "k", "v")
	assert.Contains(t, buf.String(), "msg=debugging")
	assert.Contains(t, buf.String(), "k=v")
}
