package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("CFGTEST_DEFAULTS")
	require.NoError(t, err)

	assert.Equal(t, Config{
		StoreBackend:       "sqlite",
		APIRoute:           "/api/v1",
		TaskListMode:       "confirmed",
		SlowWriteThreshold: 500 * time.Millisecond,
	}, cfg)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CFGTEST_STORE_BACKEND", "redis")
	t.Setenv("CFGTEST_TASKLIST_MODE", "optimistic")
	t.Setenv("CFGTEST_METRICS_LOG_INTERVAL", "1m")

	cfg, err := Load("CFGTEST")
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, "optimistic", cfg.TaskListMode)
	assert.Equal(t, time.Minute, cfg.MetricsLogInterval)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("CFGBAD_SLOW_WRITE_THRESHOLD", "soon")

	_, err := Load("CFGBAD")
	assert.Error(t, err)
}
