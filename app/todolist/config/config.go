// Package config holds the todolist application settings.
package config

import (
	"fmt"
	"time"

	"github.com/jrazmi/todolist/sdk/environment"
)

// Config is read from the environment under the application prefix.
type Config struct {
	StoreBackend       string        `env:"STORE_BACKEND" default:"sqlite"`
	APIRoute           string        `env:"API_ROUTE" default:"/api/v1"`
	TaskListMode       string        `env:"TASKLIST_MODE" default:"confirmed"`
	SlowWriteThreshold time.Duration `env:"SLOW_WRITE_THRESHOLD" default:"500ms"`
	MetricsLogInterval time.Duration `env:"METRICS_LOG_INTERVAL" default:"0s"`
}

// Load reads Config for prefix.
func Load(prefix string) (Config, error) {
	var cfg Config
	if err := environment.ParseEnvTags(prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing app config: %w", err)
	}
	return cfg, nil
}
