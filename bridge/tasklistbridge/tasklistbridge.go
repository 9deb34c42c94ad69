// Package tasklistbridge exposes the task list over HTTP.
package tasklistbridge

import (
	"context"
	"errors"

	"github.com/jrazmi/todolist/core/tasklist"
	"github.com/jrazmi/todolist/infrastructure/web"
	"github.com/jrazmi/todolist/sdk/logger"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds configuration for the task list bridge
type Config struct {
	Log        *logger.Logger
	TaskList   *tasklist.Synchronizer
	Store      Pinger
	Middleware []web.Middleware
}

type bridge struct {
	log      *logger.Logger
	taskList *tasklist.Synchronizer
	store    Pinger
}

func newBridge(cfg Config) *bridge {
	return &bridge{
		log:      cfg.Log,
		taskList: cfg.TaskList,
		store:    cfg.Store,
	}
}

// AddHttpRoutes registers the task list routes on group.
func AddHttpRoutes(group *web.RouteGroup, cfg Config) {
	b := newBridge(cfg)

	group.GET("/tasks", b.httpList, cfg.Middleware...)
	group.POST("/tasks", b.httpCreate, cfg.Middleware...)
	group.PUT("/tasks/{task_id}/completion", b.httpSetCompletion, cfg.Middleware...)
	group.DELETE("/tasks/{task_id}", b.httpDelete, cfg.Middleware...)
	group.GET("/persistence/metrics", b.httpMetrics, cfg.Middleware...)
}

// AddHealthRoutes registers the health check on wh, outside the API prefix.
func AddHealthRoutes(wh *web.WebHandler, cfg Config) {
	b := newBridge(cfg)
	wh.GET("/healthz", b.httpHealth)
}

func isStopped(err error) bool {
	return errors.Is(err, tasklist.ErrStopped)
}
