package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/jrazmi/todolist/app/todolist/config"
	"github.com/jrazmi/todolist/bridge/scaffolding/mid"
	"github.com/jrazmi/todolist/bridge/tasklistbridge"
	"github.com/jrazmi/todolist/core/repositories"
	"github.com/jrazmi/todolist/core/tasklist"
	"github.com/jrazmi/todolist/infrastructure/web"
	"github.com/jrazmi/todolist/infrastructure/workers"
	"github.com/jrazmi/todolist/sdk/environment"
	"github.com/jrazmi/todolist/sdk/logger"
	"github.com/jrazmi/todolist/sdk/telemetry"
)

var build = "develop"
var appName = "TODOLIST"

func main() {
	if err := environment.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "loading .env:", err)
		os.Exit(1)
	}

	tel := telemetry.NewTelemetry()
	log, err := logger.NewFromEnv(appName,
		logger.WithService("todolist"),
		logger.WithTraceID(tel.GetTraceID))
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuring logger:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := run(ctx, log, tel); err != nil {
		log.ErrorContext(ctx, "startup", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, tel telemetry.Telemetry) error {
	log.InfoContext(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0), "build", build)

	cfg, err := config.Load(appName)
	if err != nil {
		return err
	}
	backend, err := repositories.ParseBackend(cfg.StoreBackend)
	if err != nil {
		return err
	}
	mode, err := tasklist.ParseMode(cfg.TaskListMode)
	if err != nil {
		return err
	}
	poolCfg, err := workers.OptionsFromEnv(appName)
	if err != nil {
		return err
	}

	// :*: STORE :*:
	log.InfoContext(ctx, "startup", "status", "opening store", "backend", backend)
	repos, err := repositories.OpenFromEnv(ctx, log, appName, backend)
	if err != nil {
		return err
	}
	defer func() {
		log.InfoContext(ctx, "shutdown", "status", "closing store")
		if err := repos.Close(); err != nil {
			log.ErrorContext(ctx, "shutdown", "status", "closing store", "error", err)
		}
	}()

	// :*: TASK LIST :*:
	list := tasklist.New(log, repos.Todos,
		tasklist.WithMode(mode),
		tasklist.WithPoolConfig(poolCfg),
		tasklist.WithSlowWriteThreshold(cfg.SlowWriteThreshold),
		tasklist.WithMetricsLogInterval(cfg.MetricsLogInterval))

	listCtx, stopList := context.WithCancel(ctx)
	defer stopList()
	listErrors := make(chan error, 1)
	go func() {
		listErrors <- list.Run(listCtx)
	}()

	if err := list.Load(ctx); err != nil {
		stopList()
		<-listErrors
		return fmt.Errorf("loading tasks: %w", err)
	}

	// :*: WEB :*:
	handler, err := webHandler(log, tel, cfg, repos, list)
	if err != nil {
		return err
	}
	server, err := web.NewServerFromEnv(appName,
		web.WithHandler(handler),
		web.WithErrorLog(logger.NewStdLogger(log, logger.LevelError)))
	if err != nil {
		return err
	}

	sigCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	serverErrors := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "startup", "status", "api router started", "host", server.Addr)
		serverErrors <- server.Run(sigCtx)
	}()

	var runErr error
	select {
	case runErr = <-serverErrors:
	case err := <-listErrors:
		listErrors = nil
		runErr = errors.New("task list stopped unexpectedly")
		if err != nil {
			runErr = fmt.Errorf("task list stopped unexpectedly: %w", err)
		}
		stopSignals()
		<-serverErrors
	}

	log.InfoContext(ctx, "shutdown", "status", "draining task list")
	stopList()
	if listErrors != nil {
		if err := <-listErrors; err != nil && runErr == nil {
			runErr = err
		}
	}
	log.InfoContext(ctx, "shutdown", "status", "shutdown complete")

	return runErr
}

func webHandler(log *logger.Logger, tel telemetry.Telemetry, cfg config.Config, repos repositories.Repositories, list *tasklist.Synchronizer) (http.Handler, error) {
	wh, err := web.NewWebHandlerFromEnv(appName,
		web.WithLogging(log.Logger),
		web.WithTelemetry(tel),
		web.WithGlobalMiddleware(
			mid.Logger(log),
			mid.Errors(log),
			mid.Panics(),
		))
	if err != nil {
		return nil, err
	}

	bridgeCfg := tasklistbridge.Config{
		Log:      log,
		TaskList: list,
		Store:    repos.Todos,
	}
	tasklistbridge.AddHttpRoutes(wh.Group(cfg.APIRoute), bridgeCfg)
	tasklistbridge.AddHealthRoutes(wh, bridgeCfg)

	return wh, nil
}
