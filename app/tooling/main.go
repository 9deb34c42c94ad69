package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jrazmi/todolist/app/tooling/commands"
	"github.com/jrazmi/todolist/core/repositories"
	"github.com/jrazmi/todolist/sdk/environment"
	"github.com/jrazmi/todolist/sdk/logger"
)

var build = "develop"
var appName = "TODOLIST"

func processCommands(ctx context.Context, log *logger.Logger, backend repositories.Backend, command string, args []string) error {
	if command == "migrate" {
		if err := commands.Migrate(ctx, log.Logger, appName, backend); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		return nil
	}

	repos, err := repositories.OpenFromEnv(ctx, log, appName, backend)
	if err != nil {
		return err
	}
	defer func() {
		log.InfoContext(ctx, "shutdown", "status", "closing store")
		repos.Close()
	}()

	switch command {
	case "list":
		return commands.ListTasks(ctx, os.Stdout, repos.Todos)
	case "add":
		return commands.AddTask(ctx, os.Stdout, repos.Todos, args)
	case "done":
		return commands.SetCompleted(ctx, repos.Todos, args, true)
	case "undone":
		return commands.SetCompleted(ctx, repos.Todos, args, false)
	case "rm":
		return commands.DeleteTask(ctx, repos.Todos, args)
	default:
		printHelp()
		return nil
	}
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  migrate      - apply pending schema migrations to the configured store")
	fmt.Println("  list         - print every stored task")
	fmt.Println("  add <text>   - add a task")
	fmt.Println("  done <id>    - mark a task completed")
	fmt.Println("  undone <id>  - mark a task not completed")
	fmt.Println("  rm <id>      - delete a task")
	fmt.Println()
	fmt.Println("The store is chosen with TODOLIST_STORE_BACKEND (sqlite, postgres, redis).")
}

func run(ctx context.Context, log *logger.Logger) error {
	log.InfoContext(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0), "build", build)

	var command string
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if command == "" || command == "help" || command == "--help" || command == "-h" {
		printHelp()
		return nil
	}

	backend, err := repositories.ParseBackend(environment.GetNamespaceEnvOrDefault(appName, "STORE_BACKEND", string(repositories.BackendSQLite)))
	if err != nil {
		return err
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() {
		args := []string{}
		if len(os.Args) > 2 {
			args = os.Args[2:]
		}
		done <- processCommands(ctx, log, backend, command, args)
	}()

	select {
	case err := <-done:
		return err

	case sig := <-shutdown:
		log.InfoContext(ctx, "shutdown", "status", "shutdown started", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		select {
		case err := <-done:
			return err
		case <-shutdownCtx.Done():
			return fmt.Errorf("shutdown timeout: %w", shutdownCtx.Err())
		}
	}
}

func main() {
	if err := environment.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "loading .env:", err)
		os.Exit(1)
	}

	// Logs go to stderr so list output stays clean.
	log, err := logger.NewFromEnv(appName, logger.WithOutput(os.Stderr), logger.WithService("todolist-tooling"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuring logger:", err)
		os.Exit(1)
	}
	ctx := context.Background()

	if err = run(ctx, log); err != nil {
		if errors.Is(err, commands.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			printHelp()
			os.Exit(2)
		}
		log.ErrorContext(ctx, "run", "err", err)
		os.Exit(1)
	}
}
