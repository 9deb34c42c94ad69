package tasklistbridge

import (
	"context"
	"errors"
	"net/http"

	"github.com/jrazmi/todolist/bridge/scaffolding/errs"
	"github.com/jrazmi/todolist/core/tasklist"
	"github.com/jrazmi/todolist/infrastructure/web"
)

func (b *bridge) httpList(ctx context.Context, r *http.Request) web.Encoder {
	tasks, err := b.taskList.Tasks(ctx)
	if err != nil {
		return persistenceError(err)
	}
	return web.NewJSONResponse(tasks)
}

func (b *bridge) httpCreate(ctx context.Context, r *http.Request) web.Encoder {
	var input createTaskRequest
	if err := web.Decode(r, &input); err != nil {
		return errs.Newf(errs.InvalidArgument, "decode: %s", err)
	}

	task, err := b.taskList.AddTask(ctx, input.Text).Wait(ctx)
	if err != nil {
		if errors.Is(err, tasklist.ErrIgnored) {
			return web.NewNoContent()
		}
		return persistenceError(err)
	}
	return web.NewJSONResponseWithStatus(task, http.StatusCreated)
}

func (b *bridge) httpSetCompletion(ctx context.Context, r *http.Request) web.Encoder {
	id, err := web.ParamInt64(r, "task_id")
	if err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	var input completionRequest
	if err := web.Decode(r, &input); err != nil {
		return errs.Newf(errs.InvalidArgument, "decode: %s", err)
	}

	if _, err := b.taskList.ToggleCompletion(ctx, id, *input.Completed).Wait(ctx); err != nil {
		return persistenceError(err)
	}
	return web.NewNoContent()
}

func (b *bridge) httpDelete(ctx context.Context, r *http.Request) web.Encoder {
	id, err := web.ParamInt64(r, "task_id")
	if err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	if _, err := b.taskList.DeleteTask(ctx, id).Wait(ctx); err != nil {
		return persistenceError(err)
	}
	return web.NewNoContent()
}

func (b *bridge) httpMetrics(ctx context.Context, r *http.Request) web.Encoder {
	return web.NewJSONResponse(b.taskList.Metrics())
}

func (b *bridge) httpHealth(ctx context.Context, r *http.Request) web.Encoder {
	if err := b.store.Ping(ctx); err != nil {
		b.log.ErrorContext(ctx, "health check", "error", err)
		return errs.Newf(errs.Unavailable, "store unavailable")
	}
	return web.NewJSONResponse(healthResponse{Status: "ok"})
}

func persistenceError(err error) web.Encoder {
	if isStopped(err) {
		return errs.New(errs.Unavailable, err)
	}
	return errs.New(errs.Internal, err)
}
