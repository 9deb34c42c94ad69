package mid

import (
	"context"
	"net/http"
	"runtime/debug"

	"github.com/jrazmi/todolist/bridge/scaffolding/errs"
	"github.com/jrazmi/todolist/infrastructure/web"
)

// Panics recovers from panics and converts them into internal errors. It must
// run inside Errors so the recovered error is logged.
func Panics() web.Middleware {
	return func(next web.HandlerFunc) web.HandlerFunc {
		return func(ctx context.Context, r *http.Request) (resp web.Encoder) {
			defer func() {
				if rec := recover(); rec != nil {
					resp = errs.Newf(errs.InternalOnlyLog, "PANIC [%v] TRACE[%s]", rec, string(debug.Stack()))
				}
			}()
			return next(ctx, r)
		}
	}
}
