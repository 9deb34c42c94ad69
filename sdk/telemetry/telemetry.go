// Package telemetry provides request-scoped trace ids.
package telemetry

import (
	"context"

	"github.com/google/uuid"
)

type telKey int

const (
	traceIDKey telKey = iota + 1
)

// NoTrace is returned by GetTraceID when the context carries no trace id.
const NoTrace = ""

type Telemetry struct{}

// NewTelemetry creates a new telemetry instance
func NewTelemetry() Telemetry {
	return Telemetry{}
}

// SetTraceID returns a child context carrying a fresh trace id. An existing
// trace id is kept.
func (t Telemetry) SetTraceID(ctx context.Context) context.Context {
	if _, ok := ctx.Value(traceIDKey).(string); ok {
		return ctx
	}
	return context.WithValue(ctx, traceIDKey, uuid.NewString())
}

// WithTraceID returns a child context carrying the given trace id.
func (t Telemetry) WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func (t Telemetry) GetTraceID(ctx context.Context) string {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok {
		return NoTrace
	}
	return v
}
