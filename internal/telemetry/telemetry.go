// Package telemetry defines the Logger, Metrics, and Tracer interfaces that
// every ReasonChip component depends on, plus no-op and OTEL/zerolog-backed
// implementations. Components receive these via constructor injection (spec
// §9 "Global process state" design note) rather than reading a singleton.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	// Logger emits structured, leveled log messages.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters, timers, and gauges.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, duration time.Duration, tags ...string)
		RecordGauge(name string, value float64, tags ...string)
	}

	// Tracer starts and retrieves spans.
	Tracer interface {
		Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
		Span(ctx context.Context) Span
	}

	// Span is a single unit of tracing work.
	Span interface {
		End(opts ...trace.SpanEndOption)
		AddEvent(name string, attrs ...any)
		SetStatus(code codes.Code, description string)
		RecordError(err error, opts ...trace.EventOption)
	}

	// Bundle groups the three facilities a component needs, so a single
	// field can be injected instead of three.
	Bundle struct {
		Log     Logger
		Metrics Metrics
		Tracer  Tracer
	}
)

// Noop returns a Bundle whose facilities discard everything. Used by
// run-local and tests that don't care about observability.
func Noop() Bundle {
	return Bundle{Log: NoopLogger{}, Metrics: NoopMetrics{}, Tracer: NoopTracer{}}
}
