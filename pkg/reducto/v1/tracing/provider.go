package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// TracerProvider hands out the tracer used for dispatch spans. It lets a
// host application plug reducto into its existing OpenTelemetry setup.
type TracerProvider interface {
	// GetTracer returns a Tracer with the given instrumentation name.
	GetTracer(name string, opts ...trace.TracerOption) trace.Tracer

	// Shutdown flushes buffered spans. The context should carry a deadline.
	// NoOp implementations return nil.
	Shutdown(ctx context.Context) error
}
