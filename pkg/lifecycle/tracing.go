package lifecycle

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/entrhq/harness/pkg/lifecycle"

// Span attribute keys.
var (
	AttrWorker  = attribute.Key("harness.worker")
	AttrClass   = attribute.Key("harness.class")
	AttrTest    = attribute.Key("harness.test")
	AttrBrowser = attribute.Key("harness.browser")
	AttrAttempt = attribute.Key("harness.attempt")
	AttrOutcome = attribute.Key("harness.outcome")
)

// Tracer returns the tracer used for lifecycle spans. Spans go to the global
// provider, a no-op unless the host installs one.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan marks span failed when err is non-nil and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
