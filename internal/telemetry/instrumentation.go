package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attributes must stay low cardinality. URLs, output paths and stderr text
// belong in logs (correlated by request_id and trace_id), never in attributes.

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

// InstrumentOperation runs fn inside a span named operationName.
func (t *Telemetry) InstrumentOperation(ctx context.Context, operationName, component string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operationName)

	defer span.End()

	span.SetAttributes(
		attribute.String("component", component),
		attribute.String("operation", operationName),
	)

	err := fn(ctx)

	status := StatusSuccess
	if err != nil {
		status = StatusError

		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration_seconds", time.Since(start).Seconds()),
	)

	return err
}

// InstrumentExtraction wraps one run of the extraction tool. classify maps the
// returned error to one of the Status* values.
func (t *Telemetry) InstrumentExtraction(ctx context.Context, tool string, classify func(error) string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()

	t.IncrementActiveExtractions()
	defer t.DecrementActiveExtractions()

	err := t.InstrumentOperation(ctx, "extract_audio", "extractor", func(ctx context.Context) error {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("extractor.tool", tool))

		return fn(ctx)
	})

	t.RecordExtraction(classify(err), time.Since(start))

	return err
}
