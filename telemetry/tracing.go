// Package telemetry traces model calls with OpenTelemetry.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"trip_itinerary_planner/generator"
)

// Span names and attribute keys follow the OpenTelemetry GenAI conventions.
const (
	SpanGenAIChat = "gen_ai.chat"

	AttrSystem       = "gen_ai.system"
	AttrRequestModel = "gen_ai.request.model"
	AttrStep         = "trip.step"
	AttrPromptChars  = "trip.prompt.chars"
	AttrAnswerChars  = "trip.answer.chars"
	AttrErrorType    = "error.type"
)

// TracedLLM wraps an LLMClient with one span per call.
type TracedLLM struct {
	next   generator.LLMClient
	tracer trace.Tracer
	system string
	model  string
}

// TraceLLM returns client unchanged when tracer is nil.
func TraceLLM(client generator.LLMClient, tracer trace.Tracer, system, model string) generator.LLMClient {
	if tracer == nil {
		return client
	}
	return &TracedLLM{next: client, tracer: tracer, system: system, model: model}
}

func (t *TracedLLM) Complete(ctx context.Context, prompt generator.Prompt) (string, error) {
	ctx, span := t.tracer.Start(ctx, SpanGenAIChat, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String(AttrSystem, t.system),
		attribute.String(AttrRequestModel, t.model),
		attribute.String(AttrStep, string(prompt.Step)),
		attribute.Int(AttrPromptChars, promptChars(prompt)),
	)

	out, err := t.next.Complete(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrErrorType, fmt.Sprintf("%T", err)))
		return out, err
	}
	span.SetAttributes(attribute.Int(AttrAnswerChars, len(out)))
	span.SetStatus(codes.Ok, "")
	return out, nil
}

func promptChars(p generator.Prompt) int {
	n := len(p.System) + len(p.User)
	for _, m := range p.History {
		n += len(m.Content)
	}
	return n
}

// NewProvider builds a tracer provider that reports finished spans to logger
// at debug level.
func NewProvider(logger *slog.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(&LogExporter{Logger: logger}),
	)
}

// LogExporter is a span exporter that writes spans as slog records.
type LogExporter struct {
	Logger *slog.Logger
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.Logger == nil {
		return nil
	}
	for _, s := range spans {
		args := []any{
			"span", s.Name(),
			"trace_id", s.SpanContext().TraceID().String(),
			"duration", s.EndTime().Sub(s.StartTime()),
			"status", s.Status().Code.String(),
		}
		for _, kv := range s.Attributes() {
			args = append(args, string(kv.Key), kv.Value.Emit())
		}
		e.Logger.DebugContext(ctx, "span", args...)
	}
	return nil
}

func (e *LogExporter) Shutdown(context.Context) error { return nil }
