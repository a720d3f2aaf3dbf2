package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the name of the tracer for processing operations.
const TracerName = "rena.pipeline"

// Span attribute keys
const (
	AttrUserID    = "user_id"
	AttrSessionID = "session_id"
	AttrStage     = "stage"
	AttrModel     = "model"
	AttrSegments  = "segment_count"
	AttrSpeakers  = "speaker_count"
)

// Tracer provides distributed tracing for the processing pipeline.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a pipeline tracer.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName)}
}

// StartSessionSpan starts the root span for processing one session.
func (t *Tracer) StartSessionSpan(ctx context.Context, userID, sessionID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "pipeline.process_session",
		trace.WithAttributes(
			attribute.String(AttrUserID, userID),
			attribute.String(AttrSessionID, sessionID),
		),
	)
}

// StartStageSpan starts a span for one pipeline stage.
func (t *Tracer) StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "pipeline.stage."+stage,
		trace.WithAttributes(attribute.String(AttrStage, stage)),
	)
}

// endStage records the stage outcome and ends the span.
func endStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
