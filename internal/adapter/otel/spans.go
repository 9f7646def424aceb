package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "deploypilot"

// StartAnalysisSpan starts a span for one repository analysis.
func StartAnalysisSpan(ctx context.Context, owner, repo, branch string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "analysis",
		trace.WithAttributes(
			attribute.String("repo.owner", owner),
			attribute.String("repo.name", repo),
			attribute.String("repo.branch", branch),
		),
	)
}

// StartScoreSpan starts a span for platform scoring.
func StartScoreSpan(ctx context.Context, projectType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "score",
		trace.WithAttributes(attribute.String("project.type", projectType)),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
