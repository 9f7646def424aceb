package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/deploypilot/deploypilot/internal/port/repository"
)

// InstrumentedReader wraps a repository.Reader with spans and request metrics.
type InstrumentedReader struct {
	inner   repository.Reader
	metrics *Metrics
	tracer  trace.Tracer
}

// WrapReader instruments inner. metrics may be nil.
func WrapReader(inner repository.Reader, metrics *Metrics) *InstrumentedReader {
	return &InstrumentedReader{inner: inner, metrics: metrics, tracer: otel.Tracer(tracerName)}
}

func (r *InstrumentedReader) Name() string { return r.inner.Name() }

func (r *InstrumentedReader) ListEntries(ctx context.Context, ref repository.Ref, dir string) ([]repository.Entry, error) {
	ctx, span := r.start(ctx, "reader.list", ref, dir)
	entries, err := r.inner.ListEntries(ctx, ref, dir)
	span.SetAttributes(attribute.Int("entries", len(entries)))
	r.finish(ctx, span, "list", err)
	return entries, err
}

func (r *InstrumentedReader) GetFileText(ctx context.Context, ref repository.Ref, path string) (string, bool, error) {
	ctx, span := r.start(ctx, "reader.get", ref, path)
	text, found, err := r.inner.GetFileText(ctx, ref, path)
	span.SetAttributes(attribute.Bool("found", found))
	r.finish(ctx, span, "get", err)
	return text, found, err
}

func (r *InstrumentedReader) start(ctx context.Context, name string, ref repository.Ref, path string) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("reader", r.inner.Name()),
		attribute.String("repo", ref.String()),
		attribute.String("path", path),
	))
}

func (r *InstrumentedReader) finish(ctx context.Context, span trace.Span, op string, err error) {
	outcome := OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, repository.ErrRateLimited):
		outcome = "rate_limited"
	default:
		outcome = OutcomeError
	}
	r.metrics.RecordReaderRequest(ctx, r.inner.Name(), op, outcome)
	EndSpan(span, err)
}
