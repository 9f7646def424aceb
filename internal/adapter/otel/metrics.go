package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "deploypilot"

// Outcome labels for analysis and reader metrics.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeCached  = "cached"
)

// Metrics holds all deploypilot metric instruments.
// A nil *Metrics records nothing.
type Metrics struct {
	Analyses         metric.Int64Counter
	AnalysisDuration metric.Float64Histogram
	Recommendations  metric.Int64Counter
	CacheLookups     metric.Int64Counter
	ReaderRequests   metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.GetMeterProvider())
}

func newMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Analyses, err = meter.Int64Counter("deploypilot.analyses",
		metric.WithDescription("Number of repository analyses by outcome"))
	if err != nil {
		return nil, err
	}

	m.AnalysisDuration, err = meter.Float64Histogram("deploypilot.analysis.duration_seconds",
		metric.WithDescription("Analysis duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.Recommendations, err = meter.Int64Counter("deploypilot.recommendations",
		metric.WithDescription("Number of times each platform was recommended"))
	if err != nil {
		return nil, err
	}

	m.CacheLookups, err = meter.Int64Counter("deploypilot.cache.lookups",
		metric.WithDescription("Analysis cache lookups by result"))
	if err != nil {
		return nil, err
	}

	m.ReaderRequests, err = meter.Int64Counter("deploypilot.reader.requests",
		metric.WithDescription("Repository reader requests by operation and outcome"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordAnalysis records one finished analysis. recommended is empty on error.
func (m *Metrics) RecordAnalysis(ctx context.Context, outcome, kind, recommended string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if kind != "" {
		attrs = append(attrs, attribute.String("error.kind", kind))
	}
	set := metric.WithAttributes(attrs...)
	m.Analyses.Add(ctx, 1, set)
	m.AnalysisDuration.Record(ctx, d.Seconds(), set)
	if recommended != "" {
		m.Recommendations.Add(ctx, 1, metric.WithAttributes(attribute.String("platform", recommended)))
	}
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordReaderRequest records one repository reader call.
func (m *Metrics) RecordReaderRequest(ctx context.Context, reader, op, outcome string) {
	if m == nil {
		return
	}
	m.ReaderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reader", reader),
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}
