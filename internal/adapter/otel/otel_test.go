package otel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/deploypilot/deploypilot/internal/config"
	"github.com/deploypilot/deploypilot/internal/port/repository"
)

// Compile-time interface check.
var _ repository.Reader = (*InstrumentedReader)(nil)

type stubReader struct {
	listErr error
	files   map[string]string
}

func (s *stubReader) Name() string { return "stub" }

func (s *stubReader) ListEntries(context.Context, repository.Ref, string) ([]repository.Entry, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return []repository.Entry{{Name: "go.mod", Path: "go.mod", Type: repository.EntryFile}}, nil
}

func (s *stubReader) GetFileText(_ context.Context, _ repository.Ref, path string) (string, bool, error) {
	text, ok := s.files[path]
	return text, ok, nil
}

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := newMetrics(mp)
	if err != nil {
		t.Fatalf("newMetrics: %v", err)
	}
	return m, reader
}

// counterTotal sums every data point of the named Int64 counter.
func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: unexpected data type %T", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetricsRecord(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAnalysis(ctx, OutcomeSuccess, "", "Vercel", 120*time.Millisecond)
	m.RecordAnalysis(ctx, OutcomeError, "NotFound", "", time.Millisecond)
	m.RecordCacheLookup(ctx, true)
	m.RecordCacheLookup(ctx, false)
	m.RecordCacheLookup(ctx, false)

	if got := counterTotal(t, reader, "deploypilot.analyses"); got != 2 {
		t.Errorf("analyses = %d, want 2", got)
	}
	if got := counterTotal(t, reader, "deploypilot.recommendations"); got != 1 {
		t.Errorf("recommendations = %d, want 1", got)
	}
	if got := counterTotal(t, reader, "deploypilot.cache.lookups"); got != 3 {
		t.Errorf("cache lookups = %d, want 3", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordAnalysis(ctx, OutcomeSuccess, "", "Vercel", time.Second)
	m.RecordCacheLookup(ctx, true)
	m.RecordReaderRequest(ctx, "github", "get", OutcomeSuccess)
}

func TestInstrumentedReader(t *testing.T) {
	m, reader := newTestMetrics(t)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	inner := &stubReader{files: map[string]string{"go.mod": "module x"}}
	r := WrapReader(inner, m)
	r.tracer = tp.Tracer(tracerName)

	ctx := context.Background()
	ref := repository.Ref{Owner: "acme", Repo: "api"}

	if r.Name() != "stub" {
		t.Fatalf("expected inner name, got %q", r.Name())
	}
	if _, err := r.ListEntries(ctx, ref, ""); err != nil {
		t.Fatalf("list: %v", err)
	}
	if text, found, err := r.GetFileText(ctx, ref, "go.mod"); err != nil || !found || text != "module x" {
		t.Fatalf("get: text=%q found=%v err=%v", text, found, err)
	}

	inner.listErr = repository.ErrUnreachable
	if _, err := r.ListEntries(ctx, ref, ""); !errors.Is(err, repository.ErrUnreachable) {
		t.Fatalf("expected passthrough error, got %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	if spans[0].Name() != "reader.list" || spans[1].Name() != "reader.get" {
		t.Errorf("unexpected span names %q, %q", spans[0].Name(), spans[1].Name())
	}
	if len(spans[2].Events()) == 0 {
		t.Error("expected the failed call to record an error event")
	}
	if got := counterTotal(t, reader, "deploypilot.reader.requests"); got != 3 {
		t.Errorf("reader requests = %d, want 3", got)
	}
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.OTEL{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	called := false
	h := HTTPMiddleware("test")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/platforms", http.NoBody))
	if !called || rec.Code != http.StatusTeapot {
		t.Fatalf("expected wrapped handler to run, got code %d", rec.Code)
	}
}
