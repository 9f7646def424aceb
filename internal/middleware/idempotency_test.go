package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deploypilot/deploypilot/internal/middleware"
)

// mockCache is an in-memory cache.Cache for testing.
type mockCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttl    time.Duration
	getErr error
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttl = ttl
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// countingHandler answers 202 with a body that changes on every call.
func countingHandler(calls *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d}`, *calls)
	})
}

func post(h http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyReplaysResponse(t *testing.T) {
	store := newMockCache()
	calls := 0
	h := middleware.Idempotency(store, time.Hour)(countingHandler(&calls, http.StatusAccepted))

	first := post(h, "/api/v1/analyze/async", "abc")
	second := post(h, "/api/v1/analyze/async", "abc")

	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if second.Code != http.StatusAccepted || second.Body.String() != first.Body.String() {
		t.Fatalf("expected replay of %d %q, got %d %q", first.Code, first.Body.String(), second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected Idempotent-Replayed header on replay")
	}
	if second.Header().Get("Content-Type") != "application/json" {
		t.Error("expected replayed headers")
	}
	if store.ttl != time.Hour {
		t.Errorf("expected ttl 1h, got %v", store.ttl)
	}
}

func TestIdempotencyScopesKeysByRoute(t *testing.T) {
	calls := 0
	h := middleware.Idempotency(newMockCache(), time.Hour)(countingHandler(&calls, http.StatusOK))

	post(h, "/a", "k")
	post(h, "/b", "k")
	post(h, "/a", "other")
	if calls != 3 {
		t.Fatalf("expected 3 handler calls, got %d", calls)
	}
}

func TestIdempotencyPassThrough(t *testing.T) {
	calls := 0
	h := middleware.Idempotency(newMockCache(), time.Hour)(countingHandler(&calls, http.StatusOK))

	post(h, "/a", "")
	post(h, "/a", "")
	if calls != 2 {
		t.Fatalf("requests without a key must not be deduplicated, got %d calls", calls)
	}

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/a", http.NoBody)
		req.Header.Set("Idempotency-Key", "k")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 4 {
		t.Fatalf("GET requests must not be deduplicated, got %d calls", calls)
	}

	post(h, "/a", strings.Repeat("x", 256))
	post(h, "/a", strings.Repeat("x", 256))
	if calls != 6 {
		t.Fatalf("oversized keys must be ignored, got %d calls", calls)
	}
}

func TestIdempotencySkipsServerErrors(t *testing.T) {
	calls := 0
	h := middleware.Idempotency(newMockCache(), time.Hour)(countingHandler(&calls, http.StatusBadGateway))

	post(h, "/a", "k")
	post(h, "/a", "k")
	if calls != 2 {
		t.Fatalf("server errors must not be replayed, got %d calls", calls)
	}
}

func TestIdempotencyStoreFailureRunsHandler(t *testing.T) {
	store := newMockCache()
	store.getErr = errors.New("kv down")
	calls := 0
	h := middleware.Idempotency(store, time.Hour)(countingHandler(&calls, http.StatusOK))

	rec := post(h, "/a", "k")
	if calls != 1 || rec.Code != http.StatusOK {
		t.Fatalf("expected handler to run on store failure, calls=%d code=%d", calls, rec.Code)
	}
}
