package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/deploypilot/deploypilot/internal/domain"
	"github.com/deploypilot/deploypilot/internal/domain/analysis"
	"github.com/deploypilot/deploypilot/internal/domain/stack"
	"github.com/deploypilot/deploypilot/internal/port/cache"
	"github.com/deploypilot/deploypilot/internal/port/database"
	"github.com/deploypilot/deploypilot/internal/port/messagequeue"
)

// Ensure mock types implement their interfaces at compile time.
var (
	_ SignalExtractor       = (*mockExtractor)(nil)
	_ SignalExtractor       = (*stack.Extractor)(nil)
	_ cache.Cache           = (*mockCache)(nil)
	_ database.HistoryStore = (*mockHistory)(nil)
	_ messagequeue.Queue    = (*mockQueue)(nil)
)

type mockExtractor struct {
	mu      sync.Mutex
	signals *stack.TechSignals
	err     error
	calls   int
}

func (m *mockExtractor) Analyze(_ context.Context, _, _, _ string) (*stack.TechSignals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.signals.Clone(), nil
}

func (m *mockExtractor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type mockHistory struct {
	records []analysis.Record
	saveErr error
}

func (h *mockHistory) SaveAnalysis(_ context.Context, rec *analysis.Record) error {
	if h.saveErr != nil {
		return h.saveErr
	}
	h.records = append(h.records, *rec)
	return nil
}

func (h *mockHistory) GetAnalysis(_ context.Context, id string) (*analysis.Record, error) {
	for i := range h.records {
		if h.records[i].ID == id {
			return &h.records[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (h *mockHistory) ListAnalyses(_ context.Context, owner, repo string, limit int) ([]analysis.Record, error) {
	var out []analysis.Record
	for i := len(h.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if h.records[i].Owner == owner && h.records[i].Repo == repo {
			out = append(out, h.records[i])
		}
	}
	return out, nil
}

type published struct {
	subject string
	data    []byte
}

// mockQueue implements messagequeue.Queue for testing.
type mockQueue struct {
	mu         sync.Mutex
	published  []published
	handlers   map[string]messagequeue.Handler
	publishErr error
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, published{subject, data})
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, subject string, h messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.handlers == nil {
		q.handlers = map[string]messagequeue.Handler{}
	}
	q.handlers[subject] = h
	return func() {}, nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

func (q *mockQueue) subjects() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.published))
	for _, p := range q.published {
		out = append(out, p.subject)
	}
	return out
}

var errBoom = errors.New("boom")
