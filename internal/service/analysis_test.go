package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/deploypilot/deploypilot/internal/domain"
	"github.com/deploypilot/deploypilot/internal/domain/platform"
	"github.com/deploypilot/deploypilot/internal/domain/stack"
	"github.com/deploypilot/deploypilot/internal/logger"
	"github.com/deploypilot/deploypilot/internal/port/messagequeue"
	"github.com/deploypilot/deploypilot/internal/port/repository"
)

func nextSignals() *stack.TechSignals {
	s := stack.NewTechSignals()
	s.SetLanguage("TypeScript")
	s.SetFramework("Next.js")
	s.AddTechnology("Next.js")
	s.MarkServerSideRendering()
	s.MarkAPIRoutes()
	s.UpgradeProjectType(stack.ProjectFrontend)
	s.UpgradeProjectType(stack.ProjectBackend)
	return s
}

func newTestService(ex *mockExtractor) *AnalysisService {
	svc := NewAnalysisService(ex)
	svc.newID = func() string { return "rec-1" }
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc
}

func TestAnalyze(t *testing.T) {
	svc := newTestService(&mockExtractor{signals: nextSignals()})

	a, err := svc.Analyze(context.Background(), "acme", "web", "", AnalyzeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Owner != "acme" || a.RepoName != "web" {
		t.Errorf("unexpected identity %s/%s", a.Owner, a.RepoName)
	}
	if a.Framework != "Next.js" || a.ProjectType != stack.ProjectFullStack {
		t.Errorf("unexpected signals: %+v", a.TechSignals)
	}
	if a.Recommended() != platform.Vercel {
		t.Errorf("expected Vercel, got %q", a.Recommended())
	}
	if len(a.Suggestions) != 4 || !a.Suggestions[0].IsRecommended || a.Suggestions[0].Score != 100 {
		t.Errorf("unexpected suggestions: %+v", a.Suggestions)
	}
}

func TestAnalyze_Validation(t *testing.T) {
	ex := &mockExtractor{signals: nextSignals()}
	svc := newTestService(ex)

	tests := []struct {
		name, owner, repo, branch string
	}{
		{"empty owner", "", "web", ""},
		{"empty repo", "acme", "", ""},
		{"slash in repo", "acme", "web/x", ""},
		{"dot dot", "acme", "..", ""},
		{"option branch", "acme", "web", "-x"},
		{"branch traversal", "acme", "web", "a..b"},
		{"branch space", "acme", "web", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Analyze(context.Background(), tt.owner, tt.repo, tt.branch, AnalyzeOptions{})
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
	if ex.callCount() != 0 {
		t.Fatalf("extractor must not run for invalid input, ran %d times", ex.callCount())
	}
}

func TestAnalyze_ExtractorErrorPassesThrough(t *testing.T) {
	notFound := &stack.AnalysisError{Kind: stack.KindNotFound, Op: "list", Err: repository.ErrNotFound}
	svc := newTestService(&mockExtractor{err: notFound})
	c := newMockCache()
	svc.SetCache(c, time.Minute)

	_, err := svc.Analyze(context.Background(), "acme", "gone", "", AnalyzeOptions{})
	if !errors.Is(err, stack.ErrNotFound) {
		t.Fatalf("expected NotFound analysis error, got %v", err)
	}
	if len(c.data) != 0 {
		t.Fatal("failed analyses must not be cached")
	}
}

func TestAnalyze_CacheHitAndRefresh(t *testing.T) {
	ex := &mockExtractor{signals: nextSignals()}
	svc := newTestService(ex)
	c := newMockCache()
	svc.SetCache(c, 5*time.Minute)
	ctx := context.Background()

	first, err := svc.Analyze(ctx, "Acme", "Web", "main", AnalyzeOptions{})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	key := CacheKey("acme", "web", "main")
	if _, ok := c.data[key]; !ok {
		t.Fatalf("expected cache entry %q, have %v", key, c.data)
	}
	if c.ttls[key] != 5*time.Minute {
		t.Errorf("expected ttl 5m, got %v", c.ttls[key])
	}

	second, err := svc.Analyze(ctx, "acme", "web", "main", AnalyzeOptions{})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if ex.callCount() != 1 {
		t.Fatalf("expected cache hit, extractor ran %d times", ex.callCount())
	}
	if second.Recommended() != first.Recommended() || second.Framework != first.Framework {
		t.Errorf("cached analysis differs: %+v vs %+v", second, first)
	}

	if _, err := svc.Analyze(ctx, "acme", "web", "main", AnalyzeOptions{Refresh: true}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if ex.callCount() != 2 {
		t.Fatalf("expected refresh to bypass the cache, extractor ran %d times", ex.callCount())
	}

	if _, err := svc.Analyze(ctx, "acme", "web", "dev", AnalyzeOptions{}); err != nil {
		t.Fatalf("other branch: %v", err)
	}
	if ex.callCount() != 3 {
		t.Fatalf("expected branches to be cached separately, extractor ran %d times", ex.callCount())
	}
}

func TestAnalyze_CacheFailuresDegrade(t *testing.T) {
	ex := &mockExtractor{signals: nextSignals()}
	svc := newTestService(ex)
	c := newMockCache()
	c.getErr = errBoom
	c.setErr = errBoom
	svc.SetCache(c, time.Minute)

	if _, err := svc.Analyze(context.Background(), "acme", "web", "", AnalyzeOptions{}); err != nil {
		t.Fatalf("cache failures must not fail the analysis: %v", err)
	}

	c.getErr, c.setErr = nil, nil
	c.data[CacheKey("acme", "web", "")] = []byte("{not json")
	if _, err := svc.Analyze(context.Background(), "acme", "web", "", AnalyzeOptions{}); err != nil {
		t.Fatalf("undecodable entry must be a miss: %v", err)
	}
	if ex.callCount() != 2 {
		t.Fatalf("expected two extractions, got %d", ex.callCount())
	}
}

func TestAnalyze_HistoryAndEvents(t *testing.T) {
	svc := newTestService(&mockExtractor{signals: nextSignals()})
	h := &mockHistory{}
	q := &mockQueue{}
	svc.SetHistory(h)
	svc.SetQueue(q)

	ctx := logger.WithRequestID(context.Background(), "req-9")
	if _, err := svc.Analyze(ctx, "acme", "web", "main", AnalyzeOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(h.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(h.records))
	}
	rec := h.records[0]
	if rec.ID != "rec-1" || rec.Branch != "main" || rec.Analysis.Recommended() != platform.Vercel {
		t.Errorf("unexpected record: %+v", rec)
	}
	if !rec.AnalyzedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("unexpected analyzedAt %v", rec.AnalyzedAt)
	}

	if len(q.published) != 1 || q.published[0].subject != messagequeue.SubjectAnalysisCompleted {
		t.Fatalf("expected one completed event, got %v", q.subjects())
	}
	var ev messagequeue.AnalysisCompletedPayload
	if err := json.Unmarshal(q.published[0].data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.RecordID != "rec-1" || ev.RequestID != "req-9" || ev.Score != 100 ||
		ev.ProjectType != string(stack.ProjectFullStack) || ev.RecommendedPlatform != platform.Vercel {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestAnalyze_SideEffectFailuresAreLogged(t *testing.T) {
	svc := newTestService(&mockExtractor{signals: nextSignals()})
	svc.SetHistory(&mockHistory{saveErr: errBoom})
	q := &mockQueue{publishErr: errBoom}
	svc.SetQueue(q)

	if _, err := svc.Analyze(context.Background(), "acme", "web", "", AnalyzeOptions{}); err != nil {
		t.Fatalf("history and event failures must not fail the analysis: %v", err)
	}
}

func TestHistoryAndGet(t *testing.T) {
	svc := newTestService(&mockExtractor{signals: nextSignals()})
	ctx := context.Background()

	if _, err := svc.History(ctx, "acme", "web", 10); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable without store, got %v", err)
	}
	if _, err := svc.Get(ctx, "x"); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable without store, got %v", err)
	}

	h := &mockHistory{}
	svc.SetHistory(h)
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		svc.newID = func() string { return id }
		if _, err := svc.Analyze(ctx, "acme", "web", "", AnalyzeOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := svc.History(ctx, "acme", "web", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "c" || recs[1].ID != "b" {
		t.Fatalf("unexpected history: %+v", recs)
	}
	if _, err := svc.History(ctx, "acme", "", 2); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	rec, err := svc.Get(ctx, "b")
	if err != nil || rec.ID != "b" {
		t.Fatalf("get: rec=%+v err=%v", rec, err)
	}
	if _, err := svc.Get(ctx, "zzz"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInvalidate(t *testing.T) {
	ex := &mockExtractor{signals: nextSignals()}
	svc := newTestService(ex)
	if err := svc.Invalidate(context.Background(), "acme", "web", ""); err != nil {
		t.Fatalf("invalidate without cache: %v", err)
	}

	svc.SetCache(newMockCache(), time.Minute)
	ctx := context.Background()
	_, _ = svc.Analyze(ctx, "acme", "web", "", AnalyzeOptions{})
	if err := svc.Invalidate(ctx, "ACME", "web", ""); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = svc.Analyze(ctx, "acme", "web", "", AnalyzeOptions{})
	if ex.callCount() != 2 {
		t.Fatalf("expected re-extraction after invalidate, got %d calls", ex.callCount())
	}
}

func TestScoreAndPlatforms(t *testing.T) {
	svc := newTestService(&mockExtractor{})

	got := svc.Score(context.Background(), nil)
	if len(got) != 4 || got[0].Platform != platform.Vercel || got[0].Score != 70 {
		t.Fatalf("unexpected scores for empty signals: %+v", got)
	}

	cands := svc.Platforms()
	if len(cands) != 4 || cands[0].Name != platform.Vercel || cands[3].Name != platform.GitHubPages {
		t.Fatalf("unexpected catalogue: %+v", cands)
	}
}

func TestRequestAsync(t *testing.T) {
	svc := newTestService(&mockExtractor{signals: nextSignals()})
	ctx := context.Background()

	if _, err := svc.RequestAsync(ctx, "acme", "web", "", false); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable without queue, got %v", err)
	}

	q := &mockQueue{}
	svc.SetQueue(q)
	if _, err := svc.RequestAsync(ctx, "", "web", "", false); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	id, err := svc.RequestAsync(ctx, "acme", "web", "main", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "rec-1" {
		t.Errorf("expected generated request ID, got %q", id)
	}
	id, err = svc.RequestAsync(logger.WithRequestID(ctx, "req-7"), "acme", "web", "", false)
	if err != nil || id != "req-7" {
		t.Fatalf("expected context request ID, got %q err=%v", id, err)
	}

	if len(q.published) != 2 {
		t.Fatalf("expected 2 requests, got %v", q.subjects())
	}
	var req messagequeue.AnalysisRequestedPayload
	if err := json.Unmarshal(q.published[0].data, &req); err != nil {
		t.Fatal(err)
	}
	if req.Owner != "acme" || req.Repo != "web" || req.Branch != "main" || !req.Refresh || req.RequestID != "rec-1" {
		t.Errorf("unexpected request payload: %+v", req)
	}
}

func TestRequestSubscriber(t *testing.T) {
	ex := &mockExtractor{signals: nextSignals()}
	svc := newTestService(ex)
	q := &mockQueue{}
	svc.SetQueue(q)
	ctx := context.Background()

	cancel, err := svc.StartRequestSubscriber(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	handler := q.handlers[messagequeue.SubjectAnalysisRequested]
	if handler == nil {
		t.Fatal("expected a handler on analysis.requested")
	}

	msg := func(owner string) []byte {
		data, _ := json.Marshal(messagequeue.AnalysisRequestedPayload{RequestID: "r1", Owner: owner, Repo: "web"})
		return data
	}

	if err := handler(ctx, messagequeue.SubjectAnalysisRequested, msg("acme")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := q.subjects(); len(got) != 1 || got[0] != messagequeue.SubjectAnalysisCompleted {
		t.Fatalf("expected completed event, got %v", got)
	}

	// Terminal failures are acknowledged and reported.
	ex.err = &stack.AnalysisError{Kind: stack.KindNotFound, Err: repository.ErrNotFound}
	if err := handler(ctx, messagequeue.SubjectAnalysisRequested, msg("acme")); err != nil {
		t.Fatalf("terminal failure must be acknowledged, got %v", err)
	}
	got := q.subjects()
	if len(got) != 2 || got[1] != messagequeue.SubjectAnalysisFailed {
		t.Fatalf("expected failed event, got %v", got)
	}
	var failed messagequeue.AnalysisFailedPayload
	if err := json.Unmarshal(q.published[1].data, &failed); err != nil {
		t.Fatal(err)
	}
	if failed.Kind != string(stack.KindNotFound) || failed.RequestID != "r1" {
		t.Errorf("unexpected failure payload: %+v", failed)
	}

	// Transient failures are returned for redelivery.
	ex.err = &stack.AnalysisError{Kind: stack.KindRateLimited, Err: repository.ErrRateLimited}
	if err := handler(ctx, messagequeue.SubjectAnalysisRequested, msg("acme")); !errors.Is(err, stack.ErrRateLimited) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if len(q.subjects()) != 2 {
		t.Fatalf("transient failures must not publish, got %v", q.subjects())
	}

	if err := handler(ctx, messagequeue.SubjectAnalysisRequested, []byte("{")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestCacheKey(t *testing.T) {
	if got := CacheKey("Acme", "Web", "Main"); got != "analysis:v1:acme/web@Main" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&stack.AnalysisError{Kind: stack.KindUnreachable}, "Unreachable"},
		{domain.ErrValidation, "Validation"},
		{context.Canceled, "Canceled"},
		{errBoom, "Internal"},
	}
	for _, tt := range tests {
		if got := errorKind(tt.err); got != tt.want {
			t.Errorf("errorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
