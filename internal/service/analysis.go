// Package service implements business logic on top of ports.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	dpotel "github.com/deploypilot/deploypilot/internal/adapter/otel"
	"github.com/deploypilot/deploypilot/internal/domain"
	"github.com/deploypilot/deploypilot/internal/domain/analysis"
	"github.com/deploypilot/deploypilot/internal/domain/platform"
	"github.com/deploypilot/deploypilot/internal/domain/stack"
	"github.com/deploypilot/deploypilot/internal/logger"
	"github.com/deploypilot/deploypilot/internal/port/cache"
	"github.com/deploypilot/deploypilot/internal/port/database"
	"github.com/deploypilot/deploypilot/internal/port/messagequeue"
)

// cacheKeyPrefix is bumped whenever the cached analysis shape changes.
const cacheKeyPrefix = "analysis:v1:"

// SignalExtractor detects a repository's stack. Implemented by *stack.Extractor.
type SignalExtractor interface {
	Analyze(ctx context.Context, owner, repoName, branch string) (*stack.TechSignals, error)
}

// AnalyzeOptions tunes a single analysis.
type AnalyzeOptions struct {
	// Refresh bypasses the cache lookup; the fresh result is still cached.
	Refresh bool
	// RequestID correlates events; it defaults to the request ID in ctx.
	RequestID string
}

// AnalysisService runs repository analyses. The cache, history store, queue
// and metrics are optional.
type AnalysisService struct {
	extractor SignalExtractor
	cache     cache.Cache
	cacheTTL  time.Duration
	history   database.HistoryStore
	queue     messagequeue.Queue
	metrics   *dpotel.Metrics
	now       func() time.Time
	newID     func() string
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(extractor SignalExtractor) *AnalysisService {
	return &AnalysisService{
		extractor: extractor,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// SetCache enables result caching for ttl.
func (s *AnalysisService) SetCache(c cache.Cache, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

// SetHistory enables persisting analysis records.
func (s *AnalysisService) SetHistory(h database.HistoryStore) { s.history = h }

// SetQueue enables analysis events and asynchronous requests.
func (s *AnalysisService) SetQueue(q messagequeue.Queue) { s.queue = q }

// SetMetrics enables metric recording.
func (s *AnalysisService) SetMetrics(m *dpotel.Metrics) { s.metrics = m }

// Analyze detects the stack of owner/repo at branch (empty for the default
// branch) and ranks the deployment platforms for it.
func (s *AnalysisService) Analyze(ctx context.Context, owner, repo, branch string, opts AnalyzeOptions) (*analysis.RepositoryAnalysis, error) {
	if err := ValidateRepo(owner, repo, branch); err != nil {
		return nil, err
	}
	if opts.RequestID == "" {
		opts.RequestID = logger.RequestID(ctx)
	}

	start := s.now()
	ctx, span := dpotel.StartAnalysisSpan(ctx, owner, repo, branch)
	a, cached, err := s.analyze(ctx, owner, repo, branch, opts)
	dpotel.EndSpan(span, err)

	elapsed := s.now().Sub(start)
	switch {
	case err != nil:
		s.metrics.RecordAnalysis(ctx, dpotel.OutcomeError, errorKind(err), "", elapsed)
		slog.WarnContext(ctx, "analysis failed", "owner", owner, "repo", repo, "branch", branch, "error", err)
	case cached:
		s.metrics.RecordAnalysis(ctx, dpotel.OutcomeCached, "", a.Recommended(), elapsed)
	default:
		s.metrics.RecordAnalysis(ctx, dpotel.OutcomeSuccess, "", a.Recommended(), elapsed)
		slog.InfoContext(ctx, "analysis completed",
			"owner", owner, "repo", repo, "branch", branch,
			"project_type", a.ProjectType,
			"recommended", a.Recommended(),
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	return a, err
}

func (s *AnalysisService) analyze(ctx context.Context, owner, repo, branch string, opts AnalyzeOptions) (*analysis.RepositoryAnalysis, bool, error) {
	key := CacheKey(owner, repo, branch)
	if !opts.Refresh {
		if a, ok := s.cached(ctx, key); ok {
			return a, true, nil
		}
	}

	signals, err := s.extractor.Analyze(ctx, owner, repo, branch)
	if err != nil {
		return nil, false, err
	}
	a := analysis.New(owner, repo, signals, s.Score(ctx, signals))

	s.store(ctx, key, a)
	recordID := s.save(ctx, owner, repo, branch, a)
	s.publishCompleted(ctx, recordID, opts.RequestID, branch, a)
	return a, false, nil
}

// cached returns a cached analysis. Cache failures and undecodable entries
// count as misses.
func (s *AnalysisService) cached(ctx context.Context, key string) (*analysis.RepositoryAnalysis, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, found, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "analysis cache get failed", "key", key, "error", err)
	}
	if err != nil || !found {
		s.metrics.RecordCacheLookup(ctx, false)
		return nil, false
	}

	var a analysis.RepositoryAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		slog.WarnContext(ctx, "analysis cache entry undecodable", "key", key, "error", err)
		s.metrics.RecordCacheLookup(ctx, false)
		return nil, false
	}
	s.metrics.RecordCacheLookup(ctx, true)
	return &a, true
}

func (s *AnalysisService) store(ctx context.Context, key string, a *analysis.RepositoryAnalysis) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		slog.WarnContext(ctx, "analysis cache marshal failed", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		slog.WarnContext(ctx, "analysis cache set failed", "key", key, "error", err)
	}
}

// save records a fresh analysis in the history store and returns its ID, or
// "" when there is no store or the save failed.
func (s *AnalysisService) save(ctx context.Context, owner, repo, branch string, a *analysis.RepositoryAnalysis) string {
	if s.history == nil {
		return ""
	}
	rec := &analysis.Record{
		ID:         s.newID(),
		Owner:      owner,
		Repo:       repo,
		Branch:     branch,
		AnalyzedAt: s.now().UTC(),
		Analysis:   a,
	}
	if err := s.history.SaveAnalysis(ctx, rec); err != nil {
		slog.WarnContext(ctx, "analysis history save failed", "owner", owner, "repo", repo, "error", err)
		return ""
	}
	return rec.ID
}

func (s *AnalysisService) publishCompleted(ctx context.Context, recordID, requestID, branch string, a *analysis.RepositoryAnalysis) {
	if s.queue == nil {
		return
	}
	payload := messagequeue.AnalysisCompletedPayload{
		RecordID:            recordID,
		RequestID:           requestID,
		Owner:               a.Owner,
		Repo:                a.RepoName,
		Branch:              branch,
		ProjectType:         string(a.Type()),
		RecommendedPlatform: a.Recommended(),
	}
	if len(a.Suggestions) > 0 {
		payload.Score = a.Suggestions[0].Score
	}
	s.publish(ctx, messagequeue.SubjectAnalysisCompleted, payload)
}

func (s *AnalysisService) publish(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.WarnContext(ctx, "event marshal failed", "subject", subject, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.WarnContext(ctx, "event publish failed", "subject", subject, "error", err)
	}
}

// Score ranks the platforms for signals.
func (s *AnalysisService) Score(ctx context.Context, signals *stack.TechSignals) []platform.Suggestion {
	projectType := stack.ProjectUnknown
	if signals != nil {
		projectType = signals.Type()
	}
	_, span := dpotel.StartScoreSpan(ctx, string(projectType))
	defer span.End()
	return platform.Score(signals)
}

// Platforms returns the platform catalogue in candidate order.
func (s *AnalysisService) Platforms() []platform.Candidate {
	return platform.Candidates()
}

// History returns the newest stored analyses of owner/repo.
func (s *AnalysisService) History(ctx context.Context, owner, repo string, limit int) ([]analysis.Record, error) {
	if s.history == nil {
		return nil, fmt.Errorf("analysis history: %w", domain.ErrUnavailable)
	}
	if err := ValidateRepo(owner, repo, ""); err != nil {
		return nil, err
	}
	return s.history.ListAnalyses(ctx, owner, repo, limit)
}

// Get returns one stored analysis.
func (s *AnalysisService) Get(ctx context.Context, id string) (*analysis.Record, error) {
	if s.history == nil {
		return nil, fmt.Errorf("analysis history: %w", domain.ErrUnavailable)
	}
	return s.history.GetAnalysis(ctx, id)
}

// Invalidate drops the cached analysis of owner/repo at branch.
func (s *AnalysisService) Invalidate(ctx context.Context, owner, repo, branch string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, CacheKey(owner, repo, branch))
}

// RequestAsync queues an analysis and returns the request ID that the
// resulting analysis.completed or analysis.failed event will carry.
func (s *AnalysisService) RequestAsync(ctx context.Context, owner, repo, branch string, refresh bool) (string, error) {
	if s.queue == nil {
		return "", fmt.Errorf("async analysis: %w", domain.ErrUnavailable)
	}
	if err := ValidateRepo(owner, repo, branch); err != nil {
		return "", err
	}

	requestID := logger.RequestID(ctx)
	if requestID == "" {
		requestID = s.newID()
	}
	data, err := json.Marshal(messagequeue.AnalysisRequestedPayload{
		RequestID: requestID,
		Owner:     owner,
		Repo:      repo,
		Branch:    branch,
		Refresh:   refresh,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	if err := s.queue.Publish(logger.WithRequestID(ctx, requestID), messagequeue.SubjectAnalysisRequested, data); err != nil {
		return "", fmt.Errorf("publish analysis request: %w", err)
	}
	return requestID, nil
}

// StartRequestSubscriber consumes analysis.requested messages. Transient
// failures are returned for redelivery; other failures are acknowledged and
// reported on analysis.failed.
func (s *AnalysisService) StartRequestSubscriber(ctx context.Context) (cancel func(), err error) {
	if s.queue == nil {
		return nil, fmt.Errorf("analysis request subscriber: %w", domain.ErrUnavailable)
	}
	return s.queue.Subscribe(ctx, messagequeue.SubjectAnalysisRequested, s.HandleRequest)
}

// HandleRequest processes one analysis.requested message.
func (s *AnalysisService) HandleRequest(ctx context.Context, _ string, data []byte) error {
	var req messagequeue.AnalysisRequestedPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("unmarshal analysis request: %w", err)
	}
	if req.RequestID != "" {
		ctx = logger.WithRequestID(ctx, req.RequestID)
	}

	_, err := s.Analyze(ctx, req.Owner, req.Repo, req.Branch, AnalyzeOptions{
		Refresh:   req.Refresh,
		RequestID: req.RequestID,
	})
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return err
	}

	s.publish(ctx, messagequeue.SubjectAnalysisFailed, messagequeue.AnalysisFailedPayload{
		RequestID: req.RequestID,
		Owner:     req.Owner,
		Repo:      req.Repo,
		Branch:    req.Branch,
		Kind:      errorKind(err),
		Error:     err.Error(),
	})
	return nil
}

// CacheKey returns the cache key of an analysis. Owner and repository are
// case-insensitive on the host; branches are not.
func CacheKey(owner, repo, branch string) string {
	return cacheKeyPrefix + strings.ToLower(owner+"/"+repo) + "@" + branch
}

// IsTransient reports whether retrying the analysis later may succeed.
func IsTransient(err error) bool {
	return errors.Is(err, stack.ErrUnreachable) ||
		errors.Is(err, stack.ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}

// errorKind labels err for metrics and failure events.
func errorKind(err error) string {
	var ae *stack.AnalysisError
	switch {
	case errors.As(err, &ae):
		return string(ae.Kind)
	case errors.Is(err, domain.ErrValidation):
		return "Validation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Canceled"
	default:
		return "Internal"
	}
}
