package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deploypilot/deploypilot/internal/domain"
	"github.com/deploypilot/deploypilot/internal/domain/stack"
	"github.com/deploypilot/deploypilot/internal/port/repository"
	"github.com/deploypilot/deploypilot/internal/service"
)

// Probe reports the health of one optional dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	Analysis *service.AnalysisService
	Probes   []Probe
	Version  string
	// AnalysisTimeout bounds synchronous analyses; zero means no limit.
	AnalysisTimeout time.Duration
}

// analyzeRequest is the body of POST /analyze and /analyze/async. Either
// owner and repo or repository ("owner/repo[@branch]") must be set.
type analyzeRequest struct {
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	Branch     string `json:"branch"`
	Repository string `json:"repository"`
	Refresh    bool   `json:"refresh"`
}

func (req *analyzeRequest) resolve() error {
	if req.Repository == "" {
		return nil
	}
	ref, err := repository.ParseRef(req.Repository)
	if err != nil {
		return fmt.Errorf("repository: %w: %w", err, domain.ErrValidation)
	}
	req.Owner, req.Repo = ref.Owner, ref.Repo
	if req.Branch == "" {
		req.Branch = ref.Branch
	}
	return nil
}

// GetAnalysis handles GET /api/v1/repos/{owner}/{repo}/analysis
func (h *Handlers) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	refresh, err := queryBool(r, "refresh")
	if err != nil {
		writeError(w, http.StatusBadRequest, "refresh must be a boolean")
		return
	}
	h.analyze(w, r, analyzeRequest{
		Owner:   urlParam(r, "owner"),
		Repo:    urlParam(r, "repo"),
		Branch:  r.URL.Query().Get("branch"),
		Refresh: refresh,
	})
}

// Analyze handles POST /api/v1/analyze
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[analyzeRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	h.analyze(w, r, req)
}

func (h *Handlers) analyze(w http.ResponseWriter, r *http.Request, req analyzeRequest) {
	if err := req.resolve(); err != nil {
		writeDomainError(w, err, "")
		return
	}

	ctx := r.Context()
	if h.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.AnalysisTimeout)
		defer cancel()
	}

	a, err := h.Analysis.Analyze(ctx, req.Owner, req.Repo, req.Branch, service.AnalyzeOptions{Refresh: req.Refresh})
	if err != nil {
		writeDomainError(w, err, "repository not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// InvalidateAnalysis handles DELETE /api/v1/repos/{owner}/{repo}/analysis
func (h *Handlers) InvalidateAnalysis(w http.ResponseWriter, r *http.Request) {
	owner, repo, branch := urlParam(r, "owner"), urlParam(r, "repo"), r.URL.Query().Get("branch")
	if err := service.ValidateRepo(owner, repo, branch); err != nil {
		writeDomainError(w, err, "")
		return
	}
	if err := h.Analysis.Invalidate(r.Context(), owner, repo, branch); err != nil {
		writeInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AnalyzeAsync handles POST /api/v1/analyze/async
func (h *Handlers) AnalyzeAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[analyzeRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if err := req.resolve(); err != nil {
		writeDomainError(w, err, "")
		return
	}

	id, err := h.Analysis.RequestAsync(r.Context(), req.Owner, req.Repo, req.Branch, req.Refresh)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"requestId": id,
		"status":    "queued",
	})
}

// Score handles POST /api/v1/score
func (h *Handlers) Score(w http.ResponseWriter, r *http.Request) {
	signals, ok := readJSON[stack.TechSignals](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if !signals.ProjectType.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown projectType %q", signals.ProjectType))
		return
	}
	writeJSON(w, http.StatusOK, h.Analysis.Score(r.Context(), &signals))
}

// ListPlatforms handles GET /api/v1/platforms
func (h *Handlers) ListPlatforms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Analysis.Platforms())
}

// ListHistory handles GET /api/v1/repos/{owner}/{repo}/history
func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	recs, err := h.Analysis.History(r.Context(), urlParam(r, "owner"), urlParam(r, "repo"), limit)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// GetRecord handles GET /api/v1/analyses/{id}
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Analysis.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "analysis not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type healthStatus struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// Health handles GET /health. Failing optional dependencies degrade the
// status without failing the check.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{Status: "ok", Version: h.Version}
	if len(h.Probes) > 0 {
		status.Components = make(map[string]string, len(h.Probes))
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, p := range h.Probes {
		if err := p.Check(ctx); err != nil {
			status.Status = "degraded"
			status.Components[p.Name] = err.Error()
			continue
		}
		status.Components[p.Name] = "ok"
	}
	writeJSON(w, http.StatusOK, status)
}
