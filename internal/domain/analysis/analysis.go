// Package analysis holds the combined result of stack detection and
// platform scoring for one repository.
package analysis

import (
	"time"

	"github.com/deploypilot/deploypilot/internal/domain/platform"
	"github.com/deploypilot/deploypilot/internal/domain/stack"
)

// RepositoryAnalysis is the public result of analyzing a repository.
// The detected signals are flattened into the top level on the wire.
type RepositoryAnalysis struct {
	Owner    string `json:"owner"`
	RepoName string `json:"repoName"`
	stack.TechSignals
	Suggestions []platform.Suggestion `json:"suggestions"`
	// RecommendedPlatform is the top-ranked suggestion, nil when there are
	// no suggestions.
	RecommendedPlatform *platform.Suggestion `json:"recommendedPlatform"`
}

// New assembles an analysis. suggestions must be ranked, as returned by
// platform.Score.
func New(owner, repoName string, signals *stack.TechSignals, suggestions []platform.Suggestion) *RepositoryAnalysis {
	a := &RepositoryAnalysis{
		Owner:       owner,
		RepoName:    repoName,
		Suggestions: suggestions,
	}
	if signals != nil {
		a.TechSignals = *signals.Clone()
	}
	if a.DetectedTechnologies == nil {
		a.DetectedTechnologies = []string{}
	}
	if a.ProjectType == "" {
		a.ProjectType = stack.ProjectUnknown
	}
	if len(suggestions) > 0 {
		top := suggestions[0]
		a.RecommendedPlatform = &top
	}
	return a
}

// Recommended returns the name of the recommended platform, or "" when
// nothing was scored.
func (a *RepositoryAnalysis) Recommended() string {
	if a.RecommendedPlatform == nil {
		return ""
	}
	return a.RecommendedPlatform.Platform
}

// Signals returns a copy of the detected signals.
func (a *RepositoryAnalysis) Signals() *stack.TechSignals {
	return a.TechSignals.Clone()
}

// Record is a stored analysis with its identity and time of analysis.
type Record struct {
	ID         string              `json:"id"`
	Owner      string              `json:"owner"`
	Repo       string              `json:"repo"`
	Branch     string              `json:"branch,omitempty"`
	AnalyzedAt time.Time           `json:"analyzedAt"`
	Analysis   *RepositoryAnalysis `json:"analysis"`
}
