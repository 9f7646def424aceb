// Package platform scores hosting platforms against detected TechSignals.
package platform

import (
	"sort"
	"strings"

	"github.com/deploypilot/deploypilot/internal/domain/stack"
)

// Platform names, in the fixed candidate order used to break score ties.
const (
	Vercel          = "Vercel"
	Netlify         = "Netlify"
	CloudflarePages = "Cloudflare Pages"
	GitHubPages     = "GitHub Pages"
)

const (
	minScore = 0
	maxScore = 100
)

// Suggestion is one ranked platform recommendation.
type Suggestion struct {
	Platform         string   `json:"platform"`
	Score            int      `json:"score"`
	Reason           string   `json:"reason"`
	DetectedFeatures []string `json:"detectedFeatures"`
	IsRecommended    bool     `json:"isRecommended"`
}

// Result is the outcome of evaluating one candidate's rules.
type Result struct {
	Score    int
	Reasons  []string
	Features []string
}

// Candidate describes a platform and the rules that score it.
type Candidate struct {
	Name          string `json:"name"`
	BaseScore     int    `json:"baseScore"`
	DefaultReason string `json:"defaultReason"`
	rules         []rule
}

// Evaluate applies the candidate's rules in order. The score is clamped to
// [0,100]; an empty reason means the rule only contributes a feature.
func (c *Candidate) Evaluate(s *stack.TechSignals) Result {
	res := Result{Score: c.BaseScore, Reasons: []string{}, Features: []string{}}
	for _, r := range c.rules {
		if !r.when(s) {
			continue
		}
		res.Score += r.delta
		if r.reason != "" {
			res.Reasons = append(res.Reasons, r.reason)
		}
		if r.feature != "" {
			res.Features = append(res.Features, r.feature)
		}
	}
	res.Score = clamp(res.Score)
	return res
}

// Reason joins the triggered fragments, or falls back to the default sentence.
func (c *Candidate) Reason(res Result) string {
	if len(res.Reasons) == 0 {
		return c.DefaultReason
	}
	return strings.Join(res.Reasons, ". ")
}

// Candidates returns the platform catalogue in candidate order.
func Candidates() []Candidate {
	out := make([]Candidate, len(catalogue))
	copy(out, catalogue)
	return out
}

// Score ranks every candidate platform for s. The result always has one
// entry per candidate, sorted by descending score, and exactly the first
// entry is recommended. Ties keep candidate order.
func Score(s *stack.TechSignals) []Suggestion {
	if s == nil {
		s = stack.NewTechSignals()
	}
	out := make([]Suggestion, 0, len(catalogue))
	for i := range catalogue {
		c := &catalogue[i]
		res := c.Evaluate(s)
		out = append(out, Suggestion{
			Platform:         c.Name,
			Score:            res.Score,
			Reason:           c.Reason(res),
			DetectedFeatures: res.Features,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	out[0].IsRecommended = true
	return out
}

func clamp(score int) int {
	return min(max(score, minScore), maxScore)
}
