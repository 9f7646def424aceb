// Package database defines the analysis history store port (interface).
package database

import (
	"context"

	"github.com/deploypilot/deploypilot/internal/domain/analysis"
)

// HistoryStore persists analysis records.
type HistoryStore interface {
	// SaveAnalysis stores rec. rec.ID must be set.
	SaveAnalysis(ctx context.Context, rec *analysis.Record) error

	// GetAnalysis returns one record or domain.ErrNotFound.
	GetAnalysis(ctx context.Context, id string) (*analysis.Record, error)

	// ListAnalyses returns the newest records for owner/repo first.
	ListAnalyses(ctx context.Context, owner, repo string, limit int) ([]analysis.Record, error)
}
