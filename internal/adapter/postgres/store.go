package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deploypilot/deploypilot/internal/domain"
	"github.com/deploypilot/deploypilot/internal/domain/analysis"
)

const (
	// DefaultHistoryLimit applies when ListAnalyses gets a non-positive limit.
	DefaultHistoryLimit = 20
	// MaxHistoryLimit caps ListAnalyses.
	MaxHistoryLimit = 100
)

// Store implements database.HistoryStore using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// SaveAnalysis inserts rec. Saving the same ID twice replaces the record.
func (s *Store) SaveAnalysis(ctx context.Context, rec *analysis.Record) error {
	if rec == nil || rec.Analysis == nil {
		return fmt.Errorf("save analysis: empty record: %w", domain.ErrValidation)
	}
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return fmt.Errorf("save analysis: id %q: %w", rec.ID, domain.ErrValidation)
	}
	body, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (id, owner, repo, branch, project_type, recommended_platform, analysis, analyzed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   project_type = EXCLUDED.project_type,
		   recommended_platform = EXCLUDED.recommended_platform,
		   analysis = EXCLUDED.analysis,
		   analyzed_at = EXCLUDED.analyzed_at`,
		id, rec.Owner, rec.Repo, rec.Branch,
		string(rec.Analysis.Type()), rec.Analysis.Recommended(), body, rec.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", rec.ID, err)
	}
	return nil
}

// GetAnalysis returns the record with id. Malformed IDs are reported as
// not found.
func (s *Store) GetAnalysis(ctx context.Context, id string) (*analysis.Record, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", id, domain.ErrNotFound)
	}

	row := s.pool.QueryRow(ctx,
		`SELECT id, owner, repo, branch, analysis, analyzed_at
		 FROM analyses WHERE id = $1`, uid)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get analysis %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get analysis %s: %w", id, err)
	}
	return &rec, nil
}

// ListAnalyses returns the newest records for owner/repo, matched
// case-insensitively.
func (s *Store) ListAnalyses(ctx context.Context, owner, repo string, limit int) ([]analysis.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner, repo, branch, analysis, analyzed_at
		 FROM analyses
		 WHERE lower(owner) = lower($1) AND lower(repo) = lower($2)
		 ORDER BY analyzed_at DESC
		 LIMIT $3`, owner, repo, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list analyses %s/%s: %w", owner, repo, err)
	}
	defer rows.Close()

	var records []analysis.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list analyses %s/%s: %w", owner, repo, err)
	}
	return orEmpty(records), nil
}

func scanRecord(row scannable) (analysis.Record, error) {
	var (
		rec  analysis.Record
		body []byte
	)
	if err := row.Scan(&rec.ID, &rec.Owner, &rec.Repo, &rec.Branch, &body, &rec.AnalyzedAt); err != nil {
		return rec, err
	}

	var a analysis.RepositoryAnalysis
	if err := json.Unmarshal(body, &a); err != nil {
		return rec, fmt.Errorf("unmarshal analysis %s: %w", rec.ID, err)
	}
	rec.Analysis = &a
	return rec, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
