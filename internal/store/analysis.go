// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Analysis is one cached AI analysis of a publication, keyed by the
// publication, the analysis type, and a hash of the prompt that produced
// it. A changed prompt yields a new row instead of overwriting.
type Analysis struct {
	IdentifierKey string
	AnalysisType  string
	PromptHash    string
	Response      string
	Model         string
	Tokens        int
	CreatedAt     time.Time
}

// PutAnalysis stores an analysis result. Re-running the same prompt for
// the same publication replaces the previous response.
func (s *Store) PutAnalysis(ctx context.Context, a Analysis) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_analysis
			(identifier_key, analysis_type, prompt_hash, response, model, tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier_key, analysis_type, prompt_hash) DO UPDATE SET
			response = excluded.response,
			model = excluded.model,
			tokens = excluded.tokens,
			created_at = excluded.created_at`,
		a.IdentifierKey, a.AnalysisType, a.PromptHash, a.Response, a.Model, a.Tokens, now())
	if err != nil {
		return fmt.Errorf("recording analysis for %s: %w", a.IdentifierKey, err)
	}
	return nil
}

// GetAnalysis fetches a cached analysis, or ErrNotFound when this exact
// (publication, type, prompt) has not been analyzed.
func (s *Store) GetAnalysis(ctx context.Context, key, analysisType, promptHash string) (Analysis, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT response, model, tokens, created_at
		FROM ai_analysis
		WHERE identifier_key = ? AND analysis_type = ? AND prompt_hash = ?`,
		key, analysisType, promptHash)

	a := Analysis{IdentifierKey: key, AnalysisType: analysisType, PromptHash: promptHash}
	var (
		model sql.NullString
		at    string
	)
	err := row.Scan(&a.Response, &model, &a.Tokens, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	if err != nil {
		return Analysis{}, fmt.Errorf("reading analysis for %s: %w", key, err)
	}
	a.Model = model.String
	a.CreatedAt, _ = time.Parse(time.RFC3339, at)
	return a, nil
}
