package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"billing-api/cmd/defines"
	"billing-api/internal/models"
	"billing-api/pkg/postgres"

	"github.com/jackc/pgx/v5"
)

// AnalysisRepository handles analysis database operations
type AnalysisRepository struct {
	db *postgres.DB
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *postgres.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// CreateSchema creates the analyses table if it doesn't exist
func (r *AnalysisRepository) CreateSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS analyses (
			id BIGSERIAL PRIMARY KEY,
			bill_id BIGINT NOT NULL UNIQUE REFERENCES bills(id) ON DELETE CASCADE,
			fraud_score INT NOT NULL CHECK (fraud_score BETWEEN 0 AND 100),
			summary TEXT NOT NULL,
			details JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	_, err := r.db.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create analyses schema: %w", err)
	}

	return nil
}

// CompleteWithAnalysis persists the analysis and marks the bill completed
// in a single transaction, so readers never see one without the other.
// Any prior analysis for the bill is superseded by a fresh row.
func (r *AnalysisRepository) CompleteWithAnalysis(ctx context.Context, analysis *models.Analysis) error {
	detailsJSON, err := json.Marshal(analysis.Details)
	if err != nil {
		return fmt.Errorf("failed to encode analysis details: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM analyses WHERE bill_id = $1`, analysis.BillID); err != nil {
		return fmt.Errorf("failed to supersede previous analysis: %w", err)
	}

	insert := `
		INSERT INTO analyses (bill_id, fraud_score, summary, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, insert,
		analysis.BillID,
		analysis.FraudScore,
		analysis.Summary,
		detailsJSON,
	).Scan(&analysis.ID, &analysis.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}

	complete := `
		UPDATE bills
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`
	tag, err := tx.Exec(ctx, complete, defines.BillStatusCompleted, analysis.BillID)
	if err != nil {
		return fmt.Errorf("failed to mark bill completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBillNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit analysis: %w", err)
	}

	return nil
}

// GetByBillID retrieves the analysis for a bill, nil when none exists
func (r *AnalysisRepository) GetByBillID(ctx context.Context, billID int64) (*models.Analysis, error) {
	query := `
		SELECT id, bill_id, fraud_score, summary, details, created_at
		FROM analyses
		WHERE bill_id = $1
	`

	analysis := &models.Analysis{}
	var detailsJSON []byte

	err := r.db.QueryRow(ctx, query, billID).Scan(
		&analysis.ID,
		&analysis.BillID,
		&analysis.FraudScore,
		&analysis.Summary,
		&detailsJSON,
		&analysis.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	if err := json.Unmarshal(detailsJSON, &analysis.Details); err != nil {
		return nil, fmt.Errorf("failed to decode analysis details: %w", err)
	}

	return analysis, nil
}
