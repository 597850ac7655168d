package repositories

import (
	"context"

	"billing-api/pkg/postgres"
)

// Repositories holds all repository instances
type Repositories struct {
	Bill     *BillRepository
	Analysis *AnalysisRepository
}

// NewRepositories creates all repositories against one database
func NewRepositories(db *postgres.DB) *Repositories {
	return &Repositories{
		Bill:     NewBillRepository(db),
		Analysis: NewAnalysisRepository(db),
	}
}

// InitSchema creates all tables if they don't exist
func (r *Repositories) InitSchema(ctx context.Context) error {
	if err := r.Bill.CreateSchema(ctx); err != nil {
		return err
	}
	if err := r.Analysis.CreateSchema(ctx); err != nil {
		return err
	}
	return nil
}
