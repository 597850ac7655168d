package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"billing-api/cmd/defines"
	"billing-api/internal/models"
	"billing-api/pkg/postgres"

	"github.com/jackc/pgx/v5"
)

// ErrBillNotFound is returned when a bill id does not exist (or belongs to
// another user on owner-scoped lookups).
var ErrBillNotFound = errors.New("bill not found")

// BillRepository handles bill database operations
type BillRepository struct {
	db *postgres.DB
}

// NewBillRepository creates a new bill repository
func NewBillRepository(db *postgres.DB) *BillRepository {
	return &BillRepository{db: db}
}

// CreateSchema creates the bills and bill_line_items tables if they don't exist
func (r *BillRepository) CreateSchema(ctx context.Context) error {
	query := `
		DO $$ BEGIN
			CREATE TYPE bill_status AS ENUM ('queued', 'processing', 'completed', 'failed');
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;

		CREATE TABLE IF NOT EXISTS bills (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			status bill_status NOT NULL DEFAULT 'queued',
			file_url TEXT NOT NULL,
			attempts INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS bill_line_items (
			id BIGSERIAL PRIMARY KEY,
			bill_id BIGINT NOT NULL REFERENCES bills(id) ON DELETE CASCADE,
			position INT NOT NULL,
			description TEXT NOT NULL,
			amount BIGINT NOT NULL CHECK (amount >= 0),
			compliant BOOLEAN NOT NULL DEFAULT true
		);

		CREATE INDEX IF NOT EXISTS idx_bills_user_id ON bills(user_id);
		CREATE INDEX IF NOT EXISTS idx_bills_status ON bills(status);
		CREATE INDEX IF NOT EXISTS idx_bills_created_at ON bills(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_bill_line_items_bill_id ON bill_line_items(bill_id);
	`

	_, err := r.db.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create bills schema: %w", err)
	}

	return nil
}

// Create inserts a new bill with its line items in one transaction and
// fills in the generated ID and timestamps.
func (r *BillRepository) Create(ctx context.Context, bill *models.Bill, items []models.LineItem) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO bills (user_id, status, file_url, attempts)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	if bill.Status == "" {
		bill.Status = defines.BillStatusQueued
	}
	if bill.Attempts == 0 {
		bill.Attempts = 1
	}

	err = tx.QueryRow(ctx, query,
		bill.UserID,
		bill.Status,
		bill.FileURL,
		bill.Attempts,
	).Scan(&bill.ID, &bill.CreatedAt, &bill.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bill: %w", err)
	}

	itemQuery := `
		INSERT INTO bill_line_items (bill_id, position, description, amount, compliant)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i, item := range items {
		if _, err := tx.Exec(ctx, itemQuery, bill.ID, i, item.Description, item.Amount, item.Compliant); err != nil {
			return fmt.Errorf("failed to create line item %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit bill: %w", err)
	}

	return nil
}

// GetByID retrieves a bill by its ID
func (r *BillRepository) GetByID(ctx context.Context, id int64) (*models.Bill, error) {
	query := `
		SELECT id, user_id, status, file_url, attempts, created_at, updated_at
		FROM bills
		WHERE id = $1
	`

	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByIDForUser retrieves a bill by ID scoped to its owning user
func (r *BillRepository) GetByIDForUser(ctx context.Context, id int64, userID string) (*models.Bill, error) {
	query := `
		SELECT id, user_id, status, file_url, attempts, created_at, updated_at
		FROM bills
		WHERE id = $1 AND user_id = $2
	`

	return r.scanOne(r.db.QueryRow(ctx, query, id, userID))
}

func (r *BillRepository) scanOne(row pgx.Row) (*models.Bill, error) {
	bill := &models.Bill{}
	err := row.Scan(
		&bill.ID,
		&bill.UserID,
		&bill.Status,
		&bill.FileURL,
		&bill.Attempts,
		&bill.CreatedAt,
		&bill.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillNotFound
		}
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}

	return bill, nil
}

// List returns a user's bills newest first, optionally filtered by status
func (r *BillRepository) List(ctx context.Context, userID string, status *defines.BillStatus, limit, offset int) ([]models.Bill, error) {
	query := `
		SELECT id, user_id, status, file_url, attempts, created_at, updated_at
		FROM bills
		WHERE user_id = $1 AND ($2::bill_status IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Query(ctx, query, userID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	bills := []models.Bill{}
	for rows.Next() {
		var bill models.Bill
		if err := rows.Scan(
			&bill.ID,
			&bill.UserID,
			&bill.Status,
			&bill.FileURL,
			&bill.Attempts,
			&bill.CreatedAt,
			&bill.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, bill)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bills: %w", err)
	}

	return bills, nil
}

// UpdateStatus updates the status of a bill. Last write wins; the queue
// guarantees a given job is owned by exactly one worker.
func (r *BillRepository) UpdateStatus(ctx context.Context, id int64, status defines.BillStatus) error {
	query := `
		UPDATE bills
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	tag, err := r.db.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update bill status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBillNotFound
	}

	return nil
}

// Requeue moves a failed bill back to queued for an explicit reprocess and
// returns the incremented attempt counter the new job must carry.
func (r *BillRepository) Requeue(ctx context.Context, id int64) (int, error) {
	query := `
		UPDATE bills
		SET status = $1, attempts = attempts + 1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING attempts
	`

	var attempts int
	err := r.db.QueryRow(ctx, query, defines.BillStatusQueued, id, defines.BillStatusFailed).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrBillNotFound
		}
		return 0, fmt.Errorf("failed to requeue bill: %w", err)
	}

	return attempts, nil
}

// LineItems returns a bill's line items in submission order
func (r *BillRepository) LineItems(ctx context.Context, billID int64) ([]models.LineItem, error) {
	query := `
		SELECT description, amount, compliant
		FROM bill_line_items
		WHERE bill_id = $1
		ORDER BY position ASC
	`

	rows, err := r.db.Query(ctx, query, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to load line items: %w", err)
	}
	defer rows.Close()

	items := []models.LineItem{}
	for rows.Next() {
		var item models.LineItem
		if err := rows.Scan(&item.Description, &item.Amount, &item.Compliant); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read line items: %w", err)
	}

	return items, nil
}

// StuckProcessing lists bills sitting in processing for longer than maxAge.
// A worker crash between pop and completion leaves a bill here; surfacing
// them is an operator concern, the pipeline never sweeps them itself.
func (r *BillRepository) StuckProcessing(ctx context.Context, maxAge time.Duration) ([]models.Bill, error) {
	query := `
		SELECT id, user_id, status, file_url, attempts, created_at, updated_at
		FROM bills
		WHERE status = $1 AND updated_at < NOW() - make_interval(secs => $2)
		ORDER BY updated_at ASC
	`

	rows, err := r.db.Query(ctx, query, defines.BillStatusProcessing, maxAge.Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck bills: %w", err)
	}
	defer rows.Close()

	bills := []models.Bill{}
	for rows.Next() {
		var bill models.Bill
		if err := rows.Scan(
			&bill.ID,
			&bill.UserID,
			&bill.Status,
			&bill.FileURL,
			&bill.Attempts,
			&bill.CreatedAt,
			&bill.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, bill)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stuck bills: %w", err)
	}

	return bills, nil
}
