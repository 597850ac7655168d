package services

import (
	"context"
	"errors"

	"billing-api/cmd/defines"
	"billing-api/internal/models"
	"billing-api/internal/queue"
	"billing-api/internal/repositories"
	apperrors "billing-api/pkg/errors"

	"go.uber.org/zap"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// BillStore is the record-store contract the submission gateway needs
type BillStore interface {
	Create(ctx context.Context, bill *models.Bill, items []models.LineItem) error
	GetByIDForUser(ctx context.Context, id int64, userID string) (*models.Bill, error)
	List(ctx context.Context, userID string, status *defines.BillStatus, limit, offset int) ([]models.Bill, error)
	UpdateStatus(ctx context.Context, id int64, status defines.BillStatus) error
	Requeue(ctx context.Context, id int64) (int, error)
}

// AnalysisStore is the read side of the analysis record store
type AnalysisStore interface {
	GetByBillID(ctx context.Context, billID int64) (*models.Analysis, error)
}

// BillService is the submission gateway and status query surface. It
// creates bill records, hands jobs to the queue and reads state back for
// clients; it never mutates a bill once a job exists for it.
type BillService struct {
	bills    BillStore
	analyses AnalysisStore
	queue    queue.Queue
	logger   *zap.Logger
}

// NewBillService creates a new bill service
func NewBillService(bills BillStore, analyses AnalysisStore, q queue.Queue, logger *zap.Logger) *BillService {
	return &BillService{
		bills:    bills,
		analyses: analyses,
		queue:    q,
		logger:   logger,
	}
}

// Submit creates a bill in queued state and publishes its analysis job.
// Returns as soon as the job is durably accepted; analysis happens on the
// workers. When publish fails the bill is marked failed before the error
// is returned, so it is never left dangling in queued.
func (s *BillService) Submit(ctx context.Context, userID, fileURL string, items []models.LineItem) (*models.Bill, error) {
	if fileURL == "" {
		return nil, apperrors.NewError("VALIDATION_ERROR", "file_url is required", apperrors.ErrValidation.Status)
	}
	for _, item := range items {
		if item.Amount < 0 {
			return nil, apperrors.NewError("VALIDATION_ERROR",
				"line item amounts must not be negative", apperrors.ErrValidation.Status)
		}
	}

	bill := &models.Bill{
		UserID:   userID,
		Status:   defines.BillStatusQueued,
		FileURL:  fileURL,
		Attempts: 1,
	}

	if err := s.bills.Create(ctx, bill, items); err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrInternalServer.Code,
			"failed to create bill", apperrors.ErrInternalServer.Status)
	}

	job := queue.NewJob(bill.ID, userID, 1)
	if err := s.queue.Publish(ctx, job); err != nil {
		s.logger.Error("publish failed, failing bill",
			zap.Int64("bill_id", bill.ID),
			zap.Error(err),
		)
		if failErr := s.bills.UpdateStatus(ctx, bill.ID, defines.BillStatusFailed); failErr != nil {
			s.logger.Error("failed to mark bill failed after publish failure",
				zap.Int64("bill_id", bill.ID),
				zap.Error(failErr),
			)
		} else {
			bill.Status = defines.BillStatusFailed
		}
		return nil, apperrors.WrapError(err, apperrors.ErrQueueUnavailable.Code,
			apperrors.ErrQueueUnavailable.Message, apperrors.ErrQueueUnavailable.Status)
	}

	s.logger.Info("bill submitted",
		zap.Int64("bill_id", bill.ID),
		zap.String("user_id", userID),
		zap.String("job_id", job.JobID),
	)

	return bill, nil
}

// Get returns a bill with its analysis, scoped to the owning user. Reads
// the record store only, never the queue.
func (s *BillService) Get(ctx context.Context, userID string, id int64) (*models.BillWithAnalysis, error) {
	bill, err := s.bills.GetByIDForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrBillNotFound) {
			return nil, apperrors.NewError(apperrors.ErrNotFound.Code, "Bill not found", apperrors.ErrNotFound.Status)
		}
		return nil, apperrors.WrapError(err, apperrors.ErrInternalServer.Code,
			"failed to get bill", apperrors.ErrInternalServer.Status)
	}

	analysis, err := s.analyses.GetByBillID(ctx, id)
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrInternalServer.Code,
			"failed to get analysis", apperrors.ErrInternalServer.Status)
	}

	return &models.BillWithAnalysis{Bill: *bill, Analysis: analysis}, nil
}

// List returns a user's bills newest first with optional status filter
func (s *BillService) List(ctx context.Context, userID string, statusFilter string, limit, offset int) ([]models.Bill, error) {
	var status *defines.BillStatus
	if statusFilter != "" {
		candidate := defines.BillStatus(statusFilter)
		if !candidate.Valid() {
			return nil, apperrors.NewError("VALIDATION_ERROR", "unknown status filter", apperrors.ErrValidation.Status)
		}
		status = &candidate
	}

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	bills, err := s.bills.List(ctx, userID, status, limit, offset)
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrInternalServer.Code,
			"failed to list bills", apperrors.ErrInternalServer.Status)
	}

	return bills, nil
}

// Reprocess is the explicit external retry path for a failed bill: it is
// moved back to queued with an incremented attempt counter and a brand-new
// job is published. Only failed bills qualify; the original job is never
// edited.
func (s *BillService) Reprocess(ctx context.Context, userID string, id int64) (*models.Bill, error) {
	bill, err := s.bills.GetByIDForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrBillNotFound) {
			return nil, apperrors.NewError(apperrors.ErrNotFound.Code, "Bill not found", apperrors.ErrNotFound.Status)
		}
		return nil, apperrors.WrapError(err, apperrors.ErrInternalServer.Code,
			"failed to get bill", apperrors.ErrInternalServer.Status)
	}

	if bill.Status != defines.BillStatusFailed {
		return nil, apperrors.NewError(apperrors.ErrConflict.Code,
			"only failed bills can be reprocessed", apperrors.ErrConflict.Status)
	}

	attempts, err := s.bills.Requeue(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrBillNotFound) {
			// Lost the race with another reprocess call
			return nil, apperrors.NewError(apperrors.ErrConflict.Code,
				"only failed bills can be reprocessed", apperrors.ErrConflict.Status)
		}
		return nil, apperrors.WrapError(err, apperrors.ErrInternalServer.Code,
			"failed to requeue bill", apperrors.ErrInternalServer.Status)
	}

	job := queue.NewJob(id, userID, attempts)
	if err := s.queue.Publish(ctx, job); err != nil {
		s.logger.Error("publish failed on reprocess, failing bill",
			zap.Int64("bill_id", id),
			zap.Error(err),
		)
		if failErr := s.bills.UpdateStatus(ctx, id, defines.BillStatusFailed); failErr != nil {
			s.logger.Error("failed to mark bill failed after publish failure",
				zap.Int64("bill_id", id),
				zap.Error(failErr),
			)
		}
		return nil, apperrors.WrapError(err, apperrors.ErrQueueUnavailable.Code,
			apperrors.ErrQueueUnavailable.Message, apperrors.ErrQueueUnavailable.Status)
	}

	bill.Status = defines.BillStatusQueued
	bill.Attempts = attempts

	s.logger.Info("bill requeued for reprocessing",
		zap.Int64("bill_id", id),
		zap.Int("attempt", attempts),
		zap.String("job_id", job.JobID),
	)

	return bill, nil
}
