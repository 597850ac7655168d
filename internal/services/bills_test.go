package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"billing-api/cmd/defines"
	"billing-api/internal/models"
	"billing-api/internal/queue"
	apperrors "billing-api/pkg/errors"
)

func newTestBillService(q queue.Queue, bills *fakeBillStore, analyses *fakeAnalysisStore) *BillService {
	return NewBillService(bills, analyses, q, zap.NewNop())
}

func appErrCode(t *testing.T, err error) string {
	t.Helper()
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok, "expected *AppError, got %T", err)
	return appErr.Code
}

func TestSubmitCreatesBillAndPublishesJob(t *testing.T) {
	bills := newFakeBillStore()
	analyses := newFakeAnalysisStore(bills)
	q := &fakeQueue{}
	svc := newTestBillService(q, bills, analyses)

	bill, err := svc.Submit(context.Background(), "user-1", "s3://bills/b-1.pdf", scenarioItems())
	require.NoError(t, err)
	require.NotNil(t, bill)

	assert.Equal(t, defines.BillStatusQueued, bill.Status)
	assert.Equal(t, 1, bill.Attempts)
	assert.NotZero(t, bill.ID)

	jobs := q.publishedJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, bill.ID, jobs[0].BillID)
	assert.Equal(t, "user-1", jobs[0].UserID)
	assert.Equal(t, 1, jobs[0].Attempt)
	assert.NotEmpty(t, jobs[0].JobID)
}

func TestSubmitQueueUnavailableFailsBill(t *testing.T) {
	bills := newFakeBillStore()
	analyses := newFakeAnalysisStore(bills)
	q := &fakeQueue{publishErr: queue.ErrUnavailable}
	svc := newTestBillService(q, bills, analyses)

	_, err := svc.Submit(context.Background(), "user-1", "s3://bills/b-1.pdf", nil)
	require.Error(t, err)
	assert.Equal(t, "QUEUE_UNAVAILABLE", appErrCode(t, err))

	// The bill must end failed, never dangling in queued
	bill, getErr := bills.GetByIDForUser(context.Background(), 1, "user-1")
	require.NoError(t, getErr)
	assert.Equal(t, defines.BillStatusFailed, bill.Status)
}

func TestSubmitValidatesInput(t *testing.T) {
	bills := newFakeBillStore()
	analyses := newFakeAnalysisStore(bills)
	q := &fakeQueue{}
	svc := newTestBillService(q, bills, analyses)

	_, err := svc.Submit(context.Background(), "user-1", "", nil)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrCode(t, err))

	_, err = svc.Submit(context.Background(), "user-1", "s3://bills/b-1.pdf", []models.LineItem{
		{Description: "refund", Amount: -10, Compliant: true},
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrCode(t, err))

	assert.Empty(t, q.publishedJobs())
}

func TestGetReturnsBillWithAnalysis(t *testing.T) {
	bills := newFakeBillStore()
	analyses := newFakeAnalysisStore(bills)
	svc := newTestBillService(&fakeQueue{}, bills, analyses)

	id := bills.seed(models.Bill{UserID: "user-1", Status: defines.BillStatusQueued}, scenarioItems())
	analyses.analyses[id] = &models.Analysis{BillID: id, FraudScore: 10}

	got, err := svc.Get(context.Background(), "user-1", id)
	require.NoError(t, err)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, 10, got.Analysis.FraudScore)
}

func TestGetScopesToOwner(t *testing.T) {
	bills := newFakeBillStore()
	analyses := newFakeAnalysisStore(bills)
	svc := newTestBillService(&fakeQueue{}, bills, analyses)

	id := bills.seed(models.Bill{UserID: "user-1", Status: defines.BillStatusQueued}, nil)

	_, err := svc.Get(context.Background(), "someone-else", id)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", appErrCode(t, err))
}

func TestListRejectsUnknownStatus(t *testing.T) {
	bills := newFakeBillStore()
	analyses := newFakeAnalysisStore(bills)
	svc := newTestBillService(&fakeQueue{}, bills, analyses)

	_, err := svc.List(context.Background(), "user-1", "exploded", 10, 0)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrCode(t, err))
}

func TestReprocessPublishesNewAttempt(t *testing.T) {
	bills := newFakeBillStore()
	analyses := newFakeAnalysisStore(bills)
	q := &fakeQueue{}
	svc := newTestBillService(q, bills, analyses)

	id := bills.seed(models.Bill{UserID: "user-1", Status: defines.BillStatusFailed, Attempts: 1}, scenarioItems())

	bill, err := svc.Reprocess(context.Background(), "user-1", id)
	require.NoError(t, err)

	assert.Equal(t, defines.BillStatusQueued, bill.Status)
	assert.Equal(t, 2, bill.Attempts)

	jobs := q.publishedJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, 2, jobs[0].Attempt)
	assert.Equal(t, id, jobs[0].BillID)
}

func TestReprocessOnlyFailedBills(t *testing.T) {
	bills := newFakeBillStore()
	analyses := newFakeAnalysisStore(bills)
	q := &fakeQueue{}
	svc := newTestBillService(q, bills, analyses)

	id := bills.seed(models.Bill{UserID: "user-1", Status: defines.BillStatusCompleted}, nil)

	_, err := svc.Reprocess(context.Background(), "user-1", id)
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrCode(t, err))
	assert.Empty(t, q.publishedJobs())

	_, err = svc.Reprocess(context.Background(), "user-1", 999)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", appErrCode(t, err))
}

func TestReprocessPublishFailureFailsBill(t *testing.T) {
	bills := newFakeBillStore()
	analyses := newFakeAnalysisStore(bills)
	q := &fakeQueue{publishErr: queue.ErrUnavailable}
	svc := newTestBillService(q, bills, analyses)

	id := bills.seed(models.Bill{UserID: "user-1", Status: defines.BillStatusFailed, Attempts: 1}, nil)

	_, err := svc.Reprocess(context.Background(), "user-1", id)
	require.Error(t, err)
	assert.Equal(t, "QUEUE_UNAVAILABLE", appErrCode(t, err))
	assert.Equal(t, defines.BillStatusFailed, bills.status(id))
}
