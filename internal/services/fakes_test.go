package services

import (
	"context"
	"sync"
	"time"

	"billing-api/cmd/defines"
	"billing-api/internal/models"
	"billing-api/internal/queue"
	"billing-api/internal/repositories"
)

// fakeBillStore is an in-memory record store standing in for the bill
// repository. It records every status write so tests can assert the
// observed transition sequence.
type fakeBillStore struct {
	mu        sync.Mutex
	nextID    int64
	bills     map[int64]*models.Bill
	items     map[int64][]models.LineItem
	statusLog map[int64][]defines.BillStatus

	getErr       error
	lineItemsErr error
	updateErr    map[defines.BillStatus]error
}

func newFakeBillStore() *fakeBillStore {
	return &fakeBillStore{
		bills:     map[int64]*models.Bill{},
		items:     map[int64][]models.LineItem{},
		statusLog: map[int64][]defines.BillStatus{},
		updateErr: map[defines.BillStatus]error{},
	}
}

func (f *fakeBillStore) seed(bill models.Bill, items []models.LineItem) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	bill.ID = f.nextID
	f.bills[bill.ID] = &bill
	f.items[bill.ID] = items
	return bill.ID
}

func (f *fakeBillStore) Create(_ context.Context, bill *models.Bill, items []models.LineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	bill.ID = f.nextID
	bill.CreatedAt = time.Now()
	bill.UpdatedAt = bill.CreatedAt
	clone := *bill
	f.bills[bill.ID] = &clone
	f.items[bill.ID] = items
	return nil
}

func (f *fakeBillStore) GetByID(_ context.Context, id int64) (*models.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	bill, ok := f.bills[id]
	if !ok {
		return nil, repositories.ErrBillNotFound
	}
	clone := *bill
	return &clone, nil
}

func (f *fakeBillStore) GetByIDForUser(ctx context.Context, id int64, userID string) (*models.Bill, error) {
	bill, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.UserID != userID {
		return nil, repositories.ErrBillNotFound
	}
	return bill, nil
}

func (f *fakeBillStore) List(_ context.Context, userID string, status *defines.BillStatus, limit, offset int) ([]models.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bills := []models.Bill{}
	for _, bill := range f.bills {
		if bill.UserID != userID {
			continue
		}
		if status != nil && bill.Status != *status {
			continue
		}
		bills = append(bills, *bill)
	}
	return bills, nil
}

func (f *fakeBillStore) UpdateStatus(_ context.Context, id int64, status defines.BillStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[status]; err != nil {
		return err
	}
	bill, ok := f.bills[id]
	if !ok {
		return repositories.ErrBillNotFound
	}
	bill.Status = status
	bill.UpdatedAt = time.Now()
	f.statusLog[id] = append(f.statusLog[id], status)
	return nil
}

func (f *fakeBillStore) Requeue(_ context.Context, id int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bill, ok := f.bills[id]
	if !ok || bill.Status != defines.BillStatusFailed {
		return 0, repositories.ErrBillNotFound
	}
	bill.Status = defines.BillStatusQueued
	bill.Attempts++
	f.statusLog[id] = append(f.statusLog[id], defines.BillStatusQueued)
	return bill.Attempts, nil
}

func (f *fakeBillStore) LineItems(_ context.Context, billID int64) ([]models.LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lineItemsErr != nil {
		return nil, f.lineItemsErr
	}
	return f.items[billID], nil
}

func (f *fakeBillStore) statuses(id int64) []defines.BillStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	log := make([]defines.BillStatus, len(f.statusLog[id]))
	copy(log, f.statusLog[id])
	return log
}

func (f *fakeBillStore) status(id int64) defines.BillStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bills[id].Status
}

// fakeAnalysisStore mimics the transactional analysis write: the analysis
// row and the completed status land together or not at all.
type fakeAnalysisStore struct {
	mu       sync.Mutex
	bills    *fakeBillStore
	analyses map[int64]*models.Analysis

	completeErr   error
	completeDelay time.Duration
}

func newFakeAnalysisStore(bills *fakeBillStore) *fakeAnalysisStore {
	return &fakeAnalysisStore{
		bills:    bills,
		analyses: map[int64]*models.Analysis{},
	}
}

func (f *fakeAnalysisStore) CompleteWithAnalysis(ctx context.Context, analysis *models.Analysis) error {
	if f.completeDelay > 0 {
		time.Sleep(f.completeDelay)
	}
	f.mu.Lock()
	if f.completeErr != nil {
		err := f.completeErr
		f.mu.Unlock()
		return err
	}
	clone := *analysis
	f.analyses[analysis.BillID] = &clone
	f.mu.Unlock()
	return f.bills.UpdateStatus(ctx, analysis.BillID, defines.BillStatusCompleted)
}

func (f *fakeAnalysisStore) GetByBillID(_ context.Context, billID int64) (*models.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	analysis, ok := f.analyses[billID]
	if !ok {
		return nil, nil
	}
	clone := *analysis
	return &clone, nil
}

// fakeQueue is a non-blocking queue capturing published jobs
type fakeQueue struct {
	mu         sync.Mutex
	published  []queue.Job
	publishErr error
}

func (q *fakeQueue) Publish(_ context.Context, job queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, job)
	return nil
}

func (q *fakeQueue) Consume(_ context.Context, _ time.Duration) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.published) == 0 {
		return nil, nil
	}
	job := q.published[0]
	q.published = q.published[1:]
	return &job, nil
}

func (q *fakeQueue) publishedJobs() []queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := make([]queue.Job, len(q.published))
	copy(jobs, q.published)
	return jobs
}

// chanQueue blocks on Consume like the real transport, for pool loop tests
type chanQueue struct {
	ch chan queue.Job
}

func newChanQueue(size int) *chanQueue {
	return &chanQueue{ch: make(chan queue.Job, size)}
}

func (q *chanQueue) Publish(_ context.Context, job queue.Job) error {
	q.ch <- job
	return nil
}

func (q *chanQueue) Consume(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	select {
	case job := <-q.ch:
		return &job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}
