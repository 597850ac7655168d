package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"billing-api/cmd/defines"
	"billing-api/internal/models"
	"billing-api/internal/queue"
	"billing-api/internal/repositories"
	"billing-api/internal/scoring"

	"go.uber.org/zap"
)

// WorkerBillStore is the slice of the record store the pipeline mutates
type WorkerBillStore interface {
	GetByID(ctx context.Context, id int64) (*models.Bill, error)
	UpdateStatus(ctx context.Context, id int64, status defines.BillStatus) error
	LineItems(ctx context.Context, billID int64) ([]models.LineItem, error)
}

// WorkerAnalysisStore persists a scoring result and the completed status
// as one logical unit
type WorkerAnalysisStore interface {
	CompleteWithAnalysis(ctx context.Context, analysis *models.Analysis) error
}

// WorkerPoolConfig holds configuration for the worker pool
type WorkerPoolConfig struct {
	WorkerCount    int
	ConsumeTimeout time.Duration
	ErrorBackoff   time.Duration
}

// DefaultWorkerPoolConfig returns sensible defaults
func DefaultWorkerPoolConfig() *WorkerPoolConfig {
	return &WorkerPoolConfig{
		WorkerCount:    3,
		ConsumeTimeout: 30 * time.Second,
		ErrorBackoff:   5 * time.Second,
	}
}

// AnalysisWorkerPool runs the bill analysis pipeline: each worker loops on
// the queue, drives the bill status machine, scores the line items and
// persists the result. Workers share no in-memory state; everything shared
// lives in the record store and the queue.
type AnalysisWorkerPool struct {
	queue    queue.Queue
	bills    WorkerBillStore
	analyses WorkerAnalysisStore
	logger   *zap.Logger
	config   *WorkerPoolConfig
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewAnalysisWorkerPool creates a new worker pool
func NewAnalysisWorkerPool(q queue.Queue, bills WorkerBillStore, analyses WorkerAnalysisStore, logger *zap.Logger, config *WorkerPoolConfig) *AnalysisWorkerPool {
	if config == nil {
		config = DefaultWorkerPoolConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &AnalysisWorkerPool{
		queue:    q,
		bills:    bills,
		analyses: analyses,
		logger:   logger,
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches all workers
func (p *AnalysisWorkerPool) Start() {
	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i + 1)
	}
	p.logger.Info("started analysis workers", zap.Int("count", p.config.WorkerCount))
}

// Stop asks the workers to finish and waits for them. Cancellation is
// cooperative: a worker checks it between jobs only, an in-flight bill is
// always driven to a terminal status first.
func (p *AnalysisWorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("analysis worker pool stopped")
}

// worker is the consume loop of one pipeline instance
func (p *AnalysisWorkerPool) worker(id int) {
	defer p.wg.Done()

	log := p.logger.With(zap.Int("worker_id", id))
	log.Info("worker started")

	for {
		select {
		case <-p.ctx.Done():
			log.Info("worker shutting down")
			return
		default:
		}

		job, err := p.queue.Consume(p.ctx, p.config.ConsumeTimeout)
		if err != nil {
			if p.ctx.Err() != nil {
				log.Info("worker shutting down")
				return
			}
			// Transport trouble reads as "no job"; back off so a dead
			// broker doesn't turn this into a hot loop
			log.Warn("consume failed, backing off", zap.Error(err))
			select {
			case <-p.ctx.Done():
			case <-time.After(p.config.ErrorBackoff):
			}
			continue
		}
		if job == nil {
			continue
		}

		// Detached context: shutdown must not interrupt a job mid-flight
		p.processJob(context.Background(), job, log)
	}
}

// processJob drives one bill through the status machine. Every dequeued
// job ends in a terminal bill status or an explicitly logged discard,
// never a silent drop.
func (p *AnalysisWorkerPool) processJob(ctx context.Context, job *queue.Job, log *zap.Logger) {
	log = log.With(
		zap.String("job_id", job.JobID),
		zap.Int64("bill_id", job.BillID),
		zap.Int("attempt", job.Attempt),
	)
	log.Info("processing bill")

	bill, err := p.bills.GetByID(ctx, job.BillID)
	if err != nil {
		if errors.Is(err, repositories.ErrBillNotFound) {
			// The bill cannot materialize later; retrying is pointless
			log.Warn("job references a missing bill, discarding")
			return
		}
		log.Error("bill lookup failed", zap.Error(err))
		p.failBill(ctx, job.BillID, log)
		return
	}

	// Visible before any scoring work so status queries reflect reality
	if err := p.bills.UpdateStatus(ctx, bill.ID, defines.BillStatusProcessing); err != nil {
		log.Error("failed to mark bill processing", zap.Error(err))
		p.failBill(ctx, bill.ID, log)
		return
	}

	items, err := p.bills.LineItems(ctx, bill.ID)
	if err != nil {
		log.Error("failed to load line items", zap.Error(err))
		p.failBill(ctx, bill.ID, log)
		return
	}

	result, err := scoring.Score(items)
	if err != nil {
		log.Error("scoring failed", zap.Error(err))
		p.failBill(ctx, bill.ID, log)
		return
	}

	analysis := &models.Analysis{
		BillID:     bill.ID,
		FraudScore: result.FraudScore,
		Summary:    result.Summary,
		Details:    result.Details,
	}
	if err := p.analyses.CompleteWithAnalysis(ctx, analysis); err != nil {
		log.Error("failed to persist analysis", zap.Error(err))
		p.failBill(ctx, bill.ID, log)
		return
	}

	log.Info("bill analysis completed", zap.Int("fraud_score", result.FraudScore))
}

// failBill is the single failure transition. No in-process retry: a new
// job published by the reprocess endpoint is the only path back. When the
// failed write itself fails the bill stays in processing and is left to
// the stuck-processing reconciliation query.
func (p *AnalysisWorkerPool) failBill(ctx context.Context, billID int64, log *zap.Logger) {
	if err := p.bills.UpdateStatus(ctx, billID, defines.BillStatusFailed); err != nil {
		log.Error("failed to mark bill failed, bill may be stuck in processing", zap.Error(err))
	}
}
