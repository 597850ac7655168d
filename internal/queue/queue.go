package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Job is the queue message instructing a worker to analyze one bill.
// Jobs are never mutated; a retry is a brand-new job with an incremented
// attempt counter.
type Job struct {
	JobID     string    `json:"job_id"`
	BillID    int64     `json:"bill_id"`
	UserID    string    `json:"user_id"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`
}

// NewJob builds a job for one bill. Attempt starts at 1 for the initial
// submission.
func NewJob(billID int64, userID string, attempt int) Job {
	if attempt < 1 {
		attempt = 1
	}
	return Job{
		JobID:     uuid.New().String(),
		BillID:    billID,
		UserID:    userID,
		Attempt:   attempt,
		CreatedAt: time.Now().UTC(),
	}
}

// ErrUnavailable is returned by Publish when the backing transport cannot
// be reached. The caller must fail the submission, never leave the bill
// dangling in queued.
var ErrUnavailable = errors.New("queue unavailable")

// Queue is the durable FIFO channel between the submission gateway and the
// workers. Publish returns once the job is durably accepted and never
// blocks on consumer availability. Consume blocks up to timeout and
// returns (nil, nil) when no job arrived; a popped job is removed
// atomically, so exactly one consumer receives it.
type Queue interface {
	Publish(ctx context.Context, job Job) error
	Consume(ctx context.Context, timeout time.Duration) (*Job, error)
}
