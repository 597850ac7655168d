package services

import (
	"context"
	"time"

	"billing-api/pkg/memorydb"
	"billing-api/pkg/postgres"
)

// HealthStatus represents the status of a service
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// HealthService handles health check operations
type HealthService struct {
	db    *postgres.DB
	redis *memorydb.RedisClient
}

// NewHealthService creates a new health service
func NewHealthService(db *postgres.DB, redis *memorydb.RedisClient) *HealthService {
	return &HealthService{
		db:    db,
		redis: redis,
	}
}

// CheckDatabase checks the database connection
func (s *HealthService) CheckDatabase(ctx context.Context) map[string]HealthStatus {
	status := make(map[string]HealthStatus)

	if err := s.db.Ping(ctx); err != nil {
		status["database"] = HealthStatus{
			Status:    "error",
			Timestamp: time.Now(),
			Details:   err.Error(),
		}
	} else {
		status["database"] = HealthStatus{
			Status:    "ok",
			Timestamp: time.Now(),
		}
	}

	return status
}

// CheckRedis checks the queue transport connection
func (s *HealthService) CheckRedis(ctx context.Context) map[string]HealthStatus {
	status := make(map[string]HealthStatus)

	if err := s.redis.Ping(ctx); err != nil {
		status["redis"] = HealthStatus{
			Status:    "error",
			Timestamp: time.Now(),
			Details:   err.Error(),
		}
	} else {
		status["redis"] = HealthStatus{
			Status:    "ok",
			Timestamp: time.Now(),
		}
	}

	return status
}

// CheckOverall checks all backing services
func (s *HealthService) CheckOverall(ctx context.Context) map[string]HealthStatus {
	status := make(map[string]HealthStatus)

	for k, v := range s.CheckDatabase(ctx) {
		status[k] = v
	}
	for k, v := range s.CheckRedis(ctx) {
		status[k] = v
	}

	return status
}
