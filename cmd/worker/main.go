package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"billing-api/config"
	"billing-api/internal/queue"
	"billing-api/internal/repositories"
	"billing-api/internal/services"
	"billing-api/pkg/logger"
	"billing-api/pkg/memorydb"
	"billing-api/pkg/postgres"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	envPaths := []string{
		"../../.env", // From cmd/worker/ to repo root
		".env",       // Current directory
	}

	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("Loaded .env from: %s", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Environment == "development"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zlog := logger.Get()

	ctx := context.Background()

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis (queue transport)
	redisClient, err := memorydb.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize repositories
	repos := repositories.NewRepositories(db)
	if err := repos.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	// Start the worker pool
	jobQueue := queue.NewRedisQueue(redisClient, cfg.Queue.Name, zlog)
	pool := services.NewAnalysisWorkerPool(jobQueue, repos.Bill, repos.Analysis, zlog, &services.WorkerPoolConfig{
		WorkerCount:    cfg.Worker.Count,
		ConsumeTimeout: time.Duration(cfg.Queue.ConsumeTimeout) * time.Second,
		ErrorBackoff:   5 * time.Second,
	})
	pool.Start()

	// Wait for termination; workers finish their in-flight job before exit
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down workers...")
	pool.Stop()
	log.Println("Worker exited")
}
