package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"billing-api/config"
	"billing-api/internal/handlers"
	"billing-api/internal/middleware"
	"billing-api/internal/queue"
	"billing-api/internal/repositories"
	"billing-api/internal/services"
	"billing-api/pkg/logger"
	"billing-api/pkg/memorydb"
	"billing-api/pkg/postgres"

	"github.com/joho/godotenv"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load .env file
	envPaths := []string{
		"../../.env", // From cmd/api/ to repo root
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

	// Initialize queue and services
	jobQueue := queue.NewRedisQueue(redisClient, cfg.Queue.Name, zlog)
	billService := services.NewBillService(repos.Bill, repos.Analysis, jobQueue, zlog)
	healthService := services.NewHealthService(db, redisClient)

	// Initialize handlers
	billHandler := handlers.NewBillHandler(billService)
	healthHandler := handlers.NewHealthHandler(healthService)

	// Setup router
	router := setupRouter(cfg, billHandler, healthHandler)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func setupRouter(cfg *config.Config, billHandler *handlers.BillHandler, healthHandler *handlers.HealthHandler) *gin.Engine {
	if cfg.App.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.ErrorMiddleware())

	router.GET("/healthz", healthHandler.Healthz())

	bills := router.Group("/bills")
	bills.Use(middleware.RequireUser())
	{
		bills.POST("", billHandler.CreateBill())
		bills.GET("", billHandler.ListBills())
		bills.GET("/:id", billHandler.GetBill())
		bills.POST("/:id/reprocess", billHandler.ReprocessBill())
	}

	return router
}
