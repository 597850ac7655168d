package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Worker   WorkerConfig
	App      AppConfig
}

// ServerConfig holds server-related configurations
type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Username string
	Password string
}

// QueueConfig holds the analysis job queue configurations
type QueueConfig struct {
	Name           string
	ConsumeTimeout int // seconds, BRPOP blocking window
}

// WorkerConfig holds worker pool configurations
type WorkerConfig struct {
	Count int
}

type AppConfig struct {
	Environment string
	LogLevel    string
}

// Load loads configuration from environment variables
func Load() *Config {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_READ_TIMEOUT", 15)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 15)
	viper.SetDefault("SERVER_IDLE_TIMEOUT", 60)

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "")
	viper.SetDefault("DB_NAME", "billing")
	viper.SetDefault("DB_SSLMODE", "disable")

	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_USERNAME", "")
	viper.SetDefault("REDIS_PASSWORD", "")

	// Must match between api and worker
	viper.SetDefault("QUEUE_NAME", "bill-analysis-jobs")
	viper.SetDefault("QUEUE_CONSUME_TIMEOUT", 30)

	viper.SetDefault("WORKER_COUNT", 3)

	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")

	return &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			ReadTimeout:  viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout: viper.GetInt("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:  viper.GetInt("SERVER_IDLE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Username: viper.GetString("REDIS_USERNAME"),
			Password: viper.GetString("REDIS_PASSWORD"),
		},
		Queue: QueueConfig{
			Name:           viper.GetString("QUEUE_NAME"),
			ConsumeTimeout: viper.GetInt("QUEUE_CONSUME_TIMEOUT"),
		},
		Worker: WorkerConfig{
			Count: viper.GetInt("WORKER_COUNT"),
		},
		App: AppConfig{
			Environment: viper.GetString("APP_ENV"),
			LogLevel:    viper.GetString("LOG_LEVEL"),
		},
	}
}
