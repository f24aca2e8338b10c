package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion         string
	DynamoDBTable     string
	TimestampIndex    string // GSI1 - time-ordered change record queries
	BatchIndex        string // GSI2 - change records by batch id
	EventBusName      string
	MetricsNamespace  string

	// Snapshot blob storage, a gocloud.dev blob URL
	// (e.g. file:///var/graphitti/snapshots, s3://bucket?region=us-west-2,
	// mem:// for tests)
	SnapshotBucketURL string

	// Snapshot retention window for scheduled pruning
	SnapshotRetention time.Duration

	// Health alerting threshold for the scheduler
	HealthAlertThreshold float64

	// Authentication
	JWTSecret string
	JWTIssuer string

	// Logging
	LogLevel string

	// Feature flags
	EnableEvents  bool
	EnableMetrics bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("TABLE_NAME", "graphitti"),

		TimestampIndex:   getEnv("TIMESTAMP_INDEX_NAME", "TimestampIndex"),
		BatchIndex:       getEnv("BATCH_INDEX_NAME", "BatchIndex"),
		EventBusName:     getEnv("EVENT_BUS_NAME", "graphitti-events"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "Graphitti"),

		SnapshotBucketURL: getEnv("SNAPSHOT_BUCKET_URL", "file:///var/graphitti/snapshots"),
		SnapshotRetention: time.Duration(getEnvInt("SNAPSHOT_RETENTION_DAYS", 30)) * 24 * time.Hour,

		HealthAlertThreshold: getEnvFloat("HEALTH_ALERT_THRESHOLD", 0.5),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "graphitti-backend"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableEvents:  getEnvBool("ENABLE_EVENTS", false),
		EnableMetrics: getEnvBool("ENABLE_METRICS", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.DynamoDBTable == "" {
			return fmt.Errorf("TABLE_NAME is required")
		}
		if c.SnapshotBucketURL == "" {
			return fmt.Errorf("SNAPSHOT_BUCKET_URL is required")
		}
	}
	if c.SnapshotRetention <= 0 {
		return fmt.Errorf("snapshot retention must be positive")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
