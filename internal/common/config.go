package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Inference   InferenceConfig
	Interpret   InterpretConfig
	Recognition RecognitionConfig
	Queue       QueueConfig
	Storage     StorageConfig
	Metrics     MetricsConfig
	Server      ServerConfig
}

// InferenceConfig holds settings for the external inference service
type InferenceConfig struct {
	URL         string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	BaseDelay   time.Duration
	Temperature float64
}

// InterpretConfig holds cache bounds and confidence constants
type InterpretConfig struct {
	CacheTTL           time.Duration
	CacheMaxEntries    int
	AcceptConfidence   float64
	FallbackConfidence float64
	MissConfidence     float64
}

// RecognitionConfig holds text-recognition settings
type RecognitionConfig struct {
	TesseractBin string
	Languages    string
}

// QueueConfig holds worker-pool settings for extraction tasks
type QueueConfig struct {
	Workers       int
	Size          int
	TaskTimeout   time.Duration
	MaxImageBytes int64
}

// StorageConfig holds record-store settings
type StorageConfig struct {
	Driver          string // "postgres" | "sqlite"
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// MetricsConfig holds the aggregation window settings
type MetricsConfig struct {
	ResetInterval time.Duration
}

// ServerConfig holds the health/metrics listener settings
type ServerConfig struct {
	Addr string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Inference: InferenceConfig{
			URL:         getEnv("OLLAMA_URL", "http://localhost:11434"),
			Model:       getEnv("OLLAMA_MODEL", "llama3.2"),
			Timeout:     getEnvAsDuration("OLLAMA_TIMEOUT", 90*time.Second),
			MaxRetries:  getEnvAsInt("OLLAMA_MAX_RETRIES", 2),
			BaseDelay:   getEnvAsDuration("OLLAMA_BASE_DELAY", 2*time.Second),
			Temperature: getEnvAsFloat("OLLAMA_TEMPERATURE", 0.1),
		},
		Interpret: InterpretConfig{
			CacheTTL:           getEnvAsDuration("CACHE_TTL", time.Hour),
			CacheMaxEntries:    getEnvAsInt("CACHE_MAX_ENTRIES", 1000),
			AcceptConfidence:   getEnvAsFloat("ACCEPT_CONFIDENCE", 0.6),
			FallbackConfidence: getEnvAsFloat("FALLBACK_CONFIDENCE", 0.6),
			MissConfidence:     getEnvAsFloat("MISS_CONFIDENCE", 0.2),
		},
		Recognition: RecognitionConfig{
			TesseractBin: getEnv("TESSERACT_BIN", "tesseract"),
			Languages:    getEnv("TESSERACT_LANGS", "spa+eng"),
		},
		Queue: QueueConfig{
			Workers:       getEnvAsInt("QUEUE_WORKERS", 4),
			Size:          getEnvAsInt("QUEUE_SIZE", 256),
			TaskTimeout:   getEnvAsDuration("QUEUE_TASK_TIMEOUT", 3*time.Minute),
			MaxImageBytes: int64(getEnvAsInt("QUEUE_MAX_IMAGE_BYTES", 10<<20)),
		},
		Storage: StorageConfig{
			Driver:          getEnv("STORE_DRIVER", "sqlite"),
			DSN:             getEnv("STORE_DSN", "file:records.db"),
			MaxConns:        getEnvAsInt32("STORE_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("STORE_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("STORE_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("STORE_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("STORE_DIAL_TIMEOUT", 3*time.Second),
		},
		Metrics: MetricsConfig{
			ResetInterval: getEnvAsDuration("METRICS_RESET_INTERVAL", time.Hour),
		},
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Inference.URL == "" {
		return NewAppError("CONFIG_ERROR", "OLLAMA_URL is required", ErrInvalidInput)
	}
	if c.Storage.Driver != "sqlite" && c.Storage.Driver != "postgres" {
		return NewAppError("CONFIG_ERROR", "STORE_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.Storage.DSN == "" {
		return NewAppError("CONFIG_ERROR", "STORE_DSN is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	return nil
}
