package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Console
	BackendURL         string
	RequestTimeout     time.Duration
	StatusPollInterval time.Duration
	SeedFile           string
	RedactionRulesFile string

	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
	MetricsPort    string

	// Storage backends: "memory" or "postgres" / "minio"
	StorageBackend   string
	ArtifactBackend  string
	ModelArtifactDir string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	ReportCacheTTL time.Duration

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string
	KafkaTopic   string

	// MinIO
	MinIOEndpoint  string
	MinIOBucket    string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool

	// OIDC
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string

	// Service auth and limits
	ServiceAPIToken string
	RateLimitRPS    int
	RateLimitBurst  int
}

func Load() *Config {
	return &Config{
		BackendURL:         getEnv("BACKEND_URL", "http://localhost:8000"),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 10*time.Second),
		StatusPollInterval: getDuration("STATUS_POLL_INTERVAL", 5*time.Second),
		SeedFile:           getEnv("SEED_FILE", ""),
		RedactionRulesFile: getEnv("REDACTION_RULES_FILE", ""),

		ServerPort:     getEnv("SERVER_PORT", "8000"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxUploadBytes: int64(getIntEnv("MAX_UPLOAD_BYTES", 10*1024*1024)),
		MetricsPort:    getEnv("METRICS_PORT", "9100"),

		StorageBackend:   getEnv("STORAGE_BACKEND", "memory"),
		ArtifactBackend:  getEnv("ARTIFACT_BACKEND", "memory"),
		ModelArtifactDir: getEnv("MODEL_ARTIFACT_DIR", "./models"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "radiology"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "radiology123"),
		PostgresDB:       getEnv("POSTGRES_DB", "radiology"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:      getEnv("REDIS_HOST", ""),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getIntEnv("REDIS_DB", 0),
		ReportCacheTTL: getDuration("REPORT_CACHE_TTL", 10*time.Minute),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", nil),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "radiology-console"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "analysis.completed"),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOBucket:    getEnv("MINIO_BUCKET", "radiology-uploads"),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:    getBoolEnv("MINIO_USE_SSL", false),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),

		ServiceAPIToken: getEnv("SERVICE_API_TOKEN", ""),
		RateLimitRPS:    getIntEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst:  getIntEnv("RATE_LIMIT_BURST", 100),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
