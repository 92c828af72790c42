package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hdcn/ledenportaal/pkg/observability"
	"github.com/hdcn/ledenportaal/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Session configuration
	Session SessionConfig

	// Audit configuration
	Audit AuditConfig

	// Export configuration
	Export ExportConfig

	// Observability configuration
	Observability ObservabilityConfig

	// RoleTablePath points at the versioned role table file. Empty means
	// the built-in role set.
	RoleTablePath string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// Rate limiting
	RateLimitEnabled   bool
	RateLimitPerMinute int

	// CORSOrigins lists browser origins allowed to call the API.
	// Empty disables CORS handling.
	CORSOrigins []string
}

// SessionConfig holds token handling configuration
type SessionConfig struct {
	// OIDCIssuer is the Cognito user pool issuer URL. When set together
	// with VerifyTokens, bearer tokens are cryptographically verified;
	// otherwise claims are extracted without verification (the gateway in
	// front of the portal has already verified them).
	OIDCIssuer   string
	OIDCClientID string
	VerifyTokens bool

	// CacheSize bounds the in-memory token -> user LRU cache.
	CacheSize int
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	// Sink selects the audit backend: "file", "db", "multi" or "noop".
	Sink        string
	FilePath    string
	MaxSizeMB   int
	MaxBackups  int
	FlushOnEach bool

	// AllRequests writes an audit event for every HTTP request instead of
	// only for decisions and mutations. Verbose; meant for investigations.
	AllRequests bool
}

// ExportConfig holds export worker configuration
type ExportConfig struct {
	// Sink selects where artifacts land: "s3" or "filesystem".
	Sink string

	// Schedule is a cron expression for the periodic export worker.
	Schedule string

	// Concurrency bounds parallel per-region export jobs.
	Concurrency int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Session:       loadSessionConfig(),
		Audit:         loadAuditConfig(),
		Export:        loadExportConfig(),
		Observability: loadObservabilityConfig(),
		RoleTablePath: getEnv("HDCN_ROLE_TABLE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:               getEnv("HDCN_HOST", "0.0.0.0"),
		Port:               getEnv("HDCN_PORT", "8080"),
		ReadTimeout:        getEnvDuration("HDCN_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       getEnvDuration("HDCN_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:        getEnvDuration("HDCN_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:    getEnvDuration("HDCN_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:         getEnv("HDCN_HEALTH_PORT", "9090"),
		RateLimitEnabled:   getEnvBool("HDCN_RATELIMIT_ENABLED", true),
		RateLimitPerMinute: getEnvInt("HDCN_RATELIMIT_PER_MINUTE", 300),
		CORSOrigins:        splitList(getEnv("HDCN_CORS_ORIGINS", "")),
	}
}

// splitList parses a comma separated environment value, trimming spaces
// and dropping empty entries.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if pgURL := getEnv("HDCN_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if replicaURLs := getEnv("HDCN_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.PostgresReplicaURLs = storage.ParseReplicaURLs(replicaURLs)
	}
	if maxConns := getEnvInt("HDCN_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("HDCN_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("HDCN_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	if s3Endpoint := getEnv("HDCN_S3_ENDPOINT", ""); s3Endpoint != "" {
		cfg.S3Endpoint = s3Endpoint
	}
	if s3Region := getEnv("HDCN_S3_REGION", ""); s3Region != "" {
		cfg.S3Region = s3Region
	}
	if s3Bucket := getEnv("HDCN_S3_BUCKET", ""); s3Bucket != "" {
		cfg.S3Bucket = s3Bucket
	}
	if s3AccessKey := getEnv("HDCN_S3_ACCESS_KEY", ""); s3AccessKey != "" {
		cfg.S3AccessKey = s3AccessKey
	}
	if s3SecretKey := getEnv("HDCN_S3_SECRET_KEY", ""); s3SecretKey != "" {
		cfg.S3SecretKey = s3SecretKey
	}
	if s3UsePathStyle := getEnv("HDCN_S3_USE_PATH_STYLE", ""); s3UsePathStyle != "" {
		cfg.S3UsePathStyle = strings.ToLower(s3UsePathStyle) == "true"
	}

	if redisURL := getEnv("HDCN_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("HDCN_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("HDCN_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("HDCN_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("HDCN_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	if exportRoot := getEnv("HDCN_EXPORT_ROOT", ""); exportRoot != "" {
		cfg.ExportRoot = exportRoot
	}

	if cacheEnabled := getEnv("HDCN_CACHE_ENABLED", ""); cacheEnabled != "" {
		cfg.CacheEnabled = strings.ToLower(cacheEnabled) == "true"
	}

	return cfg
}

// loadSessionConfig loads session configuration from environment
func loadSessionConfig() SessionConfig {
	return SessionConfig{
		OIDCIssuer:   getEnv("HDCN_OIDC_ISSUER", ""),
		OIDCClientID: getEnv("HDCN_OIDC_CLIENT_ID", ""),
		VerifyTokens: getEnvBool("HDCN_OIDC_VERIFY", false),
		CacheSize:    getEnvInt("HDCN_SESSION_CACHE_SIZE", 1024),
	}
}

// loadAuditConfig loads audit configuration from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		Sink:        getEnv("HDCN_AUDIT_SINK", "file"),
		FilePath:    getEnv("HDCN_AUDIT_FILE", "/var/log/hdcn/audit.log"),
		MaxSizeMB:   getEnvInt("HDCN_AUDIT_MAX_SIZE_MB", 100),
		MaxBackups:  getEnvInt("HDCN_AUDIT_MAX_BACKUPS", 5),
		FlushOnEach: getEnvBool("HDCN_AUDIT_FLUSH", true),
		AllRequests: getEnvBool("HDCN_AUDIT_ALL_REQUESTS", false),
	}
}

// loadExportConfig loads export configuration from environment
func loadExportConfig() ExportConfig {
	return ExportConfig{
		Sink:        getEnv("HDCN_EXPORT_SINK", "filesystem"),
		Schedule:    getEnv("HDCN_EXPORT_SCHEDULE", "0 3 * * *"),
		Concurrency: getEnvInt("HDCN_EXPORT_CONCURRENCY", 4),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLevel(getEnv("HDCN_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("HDCN_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("HDCN_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("HDCN_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("HDCN_OTEL_SERVICE_NAME", "hdcn-ledenportaal"),
		OTelServiceVersion: getEnv("HDCN_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("HDCN_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Audit.Sink {
	case "file", "multi":
		if c.Audit.FilePath == "" {
			return fmt.Errorf("audit file path is required for %s sink", c.Audit.Sink)
		}
	case "db", "noop":
	default:
		return fmt.Errorf("invalid audit sink: %s (must be file, db, multi, or noop)", c.Audit.Sink)
	}

	switch c.Export.Sink {
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 export sink")
		}
	case "filesystem":
		if c.Storage.ExportRoot == "" {
			return fmt.Errorf("export root is required for filesystem export sink")
		}
	default:
		return fmt.Errorf("invalid export sink: %s (must be s3 or filesystem)", c.Export.Sink)
	}

	if c.Export.Concurrency < 1 {
		return fmt.Errorf("export concurrency must be at least 1")
	}

	if c.Session.VerifyTokens && c.Session.OIDCIssuer == "" {
		return fmt.Errorf("OIDC issuer is required when token verification is enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
