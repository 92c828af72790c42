package storage

import "time"

// Config holds connection configuration for all backing services
type Config struct {
	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs []string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration
	PostgresMaxLifetime time.Duration
	PostgresMaxIdleTime time.Duration

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// S3 config (MinIO in development)
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// Filesystem export sink
	ExportRoot string

	// Cache config
	CacheEnabled bool
	CacheTTL     map[string]time.Duration
}

// DefaultConfig returns sensible default configuration for local development
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns:    20,
		PostgresMinConns:    2,
		PostgresTimeout:     10 * time.Second,
		PostgresMaxLifetime: 30 * time.Minute,
		PostgresMaxIdleTime: 5 * time.Minute,
		RedisDB:             0,
		RedisMaxRetries:     3,
		RedisPoolSize:       10,
		S3Region:            "eu-central-1",
		S3Bucket:            "hdcn-exports",
		ExportRoot:          "/tmp/hdcn-exports",
		CacheEnabled:        true,
		CacheTTL: map[string]time.Duration{
			"member":      15 * time.Minute,
			"member_list": 5 * time.Minute,
			"product":     1 * time.Hour,
			"parameter":   1 * time.Hour,
			"session":     5 * time.Minute,
		},
	}
}
