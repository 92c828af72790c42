package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hdcn/ledenportaal/pkg/observability"
	"github.com/hdcn/ledenportaal/pkg/storage"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{
			name:         "returns true for 'true'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "true",
			want:         true,
		},
		{
			name:         "returns true for '1'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "1",
			want:         true,
		},
		{
			name:         "returns false for 'false'",
			key:          "TEST_BOOL",
			defaultValue: true,
			envValue:     "false",
			want:         false,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_BOOL_NOT_SET",
			defaultValue: true,
			envValue:     "",
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvBool(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "returns parsed duration",
			key:          "TEST_DURATION",
			defaultValue: time.Second,
			envValue:     "45s",
			want:         45 * time.Second,
		},
		{
			name:         "returns default for garbage",
			key:          "TEST_DURATION",
			defaultValue: time.Second,
			envValue:     "soon",
			want:         time.Second,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_DURATION_NOT_SET",
			defaultValue: 2 * time.Minute,
			envValue:     "",
			want:         2 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() with defaults failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("Expected default health port 9090, got %s", cfg.Server.HealthPort)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("Expected default info log level, got %v", cfg.Observability.LogLevel)
	}
	if cfg.Audit.Sink != "file" {
		t.Errorf("Expected default audit sink file, got %s", cfg.Audit.Sink)
	}
	if cfg.Export.Sink != "filesystem" {
		t.Errorf("Expected default export sink filesystem, got %s", cfg.Export.Sink)
	}
	if cfg.Export.Concurrency != 4 {
		t.Errorf("Expected default export concurrency 4, got %d", cfg.Export.Concurrency)
	}
	if cfg.RoleTablePath != "" {
		t.Errorf("Expected empty role table path by default, got %s", cfg.RoleTablePath)
	}
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("HDCN_PORT", "8181")
	t.Setenv("HDCN_LOG_LEVEL", "debug")
	t.Setenv("HDCN_POSTGRES_URL", "postgres://localhost/hdcn")
	t.Setenv("HDCN_POSTGRES_REPLICA_URLS", "postgres://r1/hdcn,postgres://r2/hdcn")
	t.Setenv("HDCN_EXPORT_SINK", "s3")
	t.Setenv("HDCN_S3_BUCKET", "hdcn-test")
	t.Setenv("HDCN_ROLE_TABLE", "/etc/hdcn/roles.yaml")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.Port != "8181" {
		t.Errorf("Expected port 8181, got %s", cfg.Server.Port)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("Expected debug log level, got %v", cfg.Observability.LogLevel)
	}
	if cfg.Storage.PostgresURL != "postgres://localhost/hdcn" {
		t.Errorf("Unexpected postgres URL %s", cfg.Storage.PostgresURL)
	}
	if len(cfg.Storage.PostgresReplicaURLs) != 2 {
		t.Errorf("Expected 2 replica URLs, got %d", len(cfg.Storage.PostgresReplicaURLs))
	}
	if cfg.Export.Sink != "s3" {
		t.Errorf("Expected s3 export sink, got %s", cfg.Export.Sink)
	}
	if cfg.RoleTablePath != "/etc/hdcn/roles.yaml" {
		t.Errorf("Unexpected role table path %s", cfg.RoleTablePath)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", HealthPort: "9090"},
			Storage: storage.Config{
				ExportRoot: "/tmp/exports",
				S3Bucket:   "bucket",
			},
			Audit:  AuditConfig{Sink: "file", FilePath: "/var/log/audit.log"},
			Export: ExportConfig{Sink: "filesystem", Concurrency: 2},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port is required",
		},
		{
			name:    "ports collide",
			mutate:  func(c *Config) { c.Server.HealthPort = "8080" },
			wantErr: "must be different",
		},
		{
			name:    "unknown audit sink",
			mutate:  func(c *Config) { c.Audit.Sink = "kafka" },
			wantErr: "invalid audit sink",
		},
		{
			name:    "file sink without path",
			mutate:  func(c *Config) { c.Audit.FilePath = "" },
			wantErr: "audit file path is required",
		},
		{
			name:    "unknown export sink",
			mutate:  func(c *Config) { c.Export.Sink = "ftp" },
			wantErr: "invalid export sink",
		},
		{
			name: "s3 sink without bucket",
			mutate: func(c *Config) {
				c.Export.Sink = "s3"
				c.Storage.S3Bucket = ""
			},
			wantErr: "S3 bucket is required",
		},
		{
			name:    "zero export concurrency",
			mutate:  func(c *Config) { c.Export.Concurrency = 0 },
			wantErr: "concurrency must be at least 1",
		},
		{
			name: "verification without issuer",
			mutate: func(c *Config) {
				c.Session.VerifyTokens = true
			},
			wantErr: "OIDC issuer is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
