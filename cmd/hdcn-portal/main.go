package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hdcn/ledenportaal/pkg/api"
	"github.com/hdcn/ledenportaal/pkg/audit"
	"github.com/hdcn/ledenportaal/pkg/authz"
	"github.com/hdcn/ledenportaal/pkg/config"
	"github.com/hdcn/ledenportaal/pkg/exports"
	"github.com/hdcn/ledenportaal/pkg/members"
	"github.com/hdcn/ledenportaal/pkg/middleware"
	"github.com/hdcn/ledenportaal/pkg/observability"
	"github.com/hdcn/ledenportaal/pkg/parameters"
	"github.com/hdcn/ledenportaal/pkg/products"
	"github.com/hdcn/ledenportaal/pkg/session"
	"github.com/hdcn/ledenportaal/pkg/storage"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("hdcn-portal %s\n", version)
		return
	}

	// A .env file is a development convenience; deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	table, tableVersion, err := config.LoadRoleTable(cfg.RoleTablePath)
	if err != nil {
		log.Fatalf("Failed to load role table: %v", err)
	}
	evaluator := authz.New(table)
	logger.Infof("Role table %q loaded, %d roles", tableVersion, len(table.Roles()))

	cm, err := storage.NewConnectionManager(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}

	// Redis is optional. The portal runs without it, just without shared
	// caches and with per-instance rate limit counters.
	var redisClient *storage.RedisClient
	if cfg.Storage.CacheEnabled {
		redisClient, err = storage.NewRedisClient(cfg.Storage)
		if err != nil {
			logger.Warnf("Redis unavailable, continuing without cache: %v", err)
			redisClient = nil
		}
	}

	memberStore, err := members.NewPostgresStore(cm.Primary())
	if err != nil {
		log.Fatalf("Failed to initialize member store: %v", err)
	}
	var memberAPI members.Store = memberStore
	if redisClient != nil {
		memberAPI = members.NewCachedStore(memberStore, redisClient)
	}

	productStore, err := products.NewPostgresStore(cm.Primary())
	if err != nil {
		log.Fatalf("Failed to initialize product store: %v", err)
	}

	parameterStore, err := parameters.NewPostgresStore(cm.Primary())
	if err != nil {
		log.Fatalf("Failed to initialize parameter store: %v", err)
	}
	if err := parameterStore.EnsureDefaults(ctx); err != nil {
		log.Fatalf("Failed to seed default parameters: %v", err)
	}

	auditLogger, err := config.NewAuditLogger(cfg.Audit, cm.Primary())
	if err != nil {
		log.Fatalf("Failed to initialize audit logging: %v", err)
	}
	if auditLogger != nil {
		event := audit.NewConfigEvent(audit.EventTypeConfigRoleTableLoad,
			fmt.Sprintf("role table %q loaded with %d roles", tableVersion, len(table.Roles())), nil)
		if err := auditLogger.Log(ctx, event); err != nil {
			logger.Warnf("Failed to audit role table load: %v", err)
		}
	}

	var verifier *session.Verifier
	if cfg.Session.VerifyTokens {
		// A broken OIDC setup must not silently degrade to parse-only.
		verifier, err = session.NewVerifier(ctx, cfg.Session.OIDCIssuer, cfg.Session.OIDCClientID)
		if err != nil {
			log.Fatalf("Failed to initialize OIDC verifier: %v", err)
		}
	}
	sessions := session.NewManager(session.Options{
		Verifier:  verifier,
		CacheSize: cfg.Session.CacheSize,
	})

	sink, err := config.NewExportSink(ctx, cfg, parameterStore)
	if err != nil {
		log.Fatalf("Failed to initialize export sink: %v", err)
	}
	runner := exports.NewRunner(memberAPI, sink, evaluator, exports.RunnerOptions{
		Workers: cfg.Export.Concurrency,
	})

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	health := observability.NewHealthChecker(cm.Primary(), redisRaw(redisClient), version)

	var otelProviders *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		otelCfg := observability.DefaultOTelConfig()
		otelCfg.ServiceName = cfg.Observability.OTelServiceName
		otelCfg.ServiceVersion = cfg.Observability.OTelServiceVersion
		otelCfg.OTLPEndpoint = cfg.Observability.OTelEndpoint
		otelCfg.Insecure = cfg.Observability.OTelInsecure
		otelProviders, err = observability.InitOTel(ctx, otelCfg)
		if err != nil {
			logger.Warnf("OpenTelemetry disabled, init failed: %v", err)
			otelProviders = nil
		}
	}

	var rateLimits *middleware.RateLimitMiddleware
	if cfg.Server.RateLimitEnabled {
		if redisClient != nil {
			rateLimits = middleware.NewRateLimitMiddleware(redisClient)
		} else {
			rateLimits = middleware.NewMemoryRateLimitMiddleware()
		}
		rateLimits.SetUserLimit(cfg.Server.RateLimitPerMinute)
	}

	server := api.NewServer(api.Config{
		Evaluator:        evaluator,
		Sessions:         sessions,
		Members:          memberAPI,
		Products:         productStore,
		Parameters:       parameterStore,
		Exports:          runner,
		AuditLogger:      auditLogger,
		Logger:           logger,
		Metrics:          metrics,
		Registry:         registry,
		Health:           health,
		RateLimits:       rateLimits,
		CORSOrigins:      cfg.Server.CORSOrigins,
		AuditAllRequests: cfg.Audit.AllRequests,
	})

	var apiHandler http.Handler = server.Router()
	if otelProviders != nil {
		// Incoming requests get a server span and trace propagation from
		// the globals InitOTel registered.
		apiHandler = otelhttp.NewHandler(apiHandler, "hdcn-portal")
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      apiHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Probes and metrics stay reachable on their own port even when the
	// API listener is saturated.
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, health)
	if registry != nil {
		healthMux.Handle("/metrics", observability.MetricsHandler(registry))
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	sm := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	sm.RegisterServer(apiServer)
	sm.RegisterServer(healthServer)
	if auditLogger != nil {
		sm.RegisterFunc("audit", func(context.Context) error { return auditLogger.Close() })
	}
	sm.RegisterFunc("postgres", func(context.Context) error { return cm.Close() })
	if redisClient != nil {
		sm.RegisterFunc("redis", func(context.Context) error { return redisClient.Close() })
	}
	if otelProviders != nil {
		sm.RegisterFunc("otel", func(shutdownCtx context.Context) error {
			return observability.ShutdownOTel(shutdownCtx, otelProviders)
		})
	}

	go func() {
		logger.Infof("Portal API listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server failed: %v", err)
		}
	}()
	go func() {
		logger.Infof("Health endpoints on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Health server failed: %v", err)
		}
	}()

	sm.WaitForShutdown()
}

// redisRaw unwraps the raw client for the health checker, which skips
// the redis check when given nil.
func redisRaw(c *storage.RedisClient) *redis.Client {
	if c == nil {
		return nil
	}
	return c.GetClient()
}

