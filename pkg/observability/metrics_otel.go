package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments. These mirror the
// Prometheus vectors in Metrics but flow through the OTLP pipeline, so
// dashboards can be fed from either backend.
type OTelMetrics struct {
	// Authorization metrics
	authzDecisionsTotal   metric.Int64Counter
	authzDecisionDuration metric.Float64Histogram

	// Database metrics
	dbQueriesTotal  metric.Int64Counter
	dbQueryDuration metric.Float64Histogram

	// Cache metrics
	cacheHitsTotal   metric.Int64Counter
	cacheMissesTotal metric.Int64Counter

	// Export metrics
	exportsTotal   metric.Int64Counter
	exportDuration metric.Float64Histogram
	exportBytes    metric.Int64Histogram
}

// NewOTelMetrics creates a new OTel metrics instance
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/hdcn/ledenportaal")

	m := &OTelMetrics{}
	var err error

	m.authzDecisionsTotal, err = meter.Int64Counter(
		"authz.decisions",
		metric.WithDescription("Total number of authorization decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authz_decisions counter: %w", err)
	}

	m.authzDecisionDuration, err = meter.Float64Histogram(
		"authz.decision.duration",
		metric.WithDescription("Authorization decision duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authz_decision_duration histogram: %w", err)
	}

	m.dbQueriesTotal, err = meter.Int64Counter(
		"db.queries.total",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db_queries_total counter: %w", err)
	}

	m.dbQueryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db_query_duration histogram: %w", err)
	}

	m.cacheHitsTotal, err = meter.Int64Counter(
		"cache.hits.total",
		metric.WithDescription("Total number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_hits_total counter: %w", err)
	}

	m.cacheMissesTotal, err = meter.Int64Counter(
		"cache.misses.total",
		metric.WithDescription("Total number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_misses_total counter: %w", err)
	}

	m.exportsTotal, err = meter.Int64Counter(
		"exports.total",
		metric.WithDescription("Total number of export runs"),
		metric.WithUnit("{export}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create exports_total counter: %w", err)
	}

	m.exportDuration, err = meter.Float64Histogram(
		"export.duration",
		metric.WithDescription("Export run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create export_duration histogram: %w", err)
	}

	m.exportBytes, err = meter.Int64Histogram(
		"export.bytes",
		metric.WithDescription("Export artifact size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create export_bytes histogram: %w", err)
	}

	return m, nil
}

// RecordAuthzDecision records an authorization decision metric
func (m *OTelMetrics) RecordAuthzDecision(ctx context.Context, resource, action string, allowed bool, duration time.Duration) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	attrs := []attribute.KeyValue{
		attribute.String("authz.resource", resource),
		attribute.String("authz.action", action),
		attribute.String("authz.outcome", outcome),
	}

	m.authzDecisionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.authzDecisionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordDBQuery records a database query metric
func (m *OTelMetrics) RecordDBQuery(ctx context.Context, operation string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error", "true"))
	} else {
		attrs = append(attrs, attribute.String("error", "false"))
	}

	m.dbQueriesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.dbQueryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordCacheHit records a cache hit
func (m *OTelMetrics) RecordCacheHit(ctx context.Context, cacheType string) {
	attrs := []attribute.KeyValue{
		attribute.String("cache.type", cacheType),
	}
	m.cacheHitsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheMiss records a cache miss
func (m *OTelMetrics) RecordCacheMiss(ctx context.Context, cacheType string) {
	attrs := []attribute.KeyValue{
		attribute.String("cache.type", cacheType),
	}
	m.cacheMissesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordExport records an export run metric
func (m *OTelMetrics) RecordExport(ctx context.Context, kind string, duration time.Duration, bytes int64, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("export.kind", kind),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error", "true"))
	} else {
		attrs = append(attrs, attribute.String("error", "false"))
	}

	m.exportsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.exportDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if bytes > 0 {
		m.exportBytes.Record(ctx, bytes, metric.WithAttributes(attrs...))
	}
}
