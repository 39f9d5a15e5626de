// Package telemetry provides [Metrics], the OpenTelemetry-backed recorder
// for the dispatch pipeline and response cache: request
// counters and latency histograms per provider/operation, retry counters,
// token counters, and cache hit/miss counters. Metric names and labels
// follow spec §6's telemetry surface exactly. When no Recorder is attached,
// the dispatch and responsecache packages fall back to their own no-op
// recorders — nothing here is required for the gateway to function.
//
// Grounded on the teacher's internal/observe/metrics.go: a meter built from
// a metric.MeterProvider, one instrument per field, convenience Record*
// methods that hide attribute construction from call sites.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all ratatoskr metrics.
const meterName = "github.com/emesal/ratatoskr"

// durationBuckets defines histogram bucket boundaries (in seconds) for
// request latency. Model inference requests routinely run from tens of
// milliseconds (cached/local) to tens of seconds (large remote chat
// completions), wider than a typical web-request histogram.
var durationBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// Metrics holds all OpenTelemetry instruments for the gateway and
// implements both internal/dispatch.Recorder and
// internal/responsecache.Recorder.
type Metrics struct {
	// RequestsTotal counts provider requests. Attributes: provider,
	// operation, status.
	RequestsTotal metric.Int64Counter

	// RequestDuration tracks provider request latency. Attributes:
	// provider, operation.
	RequestDuration metric.Float64Histogram

	// RetriesTotal counts retry attempts. Attributes: provider, operation.
	RetriesTotal metric.Int64Counter

	// TokensTotal counts tokens consumed. Attributes: provider, model,
	// direction (prompt|completion).
	TokensTotal metric.Int64Counter

	// CacheHitsTotal counts response-cache hits. Attribute: operation.
	CacheHitsTotal metric.Int64Counter

	// CacheMissesTotal counts response-cache misses. Attribute: operation.
	CacheMissesTotal metric.Int64Counter
}

// NewMetrics creates a fully initialised Metrics using the given
// metric.MeterProvider. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RequestsTotal, err = m.Int64Counter("ratatoskr_requests_total",
		metric.WithDescription("Total provider requests by provider, operation, and status."),
	); err != nil {
		return nil, err
	}
	if met.RequestDuration, err = m.Float64Histogram("ratatoskr_request_duration_seconds",
		metric.WithDescription("Provider request latency by provider and operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RetriesTotal, err = m.Int64Counter("ratatoskr_retries_total",
		metric.WithDescription("Total retry attempts by provider and operation."),
	); err != nil {
		return nil, err
	}
	if met.TokensTotal, err = m.Int64Counter("ratatoskr_tokens_total",
		metric.WithDescription("Total tokens consumed by provider, model, and direction."),
	); err != nil {
		return nil, err
	}
	if met.CacheHitsTotal, err = m.Int64Counter("ratatoskr_cache_hits_total",
		metric.WithDescription("Total response-cache hits by operation."),
	); err != nil {
		return nil, err
	}
	if met.CacheMissesTotal, err = m.Int64Counter("ratatoskr_cache_misses_total",
		metric.WithDescription("Total response-cache misses by operation."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Attr is a convenience alias for attribute.String to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordRequest implements internal/dispatch.Recorder. duration is recorded
// in seconds, matching the histogram's declared unit.
func (m *Metrics) RecordRequest(provider, operation, status string, duration time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		Attr("provider", provider),
		Attr("operation", operation),
		Attr("status", status),
	)
	m.RequestsTotal.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		Attr("provider", provider),
		Attr("operation", operation),
	))
}

// RecordTokens implements internal/dispatch.Recorder, emitting one
// increment per non-zero direction.
func (m *Metrics) RecordTokens(provider, model string, promptTokens, completionTokens int) {
	ctx := context.Background()
	if promptTokens > 0 {
		m.TokensTotal.Add(ctx, int64(promptTokens), metric.WithAttributes(
			Attr("provider", provider),
			Attr("model", model),
			Attr("direction", "prompt"),
		))
	}
	if completionTokens > 0 {
		m.TokensTotal.Add(ctx, int64(completionTokens), metric.WithAttributes(
			Attr("provider", provider),
			Attr("model", model),
			Attr("direction", "completion"),
		))
	}
}

// RecordRetry implements internal/dispatch.Recorder.
func (m *Metrics) RecordRetry(provider, operation string) {
	m.RetriesTotal.Add(context.Background(), 1, metric.WithAttributes(
		Attr("provider", provider),
		Attr("operation", operation),
	))
}

// RecordCacheResult implements internal/responsecache.Recorder. result is
// "hit" or "miss"; any other value is recorded as a miss.
func (m *Metrics) RecordCacheResult(cacheName, operation, result string) {
	ctx := context.Background()
	attrs := metric.WithAttributes(Attr("operation", operation))
	if result == "hit" {
		m.CacheHitsTotal.Add(ctx, 1, attrs)
		return
	}
	m.CacheMissesTotal.Add(ctx, 1, attrs)
}
