// Package telemetry provides OpenTelemetry instrumentation for sync
// operations and registry population.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter.
	SyncMetricsMeterName = "github.com/aaronkwan/synced-object/sync"

	// RegistryMetricsMeterName is the name used for the registry metrics meter.
	RegistryMetricsMeterName = "github.com/aaronkwan/synced-object/registry"
)

// SyncMetrics holds the OpenTelemetry instruments for sync operations.
type SyncMetrics struct {
	syncDuration metric.Float64Histogram
	syncResults  metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter
// provider. If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"synced_object_sync_duration_seconds",
		metric.WithDescription("Duration of pull/push operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	syncResults, err := meter.Int64Counter(
		"synced_object_sync_total",
		metric.WithDescription("Number of completed pull/push operations"),
		metric.WithUnit("{sync}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration: syncDuration,
		syncResults:  syncResults,
	}, nil
}

// RecordSync records the duration and result of one pull/push operation.
func (m *SyncMetrics) RecordSync(ctx context.Context, key, request string, d time.Duration, success bool) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("key", key),
		attribute.String("request", request),
		attribute.Bool("success", success),
	}

	if m.syncDuration != nil {
		m.syncDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
	}
	if m.syncResults != nil {
		m.syncResults.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RegistryMetrics holds the OpenTelemetry instruments for registry
// population.
type RegistryMetrics struct {
	objectsTotal metric.Int64UpDownCounter
}

// NewRegistryMetrics creates a new RegistryMetrics instance with the given
// meter provider. If provider is nil, it returns nil (no-op metrics).
func NewRegistryMetrics(provider metric.MeterProvider) (*RegistryMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RegistryMetricsMeterName)

	objectsTotal, err := meter.Int64UpDownCounter(
		"synced_object_tracked_total",
		metric.WithDescription("Number of tracked objects in the registry"),
		metric.WithUnit("{object}"),
	)
	if err != nil {
		return nil, err
	}

	return &RegistryMetrics{objectsTotal: objectsTotal}, nil
}

// RecordObjectAdded increments the tracked-object count.
func (m *RegistryMetrics) RecordObjectAdded(ctx context.Context) {
	if m == nil || m.objectsTotal == nil {
		return
	}
	m.objectsTotal.Add(ctx, 1)
}

// RecordObjectRemoved decrements the tracked-object count.
func (m *RegistryMetrics) RecordObjectRemoved(ctx context.Context) {
	if m == nil || m.objectsTotal == nil {
		return
	}
	m.objectsTotal.Add(ctx, -1)
}
