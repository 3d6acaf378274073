package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// AdmissionMetrics records the outcome of device admission checks.
type AdmissionMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	checksTotal   *Counter
	failOpenTotal *Counter
	duration      *Histogram
	activeDevices *Gauge
}

// AdmissionMetricsConfig holds configuration for admission metrics.
type AdmissionMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewAdmissionMetrics creates a new AdmissionMetrics instance.
func NewAdmissionMetrics(cfg AdmissionMetricsConfig) (*AdmissionMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	am := &AdmissionMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	am.checksTotal, err = NewCounter(
		cfg.Meter,
		"bizops_device_admission_total",
		"Total number of device admission checks by outcome",
		"{checks}",
	)
	if err != nil {
		return nil, err
	}

	am.failOpenTotal, err = NewCounter(
		cfg.Meter,
		"bizops_device_admission_fail_open_total",
		"Admission checks admitted because the session store failed",
		"{checks}",
	)
	if err != nil {
		return nil, err
	}

	am.duration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "bizops_device_admission_duration_seconds",
		Description: "Duration of a device admission check",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	am.activeDevices, err = NewGauge(
		cfg.Meter,
		"bizops_device_sessions_active",
		"Active device sessions inside the activity window",
		"{devices}",
	)
	if err != nil {
		return nil, err
	}

	return am, nil
}

// RecordCheck records one finished admission check.
func (am *AdmissionMetrics) RecordCheck(ctx context.Context, outcome, deviceType string, elapsed time.Duration) {
	attrs := []attribute.KeyValue{
		AttrOutcome.String(outcome),
		AttrDeviceType.String(deviceType),
	}
	am.checksTotal.Inc(ctx, attrs...)
	am.duration.RecordDuration(ctx, elapsed, attrs...)
}

// RecordFailOpen records a check admitted after a store failure in the given stage.
func (am *AdmissionMetrics) RecordFailOpen(ctx context.Context, stage string) {
	am.failOpenTotal.Inc(ctx, AttrStage.String(stage))
}

// RecordActiveDevices records a tenant's active session count for one device class.
func (am *AdmissionMetrics) RecordActiveDevices(ctx context.Context, tenantID uuid.UUID, deviceType string, count int) {
	am.activeDevices.Record(ctx, int64(count),
		AttrTenantID.String(tenantID.String()),
		AttrDeviceType.String(deviceType),
	)
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewAdmissionMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
