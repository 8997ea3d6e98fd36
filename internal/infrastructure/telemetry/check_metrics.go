package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Check run statuses reported on billingwatch_check_runs_total
const (
	CheckStatusRan     = "ran"
	CheckStatusSkipped = "skipped"
	CheckStatusFailed  = "failed"
)

// CheckMetrics records billing check outcomes.
type CheckMetrics struct {
	runs        *Counter
	transitions *Counter
	duration    *Histogram
}

// NewCheckMetrics creates the billing check instruments on meter.
func NewCheckMetrics(meter metric.Meter) (*CheckMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	runs, err := NewCounter(meter,
		"billingwatch_check_runs_total",
		"Billing check runs by outcome",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	transitions, err := NewCounter(meter,
		"billingwatch_billing_enabled_transitions_total",
		"Observed transitions from billing disabled to enabled",
		"{transitions}",
	)
	if err != nil {
		return nil, err
	}

	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "billingwatch_check_duration_seconds",
		Description: "Duration of billing check runs",
		Unit:        "s",
		Boundaries:  CheckDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &CheckMetrics{
		runs:        runs,
		transitions: transitions,
		duration:    duration,
	}, nil
}

// RecordRun records one finished run. skipReason is empty unless status is skipped.
func (m *CheckMetrics) RecordRun(ctx context.Context, status, skipReason string, d time.Duration) {
	attrs := AttrCheckStatus.String(status)
	if skipReason != "" {
		m.runs.Inc(ctx, attrs, AttrSkipReason.String(skipReason))
	} else {
		m.runs.Inc(ctx, attrs)
	}
	m.duration.RecordDuration(ctx, d, attrs)
}

// RecordTransition records one disabled-to-enabled transition.
func (m *CheckMetrics) RecordTransition(ctx context.Context) {
	m.transitions.Inc(ctx)
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewCheckMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
