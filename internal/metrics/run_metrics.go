package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RunMetrics provides metrics collection for harmonization runs
type RunMetrics struct {
	runsStartedCounter   metric.Int64Counter
	runsCompletedCounter metric.Int64Counter
	runsRejectedCounter  metric.Int64Counter
	runDurationHistogram metric.Float64Histogram
	runsActiveGauge      metric.Int64UpDownCounter
	fallbacksCounter     metric.Int64Counter
}

// NewRunMetrics creates a run metrics collector on the global meter provider
func NewRunMetrics() (*RunMetrics, error) {
	return NewRunMetricsWithMeter(otel.Meter("harmonizer-metrics"))
}

// NewRunMetricsWithMeter creates a run metrics collector on the given meter
func NewRunMetricsWithMeter(meter metric.Meter) (*RunMetrics, error) {
	runsStartedCounter, err := meter.Int64Counter(
		"harmonizer.runs.started",
		metric.WithDescription("Total number of harmonization runs started"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runsCompletedCounter, err := meter.Int64Counter(
		"harmonizer.runs.completed",
		metric.WithDescription("Total number of harmonization runs completed"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runsRejectedCounter, err := meter.Int64Counter(
		"harmonizer.runs.rejected",
		metric.WithDescription("Total number of runs refused by the readiness guard"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runDurationHistogram, err := meter.Float64Histogram(
		"harmonizer.run.duration",
		metric.WithDescription("Duration of harmonization runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	runsActiveGauge, err := meter.Int64UpDownCounter(
		"harmonizer.runs.active",
		metric.WithDescription("Number of runs currently in flight"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	fallbacksCounter, err := meter.Int64Counter(
		"harmonizer.adapter.fallbacks",
		metric.WithDescription("Completions answered by the mock adapter after a real adapter failed"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	return &RunMetrics{
		runsStartedCounter:   runsStartedCounter,
		runsCompletedCounter: runsCompletedCounter,
		runsRejectedCounter:  runsRejectedCounter,
		runDurationHistogram: runDurationHistogram,
		runsActiveGauge:      runsActiveGauge,
		fallbacksCounter:     fallbacksCounter,
	}, nil
}

// RecordRunStarted records a run entering the pipeline
func (rm *RunMetrics) RecordRunStarted(ctx context.Context, intentionCount int) {
	rm.runsStartedCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.Int("intentions", intentionCount)),
	)
	rm.runsActiveGauge.Add(ctx, 1)
}

// RecordRunCompleted records a finished run. noop marks runs whose output
// carries no textual change beyond the marker comment.
func (rm *RunMetrics) RecordRunCompleted(ctx context.Context, noop bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("noop", noop))
	rm.runsCompletedCounter.Add(ctx, 1, attrs)
	rm.runDurationHistogram.Record(ctx, duration.Seconds(), attrs)
	rm.runsActiveGauge.Add(ctx, -1)
}

// RecordRunRejected records a run refused before it started
func (rm *RunMetrics) RecordRunRejected(ctx context.Context, reason string) {
	rm.runsRejectedCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordFallback records the mock adapter answering for a failed real adapter
func (rm *RunMetrics) RecordFallback(ctx context.Context, cause string) {
	rm.fallbacksCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("cause", cause)),
	)
}
