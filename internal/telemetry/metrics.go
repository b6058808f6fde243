package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const namespace = "aoi"

// Metrics records orchestrator activity.
type Metrics struct {
	submissions     metric.Int64Counter
	invocations     metric.Int64Counter
	invocationTime  metric.Float64Histogram
	alertsSent      metric.Int64Counter
	alertsFailed    metric.Int64Counter
	tasksChecked    metric.Int64Counter
	schedulerCycles metric.Int64Counter
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(Metrics)
	var err error

	if m.submissions, err = meter.Int64Counter(
		"submissions_total",
		metric.WithDescription("Total number of AOI submissions by outcome"),
	); err != nil {
		return nil, err
	}

	if m.invocations, err = meter.Int64Counter(
		"worker_invocations_total",
		metric.WithDescription("Total number of worker process invocations by operation and outcome"),
	); err != nil {
		return nil, err
	}

	if m.invocationTime, err = meter.Float64Histogram(
		"worker_invocation_duration_seconds",
		metric.WithDescription("Wall time of a worker process"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.alertsSent, err = meter.Int64Counter(
		"alerts_sent_total",
		metric.WithDescription("Total number of change alerts delivered"),
	); err != nil {
		return nil, err
	}

	if m.alertsFailed, err = meter.Int64Counter(
		"alerts_failed_total",
		metric.WithDescription("Total number of change alerts that failed to deliver"),
	); err != nil {
		return nil, err
	}

	if m.tasksChecked, err = meter.Int64Counter(
		"monitoring_tasks_checked_total",
		metric.WithDescription("Total number of monitoring task replays by outcome"),
	); err != nil {
		return nil, err
	}

	if m.schedulerCycles, err = meter.Int64Counter(
		"scheduler_cycles_total",
		metric.WithDescription("Total number of scheduler cycles"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// MustNoopMetrics builds metrics backed by a no-op provider.
func MustNoopMetrics() *Metrics {
	m, err := NewMetrics(Noop().Meter)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) IncSubmissions(ctx context.Context, outcome string) {
	m.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) ObserveInvocation(ctx context.Context, operation, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.invocations.Add(ctx, 1, attrs)
	m.invocationTime.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) IncAlertsSent(ctx context.Context, transport string) {
	m.alertsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", transport)))
}

func (m *Metrics) IncAlertsFailed(ctx context.Context, transport string) {
	m.alertsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", transport)))
}

func (m *Metrics) IncTasksChecked(ctx context.Context, outcome string) {
	m.tasksChecked.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) IncSchedulerCycles(ctx context.Context) {
	m.schedulerCycles.Add(ctx, 1)
}
