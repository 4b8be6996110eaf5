package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-lossyflow/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "lossyflow"

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	// DurationBuckets defaults to exponential buckets from 1µs to ~4s, since
	// pipeline tasks usually run for microseconds.
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds *prom.HistogramVec
	taskPanicTotal      *prom.CounterVec
	taskFailureTotal    *prom.CounterVec
	idleSecondsTotal    *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.ExponentialBuckets(0.000001, 4, 12)
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"scheduler", "task", "rule"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics.",
	}, []string{"scheduler", "task"})
	failureVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_failure_total",
		Help:      "Total number of executions that returned a failure, panics included.",
	}, []string{"scheduler", "task"})
	idleVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_idle_seconds_total",
		Help:      "Time schedulers spent waiting for an eligible task.",
	}, []string{"scheduler"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if failureVec, err = registerCollector(reg, failureVec); err != nil {
		return nil, err
	}
	if idleVec, err = registerCollector(reg, idleVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds: durationVec,
		taskPanicTotal:      panicVec,
		taskFailureTotal:    failureVec,
		idleSecondsTotal:    idleVec,
	}, nil
}

// RecordTaskDuration records task execution duration.
func (m *MetricsExporter) RecordTaskDuration(schedulerName, taskName string, rule core.RuleKind, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(
		normalizeLabel(schedulerName, "unknown"),
		normalizeLabel(taskName, "unknown"),
		rule.String(),
	).Observe(duration.Seconds())
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(schedulerName, taskName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(schedulerName, "unknown"), normalizeLabel(taskName, "unknown")).Inc()
}

// RecordTaskFailure records executions that returned Fail.
func (m *MetricsExporter) RecordTaskFailure(schedulerName, taskName string, err error) {
	if m == nil {
		return
	}
	m.taskFailureTotal.WithLabelValues(normalizeLabel(schedulerName, "unknown"), normalizeLabel(taskName, "unknown")).Inc()
}

// RecordIdle accumulates idle time.
func (m *MetricsExporter) RecordIdle(schedulerName string, duration time.Duration) {
	if m == nil || duration <= 0 {
		return
	}
	m.idleSecondsTotal.WithLabelValues(normalizeLabel(schedulerName, "unknown")).Add(duration.Seconds())
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
