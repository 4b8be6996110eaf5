package core

import (
	"context"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during Execute.
// The scheduler recovers the panic and treats the execution as failed.
//
// Implementations should be thread-safe when several schedulers share one.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context passed to the panicked execution
	// - schedulerName: The name of the scheduler running the task
	// - taskName: The name of the task that panicked
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, schedulerName, taskName string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs panic information at error level.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, schedulerName, taskName string, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("task panicked",
		F("scheduler", schedulerName),
		F("task", taskName),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting scheduler metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods are called on the scheduler goroutine and should be non-blocking
// and fast to avoid delaying the next execution.
type Metrics interface {
	// RecordTaskDuration records how long one Execute call took.
	RecordTaskDuration(schedulerName, taskName string, rule RuleKind, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(schedulerName, taskName string, panicInfo any)

	// RecordTaskFailure records an execution that returned Fail(err).
	RecordTaskFailure(schedulerName, taskName string, err error)

	// RecordIdle records time spent waiting because no task was eligible.
	RecordIdle(schedulerName string, duration time.Duration)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(schedulerName, taskName string, rule RuleKind, duration time.Duration) {
}

// RecordTaskPanic is a no-op.
func (m *NilMetrics) RecordTaskPanic(schedulerName, taskName string, panicInfo any) {
}

// RecordTaskFailure is a no-op.
func (m *NilMetrics) RecordTaskFailure(schedulerName, taskName string, err error) {
}

// RecordIdle is a no-op.
func (m *NilMetrics) RecordIdle(schedulerName string, duration time.Duration) {
}

// =============================================================================
// SchedulerConfig: Configuration for Scheduler
// =============================================================================

const (
	defaultIdleInterval    = time.Millisecond
	defaultHistoryCapacity = 100
)

// SchedulerConfig holds configuration options for Scheduler.
// Zero values are replaced by defaults.
type SchedulerConfig struct {
	// Name labels the scheduler in logs and metrics. Defaults to "scheduler".
	Name string

	// IdleInterval bounds how long the loop sleeps when no task is eligible.
	// OnMessage eligibility is polled at this granularity. Defaults to 1ms.
	IdleInterval time.Duration

	// HistoryCapacity is the number of execution records kept. Defaults to 100.
	HistoryCapacity int

	// Logger defaults to NewDefaultLogger().
	Logger Logger

	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record execution metrics. Defaults to NilMetrics.
	Metrics Metrics
}

// DefaultSchedulerConfig returns a config with default handlers. The panic
// handler is left nil so that it follows whichever Logger ends up configured.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Name:            "scheduler",
		IdleInterval:    defaultIdleInterval,
		HistoryCapacity: defaultHistoryCapacity,
		Logger:          NewDefaultLogger(),
		Metrics:         &NilMetrics{},
	}
}

func (c *SchedulerConfig) withDefaults() SchedulerConfig {
	out := SchedulerConfig{}
	if c != nil {
		out = *c
	}
	if out.Name == "" {
		out.Name = "scheduler"
	}
	if out.IdleInterval <= 0 {
		out.IdleInterval = defaultIdleInterval
	}
	if out.HistoryCapacity < 1 {
		out.HistoryCapacity = defaultHistoryCapacity
	}
	if out.Logger == nil {
		out.Logger = NewDefaultLogger()
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &DefaultPanicHandler{Logger: out.Logger}
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	return out
}
