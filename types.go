package lossyflow

import "github.com/Swind/go-lossyflow/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the lossyflow package for most use cases.

// Identity and positions
type (
	TaskID            = core.TaskID
	SenderChannelID   = core.SenderChannelID
	ReceiverChannelID = core.ReceiverChannelID
	ChannelID         = core.ChannelID
	SenderName        = core.SenderName
	ReceiverName      = core.ReceiverName
	ChannelPosition   = core.ChannelPosition
	InclusiveRange    = core.InclusiveRange
)

// Messages and channels
type (
	MessageKind     = core.MessageKind
	Message[T any]  = core.Message[T]
	Sender[T any]   = core.Sender[T]
	Receiver[T any] = core.Receiver[T]
	Endpoint[T any] = core.Endpoint[T]
	EndpointState   = core.EndpointState
)

// Tasks and scheduling
type (
	Task           = core.Task
	Directive      = core.Directive
	DirectiveKind  = core.DirectiveKind
	SchedulingRule = core.SchedulingRule
	RuleKind       = core.RuleKind

	Scheduler       = core.Scheduler
	SchedulerOption = core.SchedulerOption
	SchedulerConfig = core.SchedulerConfig
	SchedulerStats  = core.SchedulerStats
	SchedulerState  = core.SchedulerState
	ExecutionRecord = core.ExecutionRecord
	EdgeLag         = core.EdgeLag
	TaskInfo        = core.TaskInfo

	Logger       = core.Logger
	Metrics      = core.Metrics
	PanicHandler = core.PanicHandler
)

// Processor adapters
type (
	SourceFunc[Out any]       = core.SourceFunc[Out]
	FilterFunc[In, Out any]   = core.FilterFunc[In, Out]
	SinkFunc[In any]          = core.SinkFunc[In]
	ScatterFunc[In, Out any]  = core.ScatterFunc[In, Out]
	GatherFunc[In, Out any]   = core.GatherFunc[In, Out]
	YMergeFunc[A, B, Out any] = core.YMergeFunc[A, B, Out]
	YSplitFunc[In, A, B any]  = core.YSplitFunc[In, A, B]
)

// Errors
var (
	ErrBusy          = core.ErrBusy
	ErrNonExistent   = core.ErrNonExistent
	ErrStopping      = core.ErrStopping
	ErrAlreadyExists = core.ErrAlreadyExists
	ErrAny           = core.ErrAny
	ErrIO            = core.ErrIO
)

// Rules and directives
var (
	Loop            = core.Loop
	OnMessage       = core.OnMessage
	Periodic        = core.Periodic
	PeriodicUsec    = core.PeriodicUsec
	OnExternalEvent = core.OnExternalEvent

	Continue   = core.Continue
	SleepFor   = core.SleepFor
	SleepUntil = core.SleepUntil
	StopAll    = core.StopAll
	Fail       = core.Fail
)

// Scheduler options
var (
	NewScheduler        = core.NewScheduler
	WithName            = core.WithName
	WithLogger          = core.WithLogger
	WithMetrics         = core.WithMetrics
	WithPanicHandler    = core.WithPanicHandler
	WithIdleInterval    = core.WithIdleInterval
	WithHistoryCapacity = core.WithHistoryCapacity
	WithConfig          = core.WithConfig
)

// Generic functions cannot be aliased, so the constructors are thin wrappers.

func ValueMsg[T any](v T) Message[T] { return core.ValueMsg(v) }

func NewChannel[T any](capacity int) (*Sender[T], *Receiver[T]) { return core.NewChannel[T](capacity) }

func NewSource[Out any](name string, capacity int, proc core.Source[Out]) (*core.SourceTask[Out], *Endpoint[Out]) {
	return core.NewSource(name, capacity, proc)
}

func NewFilter[In, Out any](name string, capacity int, proc core.Filter[In, Out]) (*core.FilterTask[In, Out], *Endpoint[Out]) {
	return core.NewFilter(name, capacity, proc)
}

func NewSink[In any](name string, proc core.Sink[In]) *core.SinkTask[In] {
	return core.NewSink(name, proc)
}

func NewScatter[In, Out any](name string, capacity int, proc core.Scatter[In, Out], n int) (*core.ScatterTask[In, Out], []*Endpoint[Out]) {
	return core.NewScatter(name, capacity, proc, n)
}

func NewGather[In, Out any](name string, capacity int, proc core.Gather[In, Out], n int) (*core.GatherTask[In, Out], *Endpoint[Out]) {
	return core.NewGather(name, capacity, proc, n)
}

func NewYMerge[A, B, Out any](name string, capacity int, proc core.YMerge[A, B, Out]) (*core.YMergeTask[A, B, Out], *Endpoint[Out]) {
	return core.NewYMerge(name, capacity, proc)
}

func NewYSplit[In, A, B any](name string, capacityA, capacityB int, proc core.YSplit[In, A, B]) (*core.YSplitTask[In, A, B], *Endpoint[A], *Endpoint[B]) {
	return core.NewYSplit(name, capacityA, capacityB, proc)
}

// Connect pairs an output endpoint with an input endpoint.
func Connect[T any](sender, receiver *Endpoint[T]) error { return core.Connect(sender, receiver) }

func ConnectTo[T any](out *Endpoint[T], task core.Connectable[T]) error {
	return core.ConnectTo(out, task)
}

func ConnectToN[T any](out *Endpoint[T], task core.ConnectableN[T], ch ReceiverChannelID) error {
	return core.ConnectToN(out, task, ch)
}

func ConnectToA[A, B any](out *Endpoint[A], task core.ConnectableY[A, B]) error {
	return core.ConnectToA(out, task)
}

func ConnectToB[A, B any](out *Endpoint[B], task core.ConnectableY[A, B]) error {
	return core.ConnectToB(out, task)
}
