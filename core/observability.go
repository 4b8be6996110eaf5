package core

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// ExecutionRecord captures one completed Execute call.
type ExecutionRecord struct {
	ID         ulid.ULID
	TaskID     TaskID
	TaskName   string
	Rule       RuleKind
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Directive  DirectiveKind
	Err        error
	Panicked   bool
}

// SchedulerState is the lifecycle state of a Scheduler.
type SchedulerState int32

const (
	StateIdle SchedulerState = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s SchedulerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SchedulerStats represents runtime observability state for a scheduler.
type SchedulerStats struct {
	ID         string
	Name       string
	State      SchedulerState
	Tasks      int
	Executions uint64
	Failures   uint64
	Panics     uint64
	LastTask   string
	LastTaskAt time.Time
}

// EdgeLag describes one connected channel as seen from its consumer.
type EdgeLag struct {
	Channel  ChannelID
	Sender   SenderName
	Receiver string
	Input    ReceiverChannelID

	// Produced is the sender position, Consumed the receiver position.
	Produced ChannelPosition
	Consumed ChannelPosition

	// External is set when the sending task is not registered with this
	// scheduler and Produced was read through the receiver.
	External bool
}

// Lag is the number of messages produced but not yet consumed.
func (e EdgeLag) Lag() uint64 {
	if e.Produced <= e.Consumed {
		return 0
	}
	return uint64(e.Produced - e.Consumed)
}
