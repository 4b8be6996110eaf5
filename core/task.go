package core

import (
	"context"
	"fmt"
	"time"
)

// Task is one schedulable unit of the pipeline graph.
//
// Execute runs on the scheduler goroutine and is never interrupted; the
// position accessors may be called from other goroutines and only read
// atomic counters.
type Task interface {
	Execute(ctx context.Context) Directive
	Name() string
	InputCount() int
	OutputCount() int

	// InputID reports which channel feeds input ch and who owns its sending
	// side. ok is false when ch is out of range or not connected.
	InputID(ch ReceiverChannelID) (id ChannelID, sender SenderName, ok bool)

	// InputChannelPos is the consumed position of input ch.
	InputChannelPos(ch ReceiverChannelID) ChannelPosition

	// InputAvailablePos is the producer position seen through input ch.
	InputAvailablePos(ch ReceiverChannelID) ChannelPosition

	// OutputChannelPos is the produced position of output ch.
	OutputChannelPos(ch SenderChannelID) ChannelPosition
}

// =============================================================================
// Directive: what the scheduler does after an execution
// =============================================================================

type DirectiveKind int

const (
	// DirectiveContinue keeps the task eligible according to its rule.
	DirectiveContinue DirectiveKind = iota

	// DirectiveSleepFor defers the task for a duration measured from the end
	// of the execution.
	DirectiveSleepFor

	// DirectiveSleepUntil defers the task until an absolute time.
	DirectiveSleepUntil

	// DirectiveStop asks the scheduler to stop after this execution.
	DirectiveStop

	// DirectiveFail reports a task-level failure. Scheduling continues as for
	// DirectiveContinue.
	DirectiveFail
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveContinue:
		return "continue"
	case DirectiveSleepFor:
		return "sleep_for"
	case DirectiveSleepUntil:
		return "sleep_until"
	case DirectiveStop:
		return "stop"
	case DirectiveFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Directive is returned by every execution.
type Directive struct {
	Kind  DirectiveKind
	Delay time.Duration
	At    time.Time
	Err   error
}

func Continue() Directive { return Directive{Kind: DirectiveContinue} }

func SleepFor(d time.Duration) Directive { return Directive{Kind: DirectiveSleepFor, Delay: d} }

func SleepUntil(t time.Time) Directive { return Directive{Kind: DirectiveSleepUntil, At: t} }

func StopAll() Directive { return Directive{Kind: DirectiveStop} }

func Fail(err error) Directive { return Directive{Kind: DirectiveFail, Err: err} }

// deadline returns when the task may run again, zero meaning no deferral.
func (d Directive) deadline(finishedAt time.Time) time.Time {
	switch d.Kind {
	case DirectiveSleepFor:
		if d.Delay > 0 {
			return finishedAt.Add(d.Delay)
		}
	case DirectiveSleepUntil:
		if d.At.After(finishedAt) {
			return d.At
		}
	}
	return time.Time{}
}

func (d Directive) String() string {
	switch d.Kind {
	case DirectiveSleepFor:
		return fmt.Sprintf("sleep_for(%v)", d.Delay)
	case DirectiveSleepUntil:
		return fmt.Sprintf("sleep_until(%s)", d.At.Format(time.RFC3339Nano))
	case DirectiveFail:
		return fmt.Sprintf("fail(%v)", d.Err)
	default:
		return d.Kind.String()
	}
}

// =============================================================================
// SchedulingRule: when a task is eligible
// =============================================================================

type RuleKind int

const (
	// RuleLoop: always eligible
	RuleLoop RuleKind = iota

	// RuleOnMessage: eligible after an input position advanced
	RuleOnMessage

	// RulePeriodic: eligible once Period elapsed since the last execution
	RulePeriodic

	// RuleOnExternalEvent: eligible after Scheduler.Notify, once per notification
	RuleOnExternalEvent
)

func (k RuleKind) String() string {
	switch k {
	case RuleLoop:
		return "loop"
	case RuleOnMessage:
		return "on_message"
	case RulePeriodic:
		return "periodic"
	case RuleOnExternalEvent:
		return "on_external_event"
	default:
		return "unknown"
	}
}

type SchedulingRule struct {
	Kind   RuleKind
	Period time.Duration
}

func Loop() SchedulingRule { return SchedulingRule{Kind: RuleLoop} }

func OnMessage() SchedulingRule { return SchedulingRule{Kind: RuleOnMessage} }

func Periodic(period time.Duration) SchedulingRule {
	return SchedulingRule{Kind: RulePeriodic, Period: period}
}

// PeriodicUsec mirrors a period given in microseconds.
func PeriodicUsec(usec uint64) SchedulingRule {
	return Periodic(time.Duration(usec) * time.Microsecond)
}

func OnExternalEvent() SchedulingRule { return SchedulingRule{Kind: RuleOnExternalEvent} }

func (r SchedulingRule) String() string {
	if r.Kind == RulePeriodic {
		return fmt.Sprintf("periodic(%v)", r.Period)
	}
	return r.Kind.String()
}

func (r SchedulingRule) validate() error {
	if r.Kind < RuleLoop || r.Kind > RuleOnExternalEvent {
		return AnyError(fmt.Sprintf("unknown scheduling rule %d", r.Kind))
	}
	if r.Kind == RulePeriodic && r.Period <= 0 {
		return AnyError(fmt.Sprintf("periodic rule needs a positive period, got %v", r.Period))
	}
	return nil
}
