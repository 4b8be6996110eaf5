package core

import "fmt"

// MessageKind tags the content of a Message.
type MessageKind uint8

const (
	// KindEmpty marks a slot that was never written.
	KindEmpty MessageKind = iota
	// KindValue carries a produced item.
	KindValue
	// KindAck acknowledges an inclusive range of positions.
	KindAck
	// KindError carries an error tagged with the position it occurred at.
	KindError
)

func (k MessageKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindValue:
		return "value"
	case KindAck:
		return "ack"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is the payload stored in a pipeline channel slot.
// Only the fields belonging to Kind are meaningful.
type Message[T any] struct {
	Kind  MessageKind
	Value T
	Ack   InclusiveRange
	Pos   ChannelPosition
	Err   error
}

// ValueMsg wraps v as a value message.
func ValueMsg[T any](v T) Message[T] {
	return Message[T]{Kind: KindValue, Value: v}
}

// AckMsg acknowledges positions from..to inclusive.
func AckMsg[T any](from, to ChannelPosition) Message[T] {
	return Message[T]{Kind: KindAck, Ack: InclusiveRange{From: from, To: to}}
}

// ErrorMsg reports err as having occurred at pos. Errors travel downstream
// like ordinary values; neither the channel nor the scheduler inspects them.
func ErrorMsg[T any](pos ChannelPosition, err error) Message[T] {
	return Message[T]{Kind: KindError, Pos: pos, Err: err}
}

// IsValue reports whether m carries a value, returning it.
func (m Message[T]) IsValue() (T, bool) {
	if m.Kind != KindValue {
		var zero T
		return zero, false
	}
	return m.Value, true
}

func (m Message[T]) String() string {
	switch m.Kind {
	case KindValue:
		return fmt.Sprintf("Value(%v)", m.Value)
	case KindAck:
		return fmt.Sprintf("Ack(%d..%d)", m.Ack.From, m.Ack.To)
	case KindError:
		return fmt.Sprintf("Error(%d, %v)", m.Pos, m.Err)
	default:
		return "Empty"
	}
}
