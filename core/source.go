package core

import "context"

// Source produces into one output.
type Source[Out any] interface {
	Process(ctx context.Context, out *Sender[Message[Out]]) Directive
}

// SourceFunc adapts a function to Source.
type SourceFunc[Out any] func(ctx context.Context, out *Sender[Message[Out]]) Directive

func (f SourceFunc[Out]) Process(ctx context.Context, out *Sender[Message[Out]]) Directive {
	return f(ctx, out)
}

// SourceTask wraps a Source: no inputs, one output.
type SourceTask[Out any] struct {
	name string
	proc Source[Out]
	out  *Sender[Message[Out]]
}

var _ Task = (*SourceTask[int])(nil)

// NewSource creates a source task and the unconnected endpoint of its output
// channel, which holds at most capacity unread messages.
func NewSource[Out any](name string, capacity int, proc Source[Out]) (*SourceTask[Out], *Endpoint[Out]) {
	tx, rx := NewChannel[Message[Out]](capacity)
	return &SourceTask[Out]{name: name, proc: proc, out: tx}, newSenderEndpoint(0, rx, name)
}

func (t *SourceTask[Out]) Execute(ctx context.Context) Directive {
	return t.proc.Process(ctx, t.out)
}

func (t *SourceTask[Out]) Name() string     { return t.name }
func (t *SourceTask[Out]) InputCount() int  { return 0 }
func (t *SourceTask[Out]) OutputCount() int { return 1 }

func (t *SourceTask[Out]) InputID(ReceiverChannelID) (ChannelID, SenderName, bool) {
	return ChannelID{}, "", false
}

func (t *SourceTask[Out]) InputChannelPos(ReceiverChannelID) ChannelPosition   { return 0 }
func (t *SourceTask[Out]) InputAvailablePos(ReceiverChannelID) ChannelPosition { return 0 }

func (t *SourceTask[Out]) OutputChannelPos(ch SenderChannelID) ChannelPosition {
	if ch != 0 {
		return 0
	}
	return senderPos(t.out)
}
