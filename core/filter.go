package core

import "context"

// Filter transforms one input into one output.
type Filter[In, Out any] interface {
	Process(ctx context.Context, in *Endpoint[In], out *Sender[Message[Out]]) Directive
}

// FilterFunc adapts a function to Filter.
type FilterFunc[In, Out any] func(ctx context.Context, in *Endpoint[In], out *Sender[Message[Out]]) Directive

func (f FilterFunc[In, Out]) Process(ctx context.Context, in *Endpoint[In], out *Sender[Message[Out]]) Directive {
	return f(ctx, in, out)
}

// FilterTask wraps a Filter: one input, one output.
type FilterTask[In, Out any] struct {
	name string
	proc Filter[In, Out]
	in   *Endpoint[In]
	out  *Sender[Message[Out]]
}

var (
	_ Task             = (*FilterTask[int, int])(nil)
	_ Connectable[int] = (*FilterTask[int, int])(nil)
)

// NewFilter creates a filter task and the unconnected endpoint of its output.
func NewFilter[In, Out any](name string, capacity int, proc Filter[In, Out]) (*FilterTask[In, Out], *Endpoint[Out]) {
	tx, rx := NewChannel[Message[Out]](capacity)
	t := &FilterTask[In, Out]{
		name: name,
		proc: proc,
		in:   newReceiverEndpoint[In](0, name),
		out:  tx,
	}
	return t, newSenderEndpoint(0, rx, name)
}

func (t *FilterTask[In, Out]) Execute(ctx context.Context) Directive {
	return t.proc.Process(ctx, t.in, t.out)
}

func (t *FilterTask[In, Out]) Input() *Endpoint[In] { return t.in }

func (t *FilterTask[In, Out]) Name() string     { return t.name }
func (t *FilterTask[In, Out]) InputCount() int  { return 1 }
func (t *FilterTask[In, Out]) OutputCount() int { return 1 }

func (t *FilterTask[In, Out]) InputID(ch ReceiverChannelID) (ChannelID, SenderName, bool) {
	return endpointInputID(single(t.in, ch))
}

func (t *FilterTask[In, Out]) InputChannelPos(ch ReceiverChannelID) ChannelPosition {
	return endpointSeqno(single(t.in, ch))
}

func (t *FilterTask[In, Out]) InputAvailablePos(ch ReceiverChannelID) ChannelPosition {
	return endpointAvailable(single(t.in, ch))
}

func (t *FilterTask[In, Out]) OutputChannelPos(ch SenderChannelID) ChannelPosition {
	if ch != 0 {
		return 0
	}
	return senderPos(t.out)
}
