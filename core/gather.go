package core

import "context"

// Gather fans several inputs in to one output.
type Gather[In, Out any] interface {
	Process(ctx context.Context, ins []*Endpoint[In], out *Sender[Message[Out]]) Directive
}

// GatherFunc adapts a function to Gather.
type GatherFunc[In, Out any] func(ctx context.Context, ins []*Endpoint[In], out *Sender[Message[Out]]) Directive

func (f GatherFunc[In, Out]) Process(ctx context.Context, ins []*Endpoint[In], out *Sender[Message[Out]]) Directive {
	return f(ctx, ins, out)
}

// GatherTask wraps a Gather: n inputs, one output.
type GatherTask[In, Out any] struct {
	name string
	proc Gather[In, Out]
	ins  []*Endpoint[In]
	out  *Sender[Message[Out]]
}

var (
	_ Task              = (*GatherTask[int, int])(nil)
	_ ConnectableN[int] = (*GatherTask[int, int])(nil)
)

// NewGather creates a gather task with n unconnected inputs and returns the
// unconnected endpoint of its output.
func NewGather[In, Out any](name string, capacity int, proc Gather[In, Out], n int) (*GatherTask[In, Out], *Endpoint[Out]) {
	tx, rx := NewChannel[Message[Out]](capacity)
	t := &GatherTask[In, Out]{
		name: name,
		proc: proc,
		ins:  newInputs[In](name, max(n, 0)),
		out:  tx,
	}
	return t, newSenderEndpoint(0, rx, name)
}

func (t *GatherTask[In, Out]) Execute(ctx context.Context) Directive {
	return t.proc.Process(ctx, t.ins, t.out)
}

// InputN returns input ch, or ErrNonExistent when out of range.
func (t *GatherTask[In, Out]) InputN(ch ReceiverChannelID) (*Endpoint[In], error) {
	ep := at(t.ins, ch)
	if ep == nil {
		return nil, inputOutOfRange(t.name, ch, len(t.ins))
	}
	return ep, nil
}

func (t *GatherTask[In, Out]) Name() string     { return t.name }
func (t *GatherTask[In, Out]) InputCount() int  { return len(t.ins) }
func (t *GatherTask[In, Out]) OutputCount() int { return 1 }

func (t *GatherTask[In, Out]) InputID(ch ReceiverChannelID) (ChannelID, SenderName, bool) {
	return endpointInputID(at(t.ins, ch))
}

func (t *GatherTask[In, Out]) InputChannelPos(ch ReceiverChannelID) ChannelPosition {
	return endpointSeqno(at(t.ins, ch))
}

func (t *GatherTask[In, Out]) InputAvailablePos(ch ReceiverChannelID) ChannelPosition {
	return endpointAvailable(at(t.ins, ch))
}

func (t *GatherTask[In, Out]) OutputChannelPos(ch SenderChannelID) ChannelPosition {
	if ch != 0 {
		return 0
	}
	return senderPos(t.out)
}
