package core

import "context"

// Scatter fans one input out to several outputs.
type Scatter[In, Out any] interface {
	Process(ctx context.Context, in *Endpoint[In], outs []*Sender[Message[Out]]) Directive
}

// ScatterFunc adapts a function to Scatter.
type ScatterFunc[In, Out any] func(ctx context.Context, in *Endpoint[In], outs []*Sender[Message[Out]]) Directive

func (f ScatterFunc[In, Out]) Process(ctx context.Context, in *Endpoint[In], outs []*Sender[Message[Out]]) Directive {
	return f(ctx, in, outs)
}

// ScatterTask wraps a Scatter: one input, n outputs, one channel per output.
type ScatterTask[In, Out any] struct {
	name string
	proc Scatter[In, Out]
	in   *Endpoint[In]
	outs []*Sender[Message[Out]]
}

var (
	_ Task             = (*ScatterTask[int, int])(nil)
	_ Connectable[int] = (*ScatterTask[int, int])(nil)
)

// NewScatter creates a scatter task with n outputs and returns their
// unconnected endpoints in output order.
func NewScatter[In, Out any](name string, capacity int, proc Scatter[In, Out], n int) (*ScatterTask[In, Out], []*Endpoint[Out]) {
	txs, eps := newOutputs[Out](name, capacity, max(n, 0))
	t := &ScatterTask[In, Out]{
		name: name,
		proc: proc,
		in:   newReceiverEndpoint[In](0, name),
		outs: txs,
	}
	return t, eps
}

func (t *ScatterTask[In, Out]) Execute(ctx context.Context) Directive {
	return t.proc.Process(ctx, t.in, t.outs)
}

func (t *ScatterTask[In, Out]) Input() *Endpoint[In] { return t.in }

func (t *ScatterTask[In, Out]) Name() string     { return t.name }
func (t *ScatterTask[In, Out]) InputCount() int  { return 1 }
func (t *ScatterTask[In, Out]) OutputCount() int { return len(t.outs) }

func (t *ScatterTask[In, Out]) InputID(ch ReceiverChannelID) (ChannelID, SenderName, bool) {
	return endpointInputID(single(t.in, ch))
}

func (t *ScatterTask[In, Out]) InputChannelPos(ch ReceiverChannelID) ChannelPosition {
	return endpointSeqno(single(t.in, ch))
}

func (t *ScatterTask[In, Out]) InputAvailablePos(ch ReceiverChannelID) ChannelPosition {
	return endpointAvailable(single(t.in, ch))
}

func (t *ScatterTask[In, Out]) OutputChannelPos(ch SenderChannelID) ChannelPosition {
	return senderPos(senderAt(t.outs, ch))
}
