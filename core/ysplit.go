package core

import "context"

// YSplit splits one input into two distinctly typed outputs.
type YSplit[In, A, B any] interface {
	Process(ctx context.Context, in *Endpoint[In], outA *Sender[Message[A]], outB *Sender[Message[B]]) Directive
}

// YSplitFunc adapts a function to YSplit.
type YSplitFunc[In, A, B any] func(ctx context.Context, in *Endpoint[In], outA *Sender[Message[A]], outB *Sender[Message[B]]) Directive

func (f YSplitFunc[In, A, B]) Process(ctx context.Context, in *Endpoint[In], outA *Sender[Message[A]], outB *Sender[Message[B]]) Directive {
	return f(ctx, in, outA, outB)
}

// YSplitTask wraps a YSplit: one input, outputs 0 (A) and 1 (B).
type YSplitTask[In, A, B any] struct {
	name string
	proc YSplit[In, A, B]
	in   *Endpoint[In]
	outA *Sender[Message[A]]
	outB *Sender[Message[B]]
}

var (
	_ Task             = (*YSplitTask[int, int, string])(nil)
	_ Connectable[int] = (*YSplitTask[int, int, string])(nil)
)

// NewYSplit creates a split task with an unconnected input and returns the
// unconnected endpoints of outputs A and B.
func NewYSplit[In, A, B any](name string, capacityA, capacityB int, proc YSplit[In, A, B]) (*YSplitTask[In, A, B], *Endpoint[A], *Endpoint[B]) {
	txA, rxA := NewChannel[Message[A]](capacityA)
	txB, rxB := NewChannel[Message[B]](capacityB)
	t := &YSplitTask[In, A, B]{
		name: name,
		proc: proc,
		in:   newReceiverEndpoint[In](0, name),
		outA: txA,
		outB: txB,
	}
	return t, newSenderEndpoint(0, rxA, name), newSenderEndpoint(1, rxB, name)
}

func (t *YSplitTask[In, A, B]) Execute(ctx context.Context) Directive {
	return t.proc.Process(ctx, t.in, t.outA, t.outB)
}

func (t *YSplitTask[In, A, B]) Input() *Endpoint[In] { return t.in }

func (t *YSplitTask[In, A, B]) Name() string     { return t.name }
func (t *YSplitTask[In, A, B]) InputCount() int  { return 1 }
func (t *YSplitTask[In, A, B]) OutputCount() int { return 2 }

func (t *YSplitTask[In, A, B]) InputID(ch ReceiverChannelID) (ChannelID, SenderName, bool) {
	return endpointInputID(single(t.in, ch))
}

func (t *YSplitTask[In, A, B]) InputChannelPos(ch ReceiverChannelID) ChannelPosition {
	return endpointSeqno(single(t.in, ch))
}

func (t *YSplitTask[In, A, B]) InputAvailablePos(ch ReceiverChannelID) ChannelPosition {
	return endpointAvailable(single(t.in, ch))
}

func (t *YSplitTask[In, A, B]) OutputChannelPos(ch SenderChannelID) ChannelPosition {
	switch ch {
	case 0:
		return senderPos(t.outA)
	case 1:
		return senderPos(t.outB)
	}
	return 0
}
