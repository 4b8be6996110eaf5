package core

import "context"

// YMerge combines two distinctly typed inputs into one output.
type YMerge[A, B, Out any] interface {
	Process(ctx context.Context, inA *Endpoint[A], inB *Endpoint[B], out *Sender[Message[Out]]) Directive
}

// YMergeFunc adapts a function to YMerge.
type YMergeFunc[A, B, Out any] func(ctx context.Context, inA *Endpoint[A], inB *Endpoint[B], out *Sender[Message[Out]]) Directive

func (f YMergeFunc[A, B, Out]) Process(ctx context.Context, inA *Endpoint[A], inB *Endpoint[B], out *Sender[Message[Out]]) Directive {
	return f(ctx, inA, inB, out)
}

// YMergeTask wraps a YMerge: inputs 0 (A) and 1 (B), one output.
type YMergeTask[A, B, Out any] struct {
	name string
	proc YMerge[A, B, Out]
	inA  *Endpoint[A]
	inB  *Endpoint[B]
	out  *Sender[Message[Out]]
}

var (
	_ Task                      = (*YMergeTask[int, string, int])(nil)
	_ ConnectableY[int, string] = (*YMergeTask[int, string, int])(nil)
)

// NewYMerge creates a merge task with two unconnected inputs and returns the
// unconnected endpoint of its output.
func NewYMerge[A, B, Out any](name string, capacity int, proc YMerge[A, B, Out]) (*YMergeTask[A, B, Out], *Endpoint[Out]) {
	tx, rx := NewChannel[Message[Out]](capacity)
	t := &YMergeTask[A, B, Out]{
		name: name,
		proc: proc,
		inA:  newReceiverEndpoint[A](0, name),
		inB:  newReceiverEndpoint[B](1, name),
		out:  tx,
	}
	return t, newSenderEndpoint(0, rx, name)
}

func (t *YMergeTask[A, B, Out]) Execute(ctx context.Context) Directive {
	return t.proc.Process(ctx, t.inA, t.inB, t.out)
}

func (t *YMergeTask[A, B, Out]) InputA() *Endpoint[A] { return t.inA }
func (t *YMergeTask[A, B, Out]) InputB() *Endpoint[B] { return t.inB }

func (t *YMergeTask[A, B, Out]) Name() string     { return t.name }
func (t *YMergeTask[A, B, Out]) InputCount() int  { return 2 }
func (t *YMergeTask[A, B, Out]) OutputCount() int { return 1 }

func (t *YMergeTask[A, B, Out]) InputID(ch ReceiverChannelID) (ChannelID, SenderName, bool) {
	switch ch {
	case 0:
		return endpointInputID(t.inA)
	case 1:
		return endpointInputID(t.inB)
	}
	return ChannelID{}, "", false
}

func (t *YMergeTask[A, B, Out]) InputChannelPos(ch ReceiverChannelID) ChannelPosition {
	switch ch {
	case 0:
		return endpointSeqno(t.inA)
	case 1:
		return endpointSeqno(t.inB)
	}
	return 0
}

func (t *YMergeTask[A, B, Out]) InputAvailablePos(ch ReceiverChannelID) ChannelPosition {
	switch ch {
	case 0:
		return endpointAvailable(t.inA)
	case 1:
		return endpointAvailable(t.inB)
	}
	return 0
}

func (t *YMergeTask[A, B, Out]) OutputChannelPos(ch SenderChannelID) ChannelPosition {
	if ch != 0 {
		return 0
	}
	return senderPos(t.out)
}
