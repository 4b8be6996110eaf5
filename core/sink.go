package core

import "context"

// Sink consumes one input.
type Sink[In any] interface {
	Process(ctx context.Context, in *Endpoint[In]) Directive
}

// SinkFunc adapts a function to Sink.
type SinkFunc[In any] func(ctx context.Context, in *Endpoint[In]) Directive

func (f SinkFunc[In]) Process(ctx context.Context, in *Endpoint[In]) Directive {
	return f(ctx, in)
}

// SinkTask wraps a Sink: one input, no outputs. A failing sink reports it
// with Fail(err).
type SinkTask[In any] struct {
	name string
	proc Sink[In]
	in   *Endpoint[In]
}

var (
	_ Task             = (*SinkTask[int])(nil)
	_ Connectable[int] = (*SinkTask[int])(nil)
)

// NewSink creates a sink task with an unconnected input.
func NewSink[In any](name string, proc Sink[In]) *SinkTask[In] {
	return &SinkTask[In]{
		name: name,
		proc: proc,
		in:   newReceiverEndpoint[In](0, name),
	}
}

func (t *SinkTask[In]) Execute(ctx context.Context) Directive {
	return t.proc.Process(ctx, t.in)
}

func (t *SinkTask[In]) Input() *Endpoint[In] { return t.in }

func (t *SinkTask[In]) Name() string     { return t.name }
func (t *SinkTask[In]) InputCount() int  { return 1 }
func (t *SinkTask[In]) OutputCount() int { return 0 }

func (t *SinkTask[In]) InputID(ch ReceiverChannelID) (ChannelID, SenderName, bool) {
	return endpointInputID(single(t.in, ch))
}

func (t *SinkTask[In]) InputChannelPos(ch ReceiverChannelID) ChannelPosition {
	return endpointSeqno(single(t.in, ch))
}

func (t *SinkTask[In]) InputAvailablePos(ch ReceiverChannelID) ChannelPosition {
	return endpointAvailable(single(t.in, ch))
}

func (t *SinkTask[In]) OutputChannelPos(SenderChannelID) ChannelPosition { return 0 }
