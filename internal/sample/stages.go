// Package sample holds ready-made pipeline stages used by tests, examples and
// the measurement harness.
package sample

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-lossyflow/core"
)

// UnconnectedDelay is how long a stage backs off when its input has no sender.
const UnconnectedDelay = 10 * time.Millisecond

// Counter is a source emitting 1, 2, 3, ... Burst values per execution. Once
// Limit values have been sent it asks the scheduler to stop; zero Limit means
// unbounded.
type Counter struct {
	Limit int
	Burst int

	n int
}

func (c *Counter) Process(ctx context.Context, out *core.Sender[core.Message[int]]) core.Directive {
	burst := max(c.Burst, 1)
	for range burst {
		if c.Limit > 0 && c.n >= c.Limit {
			return core.StopAll()
		}
		c.n++
		out.Send(core.ValueMsg(c.n))
	}
	return core.Continue()
}

// Sent returns how many values have been emitted so far.
func (c *Counter) Sent() int { return c.n }

// NewCounter creates a counting source task.
func NewCounter(name string, capacity, limit int) (*core.SourceTask[int], *core.Endpoint[int], *Counter) {
	c := &Counter{Limit: limit}
	task, out := core.NewSource[int](name, capacity, c)
	return task, out, c
}

// Identity forwards every message unchanged, acks and errors included.
type Identity[T any] struct{}

func (Identity[T]) Process(ctx context.Context, in *core.Endpoint[T], out *core.Sender[core.Message[T]]) core.Directive {
	if !in.IsConnected() {
		return core.SleepFor(UnconnectedDelay)
	}
	for msg := range in.Iter() {
		out.Send(msg)
	}
	return core.Continue()
}

// NewIdentity creates an identity filter task.
func NewIdentity[T any](name string, capacity int) (*core.FilterTask[T, T], *core.Endpoint[T]) {
	return core.NewFilter[T, T](name, capacity, Identity[T]{})
}

// RoundRobin scatters values over its outputs in turn. Non-value messages are
// copied to every output.
type RoundRobin[T any] struct {
	next int
}

func (r *RoundRobin[T]) Process(ctx context.Context, in *core.Endpoint[T], outs []*core.Sender[core.Message[T]]) core.Directive {
	if !in.IsConnected() {
		return core.SleepFor(UnconnectedDelay)
	}
	if len(outs) == 0 {
		for range in.Iter() {
		}
		return core.Continue()
	}
	for msg := range in.Iter() {
		if msg.Kind != core.KindValue {
			for _, out := range outs {
				out.Send(msg)
			}
			continue
		}
		outs[r.next].Send(msg)
		r.next = (r.next + 1) % len(outs)
	}
	return core.Continue()
}

// NewRoundRobin creates a round-robin scatter task with n outputs.
func NewRoundRobin[T any](name string, capacity, n int) (*core.ScatterTask[T, T], []*core.Endpoint[T]) {
	return core.NewScatter[T, T](name, capacity, &RoundRobin[T]{}, n)
}

// Interleave undoes RoundRobin: it takes one message from each input in turn
// and stops at the first input with nothing pending, resuming from that input
// on the next execution. A non-value message is forwarded once and the copies
// RoundRobin placed on the other inputs are dropped as they come up. When no
// input is connected the stage backs off.
type Interleave[T any] struct {
	next int
	// owed counts broadcast copies still expected at the head of each input.
	owed []int
}

func (g *Interleave[T]) Process(ctx context.Context, ins []*core.Endpoint[T], out *core.Sender[core.Message[T]]) core.Directive {
	connected := false
	for _, in := range ins {
		if in.IsConnected() {
			connected = true
			break
		}
	}
	if !connected {
		return core.SleepFor(UnconnectedDelay)
	}
	if len(g.owed) != len(ins) {
		g.owed = make([]int, len(ins))
		g.next = 0
	}
	for {
		msg, ok := takeOne(ins[g.next])
		if !ok {
			break
		}
		if msg.Kind != core.KindValue {
			if g.owed[g.next] > 0 {
				g.owed[g.next]--
				continue
			}
			out.Send(msg)
			for i := range g.owed {
				if i != g.next {
					g.owed[i]++
				}
			}
			continue
		}
		// A value ahead of an owed copy means the copy was overwritten.
		g.owed[g.next] = 0
		out.Send(msg)
		g.next = (g.next + 1) % len(ins)
	}
	return core.Continue()
}

// takeOne consumes at most one pending message from in.
func takeOne[T any](in *core.Endpoint[T]) (core.Message[T], bool) {
	for msg := range in.Iter() {
		return msg, true
	}
	return core.Message[T]{}, false
}

// NewInterleave creates a gather task with n inputs that restores the order
// of a RoundRobin scatter with n outputs.
func NewInterleave[T any](name string, capacity, n int) (*core.GatherTask[T, T], *core.Endpoint[T]) {
	return core.NewGather[T, T](name, capacity, &Interleave[T]{}, n)
}

// Pair is the output of Zip.
type Pair[A, B any] struct {
	A A
	B B
}

// Zip pairs values from its two inputs in arrival order. Values waiting for a
// partner are buffered up to Window per side; older ones are dropped, keeping
// the stage lossy like the channels around it.
type Zip[A, B any] struct {
	Window int

	as []A
	bs []B
}

func (z *Zip[A, B]) Process(ctx context.Context, inA *core.Endpoint[A], inB *core.Endpoint[B], out *core.Sender[core.Message[Pair[A, B]]]) core.Directive {
	if !inA.IsConnected() && !inB.IsConnected() {
		return core.SleepFor(UnconnectedDelay)
	}
	window := max(z.Window, 1)
	for msg := range inA.Iter() {
		if v, ok := msg.IsValue(); ok {
			z.as = appendBounded(z.as, v, window)
		}
	}
	for msg := range inB.Iter() {
		if v, ok := msg.IsValue(); ok {
			z.bs = appendBounded(z.bs, v, window)
		}
	}
	n := min(len(z.as), len(z.bs))
	for i := range n {
		out.Send(core.ValueMsg(Pair[A, B]{A: z.as[i], B: z.bs[i]}))
	}
	z.as = z.as[n:]
	z.bs = z.bs[n:]
	return core.Continue()
}

func appendBounded[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = append(s[:0], s[len(s)-limit:]...)
	}
	return s
}

// NewZip creates a zip merge task.
func NewZip[A, B any](name string, capacity, window int) (*core.YMergeTask[A, B, Pair[A, B]], *core.Endpoint[Pair[A, B]]) {
	return core.NewYMerge[A, B, Pair[A, B]](name, capacity, &Zip[A, B]{Window: window})
}

// Parity splits integers into even (output A) and odd (output B) streams.
// Non-value messages go to both outputs.
type Parity struct{}

func (Parity) Process(ctx context.Context, in *core.Endpoint[int], even, odd *core.Sender[core.Message[int]]) core.Directive {
	if !in.IsConnected() {
		return core.SleepFor(UnconnectedDelay)
	}
	for msg := range in.Iter() {
		v, ok := msg.IsValue()
		switch {
		case !ok:
			even.Send(msg)
			odd.Send(msg)
		case v%2 == 0:
			even.Send(msg)
		default:
			odd.Send(msg)
		}
	}
	return core.Continue()
}

// NewParity creates a parity split task.
func NewParity(name string, capacity int) (*core.YSplitTask[int, int, int], *core.Endpoint[int], *core.Endpoint[int]) {
	return core.NewYSplit[int, int, int](name, capacity, capacity, Parity{})
}

// Collector is a sink keeping every message it has received. It is safe to
// read from other goroutines while the pipeline runs.
type Collector[T any] struct {
	mu     sync.Mutex
	values []T
	other  []core.Message[T]
	notify chan struct{}
}

// NewCollector creates a collecting sink task.
func NewCollector[T any](name string) (*core.SinkTask[T], *Collector[T]) {
	c := &Collector[T]{notify: make(chan struct{}, 1)}
	return core.NewSink[T](name, c), c
}

func (c *Collector[T]) Process(ctx context.Context, in *core.Endpoint[T]) core.Directive {
	if !in.IsConnected() {
		return core.SleepFor(UnconnectedDelay)
	}
	received := false
	c.mu.Lock()
	for msg := range in.Iter() {
		received = true
		if v, ok := msg.IsValue(); ok {
			c.values = append(c.values, v)
		} else {
			c.other = append(c.other, msg)
		}
	}
	c.mu.Unlock()
	if received {
		select {
		case c.notify <- struct{}{}:
		default:
		}
	}
	return core.Continue()
}

// Values returns a copy of the values received so far.
func (c *Collector[T]) Values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.values...)
}

// Others returns a copy of the non-value messages received so far.
func (c *Collector[T]) Others() []core.Message[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Message[T](nil), c.other...)
}

// Len returns the number of values received so far.
func (c *Collector[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// Received is signalled after an execution that consumed at least one message.
func (c *Collector[T]) Received() <-chan struct{} { return c.notify }
