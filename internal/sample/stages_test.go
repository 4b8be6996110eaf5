package sample

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Swind/go-lossyflow/core"
)

func newScheduler() *core.Scheduler {
	return core.NewScheduler(core.WithLogger(core.NewNoOpLogger()))
}

func register(t *testing.T, s *core.Scheduler, task core.Task, rule core.SchedulingRule) {
	t.Helper()
	_, err := s.Register(task, rule)
	require.NoError(t, err)
}

func drive(s *core.Scheduler, steps int) {
	for range steps {
		if _, ok := s.Step(context.Background()); !ok {
			return
		}
	}
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// TestCounter_Limit verifies the counter stops the scheduler at its limit
// Given: A counter with Limit 5 and Burst 2
// When: Process is called until it stops
// Then: Exactly five values are sent and the last call returns StopAll
func TestCounter_Limit(t *testing.T) {
	// Arrange
	tx, rx := core.NewChannel[core.Message[int]](16)
	c := &Counter{Limit: 5, Burst: 2}
	ctx := context.Background()

	// Act
	d1 := c.Process(ctx, tx)
	d2 := c.Process(ctx, tx)
	d3 := c.Process(ctx, tx)

	// Assert
	assert.Equal(t, core.DirectiveContinue, d1.Kind)
	assert.Equal(t, core.DirectiveContinue, d2.Kind)
	assert.Equal(t, core.DirectiveStop, d3.Kind)
	assert.Equal(t, 5, c.Sent())
	var got []int
	for _, msg := range rx.Drain() {
		v, ok := msg.IsValue()
		require.True(t, ok)
		got = append(got, v)
	}
	assert.Equal(t, sequence(5), got)
}

// TestStages_UnconnectedBackOff verifies every consuming stage backs off without input
func TestStages_UnconnectedBackOff(t *testing.T) {
	ctx := context.Background()
	id, _ := NewIdentity[int]("id", 4)
	rr, _ := NewRoundRobin[int]("rr", 4, 2)
	il, _ := NewInterleave[int]("il", 4, 2)
	zip, _ := NewZip[int, int]("zip", 4, 4)
	par, _, _ := NewParity("par", 4)
	col, _ := NewCollector[int]("col")

	for _, task := range []core.Task{id, rr, il, zip, par, col} {
		d := task.Execute(ctx)
		if d.Kind != core.DirectiveSleepFor || d.Delay != UnconnectedDelay {
			t.Errorf("%s: directive = %v, want SleepFor(%v)", task.Name(), d, UnconnectedDelay)
		}
	}
}

// TestPipeline_Identity verifies source -> identity -> sink delivers in order
func TestPipeline_Identity(t *testing.T) {
	// Arrange
	src, out, _ := NewCounter("count", 64, 0)
	id, idOut := NewIdentity[int]("identity", 64)
	sink, col := NewCollector[int]("collect")
	require.NoError(t, core.ConnectTo(out, id))
	require.NoError(t, core.ConnectTo(idOut, sink))

	s := newScheduler()
	register(t, s, src, core.Loop())
	register(t, s, id, core.OnMessage())
	register(t, s, sink, core.OnMessage())

	// Act
	drive(s, 60)

	// Assert
	got := col.Values()
	require.NotEmpty(t, got)
	assert.Equal(t, sequence(len(got)), got)
}

// TestPipeline_ScatterGather verifies values survive a round-robin fan-out and interleaved fan-in
// Given: counter -> round-robin(3) -> three identities -> interleave(3) -> collector
// When: The scheduler runs for a while
// Then: The collector holds a gap-free prefix of the counter in counter order
func TestPipeline_ScatterGather(t *testing.T) {
	// Arrange
	src, out, _ := NewCounter("count", 64, 0)
	rr, rrOuts := NewRoundRobin[int]("rr", 64, 3)
	gather, gOut := NewInterleave[int]("gather", 64, 3)
	sink, col := NewCollector[int]("collect")
	require.NoError(t, core.ConnectTo(out, rr))

	s := newScheduler()
	register(t, s, src, core.Loop())
	register(t, s, rr, core.OnMessage())
	for i, ep := range rrOuts {
		id, idOut := NewIdentity[int]("lane"+string(rune('a'+i)), 64)
		require.NoError(t, core.ConnectTo(ep, id))
		require.NoError(t, core.ConnectToN(idOut, gather, core.ReceiverChannelID(i)))
		register(t, s, id, core.OnMessage())
	}
	require.NoError(t, core.ConnectTo(gOut, sink))
	register(t, s, gather, core.OnMessage())
	register(t, s, sink, core.OnMessage())

	// Act
	drive(s, 200)

	// Assert
	got := col.Values()
	require.NotEmpty(t, got)
	assert.Equal(t, sequence(len(got)), got)
}

// TestInterleave_RestoresRoundRobinOrder verifies the gather inverts the scatter
// Given: A counter sending 1..6 into round-robin(3) wired straight into interleave(3)
// When: Each task executes once in pipeline order
// Then: The collector receives 1..6 in counter order
func TestInterleave_RestoresRoundRobinOrder(t *testing.T) {
	// Arrange
	src, out, counter := NewCounter("count", 8, 6)
	counter.Burst = 6
	rr, rrOuts := NewRoundRobin[int]("rr", 8, 3)
	gather, gOut := NewInterleave[int]("gather", 8, 3)
	sink, col := NewCollector[int]("collect")
	require.NoError(t, core.ConnectTo(out, rr))
	for i, ep := range rrOuts {
		require.NoError(t, core.ConnectToN(ep, gather, core.ReceiverChannelID(i)))
	}
	require.NoError(t, core.ConnectTo(gOut, sink))
	ctx := context.Background()

	// Act
	src.Execute(ctx)
	rr.Execute(ctx)
	gather.Execute(ctx)
	sink.Execute(ctx)

	// Assert
	assert.Equal(t, sequence(6), col.Values())
}

// TestInterleave_ResumesAtEmptyInput verifies the gather waits for the lane it stopped on
// Given: Two inputs where input 1 has nothing pending on the first execution
// When: The gather runs, input 1 receives a value, and the gather runs again
// Then: Input 0's second value is held back until input 1 has delivered
func TestInterleave_ResumesAtEmptyInput(t *testing.T) {
	// Arrange
	var pending [2][]int
	gather, gOut := NewInterleave[int]("gather", 8, 2)
	var lanes [2]*core.SourceTask[int]
	for i := range lanes {
		task, out := core.NewSource[int]("lane"+string(rune('a'+i)), 4, core.SourceFunc[int](
			func(ctx context.Context, o *core.Sender[core.Message[int]]) core.Directive {
				for _, v := range pending[i] {
					o.Send(core.ValueMsg(v))
				}
				pending[i] = nil
				return core.Continue()
			}))
		require.NoError(t, core.ConnectToN(out, gather, core.ReceiverChannelID(i)))
		lanes[i] = task
	}
	sink, col := NewCollector[int]("collect")
	require.NoError(t, core.ConnectTo(gOut, sink))
	ctx := context.Background()
	run := func() {
		lanes[0].Execute(ctx)
		lanes[1].Execute(ctx)
		gather.Execute(ctx)
		sink.Execute(ctx)
	}

	// Act
	pending[0] = []int{1, 3}
	run()
	first := col.Values()
	pending[1] = []int{2}
	run()

	// Assert
	assert.Equal(t, []int{1}, first)
	assert.Equal(t, []int{1, 2, 3}, col.Values())
}

// TestInterleave_ForwardsBroadcastOnce verifies broadcast copies collapse back into one message
// Given: A round-robin(2) fed an error followed by 10, 11, 12
// When: The interleave(2) gathers both outputs
// Then: The error is forwarded once and the values keep their order
func TestInterleave_ForwardsBroadcastOnce(t *testing.T) {
	// Arrange
	boom := errors.New("boom")
	src, out := core.NewSource[int]("src", 8, core.SourceFunc[int](
		func(ctx context.Context, o *core.Sender[core.Message[int]]) core.Directive {
			o.Send(core.ErrorMsg[int](1, boom))
			o.Send(core.ValueMsg(10))
			o.Send(core.ValueMsg(11))
			o.Send(core.ValueMsg(12))
			return core.StopAll()
		}))
	rr, outs := NewRoundRobin[int]("rr", 8, 2)
	gather, gOut := NewInterleave[int]("gather", 8, 2)
	sink, col := NewCollector[int]("collect")
	require.NoError(t, core.ConnectTo(out, rr))
	for i, ep := range outs {
		require.NoError(t, core.ConnectToN(ep, gather, core.ReceiverChannelID(i)))
	}
	require.NoError(t, core.ConnectTo(gOut, sink))
	ctx := context.Background()

	// Act
	src.Execute(ctx)
	rr.Execute(ctx)
	gather.Execute(ctx)
	sink.Execute(ctx)

	// Assert
	assert.Equal(t, []int{10, 11, 12}, col.Values())
	require.Len(t, col.Others(), 1)
	assert.ErrorIs(t, col.Others()[0].Err, boom)
}

// TestRoundRobin_BroadcastsNonValues verifies acks and errors reach every output
func TestRoundRobin_BroadcastsNonValues(t *testing.T) {
	boom := errors.New("boom")
	src, out := core.NewSource[int]("src", 8, core.SourceFunc[int](
		func(ctx context.Context, o *core.Sender[core.Message[int]]) core.Directive {
			o.Send(core.ErrorMsg[int](1, boom))
			o.Send(core.ValueMsg(10))
			o.Send(core.ValueMsg(11))
			return core.StopAll()
		}))
	rr, outs := NewRoundRobin[int]("rr", 8, 2)
	require.NoError(t, core.ConnectTo(out, rr))
	sinkA, colA := NewCollector[int]("a")
	sinkB, colB := NewCollector[int]("b")
	require.NoError(t, core.ConnectTo(outs[0], sinkA))
	require.NoError(t, core.ConnectTo(outs[1], sinkB))

	ctx := context.Background()
	src.Execute(ctx)
	rr.Execute(ctx)
	sinkA.Execute(ctx)
	sinkB.Execute(ctx)

	assert.Equal(t, []int{10}, colA.Values())
	assert.Equal(t, []int{11}, colB.Values())
	require.Len(t, colA.Others(), 1)
	require.Len(t, colB.Others(), 1)
	assert.ErrorIs(t, colA.Others()[0].Err, boom)
}

// TestPipeline_Zip verifies two counters are paired in arrival order
func TestPipeline_Zip(t *testing.T) {
	srcA, outA, _ := NewCounter("a", 64, 0)
	srcB, outB, _ := NewCounter("b", 64, 0)
	zip, zOut := NewZip[int, int]("zip", 64, 64)
	sink, col := NewCollector[Pair[int, int]]("collect")
	require.NoError(t, core.ConnectToA(outA, zip))
	require.NoError(t, core.ConnectToB(outB, zip))
	require.NoError(t, core.ConnectTo(zOut, sink))

	s := newScheduler()
	register(t, s, srcA, core.Loop())
	register(t, s, srcB, core.Loop())
	register(t, s, zip, core.OnMessage())
	register(t, s, sink, core.OnMessage())

	drive(s, 80)

	got := col.Values()
	require.NotEmpty(t, got)
	for i, p := range got {
		want := Pair[int, int]{A: i + 1, B: i + 1}
		if p != want {
			t.Fatalf("pair[%d] = %v, want %v", i, p, want)
		}
	}
}

func TestZip_WindowDropsOldest(t *testing.T) {
	assert.Equal(t, []int{3, 4}, appendBounded([]int{2, 3}, 4, 2))
	assert.Equal(t, []int{1}, appendBounded(nil, 1, 2))
}

// TestPipeline_Parity verifies the split sends evens to A and odds to B
func TestPipeline_Parity(t *testing.T) {
	src, out, counter := NewCounter("count", 64, 0)
	par, even, odd := NewParity("parity", 64)
	sinkE, colE := NewCollector[int]("even")
	sinkO, colO := NewCollector[int]("odd")
	require.NoError(t, core.ConnectTo(out, par))
	require.NoError(t, core.ConnectTo(even, sinkE))
	require.NoError(t, core.ConnectTo(odd, sinkO))

	s := newScheduler()
	register(t, s, src, core.Loop())
	register(t, s, par, core.OnMessage())
	register(t, s, sinkE, core.OnMessage())
	register(t, s, sinkO, core.OnMessage())

	drive(s, 100)

	for _, v := range colE.Values() {
		assert.Zero(t, v%2, "even output got %d", v)
	}
	for _, v := range colO.Values() {
		assert.Equal(t, 1, v%2, "odd output got %d", v)
	}
	assert.NotZero(t, colE.Len())
	assert.NotZero(t, colO.Len())
	assert.LessOrEqual(t, colE.Len()+colO.Len(), counter.Sent())
}

func TestCollector_ReceivedSignal(t *testing.T) {
	src, out, _ := NewCounter("count", 4, 1)
	sink, col := NewCollector[int]("collect")
	require.NoError(t, core.ConnectTo(out, sink))

	ctx := context.Background()
	src.Execute(ctx)
	sink.Execute(ctx)

	select {
	case <-col.Received():
	default:
		t.Fatal("Received() was not signalled")
	}
	assert.Equal(t, []int{1}, col.Values())
}
