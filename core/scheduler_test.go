package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test helpers
// =============================================================================

// fakeTask is a task without inputs or outputs whose behavior is a closure.
type fakeTask struct {
	name string
	runs atomic.Int64
	fn   func(ctx context.Context, n int64) Directive
}

func newFakeTask(name string, fn func(ctx context.Context, n int64) Directive) *fakeTask {
	return &fakeTask{name: name, fn: fn}
}

func (f *fakeTask) Execute(ctx context.Context) Directive {
	n := f.runs.Add(1)
	if f.fn != nil {
		return f.fn(ctx, n)
	}
	return Continue()
}

func (f *fakeTask) Name() string     { return f.name }
func (f *fakeTask) InputCount() int  { return 0 }
func (f *fakeTask) OutputCount() int { return 0 }

func (f *fakeTask) InputID(ReceiverChannelID) (ChannelID, SenderName, bool) {
	return ChannelID{}, "", false
}
func (f *fakeTask) InputChannelPos(ReceiverChannelID) ChannelPosition   { return 0 }
func (f *fakeTask) InputAvailablePos(ReceiverChannelID) ChannelPosition { return 0 }
func (f *fakeTask) OutputChannelPos(SenderChannelID) ChannelPosition    { return 0 }

// recordingMetrics collects what the scheduler reports.
type recordingMetrics struct {
	mu        sync.Mutex
	durations map[string]int
	failures  []error
	panics    []any
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{durations: make(map[string]int)}
}

func (m *recordingMetrics) RecordTaskDuration(schedulerName, taskName string, rule RuleKind, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations[taskName]++
}

func (m *recordingMetrics) RecordTaskPanic(schedulerName, taskName string, panicInfo any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics = append(m.panics, panicInfo)
}

func (m *recordingMetrics) RecordTaskFailure(schedulerName, taskName string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, err)
}

func (m *recordingMetrics) RecordIdle(schedulerName string, d time.Duration) {}

type recordingPanicHandler struct {
	mu    sync.Mutex
	tasks []string
}

func (h *recordingPanicHandler) HandlePanic(ctx context.Context, schedulerName, taskName string, panicInfo any, stack []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks = append(h.tasks, taskName)
}

// fakeClock lets tests move time by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestScheduler(opts ...SchedulerOption) *Scheduler {
	base := []SchedulerOption{WithName("test"), WithLogger(NewNoOpLogger())}
	return NewScheduler(append(base, opts...)...)
}

func withClock(s *Scheduler) *fakeClock {
	c := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.now = c.Now
	return c
}

func stepN(t *testing.T, s *Scheduler, n int) []TaskID {
	t.Helper()
	var ids []TaskID
	for range n {
		id, ok := s.Step(context.Background())
		if !ok {
			break
		}
		ids = append(ids, id)
	}
	return ids
}

// =============================================================================
// Registration
// =============================================================================

// TestScheduler_Register verifies ids and rejection rules
// Given: A new scheduler
// When: Tasks are registered, including a duplicate name and invalid rules
// Then: Ids ascend from 1 and invalid registrations are rejected
func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler()

	id1, err := s.Register(newFakeTask("a", nil), Loop())
	require.NoError(t, err)
	id2, err := s.Register(newFakeTask("b", nil), OnExternalEvent())
	require.NoError(t, err)
	assert.Equal(t, TaskID(1), id1)
	assert.Equal(t, TaskID(2), id2)

	_, err = s.Register(newFakeTask("a", nil), Loop())
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = s.Register(newFakeTask("c", nil), Periodic(0))
	assert.ErrorIs(t, err, ErrAny)

	_, err = s.Register(newFakeTask("d", nil), SchedulingRule{Kind: RuleKind(42)})
	assert.ErrorIs(t, err, ErrAny)

	_, err = s.Register(nil, Loop())
	assert.ErrorIs(t, err, ErrAny)

	assert.Equal(t, 2, s.TaskCount())
	infos := s.Tasks()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, RuleOnExternalEvent, infos[1].Rule.Kind)

	task, id, ok := s.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, id2, id)
	assert.Equal(t, "b", task.Name())
	_, _, ok = s.Lookup("missing")
	assert.False(t, ok)
}

// =============================================================================
// Selection
// =============================================================================

// TestScheduler_LoopRoundRobin verifies deterministic fair ordering
// Given: Three Loop tasks
// When: The scheduler is stepped six times
// Then: Tasks run in ascending id order, cycling
func TestScheduler_LoopRoundRobin(t *testing.T) {
	s := newTestScheduler()
	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Register(newFakeTask(name, nil), Loop())
		require.NoError(t, err)
	}

	ids := stepN(t, s, 6)

	assert.Equal(t, []TaskID{1, 2, 3, 1, 2, 3}, ids)
}

// TestScheduler_OnMessage verifies consumers run only when new data arrived
// Given: An event-driven source feeding an OnMessage sink
// When: The source is notified once
// Then: The sink runs exactly once after the source, then nothing is eligible
func TestScheduler_OnMessage(t *testing.T) {
	// Arrange
	s := newTestScheduler()
	var got []int
	n := 0
	src, out := NewSource("src", 4, SourceFunc[int](func(ctx context.Context, o *Sender[Message[int]]) Directive {
		n++
		o.Send(ValueMsg(n))
		return Continue()
	}))
	snk := NewSink("sink", collect(&got))
	require.NoError(t, ConnectTo(out, snk))

	srcID, err := s.Register(src, OnExternalEvent())
	require.NoError(t, err)
	snkID, err := s.Register(snk, OnMessage())
	require.NoError(t, err)

	// Act & Assert
	_, ok := s.Step(context.Background())
	assert.False(t, ok, "nothing is eligible before the notification")

	require.NoError(t, s.Notify(srcID))
	require.NoError(t, s.Notify(srcID), "notifications collapse")
	assert.Equal(t, []TaskID{srcID, snkID}, stepN(t, s, 5))
	assert.Equal(t, []int{1}, got)

	require.NoError(t, s.Notify(srcID))
	assert.Equal(t, []TaskID{srcID, snkID}, stepN(t, s, 5))
	assert.Equal(t, []int{1, 2}, got)
}

// TestScheduler_OnMessagePendingAtRegister verifies data sent before registration counts
func TestScheduler_OnMessagePendingAtRegister(t *testing.T) {
	s := newTestScheduler()
	var got []int
	tx, rx := NewChannel[Message[int]](4)
	out := newSenderEndpoint(0, rx, "external")
	snk := NewSink("sink", collect(&got))
	require.NoError(t, ConnectTo(out, snk))
	tx.Send(ValueMsg(7))

	id, err := s.Register(snk, OnMessage())
	require.NoError(t, err)

	assert.Equal(t, []TaskID{id}, stepN(t, s, 3))
	assert.Equal(t, []int{7}, got)
}

// TestScheduler_OnMessageWithoutInputs verifies a task with no inputs never runs
func TestScheduler_OnMessageWithoutInputs(t *testing.T) {
	s := newTestScheduler()
	task := newFakeTask("lonely", nil)
	_, err := s.Register(task, OnMessage())
	require.NoError(t, err)

	assert.Empty(t, stepN(t, s, 3))
	assert.Zero(t, task.runs.Load())
}

// TestScheduler_Periodic verifies periodic tasks take priority when due
// Given: A periodic task and a Loop task on a controlled clock
// When: The clock advances past the period
// Then: The periodic task runs first, then only again once due
func TestScheduler_Periodic(t *testing.T) {
	// Arrange
	s := newTestScheduler()
	clock := withClock(s)
	tick := newFakeTask("tick", nil)
	busy := newFakeTask("busy", nil)
	tickID, err := s.Register(tick, Periodic(10*time.Millisecond))
	require.NoError(t, err)
	busyID, err := s.Register(busy, Loop())
	require.NoError(t, err)

	// Act & Assert
	assert.Equal(t, []TaskID{tickID, busyID, busyID}, stepN(t, s, 3))

	clock.Advance(10 * time.Millisecond)
	assert.Equal(t, []TaskID{tickID, busyID}, stepN(t, s, 2))
	assert.Equal(t, int64(2), tick.runs.Load())
}

// TestScheduler_PeriodicMostOverdueFirst verifies ordering among due periodic tasks
func TestScheduler_PeriodicMostOverdueFirst(t *testing.T) {
	s := newTestScheduler()
	clock := withClock(s)
	fast, _ := s.Register(newFakeTask("fast", nil), Periodic(10*time.Millisecond))
	slow, _ := s.Register(newFakeTask("slow", nil), Periodic(20*time.Millisecond))

	// both due at registration: ties go to the lower id
	assert.Equal(t, []TaskID{fast, slow}, stepN(t, s, 3))

	// fast is due at +10ms, slow at +20ms; at +25ms fast is more overdue
	clock.Advance(25 * time.Millisecond)
	assert.Equal(t, []TaskID{fast, slow}, stepN(t, s, 2))
}

// TestScheduler_SleepDirectives verifies deferral after SleepFor and SleepUntil
// Given: A task that asks to sleep after each execution
// When: The clock is advanced
// Then: The task is not eligible until its deadline passes
func TestScheduler_SleepDirectives(t *testing.T) {
	s := newTestScheduler()
	clock := withClock(s)
	sleeper := newFakeTask("sleeper", func(ctx context.Context, n int64) Directive {
		if n == 1 {
			return SleepFor(time.Second)
		}
		return SleepUntil(clock.Now().Add(time.Minute))
	})
	id, err := s.Register(sleeper, Loop())
	require.NoError(t, err)

	assert.Equal(t, []TaskID{id}, stepN(t, s, 2))

	clock.Advance(999 * time.Millisecond)
	assert.Empty(t, stepN(t, s, 1))
	clock.Advance(time.Millisecond)
	assert.Equal(t, []TaskID{id}, stepN(t, s, 2))

	clock.Advance(59 * time.Second)
	assert.Empty(t, stepN(t, s, 1))
	clock.Advance(time.Second)
	assert.Equal(t, []TaskID{id}, stepN(t, s, 1))

	next, ok := s.delays.Next()
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(time.Minute), next)
}

// TestScheduler_NotifyUnknown verifies Notify rejects unknown ids
func TestScheduler_NotifyUnknown(t *testing.T) {
	s := newTestScheduler()
	assert.ErrorIs(t, s.Notify(99), ErrNonExistent)
}

// =============================================================================
// Failures
// =============================================================================

// TestScheduler_PanicRecovery verifies a panicking task does not stop the scheduler
// Given: A task that panics once and a well behaved task
// When: Both are stepped
// Then: The panic is reported and counted as a failure, and scheduling continues
func TestScheduler_PanicRecovery(t *testing.T) {
	// Arrange
	metrics := newRecordingMetrics()
	handler := &recordingPanicHandler{}
	s := newTestScheduler(WithMetrics(metrics), WithPanicHandler(handler))
	bad := newFakeTask("bad", func(ctx context.Context, n int64) Directive {
		if n == 1 {
			panic("boom")
		}
		return Continue()
	})
	good := newFakeTask("good", nil)
	_, _ = s.Register(bad, Loop())
	_, _ = s.Register(good, Loop())

	// Act
	ids := stepN(t, s, 4)

	// Assert
	assert.Equal(t, []TaskID{1, 2, 1, 2}, ids)
	assert.Equal(t, []string{"bad"}, handler.tasks)
	assert.Equal(t, []any{"boom"}, metrics.panics)
	require.Len(t, metrics.failures, 1)
	assert.ErrorIs(t, metrics.failures[0], ErrAny)

	stats := s.Stats()
	assert.Equal(t, uint64(4), stats.Executions)
	assert.Equal(t, uint64(1), stats.Panics)
	assert.Equal(t, uint64(1), stats.Failures)

	history := s.History(0)
	require.Len(t, history, 4)
	assert.True(t, history[3].Panicked)
	assert.Equal(t, DirectiveFail, history[3].Directive)
}

// TestScheduler_FailDirective verifies Fail is recorded and the task stays scheduled
func TestScheduler_FailDirective(t *testing.T) {
	metrics := newRecordingMetrics()
	s := newTestScheduler(WithMetrics(metrics))
	cause := errors.New("upstream gone")
	task := newFakeTask("flaky", func(ctx context.Context, n int64) Directive { return Fail(cause) })
	_, _ = s.Register(task, Loop())

	stepN(t, s, 3)

	assert.Equal(t, int64(3), task.runs.Load())
	require.Len(t, metrics.failures, 3)
	assert.ErrorIs(t, metrics.failures[0], cause)
	assert.Equal(t, 3, metrics.durations["flaky"])

	last := s.History(1)
	require.Len(t, last, 1)
	assert.ErrorIs(t, last[0].Err, cause)
	assert.NotZero(t, last[0].ID)
}

// =============================================================================
// Lifecycle
// =============================================================================

// TestScheduler_StopSemantics verifies cooperative stop
// Given: A running scheduler with a Loop task
// When: Stop is called twice
// Then: The first call succeeds, the second returns ErrStopping, and no task runs afterwards
func TestScheduler_StopSemantics(t *testing.T) {
	// Arrange
	s := newTestScheduler()
	task := newFakeTask("spin", nil)
	_, err := s.Register(task, Loop())
	require.NoError(t, err)
	ctx := context.Background()

	// Act
	require.NoError(t, s.Start(ctx))
	require.Eventually(t, func() bool { return task.runs.Load() > 10 }, time.Second, time.Millisecond)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Wait(ctx))

	// Assert
	assert.ErrorIs(t, s.Stop(), ErrStopping)
	assert.Equal(t, StateStopped, s.State())

	runs := task.runs.Load()
	_, ok := s.Step(ctx)
	assert.False(t, ok)
	assert.Equal(t, runs, task.runs.Load())

	assert.ErrorIs(t, s.Run(ctx), ErrStopping)
	_, err = s.Register(newFakeTask("late", nil), Loop())
	assert.ErrorIs(t, err, ErrStopping)
}

// TestScheduler_StopBeforeRun verifies Run refuses after an early Stop
func TestScheduler_StopBeforeRun(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Run(context.Background()), ErrStopping)
	assert.ErrorIs(t, s.Start(context.Background()), ErrStopping)
}

// TestScheduler_RunBusy verifies a second Run is rejected
func TestScheduler_RunBusy(t *testing.T) {
	s := newTestScheduler()
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer func() {
		_ = s.Stop()
		_ = s.Wait(ctx)
	}()

	assert.ErrorIs(t, s.Run(ctx), ErrBusy)
	assert.ErrorIs(t, s.Start(ctx), ErrBusy)
}

// TestScheduler_StopAll verifies a task can stop the whole scheduler
// Given: A task that returns StopAll on its third execution
// When: The scheduler runs
// Then: Run returns after exactly three executions
func TestScheduler_StopAll(t *testing.T) {
	s := newTestScheduler()
	task := newFakeTask("quitter", func(ctx context.Context, n int64) Directive {
		if n == 3 {
			return StopAll()
		}
		return Continue()
	})
	_, _ = s.Register(task, Loop())

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, int64(3), task.runs.Load())
	assert.ErrorIs(t, s.Stop(), ErrStopping)
}

// TestScheduler_ContextCancel verifies cancellation stops the loop
func TestScheduler_ContextCancel(t *testing.T) {
	s := newTestScheduler(WithIdleInterval(time.Hour))
	_, _ = s.Register(newFakeTask("waiter", nil), OnExternalEvent())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx))
	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	assert.Equal(t, StateStopped, s.State())
}

// TestScheduler_NotifyWakesIdleLoop verifies Notify interrupts the idle wait
// Given: A running scheduler with a long idle interval and an event task
// When: The task is notified
// Then: It runs promptly and can see its scheduler through the context
func TestScheduler_NotifyWakesIdleLoop(t *testing.T) {
	s := newTestScheduler(WithIdleInterval(time.Hour))
	seen := make(chan *Scheduler, 1)
	id, _ := s.Register(newFakeTask("event", func(ctx context.Context, n int64) Directive {
		seen <- GetCurrentScheduler(ctx)
		return Continue()
	}), OnExternalEvent())
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer func() {
		_ = s.Stop()
		_ = s.Wait(ctx)
	}()

	require.NoError(t, s.Notify(id))

	select {
	case got := <-seen:
		assert.Same(t, s, got)
	case <-time.After(time.Second):
		t.Fatal("notified task did not run")
	}
	assert.Nil(t, GetCurrentScheduler(context.Background()))
}

// =============================================================================
// Diagnostics
// =============================================================================

// TestScheduler_Lag verifies per-edge lag from position counters
// Given: source -> sink, with the source executed three times
// When: Lag is queried before and after the sink runs
// Then: The edge reports 3 then 0, and an unregistered producer is marked external
func TestScheduler_Lag(t *testing.T) {
	// Arrange
	s := newTestScheduler()
	var got []int
	n := 0
	src, out := NewSource("src", 8, SourceFunc[int](func(ctx context.Context, o *Sender[Message[int]]) Directive {
		n++
		o.Send(ValueMsg(n))
		return Continue()
	}))
	snk := NewSink("sink", collect(&got))
	require.NoError(t, ConnectTo(out, snk))
	srcID, _ := s.Register(src, OnExternalEvent())
	_, _ = s.Register(snk, OnExternalEvent())

	for range 3 {
		require.NoError(t, s.Notify(srcID))
		stepN(t, s, 1)
	}

	// Act
	lag := s.Lag()

	// Assert
	require.Len(t, lag, 1)
	assert.Equal(t, SenderName("src"), lag[0].Sender)
	assert.Equal(t, "sink", lag[0].Receiver)
	assert.Equal(t, ChannelPosition(3), lag[0].Produced)
	assert.Equal(t, ChannelPosition(0), lag[0].Consumed)
	assert.Equal(t, uint64(3), lag[0].Lag())
	assert.False(t, lag[0].External)

	snk.Execute(context.Background())
	assert.Equal(t, uint64(0), s.Lag()[0].Lag())

	other := newTestScheduler()
	_, _ = other.Register(snk, OnMessage())
	ext := other.Lag()
	require.Len(t, ext, 1)
	assert.True(t, ext[0].External)
	assert.Equal(t, ChannelPosition(3), ext[0].Produced)
}

// TestScheduler_History verifies executions are recorded newest first
func TestScheduler_History(t *testing.T) {
	s := newTestScheduler(WithHistoryCapacity(2))
	_, _ = s.Register(newFakeTask("a", nil), Loop())
	_, _ = s.Register(newFakeTask("b", nil), Loop())

	stepN(t, s, 3)

	h := s.History(0)
	require.Len(t, h, 2)
	assert.Equal(t, "a", h[0].TaskName)
	assert.Equal(t, "b", h[1].TaskName)
	assert.Equal(t, RuleLoop, h[0].Rule)

	stats := s.Stats()
	assert.Equal(t, "a", stats.LastTask)
	assert.Equal(t, "test", stats.Name)
	assert.NotEmpty(t, stats.ID)
	assert.Equal(t, StateIdle, stats.State)
}
