package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SchedulerOption configures a Scheduler at construction time.
type SchedulerOption func(*SchedulerConfig)

// WithConfig replaces the whole configuration; later options still apply.
func WithConfig(cfg *SchedulerConfig) SchedulerOption {
	return func(c *SchedulerConfig) {
		if cfg != nil {
			*c = *cfg
		}
	}
}

func WithName(name string) SchedulerOption {
	return func(c *SchedulerConfig) { c.Name = name }
}

func WithLogger(l Logger) SchedulerOption {
	return func(c *SchedulerConfig) { c.Logger = l }
}

func WithMetrics(m Metrics) SchedulerOption {
	return func(c *SchedulerConfig) { c.Metrics = m }
}

func WithPanicHandler(h PanicHandler) SchedulerOption {
	return func(c *SchedulerConfig) { c.PanicHandler = h }
}

// WithIdleInterval bounds the sleep taken when no task is eligible.
func WithIdleInterval(d time.Duration) SchedulerOption {
	return func(c *SchedulerConfig) { c.IdleInterval = d }
}

func WithHistoryCapacity(n int) SchedulerOption {
	return func(c *SchedulerConfig) { c.HistoryCapacity = n }
}

// taskEntry is the scheduler's bookkeeping for one registered task.
// Everything except notified is touched only while stepMu is held.
type taskEntry struct {
	id   TaskID
	task Task
	rule SchedulingRule

	lastRun   time.Time
	dueAt     time.Time // periodic only
	notBefore time.Time // set by SleepFor/SleepUntil
	snapshot  []ChannelPosition
	notified  atomic.Bool
}

func (e *taskEntry) takeSnapshot() {
	for i := range e.snapshot {
		e.snapshot[i] = e.task.InputAvailablePos(ReceiverChannelID(i))
	}
}

func (e *taskEntry) inputsMoved() bool {
	for i, pos := range e.snapshot {
		if e.task.InputAvailablePos(ReceiverChannelID(i)) != pos {
			return true
		}
	}
	return false
}

// Scheduler owns a set of tasks and drives them on one goroutine.
//
// A task's Execute always runs to completion; Stop only takes effect between
// executions. Several schedulers may run in parallel as long as each endpoint
// of a channel is owned by exactly one task registered in exactly one
// scheduler. A channel's producer and consumer may live in different
// schedulers.
//
// Each step runs the most overdue due Periodic task if there is one.
// Otherwise the other eligible tasks take turns in ascending TaskID order,
// starting after the task that ran last, so a low TaskID does not win every
// step.
type Scheduler struct {
	id           uuid.UUID
	name         string
	idle         time.Duration
	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler

	mu     sync.RWMutex
	tasks  map[TaskID]*taskEntry
	order  []*taskEntry // ascending TaskID
	byName map[string]*taskEntry
	nextID TaskID

	stepMu sync.Mutex
	delays *DelayManager
	cursor TaskID

	state   atomic.Int32
	stopReq atomic.Bool
	wake    chan struct{}
	done    chan struct{}

	executions atomic.Uint64
	failures   atomic.Uint64
	panics     atomic.Uint64
	history    *executionHistory

	now func() time.Time
}

// NewScheduler creates an idle scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	cfg := DefaultSchedulerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	c := cfg.withDefaults()

	return &Scheduler{
		id:           uuid.New(),
		name:         c.Name,
		idle:         c.IdleInterval,
		logger:       c.Logger,
		metrics:      c.Metrics,
		panicHandler: c.PanicHandler,
		tasks:        make(map[TaskID]*taskEntry),
		byName:       make(map[string]*taskEntry),
		delays:       NewDelayManager(),
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		history:      newExecutionHistory(c.HistoryCapacity),
		now:          time.Now,
	}
}

func (s *Scheduler) ID() string   { return s.id.String() }
func (s *Scheduler) Name() string { return s.name }

func (s *Scheduler) State() SchedulerState { return SchedulerState(s.state.Load()) }

// Register adds task under rule and returns its id. Task names must be unique
// within a scheduler since edges are resolved by sender name.
func (s *Scheduler) Register(task Task, rule SchedulingRule) (TaskID, error) {
	if task == nil {
		return 0, AnyError("register: nil task")
	}
	if err := rule.validate(); err != nil {
		return 0, fmt.Errorf("register %q: %w", task.Name(), err)
	}
	if s.stopReq.Load() {
		return 0, fmt.Errorf("register %q: %w", task.Name(), ErrStopping)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := task.Name()
	if _, exists := s.byName[name]; exists {
		return 0, fmt.Errorf("register %q: task name in use: %w", name, ErrAlreadyExists)
	}

	s.nextID++
	e := &taskEntry{
		id:    s.nextID,
		task:  task,
		rule:  rule,
		dueAt: s.now(),
	}
	if rule.Kind == RuleOnMessage {
		e.snapshot = make([]ChannelPosition, task.InputCount())
		for i := range e.snapshot {
			// pending input makes the task eligible right away
			e.snapshot[i] = task.InputChannelPos(ReceiverChannelID(i))
		}
	}

	s.tasks[e.id] = e
	s.order = append(s.order, e)
	s.byName[name] = e

	s.logger.Debug("task registered",
		F("scheduler", s.name),
		F("task", name),
		F("task_id", uint64(e.id)),
		F("rule", rule.String()),
	)
	s.signal()
	return e.id, nil
}

// Notify makes an OnExternalEvent task eligible for one execution.
// Notifications that arrive before the task runs collapse into one.
func (s *Scheduler) Notify(id TaskID) error {
	s.mu.RLock()
	e, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("notify %s: %w", id, ErrNonExistent)
	}
	e.notified.Store(true)
	s.signal()
	return nil
}

// Stop requests a cooperative stop. The task currently executing completes
// and no further task is executed. Stop returns ErrStopping if a stop was
// already requested.
func (s *Scheduler) Stop() error {
	if !s.stopReq.CompareAndSwap(false, true) {
		return ErrStopping
	}
	for {
		cur := s.state.Load()
		if cur != int32(StateIdle) && cur != int32(StateRunning) {
			break
		}
		if s.state.CompareAndSwap(cur, int32(StateStopping)) {
			break
		}
	}
	s.logger.Info("scheduler stop requested", F("scheduler", s.name))
	s.signal()
	return nil
}

// Run drives the task loop on the calling goroutine until Stop is called, a
// task returns StopAll, or ctx is done. It returns ErrBusy if the scheduler is
// already running and ErrStopping if a stop was requested before Run.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.claim("run"); err != nil {
		return err
	}
	s.loop(ctx)
	return nil
}

// Start runs the loop on a dedicated goroutine. Errors match Run.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.claim("start"); err != nil {
		return err
	}
	go s.loop(ctx)
	return nil
}

func (s *Scheduler) claim(op string) error {
	if s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil
	}
	if s.State() == StateRunning {
		return fmt.Errorf("%s %s: %w", op, s.name, ErrBusy)
	}
	return fmt.Errorf("%s %s: %w", op, s.name, ErrStopping)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	defer s.state.Store(int32(StateStopped))

	runCtx := context.WithValue(ctx, schedulerKey, s)
	s.logger.Info("scheduler started",
		F("scheduler", s.name),
		F("scheduler_id", s.id.String()),
		F("tasks", s.TaskCount()),
	)

	for !s.stopReq.Load() {
		if ctx.Err() != nil {
			_ = s.Stop()
			break
		}
		if _, ran := s.Step(runCtx); ran {
			continue
		}
		s.wait(ctx)
	}

	s.logger.Info("scheduler stopped",
		F("scheduler", s.name),
		F("executions", s.executions.Load()),
	)
}

// Wait blocks until a Run call returns or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Step executes at most one eligible task and reports which. It is what Run
// calls in its loop and may be called directly when the scheduler is not
// running, e.g. to drive a graph deterministically. Step does nothing once a
// stop was requested.
func (s *Scheduler) Step(ctx context.Context) (TaskID, bool) {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	if s.stopReq.Load() {
		return 0, false
	}

	s.mu.RLock()
	entries := s.order
	s.mu.RUnlock()

	now := s.now()
	s.delays.PopExpired(now)

	e := s.pick(entries, now)
	if e == nil {
		return 0, false
	}
	s.execute(ctx, e)
	return e.id, true
}

// pick selects the next task: the most overdue due Periodic task, otherwise
// the first eligible task after the previously executed one in ascending
// TaskID order.
func (s *Scheduler) pick(entries []*taskEntry, now time.Time) *taskEntry {
	var (
		best        *taskEntry
		bestOverdue time.Duration
	)
	for _, e := range entries {
		if e.rule.Kind != RulePeriodic || now.Before(e.notBefore) || now.Before(e.dueAt) {
			continue
		}
		if overdue := now.Sub(e.dueAt); best == nil || overdue > bestOverdue {
			best, bestOverdue = e, overdue
		}
	}
	if best != nil {
		return best
	}

	start := 0
	for i, e := range entries {
		if e.id > s.cursor {
			start = i
			break
		}
		start = len(entries)
	}
	n := len(entries)
	for k := range n {
		e := entries[(start+k)%n]
		if s.eligible(e, now) {
			return e
		}
	}
	return nil
}

func (s *Scheduler) eligible(e *taskEntry, now time.Time) bool {
	if now.Before(e.notBefore) {
		return false
	}
	switch e.rule.Kind {
	case RuleLoop:
		return true
	case RuleOnMessage:
		return e.inputsMoved()
	case RuleOnExternalEvent:
		return e.notified.Load()
	default:
		return false
	}
}

func (s *Scheduler) execute(ctx context.Context, e *taskEntry) {
	switch e.rule.Kind {
	case RuleOnMessage:
		e.takeSnapshot()
	case RuleOnExternalEvent:
		// cleared before running so a Notify during Execute is not lost
		e.notified.Store(false)
	}

	startedAt := s.now()
	dir, panicked := s.invoke(ctx, e)
	finishedAt := s.now()

	e.lastRun = startedAt
	if e.rule.Kind == RulePeriodic {
		e.dueAt = startedAt.Add(e.rule.Period)
	}
	e.notBefore = dir.deadline(finishedAt)
	s.cursor = e.id

	if wake := e.nextWakeup(); !wake.IsZero() {
		s.delays.Schedule(e.id, wake)
	} else {
		s.delays.Cancel(e.id)
	}

	name := e.task.Name()
	duration := finishedAt.Sub(startedAt)
	s.executions.Add(1)
	s.metrics.RecordTaskDuration(s.name, name, e.rule.Kind, duration)

	switch dir.Kind {
	case DirectiveFail:
		s.failures.Add(1)
		s.metrics.RecordTaskFailure(s.name, name, dir.Err)
		if !panicked {
			s.logger.Warn("task failed",
				F("scheduler", s.name),
				F("task", name),
				F("error", dir.Err),
			)
		}
	case DirectiveStop:
		s.logger.Info("task requested stop", F("scheduler", s.name), F("task", name))
		_ = s.Stop()
	}

	s.history.Add(ExecutionRecord{
		TaskID:     e.id,
		TaskName:   name,
		Rule:       e.rule.Kind,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   duration,
		Directive:  dir.Kind,
		Err:        dir.Err,
		Panicked:   panicked,
	})
}

func (s *Scheduler) invoke(ctx context.Context, e *taskEntry) (dir Directive, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			s.panics.Add(1)
			s.panicHandler.HandlePanic(ctx, s.name, e.task.Name(), r, debug.Stack())
			s.metrics.RecordTaskPanic(s.name, e.task.Name(), r)
			dir = Fail(AnyError(fmt.Sprintf("task %q panicked: %v", e.task.Name(), r)))
		}
	}()
	return e.task.Execute(ctx), false
}

// nextWakeup is the earliest time a time-gated task may become eligible,
// zero when no timer is needed.
func (e *taskEntry) nextWakeup() time.Time {
	if e.rule.Kind == RulePeriodic {
		if e.notBefore.After(e.dueAt) {
			return e.notBefore
		}
		return e.dueAt
	}
	return e.notBefore
}

// wait sleeps until the next timed wake-up, at most the idle interval, and
// returns early on Notify, Register, Stop or ctx.
func (s *Scheduler) wait(ctx context.Context) {
	start := s.now()
	d := s.idle

	s.stepMu.Lock()
	next, ok := s.delays.Next()
	s.stepMu.Unlock()
	if ok {
		d = min(d, next.Sub(start))
	}
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	select {
	case <-timer.C:
	case <-s.wake:
		timer.Stop()
	case <-ctx.Done():
		timer.Stop()
	}
	s.metrics.RecordIdle(s.name, s.now().Sub(start))
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// =============================================================================
// Diagnostics
// =============================================================================

// TaskInfo describes one registered task.
type TaskInfo struct {
	ID      TaskID
	Name    string
	Rule    SchedulingRule
	Inputs  int
	Outputs int
}

// Tasks lists registered tasks in ascending TaskID order.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TaskInfo, 0, len(s.order))
	for _, e := range s.order {
		out = append(out, TaskInfo{
			ID:      e.id,
			Name:    e.task.Name(),
			Rule:    e.rule,
			Inputs:  e.task.InputCount(),
			Outputs: e.task.OutputCount(),
		})
	}
	return out
}

// Lookup returns the registered task called name.
func (s *Scheduler) Lookup(name string) (Task, TaskID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byName[name]
	if !ok {
		return nil, 0, false
	}
	return e.task, e.id, true
}

func (s *Scheduler) TaskCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Lag reports every connected input of every registered task, computed only
// from position counters. The producing side is looked up by sender name; if
// it is not registered here the producer position is read through the input.
func (s *Scheduler) Lag() []EdgeLag {
	s.mu.RLock()
	entries := s.order
	byName := s.byName
	defer s.mu.RUnlock()

	var out []EdgeLag
	for _, e := range entries {
		t := e.task
		for i := range t.InputCount() {
			ch := ReceiverChannelID(i)
			id, sender, ok := t.InputID(ch)
			if !ok {
				continue
			}
			edge := EdgeLag{
				Channel:  id,
				Sender:   sender,
				Receiver: t.Name(),
				Input:    ch,
				Consumed: t.InputChannelPos(ch),
			}
			if up, ok := byName[string(sender)]; ok {
				edge.Produced = up.task.OutputChannelPos(id.SenderID)
			} else {
				edge.Produced = t.InputAvailablePos(ch)
				edge.External = true
			}
			out = append(out, edge)
		}
	}
	return out
}

// History returns up to limit recent executions, newest first.
func (s *Scheduler) History(limit int) []ExecutionRecord {
	return s.history.Recent(limit)
}

// Stats returns a snapshot of the scheduler's counters.
func (s *Scheduler) Stats() SchedulerStats {
	st := SchedulerStats{
		ID:         s.id.String(),
		Name:       s.name,
		State:      s.State(),
		Tasks:      s.TaskCount(),
		Executions: s.executions.Load(),
		Failures:   s.failures.Load(),
		Panics:     s.panics.Load(),
	}
	if last, ok := s.history.Last(); ok {
		st.LastTask = last.TaskName
		st.LastTaskAt = last.FinishedAt
	}
	return st
}

// =============================================================================
// Context Helper
// =============================================================================
type schedulerKeyType struct{}

var schedulerKey schedulerKeyType

// GetCurrentScheduler returns the scheduler running the current Execute call,
// or nil outside of Run.
func GetCurrentScheduler(ctx context.Context) *Scheduler {
	if v := ctx.Value(schedulerKey); v != nil {
		return v.(*Scheduler)
	}
	return nil
}
