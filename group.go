package lossyflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/Swind/go-lossyflow/core"
)

// SchedulerGroup runs several schedulers in parallel, each on its own
// goroutine. It keeps one owner per task name across all member schedulers so
// that a task is never executed by two schedulers at once, which would break
// the single-producer/single-consumer contract of its channels.
type SchedulerGroup struct {
	id string

	mu         sync.Mutex
	schedulers []*core.Scheduler
	owners     map[string]*ownership
	running    bool
	stopping   bool
	ctx        context.Context
}

type ownership struct {
	scheduler *core.Scheduler
	task      core.Task
}

// NewSchedulerGroup creates an empty group.
func NewSchedulerGroup(id string) *SchedulerGroup {
	return &SchedulerGroup{
		id:     id,
		owners: make(map[string]*ownership),
	}
}

// ID returns the group id
func (g *SchedulerGroup) ID() string {
	return g.id
}

// Len returns the number of member schedulers
func (g *SchedulerGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.schedulers)
}

// IsRunning returns whether the group has been started and not stopped
func (g *SchedulerGroup) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running && !g.stopping
}

// Add makes s a member and claims every task already registered with it.
// It fails with ErrAlreadyExists if s is already a member or one of its tasks
// is owned by another member; in that case nothing is claimed.
func (g *SchedulerGroup) Add(s *core.Scheduler) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopping {
		return fmt.Errorf("group %s: add %s: %w", g.id, s.Name(), core.ErrStopping)
	}
	for _, member := range g.schedulers {
		if member == s {
			return fmt.Errorf("group %s: scheduler %s already added: %w", g.id, s.Name(), core.ErrAlreadyExists)
		}
	}

	infos := s.Tasks()
	for _, info := range infos {
		if o, ok := g.owners[info.Name]; ok && o.scheduler != s {
			return fmt.Errorf("group %s: task %q already owned by %s: %w",
				g.id, info.Name, o.scheduler.Name(), core.ErrAlreadyExists)
		}
	}
	for _, info := range infos {
		if _, ok := g.owners[info.Name]; !ok {
			task, _, _ := s.Lookup(info.Name)
			g.owners[info.Name] = &ownership{scheduler: s, task: task}
		}
	}

	g.schedulers = append(g.schedulers, s)
	if g.running {
		return s.Start(g.ctx)
	}
	return nil
}

// Claim records task as owned by s. Claiming the same task for the same
// scheduler twice is a no-op; any other owner yields ErrAlreadyExists.
func (g *SchedulerGroup) Claim(s *core.Scheduler, task core.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.claimLocked(s, task)
	return err
}

// claimLocked reports whether a new ownership entry was created.
func (g *SchedulerGroup) claimLocked(s *core.Scheduler, task core.Task) (bool, error) {
	name := task.Name()
	if o, ok := g.owners[name]; ok {
		if o.scheduler != s {
			return false, fmt.Errorf("group %s: task %q already owned by %s: %w",
				g.id, name, o.scheduler.Name(), core.ErrAlreadyExists)
		}
		o.task = task
		return false, nil
	}
	g.owners[name] = &ownership{scheduler: s, task: task}
	return true, nil
}

// Register claims task for s and registers it there. s must be a member.
func (g *SchedulerGroup) Register(s *core.Scheduler, task core.Task, rule core.SchedulingRule) (core.TaskID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.isMemberLocked(s) {
		return 0, fmt.Errorf("group %s: scheduler %s is not a member: %w", g.id, s.Name(), core.ErrNonExistent)
	}
	created, err := g.claimLocked(s, task)
	if err != nil {
		return 0, err
	}
	id, err := s.Register(task, rule)
	if err != nil {
		if created {
			delete(g.owners, task.Name())
		}
		return 0, err
	}
	return id, nil
}

func (g *SchedulerGroup) isMemberLocked(s *core.Scheduler) bool {
	for _, member := range g.schedulers {
		if member == s {
			return true
		}
	}
	return false
}

// Start starts every member on its own goroutine.
func (g *SchedulerGroup) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopping {
		return fmt.Errorf("group %s: %w", g.id, core.ErrStopping)
	}
	if g.running {
		return fmt.Errorf("group %s: %w", g.id, core.ErrBusy)
	}
	for _, s := range g.schedulers {
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("group %s: %w", g.id, err)
		}
	}
	g.running = true
	g.ctx = ctx
	return nil
}

// Stop requests every member to stop. It returns ErrStopping if the group was
// already stopped.
func (g *SchedulerGroup) Stop() error {
	g.mu.Lock()
	if g.stopping {
		g.mu.Unlock()
		return fmt.Errorf("group %s: %w", g.id, core.ErrStopping)
	}
	g.stopping = true
	members := append([]*core.Scheduler(nil), g.schedulers...)
	g.mu.Unlock()

	for _, s := range members {
		_ = s.Stop()
	}
	return nil
}

// Join waits until every started member has returned from its loop.
func (g *SchedulerGroup) Join(ctx context.Context) error {
	g.mu.Lock()
	started := g.running
	members := append([]*core.Scheduler(nil), g.schedulers...)
	g.mu.Unlock()

	if !started {
		return nil
	}
	for _, s := range members {
		if err := s.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns a snapshot per member in the order they were added.
func (g *SchedulerGroup) Stats() []core.SchedulerStats {
	g.mu.Lock()
	members := append([]*core.Scheduler(nil), g.schedulers...)
	g.mu.Unlock()

	out := make([]core.SchedulerStats, 0, len(members))
	for _, s := range members {
		out = append(out, s.Stats())
	}
	return out
}

// Lag reports every edge of every member. Edges whose producer lives in
// another member are resolved through that member's task.
func (g *SchedulerGroup) Lag() []core.EdgeLag {
	g.mu.Lock()
	members := append([]*core.Scheduler(nil), g.schedulers...)
	producers := make(map[string]core.Task, len(g.owners))
	for name, o := range g.owners {
		if o.task != nil {
			producers[name] = o.task
		}
	}
	g.mu.Unlock()

	var out []core.EdgeLag
	for _, s := range members {
		for _, edge := range s.Lag() {
			if edge.External {
				if up, ok := producers[string(edge.Sender)]; ok {
					edge.Produced = up.OutputChannelPos(edge.Channel.SenderID)
					edge.External = false
				}
			}
			out = append(out, edge)
		}
	}
	return out
}
