package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-lossyflow/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// SchedulerSnapshotProvider provides current scheduler stats and edge lag.
// *core.Scheduler implements it.
type SchedulerSnapshotProvider interface {
	Stats() core.SchedulerStats
	Lag() []core.EdgeLag
}

// GroupSnapshotProvider provides stats for several schedulers at once.
// *lossyflow.SchedulerGroup implements it.
type GroupSnapshotProvider interface {
	Stats() []core.SchedulerStats
	Lag() []core.EdgeLag
}

// SnapshotPoller periodically exports scheduler Stats() and Lag() snapshots
// into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	schedulersMu sync.RWMutex
	schedulers   map[string]SchedulerSnapshotProvider

	groupsMu sync.RWMutex
	groups   map[string]GroupSnapshotProvider

	schedulerTasks      *prom.GaugeVec
	schedulerExecutions *prom.GaugeVec
	schedulerFailures   *prom.GaugeVec
	schedulerPanics     *prom.GaugeVec
	schedulerRunning    *prom.GaugeVec

	edgeProduced *prom.GaugeVec
	edgeConsumed *prom.GaugeVec
	edgeLag      *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	schedulerLabels := []string{"scheduler"}
	edgeLabels := []string{"scheduler", "channel", "sender", "receiver"}

	schedulerTasks := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "scheduler_tasks",
		Help:      "Number of tasks registered per scheduler.",
	}, schedulerLabels)
	schedulerExecutions := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "scheduler_executions",
		Help:      "Scheduler execution count snapshot.",
	}, schedulerLabels)
	schedulerFailures := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "scheduler_failures",
		Help:      "Scheduler failed execution count snapshot.",
	}, schedulerLabels)
	schedulerPanics := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "scheduler_panics",
		Help:      "Scheduler panic count snapshot.",
	}, schedulerLabels)
	schedulerRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "scheduler_running",
		Help:      "Scheduler running state (1=running, 0=not running).",
	}, schedulerLabels)

	edgeProduced := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "edge_produced_position",
		Help:      "Sender position per connected channel.",
	}, edgeLabels)
	edgeConsumed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "edge_consumed_position",
		Help:      "Receiver position per connected channel.",
	}, edgeLabels)
	edgeLag := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "edge_lag",
		Help:      "Messages produced but not yet consumed per connected channel.",
	}, edgeLabels)

	var err error
	if schedulerTasks, err = registerCollector(reg, schedulerTasks); err != nil {
		return nil, err
	}
	if schedulerExecutions, err = registerCollector(reg, schedulerExecutions); err != nil {
		return nil, err
	}
	if schedulerFailures, err = registerCollector(reg, schedulerFailures); err != nil {
		return nil, err
	}
	if schedulerPanics, err = registerCollector(reg, schedulerPanics); err != nil {
		return nil, err
	}
	if schedulerRunning, err = registerCollector(reg, schedulerRunning); err != nil {
		return nil, err
	}
	if edgeProduced, err = registerCollector(reg, edgeProduced); err != nil {
		return nil, err
	}
	if edgeConsumed, err = registerCollector(reg, edgeConsumed); err != nil {
		return nil, err
	}
	if edgeLag, err = registerCollector(reg, edgeLag); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:            interval,
		schedulers:          make(map[string]SchedulerSnapshotProvider),
		groups:              make(map[string]GroupSnapshotProvider),
		schedulerTasks:      schedulerTasks,
		schedulerExecutions: schedulerExecutions,
		schedulerFailures:   schedulerFailures,
		schedulerPanics:     schedulerPanics,
		schedulerRunning:    schedulerRunning,
		edgeProduced:        edgeProduced,
		edgeConsumed:        edgeConsumed,
		edgeLag:             edgeLag,
	}, nil
}

// AddScheduler adds or replaces a scheduler snapshot provider by name.
func (p *SnapshotPoller) AddScheduler(name string, provider SchedulerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.schedulersMu.Lock()
	p.schedulers[name] = provider
	p.schedulersMu.Unlock()
}

// AddGroup adds or replaces a group snapshot provider by name. Member
// schedulers are labelled by their own names, edges by the group name.
func (p *SnapshotPoller) AddGroup(name string, provider GroupSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "group")
	p.groupsMu.Lock()
	p.groups[name] = provider
	p.groupsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

// CollectOnce takes one snapshot immediately.
func (p *SnapshotPoller) CollectOnce() {
	if p == nil {
		return
	}
	p.collectOnce()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.schedulersMu.RLock()
	for name, provider := range p.schedulers {
		p.setStats(name, provider.Stats())
		p.setEdges(name, provider.Lag())
	}
	p.schedulersMu.RUnlock()

	p.groupsMu.RLock()
	for name, provider := range p.groups {
		for _, stats := range provider.Stats() {
			p.setStats(normalizeLabel(stats.Name, name), stats)
		}
		p.setEdges(name, provider.Lag())
	}
	p.groupsMu.RUnlock()
}

func (p *SnapshotPoller) setStats(name string, stats core.SchedulerStats) {
	p.schedulerTasks.WithLabelValues(name).Set(float64(stats.Tasks))
	p.schedulerExecutions.WithLabelValues(name).Set(float64(stats.Executions))
	p.schedulerFailures.WithLabelValues(name).Set(float64(stats.Failures))
	p.schedulerPanics.WithLabelValues(name).Set(float64(stats.Panics))
	if stats.State == core.StateRunning {
		p.schedulerRunning.WithLabelValues(name).Set(1)
	} else {
		p.schedulerRunning.WithLabelValues(name).Set(0)
	}
}

func (p *SnapshotPoller) setEdges(name string, edges []core.EdgeLag) {
	for _, edge := range edges {
		labels := []string{name, edge.Channel.String(), string(edge.Sender), edge.Receiver}
		p.edgeProduced.WithLabelValues(labels...).Set(float64(edge.Produced))
		p.edgeConsumed.WithLabelValues(labels...).Set(float64(edge.Consumed))
		p.edgeLag.WithLabelValues(labels...).Set(float64(edge.Lag()))
	}
}
