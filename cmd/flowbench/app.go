package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	lossyflow "github.com/Swind/go-lossyflow"
	"github.com/Swind/go-lossyflow/config"
	"github.com/Swind/go-lossyflow/core"
	"github.com/Swind/go-lossyflow/internal/bench"
	"github.com/Swind/go-lossyflow/internal/sample"
	"github.com/Swind/go-lossyflow/observability/logging"
	obs "github.com/Swind/go-lossyflow/observability/prometheus"
)

// env is what every command shares: configuration, logging and, when
// enabled, the Prometheus registry and its HTTP endpoint.
type env struct {
	cfg    *config.Config
	zl     *zap.Logger
	logger core.Logger

	exporter *obs.MetricsExporter
	poller   *obs.SnapshotPoller
	server   *http.Server
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, cli.Exit("failed to load config: "+err.Error(), 1)
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if addr := c.String("metrics-listen"); addr != "" {
		cfg.Metrics.Enable = true
		cfg.Metrics.Listen = addr
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Exit("invalid config: "+err.Error(), 1)
	}

	zl, err := logging.SetupLogger(cfg.Log)
	if err != nil {
		return nil, cli.Exit("failed to setup logger: "+err.Error(), 1)
	}
	e := &env{cfg: cfg, zl: zl, logger: core.NewZapLogger(zl)}
	zl.Debug("effective configuration", zap.Any("config", cfg))

	if cfg.Metrics.Enable {
		if err := e.startMetrics(c.Context); err != nil {
			e.close()
			return nil, cli.Exit("failed to start metrics: "+err.Error(), 1)
		}
	}
	return e, nil
}

func (e *env) startMetrics(ctx context.Context) error {
	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exporter, err := obs.NewMetricsExporter(e.cfg.Metrics.Namespace, reg, obs.ExporterOptions{})
	if err != nil {
		return err
	}
	poller, err := obs.NewSnapshotPoller(reg, e.cfg.Metrics.PollInterval)
	if err != nil {
		return err
	}
	e.exporter, e.poller = exporter, poller
	poller.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	e.server = &http.Server{Addr: e.cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.zl.Error("metrics server failed", zap.Error(err))
		}
	}()
	e.zl.Info("serving metrics", zap.String("addr", e.cfg.Metrics.Listen))
	return nil
}

func (e *env) close() {
	e.poller.Stop()
	if e.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = e.server.Shutdown(ctx)
	}
	_ = e.zl.Sync()
}

// schedulerOptions configures a scheduler from the config section, named name,
// logging through the process logger and reporting to Prometheus when enabled.
func (e *env) schedulerOptions(name string) []core.SchedulerOption {
	extra := []core.SchedulerOption{core.WithName(name), core.WithLogger(e.logger)}
	if e.exporter != nil {
		extra = append(extra, core.WithMetrics(e.exporter))
	}
	return e.cfg.Scheduler.SchedulerOptions(extra...)
}

func (e *env) writeReport(c *cli.Context, r *bench.Report) error {
	format := c.String("format")
	if format == "" {
		format = e.cfg.Bench.Format
	}
	output := c.String("output")
	if output == "" {
		output = e.cfg.Bench.Output
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to create report: %v", err), 1)
		}
		defer f.Close()
		w = f
	}
	if err := r.Write(w, format); err != nil {
		return cli.Exit(fmt.Sprintf("failed to write report: %v", err), 1)
	}
	if output != "" {
		e.zl.Info("report written", zap.String("path", output), zap.String("format", format), zap.String("id", r.ID))
	}
	return nil
}

func intFlag(c *cli.Context, name string, fallback int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	return fallback
}

func (e *env) throughput(messages, capacity int) []bench.Result {
	results := bench.RunBasics(messages, capacity)
	for _, r := range results {
		e.zl.Info("throughput",
			zap.String("case", r.Name),
			zap.Int("ops", r.Ops),
			zap.Float64("ns_per_op", r.NsPerOp),
		)
	}
	return results
}

func (e *env) latency(ctx context.Context, stages []int, capacity, samples int) ([]bench.LatencyResult, error) {
	var out []bench.LatencyResult
	for _, n := range stages {
		name := fmt.Sprintf("latency-%d", n)
		p, err := bench.NewMeasuredPipeline(n, capacity, e.schedulerOptions(name)...)
		if err != nil {
			return nil, err
		}
		e.poller.AddScheduler(name, p.Scheduler())
		if err := p.Start(ctx); err != nil {
			return nil, err
		}
		r, err := p.Sample(ctx, samples, time.Second)
		stopErr := p.Stop(context.Background())
		if err != nil {
			return nil, err
		}
		if stopErr != nil {
			return nil, stopErr
		}
		e.poller.CollectOnce()
		e.zl.Info("latency",
			zap.Int("stages", r.Stages),
			zap.Int("samples", r.Samples),
			zap.Duration("p50", r.P50),
			zap.Duration("p99", r.P99),
			zap.Duration("max", r.Max),
		)
		out = append(out, r)
	}
	return out, nil
}

func throughputAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	capacity := intFlag(c, "capacity", e.cfg.Bench.Capacity)
	r := bench.NewReport(capacity)
	r.Throughput = e.throughput(intFlag(c, "messages", e.cfg.Bench.Messages), capacity)
	return e.writeReport(c, r)
}

func latencyAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stages := c.IntSlice("stages")
	if len(stages) == 0 {
		stages = []int{e.cfg.Bench.Stages}
	}
	capacity := intFlag(c, "capacity", e.cfg.Bench.Capacity)
	results, err := e.latency(ctx, stages, capacity, intFlag(c, "samples", e.cfg.Bench.Samples))
	if err != nil {
		return cli.Exit(fmt.Sprintf("latency run failed: %v", err), 1)
	}
	r := bench.NewReport(capacity)
	r.Latency = results
	return e.writeReport(c, r)
}

func reportAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bc := e.cfg.Bench
	r := bench.NewReport(bc.Capacity)
	r.Throughput = e.throughput(bc.Messages, bc.Capacity)
	r.Latency, err = e.latency(ctx, []int{0, bc.Stages}, bc.Capacity, bc.Samples)
	if err != nil {
		return cli.Exit(fmt.Sprintf("latency run failed: %v", err), 1)
	}
	return e.writeReport(c, r)
}

// soakAction spreads counter -> round-robin -> lanes -> interleave ->
// collector over three schedulers and reports how many values were lost.
func soakAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, c.Duration("duration"))
	defer cancel()

	capacity := e.cfg.Bench.Capacity
	lanes := max(c.Int("lanes"), 1)

	g := lossyflow.NewSchedulerGroup("soak")
	ingest := core.NewScheduler(e.schedulerOptions("ingest")...)
	work := core.NewScheduler(e.schedulerOptions("lanes")...)
	egress := core.NewScheduler(e.schedulerOptions("egress")...)
	for _, s := range []*core.Scheduler{ingest, work, egress} {
		if err := g.Add(s); err != nil {
			return err
		}
	}

	src, srcOut, counter := sample.NewCounter("counter", capacity, 0)
	rr, rrOuts := sample.NewRoundRobin[int]("scatter", capacity, lanes)
	gather, gOut := sample.NewInterleave[int]("gather", capacity, lanes)
	sink, col := sample.NewCollector[int]("collector")

	if err := core.ConnectTo(srcOut, rr); err != nil {
		return err
	}
	for i, ep := range rrOuts {
		lane, laneOut := sample.NewIdentity[int](fmt.Sprintf("lane-%d", i), capacity)
		if err := core.ConnectTo(ep, lane); err != nil {
			return err
		}
		if err := core.ConnectToN(laneOut, gather, core.ReceiverChannelID(i)); err != nil {
			return err
		}
		if _, err := g.Register(work, lane, core.OnMessage()); err != nil {
			return err
		}
	}
	if err := core.ConnectTo(gOut, sink); err != nil {
		return err
	}

	regs := []struct {
		s    *core.Scheduler
		task core.Task
		rule core.SchedulingRule
	}{
		{ingest, src, core.Periodic(c.Duration("period"))},
		{ingest, rr, core.OnMessage()},
		{egress, gather, core.OnMessage()},
		{egress, sink, core.OnMessage()},
	}
	for _, r := range regs {
		if _, err := g.Register(r.s, r.task, r.rule); err != nil {
			return err
		}
	}

	e.poller.AddGroup("soak", g)
	if err := g.Start(ctx); err != nil {
		return err
	}
	e.zl.Info("soak running", zap.Duration("duration", c.Duration("duration")), zap.Int("lanes", lanes))

	<-ctx.Done()
	_ = g.Stop()
	if err := g.Join(context.Background()); err != nil {
		return err
	}
	e.poller.CollectOnce()

	sent, received := counter.Sent(), col.Len()
	e.zl.Info("soak finished",
		zap.Int("sent", sent),
		zap.Int("received", received),
		zap.Int("lost", sent-received),
	)
	for _, st := range g.Stats() {
		e.zl.Info("scheduler stats",
			zap.String("scheduler", st.Name),
			zap.Uint64("executions", st.Executions),
			zap.Uint64("failures", st.Failures),
		)
	}
	return nil
}
