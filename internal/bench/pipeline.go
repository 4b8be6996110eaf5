package bench

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Swind/go-lossyflow/core"
	"github.com/Swind/go-lossyflow/internal/sample"
)

// ErrTimeout is returned by Trigger when the value does not reach the sink in time.
var ErrTimeout = errors.New("bench: pipeline round trip timed out")

// MeasuredPipeline is an external-event source feeding a chain of identity
// filters into a sink that reports back. Each Trigger pushes one value
// through and times its arrival.
type MeasuredPipeline struct {
	scheduler *core.Scheduler
	source    core.TaskID
	arrived   chan int
	seq       int
	stages    int
}

// NewMeasuredPipeline wires the pipeline onto a fresh scheduler configured by opts.
func NewMeasuredPipeline(stages, capacity int, opts ...core.SchedulerOption) (*MeasuredPipeline, error) {
	p := &MeasuredPipeline{
		scheduler: core.NewScheduler(opts...),
		arrived:   make(chan int, 1),
		stages:    max(stages, 0),
	}

	var pending int
	src, out := core.NewSource[int]("trigger", capacity, core.SourceFunc[int](
		func(ctx context.Context, o *core.Sender[core.Message[int]]) core.Directive {
			pending++
			o.Send(core.ValueMsg(pending))
			return core.Continue()
		}))
	id, err := p.scheduler.Register(src, core.OnExternalEvent())
	if err != nil {
		return nil, err
	}
	p.source = id

	for i := range p.stages {
		f, fOut := sample.NewIdentity[int](fmt.Sprintf("stage-%03d", i), capacity)
		if err := core.ConnectTo(out, f); err != nil {
			return nil, err
		}
		if _, err := p.scheduler.Register(f, core.OnMessage()); err != nil {
			return nil, err
		}
		out = fOut
	}

	sink := core.NewSink[int]("arrival", core.SinkFunc[int](
		func(ctx context.Context, in *core.Endpoint[int]) core.Directive {
			for msg := range in.Iter() {
				if v, ok := msg.IsValue(); ok {
					select {
					case p.arrived <- v:
					default:
					}
				}
			}
			return core.Continue()
		}))
	if err := core.ConnectTo(out, sink); err != nil {
		return nil, err
	}
	if _, err := p.scheduler.Register(sink, core.OnMessage()); err != nil {
		return nil, err
	}
	return p, nil
}

// Scheduler exposes the underlying scheduler for diagnostics.
func (p *MeasuredPipeline) Scheduler() *core.Scheduler { return p.scheduler }

// Stages returns the number of identity filters between source and sink.
func (p *MeasuredPipeline) Stages() int { return p.stages }

// Start runs the scheduler on its own goroutine.
func (p *MeasuredPipeline) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Trigger notifies the source and waits for the value to reach the sink.
// It is not safe for concurrent use.
func (p *MeasuredPipeline) Trigger(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	p.seq++
	want := p.seq

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	start := time.Now()
	if err := p.scheduler.Notify(p.source); err != nil {
		return 0, err
	}
	for {
		select {
		case v := <-p.arrived:
			if v == want {
				return time.Since(start), nil
			}
		case <-timer.C:
			return 0, fmt.Errorf("%w after %s (value %d)", ErrTimeout, timeout, want)
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Stop stops the scheduler and waits for its loop to return.
func (p *MeasuredPipeline) Stop(ctx context.Context) error {
	if err := p.scheduler.Stop(); err != nil && !errors.Is(err, core.ErrStopping) {
		return err
	}
	return p.scheduler.Wait(ctx)
}

// LatencyResult summarizes round-trip times through a MeasuredPipeline.
type LatencyResult struct {
	Stages  int           `json:"stages" cbor:"stages"`
	Samples int           `json:"samples" cbor:"samples"`
	Min     time.Duration `json:"min_ns" cbor:"min_ns"`
	P50     time.Duration `json:"p50_ns" cbor:"p50_ns"`
	P99     time.Duration `json:"p99_ns" cbor:"p99_ns"`
	Max     time.Duration `json:"max_ns" cbor:"max_ns"`
	Mean    time.Duration `json:"mean_ns" cbor:"mean_ns"`
}

// Summarize computes order statistics over samples. It sorts samples in place.
func Summarize(stages int, samples []time.Duration) LatencyResult {
	r := LatencyResult{Stages: stages, Samples: len(samples)}
	if len(samples) == 0 {
		return r
	}
	slices.Sort(samples)
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	r.Min = samples[0]
	r.Max = samples[len(samples)-1]
	r.P50 = percentile(samples, 50)
	r.P99 = percentile(samples, 99)
	r.Mean = total / time.Duration(len(samples))
	return r
}

// percentile uses nearest rank on sorted input.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	return sorted[min(max(rank, 1), len(sorted))-1]
}

// Latency builds a pipeline with the given number of stages, takes samples
// round trips and summarizes them.
func Latency(ctx context.Context, stages, capacity, samples int, opts ...core.SchedulerOption) (LatencyResult, error) {
	p, err := NewMeasuredPipeline(stages, capacity, opts...)
	if err != nil {
		return LatencyResult{}, err
	}
	if err := p.Start(ctx); err != nil {
		return LatencyResult{}, err
	}
	defer func() { _ = p.Stop(context.Background()) }()
	return p.Sample(ctx, samples, time.Second)
}

// Sample takes n round trips on a started pipeline and summarizes them.
func (p *MeasuredPipeline) Sample(ctx context.Context, n int, timeout time.Duration) (LatencyResult, error) {
	durations := make([]time.Duration, 0, max(n, 0))
	for range n {
		d, err := p.Trigger(ctx, timeout)
		if err != nil {
			return LatencyResult{}, err
		}
		durations = append(durations, d)
	}
	return Summarize(p.Stages(), durations), nil
}
