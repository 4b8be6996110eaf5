// Package lossyflow runs dataflow pipelines built from tasks connected by
// bounded, lossy, single-producer/single-consumer channels.
//
// A producer never waits: when a channel is full the oldest unread message is
// overwritten and the loss shows up only as a gap in position counters. This
// trades guaranteed delivery for bounded memory and predictable latency, which
// is what soft-real-time pipelines (sensor processing, market data, telemetry)
// usually want.
//
// # Quick Start
//
// Build a graph from the topology wrappers, connect outputs to inputs exactly
// once, register the tasks with a Scheduler and run it:
//
//	src, srcOut := lossyflow.NewSource("ticks", 16, lossyflow.SourceFunc[int](produce))
//	sink := lossyflow.NewSink("print", lossyflow.SinkFunc[int](consume))
//	if err := lossyflow.ConnectTo(srcOut, sink); err != nil {
//		return err
//	}
//
//	s := lossyflow.NewScheduler(lossyflow.WithName("main"))
//	s.Register(src, lossyflow.Periodic(10*time.Millisecond))
//	s.Register(sink, lossyflow.OnMessage())
//	return s.Run(ctx)
//
// # Key Concepts
//
// Channel: a fixed-size ring. Sender.Put mutates the next slot in place,
// Receiver.Iter yields what is available without blocking.
//
// Endpoint: the connection state of one task slot. An output endpoint holds
// the receiving half of its channel until Connect hands it to an input.
//
// Task: Source, Filter, Sink, Scatter, Gather, YMerge and YSplit wrap a user
// processor and expose identity and position diagnostics.
//
// Scheduler: executes one eligible task at a time on a single goroutine
// according to its SchedulingRule (Loop, OnMessage, Periodic,
// OnExternalEvent). Tasks steer it with the Directive they return.
//
// SchedulerGroup: runs several schedulers in parallel and makes sure no task is
// owned by two of them.
//
// # Thread Safety
//
// Each channel has exactly one producing and one consuming task. Execute is
// never called concurrently for one task; position accessors and Scheduler
// diagnostics may be called from any goroutine.
package lossyflow
