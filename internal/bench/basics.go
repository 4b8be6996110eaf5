// Package bench measures the lossy channel against Go primitives and the
// end-to-end latency of a scheduled pipeline.
package bench

import (
	"sync"
	"time"

	"github.com/Swind/go-lossyflow/core"
)

// Case is one named micro-benchmark; Op is called once per iteration.
type Case struct {
	Name string
	Op   func(i uint64)
}

// Result is the outcome of running a Case.
type Result struct {
	Name    string        `json:"name" cbor:"name"`
	Ops     int           `json:"ops" cbor:"ops"`
	Elapsed time.Duration `json:"elapsed_ns" cbor:"elapsed_ns"`
	NsPerOp float64       `json:"ns_per_op" cbor:"ns_per_op"`
}

// Measure runs fn ops times and reports the mean cost per call.
func Measure(name string, ops int, fn func(i uint64)) Result {
	ops = max(ops, 1)
	start := time.Now()
	for i := range uint64(ops) {
		fn(i)
	}
	elapsed := time.Since(start)
	return Result{
		Name:    name,
		Ops:     ops,
		Elapsed: elapsed,
		NsPerOp: float64(elapsed.Nanoseconds()) / float64(ops),
	}
}

// BasicCases compares lossy channel operations with buffered Go channels and
// mutexes. Go channel sends never block: a full channel drops the value, the
// closest equivalent of the lossy overwrite.
func BasicCases(capacity int) []Case {
	capacity = max(capacity, 1)

	lossySend, _ := core.NewChannel[uint64](capacity)
	_, lossyRecv := core.NewChannel[uint64](capacity)
	lossyTx, lossyRx := core.NewChannel[uint64](capacity)
	lossyTx3, lossyRx3 := core.NewChannel[uint64](capacity)

	chanSend := make(chan uint64, capacity)
	chanRecv := make(chan uint64, capacity)
	chanPair := make(chan uint64, capacity)
	chanPair3 := make(chan uint64, capacity)

	var mu sync.Mutex
	guardedTx, _ := core.NewChannel[uint64](capacity)

	put := func(tx *core.Sender[uint64], i uint64) {
		tx.Put(func(v *uint64) { *v = i })
	}
	trySend := func(ch chan uint64, i uint64) {
		select {
		case ch <- i:
		default:
		}
	}
	drain := func(ch chan uint64) {
		for {
			select {
			case <-ch:
			default:
				return
			}
		}
	}

	return []Case{
		{Name: "time-baseline", Op: func(uint64) {}},
		{Name: "lossy-send", Op: func(i uint64) { put(lossySend, i) }},
		{Name: "lossy-recv", Op: func(uint64) {
			for range lossyRecv.Iter() {
			}
		}},
		{Name: "lossy-send-recv", Op: func(i uint64) {
			put(lossyTx, i)
			for range lossyRx.Iter() {
			}
		}},
		{Name: "lossy-send-recv3", Op: func(i uint64) {
			put(lossyTx3, i)
			put(lossyTx3, i)
			put(lossyTx3, i)
			for range lossyRx3.Iter() {
			}
		}},
		{Name: "chan-send", Op: func(i uint64) { trySend(chanSend, i) }},
		{Name: "chan-recv", Op: func(uint64) {
			select {
			case <-chanRecv:
			default:
			}
		}},
		{Name: "chan-send-recv", Op: func(i uint64) {
			trySend(chanPair, i)
			<-chanPair
		}},
		{Name: "chan-send-recv3", Op: func(i uint64) {
			trySend(chanPair3, i)
			trySend(chanPair3, i)
			trySend(chanPair3, i)
			drain(chanPair3)
		}},
		{Name: "mutex", Op: func(uint64) {
			mu.Lock()
			mu.Unlock()
		}},
		{Name: "mutex+send", Op: func(i uint64) {
			mu.Lock()
			put(guardedTx, i)
			mu.Unlock()
		}},
	}
}

// RunBasics measures every BasicCases entry.
func RunBasics(ops, capacity int) []Result {
	cases := BasicCases(capacity)
	out := make([]Result, 0, len(cases))
	for _, c := range cases {
		out = append(out, Measure(c.Name, ops, c.Op))
	}
	return out
}
