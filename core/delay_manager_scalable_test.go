//go:build !ci

// This test file contains a scalable stress test of deferred wake-ups that
// adjusts the task count based on available CPUs.
// It is excluded from CI builds to ensure CI stability.

package core_test

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-lossyflow/core"
)

// TestDelayManager_ManySleepers_Scalable verifies deferred tasks keep waking up under load
// This test is excluded from CI (!ci build tag)
// Given: A running scheduler with many tasks that alternate periodic and sleep deferrals
// When: The scheduler runs for a fixed window
// Then: Every task executes repeatedly and none executes before its deferral expires
func TestDelayManager_ManySleepers_Scalable(t *testing.T) {
	// Arrange
	numCPUs := runtime.NumCPU()
	numTasks := 80
	if numCPUs >= 8 {
		numTasks = 120
	}
	if numCPUs >= 16 {
		numTasks = 160
	}
	t.Logf("Scalable test with %d tasks (CPUs: %d)", numTasks, numCPUs)

	s := core.NewScheduler(core.WithLogger(core.NewNoOpLogger()))
	counts := make([]atomic.Int32, numTasks)
	var early atomic.Int32

	for i := range numTasks {
		delay := time.Duration(1+i%5) * time.Millisecond
		var last time.Time
		task, _ := core.NewSource[int](fmt.Sprintf("sleeper-%03d", i), 1, core.SourceFunc[int](
			func(ctx context.Context, out *core.Sender[core.Message[int]]) core.Directive {
				now := time.Now()
				if !last.IsZero() && now.Sub(last) < delay {
					early.Add(1)
				}
				last = now
				counts[i].Add(1)
				return core.SleepFor(delay)
			}))
		rule := core.Loop()
		if i%2 == 1 {
			rule = core.Periodic(delay)
		}
		if _, err := s.Register(task, rule); err != nil {
			t.Fatalf("Register(%d) error = %v", i, err)
		}
	}

	// Act
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Assert
	for i := range counts {
		if got := counts[i].Load(); got < 2 {
			t.Errorf("sleeper-%03d ran %d times, want at least 2", i, got)
		}
	}
	if got := early.Load(); got != 0 {
		t.Errorf("%d executions ran before their deferral expired", got)
	}
}
