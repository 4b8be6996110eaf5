package core

import (
	"container/heap"
	"time"
)

// wakeup is a point in time at which a task may become eligible.
type wakeup struct {
	At     time.Time
	TaskID TaskID
	index  int // for heap interface
}

// wakeupHeap implements heap.Interface, earliest first, ties by TaskID.
type wakeupHeap []*wakeup

func (h wakeupHeap) Len() int { return len(h) }
func (h wakeupHeap) Less(i, j int) bool {
	if h[i].At.Equal(h[j].At) {
		return h[i].TaskID < h[j].TaskID
	}
	return h[i].At.Before(h[j].At)
}
func (h wakeupHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *wakeupHeap) Push(x any) {
	n := len(*h)
	item := x.(*wakeup)
	item.index = n
	*h = append(*h, item)
}

func (h *wakeupHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h *wakeupHeap) Peek() *wakeup {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// DelayManager tracks the next wake-up time of every deferred task so the
// scheduler can sleep exactly until something may become eligible. It holds
// at most one entry per task and is used only from the scheduler goroutine.
type DelayManager struct {
	pq      wakeupHeap
	entries map[TaskID]*wakeup
}

func NewDelayManager() *DelayManager {
	dm := &DelayManager{
		pq:      make(wakeupHeap, 0),
		entries: make(map[TaskID]*wakeup),
	}
	heap.Init(&dm.pq)
	return dm
}

// Schedule sets (or moves) the wake-up time of id.
func (dm *DelayManager) Schedule(id TaskID, at time.Time) {
	if item, ok := dm.entries[id]; ok {
		item.At = at
		heap.Fix(&dm.pq, item.index)
		return
	}
	item := &wakeup{At: at, TaskID: id}
	heap.Push(&dm.pq, item)
	dm.entries[id] = item
}

// Cancel removes the wake-up time of id, if any.
func (dm *DelayManager) Cancel(id TaskID) {
	item, ok := dm.entries[id]
	if !ok {
		return
	}
	heap.Remove(&dm.pq, item.index)
	delete(dm.entries, id)
}

// Next returns the earliest wake-up time.
func (dm *DelayManager) Next() (time.Time, bool) {
	item := dm.pq.Peek()
	if item == nil {
		return time.Time{}, false
	}
	return item.At, true
}

// PopExpired removes and returns the ids whose wake-up time is not after now,
// earliest first.
func (dm *DelayManager) PopExpired(now time.Time) []TaskID {
	var expired []TaskID
	for dm.pq.Len() > 0 {
		item := dm.pq.Peek()
		if item.At.After(now) {
			break
		}
		heap.Pop(&dm.pq)
		delete(dm.entries, item.TaskID)
		expired = append(expired, item.TaskID)
	}
	return expired
}

func (dm *DelayManager) TaskCount() int {
	return len(dm.pq)
}
