package core

import (
	"iter"
	"sync/atomic"
)

// entry is one published ring slot. seq is the write position it was produced at.
type entry[T any] struct {
	seq uint64
	val T
}

// lossyRing is a fixed-size single-producer/single-consumer ring buffer.
//
// The producer never waits: when the ring is full the oldest unread slot is
// overwritten. Slots are published through atomic pointers and the cursors are
// atomics, so the consumer never observes a partially written slot.
//
// An entry is recycled by the producer only once the consumer cursor has moved
// past it; an unread entry being overwritten is replaced by a fresh one, so a
// concurrent read of it stays intact.
type lossyRing[T any] struct {
	slots    []atomic.Pointer[entry[T]]
	writePos atomic.Uint64 // written only by the producer
	readPos  atomic.Uint64 // written only by the consumer
}

// Sender is the producing half of a lossy channel.
type Sender[T any] struct {
	q *lossyRing[T]
}

// Receiver is the consuming half of a lossy channel.
type Receiver[T any] struct {
	q *lossyRing[T]
}

// NewChannel creates a lossy channel holding at most capacity unread items.
// A capacity below 1 is treated as 1.
func NewChannel[T any](capacity int) (*Sender[T], *Receiver[T]) {
	if capacity < 1 {
		capacity = 1
	}
	q := &lossyRing[T]{slots: make([]atomic.Pointer[entry[T]], capacity)}
	return &Sender[T]{q: q}, &Receiver[T]{q: q}
}

// Capacity returns the fixed number of slots.
func (s *Sender[T]) Capacity() int { return len(s.q.slots) }

// Put applies fn to the next slot and publishes it.
//
// fn receives the slot's previous content when the slot is recycled, so it
// must assign every field it cares about. If the ring is full the oldest
// unread item is lost; the loss is visible only as a sequence number gap.
func (s *Sender[T]) Put(fn func(v *T)) {
	q := s.q
	seq := q.writePos.Load()
	slot := &q.slots[seq%uint64(len(q.slots))]

	e := slot.Load()
	if e == nil || e.seq >= q.readPos.Load() {
		// never written, or still unread: the consumer may be reading it
		e = &entry[T]{}
	}
	e.seq = seq
	fn(&e.val)

	slot.Store(e)
	q.writePos.Store(seq + 1)
}

// Send publishes v.
func (s *Sender[T]) Send(v T) {
	s.Put(func(p *T) { *p = v })
}

// Seqno returns the number of items written so far.
func (s *Sender[T]) Seqno() uint64 { return s.q.writePos.Load() }

// Capacity returns the fixed number of slots.
func (r *Receiver[T]) Capacity() int { return len(r.q.slots) }

// Seqno returns the read cursor: items consumed plus items lost to overwrite.
func (r *Receiver[T]) Seqno() uint64 { return r.q.readPos.Load() }

// WriteSeqno returns the producer cursor as observed from the consumer side.
func (r *Receiver[T]) WriteSeqno() uint64 { return r.q.writePos.Load() }

// Pending returns how many items a drain started now would yield at most.
func (r *Receiver[T]) Pending() int {
	w := r.q.writePos.Load()
	p := r.q.readPos.Load()
	if w <= p {
		return 0
	}
	return int(min(w-p, uint64(len(r.q.slots))))
}

// Iter returns the items currently available, oldest first.
//
// The sequence is finite: it stops at the write position sampled when
// iteration begins, and it never blocks. Items yielded count as consumed even
// if the caller stops early. Ranging over it again resumes where the previous
// iteration stopped.
func (r *Receiver[T]) Iter() iter.Seq[T] {
	return func(yield func(T) bool) {
		q := r.q
		c := uint64(len(q.slots))
		w := q.writePos.Load()
		pos := q.readPos.Load()

		for pos < w {
			if w-pos > c {
				pos = w - c
			}
			e := q.slots[pos%c].Load()
			if e == nil || e.seq != pos {
				// overwritten after w was sampled
				next := pos + 1
				if now := q.writePos.Load(); now > c && now-c > next {
					next = now - c
				}
				pos = next
				continue
			}
			v := e.val
			pos++
			q.readPos.Store(pos)
			if !yield(v) {
				return
			}
		}
		if pos > q.readPos.Load() {
			q.readPos.Store(pos)
		}
	}
}

// Drain consumes and returns every available item.
func (r *Receiver[T]) Drain() []T {
	var out []T
	for v := range r.Iter() {
		out = append(out, v)
	}
	return out
}
