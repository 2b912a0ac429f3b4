// Package queue implements the bounded multi-producer, single-consumer ring
// that sits between the enricher and the batch former. It is hand-rolled
// over sync/atomic rather than taken from an ecosystem library: no lock-free
// MPMC ring exists among the example pack's dependencies, and the Rust
// original (rask-log-forwarder/src/buffer/mod.rs) is explicit that this is
// a lock-free design, so a channel-based substitute would drop the
// documented non-blocking contract of Push. The cell-sequence technique
// below is the standard Vyukov bounded-queue construction, expressed with
// sync/atomic Add/Load/CompareAndSwap calls, as memctl and the parser
// registry's miss counter also use.
package queue

import (
	"sync/atomic"

	"rask-log-stack/pkg/logentry"
)

type cell struct {
	sequence uint64
	data     *logentry.EnrichedEntry
	bytes    int
}

// Metrics is a point-in-time snapshot of queue counters. Pushed counts every
// Push attempt, accepted or not, so that Pushed == Popped + Depth + Dropped
// holds: Dropped is a subset of Pushed, not disjoint from it.
type Metrics struct {
	Capacity int
	Depth    int64
	Pushed   uint64
	Popped   uint64
	Dropped  uint64
	Bytes    int64
}

// Queue is a fixed-capacity ring. Capacity 0 is legal and behaves as
// always-full: every Push returns false. The zero value is not usable;
// construct with New.
type Queue struct {
	buffer   []cell
	capacity uint64

	enqueuePos uint64
	dequeuePos uint64

	pushed  uint64
	popped  uint64
	dropped uint64
	bytes   int64
}

// New builds a ring of the given capacity.
func New(capacity int) *Queue {
	q := &Queue{capacity: uint64(capacity)}
	if capacity <= 0 {
		return q
	}
	q.buffer = make([]cell, capacity)
	for i := range q.buffer {
		q.buffer[i].sequence = uint64(i)
	}
	return q
}

// Push enqueues entry, weighted by byteSize for the bytes gauge. It never
// blocks and never allocates after construction: a full ring (or capacity
// 0) returns false and increments both the pushed (attempt) and dropped
// counters, leaving the caller to apply whatever backpressure policy it
// likes.
func (q *Queue) Push(entry *logentry.EnrichedEntry, byteSize int) bool {
	if q.capacity == 0 {
		atomic.AddUint64(&q.pushed, 1)
		atomic.AddUint64(&q.dropped, 1)
		return false
	}
	for {
		pos := atomic.LoadUint64(&q.enqueuePos)
		c := &q.buffer[pos%q.capacity]
		seq := atomic.LoadUint64(&c.sequence)
		diff := int64(seq) - int64(pos)

		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.enqueuePos, pos, pos+1) {
				c.data = entry
				c.bytes = byteSize
				atomic.StoreUint64(&c.sequence, pos+1)
				atomic.AddUint64(&q.pushed, 1)
				atomic.AddInt64(&q.bytes, int64(byteSize))
				return true
			}
		case diff < 0:
			atomic.AddUint64(&q.pushed, 1)
			atomic.AddUint64(&q.dropped, 1)
			return false
		default:
			pos = atomic.LoadUint64(&q.enqueuePos)
		}
	}
}

// Pop dequeues the oldest entry, or returns nil when empty. Only the
// consumer side returned by Split (or the Queue itself, used directly by a
// single consumer) should call Pop.
func (q *Queue) Pop() (*logentry.EnrichedEntry, int) {
	if q.capacity == 0 {
		return nil, 0
	}
	for {
		pos := atomic.LoadUint64(&q.dequeuePos)
		c := &q.buffer[pos%q.capacity]
		seq := atomic.LoadUint64(&c.sequence)
		diff := int64(seq) - int64(pos+1)

		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.dequeuePos, pos, pos+1) {
				entry := c.data
				size := c.bytes
				c.data = nil
				c.bytes = 0
				atomic.StoreUint64(&c.sequence, pos+q.capacity)
				atomic.AddUint64(&q.popped, 1)
				atomic.AddInt64(&q.bytes, -int64(size))
				return entry, size
			}
		case diff < 0:
			return nil, 0
		default:
			pos = atomic.LoadUint64(&q.dequeuePos)
		}
	}
}

// Sender is the producer half returned by Split: shareable across producer
// goroutines.
type Sender struct{ q *Queue }

func (s *Sender) Push(entry *logentry.EnrichedEntry, byteSize int) bool { return s.q.Push(entry, byteSize) }

// Receiver is the consumer half returned by Split: exclusive to one
// logical consumer (the batch former), per spec.md §4.3's ownership rule.
type Receiver struct{ q *Queue }

func (r *Receiver) Pop() (*logentry.EnrichedEntry, int) { return r.q.Pop() }

// Split returns independent producer/consumer handles over the same ring.
func (q *Queue) Split() (*Sender, *Receiver) {
	return &Sender{q: q}, &Receiver{q: q}
}

// MetricsSnapshot reports the invariant pushed == popped + depth + dropped.
// Depth is ring occupancy, accepted-minus-popped; since pushed counts every
// attempt (accepted and dropped alike), accepted == pushed - dropped, so
// depth == pushed - dropped - popped.
func (q *Queue) MetricsSnapshot() Metrics {
	pushed := atomic.LoadUint64(&q.pushed)
	popped := atomic.LoadUint64(&q.popped)
	dropped := atomic.LoadUint64(&q.dropped)
	depth := int64(pushed) - int64(dropped) - int64(popped)
	if depth < 0 {
		depth = 0
	}
	return Metrics{
		Capacity: int(q.capacity),
		Depth:    depth,
		Pushed:   pushed,
		Popped:   popped,
		Dropped:  dropped,
		Bytes:    atomic.LoadInt64(&q.bytes),
	}
}
