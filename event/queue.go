// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package event

import "sync"

// DefaultCapacity is the queue bound used when none is given.
const DefaultCapacity = 64

// Queue is a bounded FIFO of events. Producers never block: when the queue
// is full the oldest event is dropped and counted. The consumer drains it
// once per tick.
//
// Queue is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	buf     []Event
	head    int
	n       int
	dropped uint64
}

// NewQueue creates a queue holding at most capacity events.
// A non-positive capacity selects DefaultCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{buf: make([]Event, capacity)}
}

// Push appends e, evicting the oldest event if the queue is full.
// It reports whether an event was dropped.
func (q *Queue) Push(e Event) bool {
	if e == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := false
	if q.n == len(q.buf) {
		q.buf[q.head] = nil
		q.head = (q.head + 1) % len(q.buf)
		q.n--
		q.dropped++
		dropped = true
	}
	q.buf[(q.head+q.n)%len(q.buf)] = e
	q.n++
	return dropped
}

// Pop removes and returns the oldest event.
func (q *Queue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == 0 {
		return nil, false
	}
	e := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return e, true
}

// Drain removes all queued events and passes them to fn in arrival order.
// Events pushed while fn runs are left for the next Drain.
func (q *Queue) Drain(fn func(Event)) int {
	q.mu.Lock()
	events := make([]Event, q.n)
	for i := range q.n {
		idx := (q.head + i) % len(q.buf)
		events[i] = q.buf[idx]
		q.buf[idx] = nil
	}
	q.head, q.n = 0, 0
	q.mu.Unlock()

	for _, e := range events {
		fn(e)
	}
	return len(events)
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Dropped returns how many events were evicted since creation.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
