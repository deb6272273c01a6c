// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package stage provides serialized execution contexts for the render and
// RHI stages of the frame pipeline.
//
// Each executor runs at most one task at a time, in submission order.
// Submission never waits for the task to run.
package stage

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Executor runs submitted tasks one at a time in FIFO order.
type Executor interface {
	// Submit enqueues fn. It returns false if the executor is closed.
	Submit(fn func()) bool

	// Flush blocks until every task submitted before the call has run.
	Flush()

	// Close stops accepting work, runs what is queued, and releases the
	// executor. Safe to call more than once.
	Close()
}

// DefaultQueueSize is the task buffer of a Loop. A full buffer applies
// backpressure to the submitter.
const DefaultQueueSize = 16

// Loop is an Executor backed by a single goroutine.
type Loop struct {
	name  string
	queue chan func()
	done  chan struct{}
	wg    sync.WaitGroup

	// running indicates whether the loop is accepting work.
	running atomic.Bool

	// closeMu orders Close against in-flight Submit calls so the queue is
	// never sent to after it has been drained.
	closeMu sync.RWMutex

	lockThread bool
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithQueueSize sets the task buffer length.
func WithQueueSize(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.queue = make(chan func(), n)
		}
	}
}

// WithLockedThread pins the loop goroutine to one OS thread, for graphics
// APIs that require thread affinity.
func WithLockedThread() LoopOption {
	return func(l *Loop) { l.lockThread = true }
}

// NewLoop starts a named executor goroutine.
func NewLoop(name string, opts ...LoopOption) *Loop {
	l := &Loop{
		name:  name,
		queue: make(chan func(), DefaultQueueSize),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.running.Store(true)
	l.wg.Add(1)
	go l.run()
	return l
}

// Name returns the executor name given at construction.
func (l *Loop) Name() string { return l.name }

func (l *Loop) run() {
	defer l.wg.Done()
	if l.lockThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	for {
		select {
		case <-l.done:
			l.drainQueue()
			return
		case fn := <-l.queue:
			if fn != nil {
				fn()
			}
		}
	}
}

// drainQueue executes all remaining work in the queue.
func (l *Loop) drainQueue() {
	for {
		select {
		case fn := <-l.queue:
			if fn != nil {
				fn()
			}
		default:
			return
		}
	}
}

// Submit enqueues fn for execution on the loop goroutine.
func (l *Loop) Submit(fn func()) bool {
	if fn == nil {
		return false
	}
	l.closeMu.RLock()
	defer l.closeMu.RUnlock()
	if !l.running.Load() {
		return false
	}
	l.queue <- fn
	return true
}

// Flush waits for all previously submitted tasks. Calling Flush from the
// loop goroutine itself would deadlock and is not allowed.
func (l *Loop) Flush() {
	ch := make(chan struct{})
	if !l.Submit(func() { close(ch) }) {
		return
	}
	<-ch
}

// Close stops the loop after running queued tasks.
func (l *Loop) Close() {
	l.closeMu.Lock()
	if !l.running.Swap(false) {
		l.closeMu.Unlock()
		return
	}
	close(l.done)
	l.closeMu.Unlock()
	l.wg.Wait()
}

// Manual is an Executor that only runs tasks when told to. It gives tests a
// deterministic single-threaded schedule across several stages.
type Manual struct {
	mu      sync.Mutex
	pending []func()
	closed  bool
}

// NewManual returns an empty manual executor.
func NewManual() *Manual { return &Manual{} }

// Submit queues fn.
func (m *Manual) Submit(fn func()) bool {
	if fn == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.pending = append(m.pending, fn)
	return true
}

// Len reports the number of queued tasks.
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// RunOne runs the oldest queued task. It reports whether a task ran.
func (m *Manual) RunOne() bool {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return false
	}
	fn := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()
	fn()
	return true
}

// RunPending runs queued tasks, including ones they enqueue, until empty.
// It returns the number of tasks run.
func (m *Manual) RunPending() int {
	n := 0
	for m.RunOne() {
		n++
	}
	return n
}

// Flush runs everything queued.
func (m *Manual) Flush() { m.RunPending() }

// Close runs what is queued and rejects further work.
func (m *Manual) Close() {
	m.RunPending()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}
