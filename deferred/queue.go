// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package deferred holds retired compositor resources until the compositor
// reports that every frame which could reference them has completed.
package deferred

import (
	"sync"

	"github.com/gogpu/xrbridge/internal/xrlog"
	"github.com/gogpu/xrbridge/layer"
)

// Releaser frees a retired resource. layer.Swapchain satisfies it.
type Releaser interface {
	Release()
}

// Entry is a retired resource tagged with the last RHI frame index handed to
// the compositor when it was retired.
type Entry struct {
	Resource  Releaser
	LayerID   layer.ID
	RetiredAt uint64
}

// Queue is the deletion queue. Producers run on the render stage, Drain runs
// on the RHI stage; the queue is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
	freed   uint64
}

// Enqueue adds a retired resource. Nil resources are ignored.
func (q *Queue) Enqueue(e Entry) {
	if e.Resource == nil {
		return
	}
	q.mu.Lock()
	q.entries = append(q.entries, e)
	q.mu.Unlock()
}

// Retire is a convenience for the render stage: it enqueues l's swapchain
// tagged with frame.
func (q *Queue) Retire(l *layer.Layer, frame uint64) {
	if l == nil || l.Swapchain() == nil {
		return
	}
	q.Enqueue(Entry{Resource: l.Swapchain(), LayerID: l.ID(), RetiredAt: frame})
}

// Drain releases every entry retired at or before completed and returns how
// many it released. Entries are released outside the lock.
func (q *Queue) Drain(completed uint64) int {
	q.mu.Lock()
	var ready []Entry
	keep := q.entries[:0]
	for _, e := range q.entries {
		if e.RetiredAt <= completed {
			ready = append(ready, e)
		} else {
			keep = append(keep, e)
		}
	}
	clear(q.entries[len(keep):])
	q.entries = keep
	q.freed += uint64(len(ready))
	q.mu.Unlock()

	for _, e := range ready {
		e.Resource.Release()
	}
	if len(ready) > 0 {
		xrlog.Logger().Debug("deferred: released", "count", len(ready), "completed", completed)
	}
	return len(ready)
}

// ReleaseAll releases everything regardless of completion. Used at shutdown
// after the compositor has stopped.
func (q *Queue) ReleaseAll() int {
	q.mu.Lock()
	all := q.entries
	q.entries = nil
	q.freed += uint64(len(all))
	q.mu.Unlock()

	for _, e := range all {
		e.Resource.Release()
	}
	return len(all)
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Entries returns a copy of the pending entries in FIFO order.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Entry(nil), q.entries...)
}

// Released returns the total number of entries released.
func (q *Queue) Released() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.freed
}
