// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package frame

import (
	"context"
	"sync"
)

// DefaultRefreshRate is assumed when the driver reports none.
const DefaultRefreshRate = 72

// Waiter is the part of the compositor driver that paces frames.
type Waiter interface {
	// WaitFrame blocks until the next display interval opens.
	WaitFrame(ctx context.Context) error
	// PredictedDisplayTime returns the display time, in milliseconds, of the
	// frame the last WaitFrame admitted.
	PredictedDisplayTime() float64
}

// Timeline numbers frames and records which frame number has already
// consumed a display wait. It is shared by the main pipeline and the splash
// producer, which run on different goroutines.
type Timeline struct {
	mu        sync.Mutex
	next      uint64
	waited    uint64
	predicted float64

	// waitMu serializes blocking waits so a frame number is never waited
	// twice.
	waitMu sync.Mutex
}

// NewTimeline returns a timeline whose first frame number is 1.
func NewTimeline() *Timeline {
	return &Timeline{next: 1}
}

// Next returns the number the next frame will get.
func (t *Timeline) Next() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next
}

// Advance moves the next frame number past n. It never moves backwards.
func (t *Timeline) Advance(n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n+1 > t.next {
		t.next = n + 1
	}
}

// Waited returns the highest frame number that consumed a display wait.
func (t *Timeline) Waited() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waited
}

// LastPredicted returns the predicted display time of the last wait.
func (t *Timeline) LastPredicted() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.predicted
}

// PredictNext extrapolates the display time one refresh interval after the
// last prediction. A non-positive rate selects DefaultRefreshRate.
func (t *Timeline) PredictNext(refreshRate float32) float64 {
	if refreshRate <= 0 {
		refreshRate = DefaultRefreshRate
	}
	return t.LastPredicted() + 1000/float64(refreshRate)
}

// WaitFor performs the display wait for frame number n unless that number
// already consumed one. It reports whether this call blocked on w.
func (t *Timeline) WaitFor(ctx context.Context, n uint64, w Waiter) (bool, error) {
	t.waitMu.Lock()
	defer t.waitMu.Unlock()

	if t.Waited() >= n {
		return false, nil
	}
	if err := w.WaitFrame(ctx); err != nil {
		return false, err
	}
	p := w.PredictedDisplayTime()

	t.mu.Lock()
	t.waited = n
	t.predicted = p
	t.mu.Unlock()
	return true, nil
}
