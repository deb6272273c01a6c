// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package driver

import (
	"math"
	"sync/atomic"
)

// DefaultIPD is the interpupillary distance assumed before the runtime
// reports one, in metres.
const DefaultIPD = 0.064

// IPD holds the interpupillary distance. It has a single writer, the event
// drain on the game goroutine, and is read from every stage. The zero value
// reads as DefaultIPD.
type IPD struct {
	bits atomic.Uint32
	set  atomic.Bool
}

// Load returns the current IPD.
func (p *IPD) Load() float32 {
	if !p.set.Load() {
		return DefaultIPD
	}
	return math.Float32frombits(p.bits.Load())
}

// Store sets the IPD. Non-positive and non-finite values are ignored. It
// reports whether the value changed.
func (p *IPD) Store(v float32) bool {
	f := float64(v)
	if v <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	old := p.bits.Swap(math.Float32bits(v))
	wasSet := p.set.Swap(true)
	return !wasSet || old != math.Float32bits(v)
}
