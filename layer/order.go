// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package layer

import (
	"math"
	"slices"
)

// Fixed priority slots.
const (
	EyePriority         int32 = math.MinInt32
	BlackPriority       int32 = 0
	DebugCanvasPriority int32 = math.MaxInt32
)

// SortByID sorts layers ascending by id, in place.
func SortByID(layers []*Layer) {
	slices.SortFunc(layers, func(a, b *Layer) int {
		return cmpID(a.id, b.id)
	})
}

// IsSortedByID reports whether ids strictly ascend.
func IsSortedByID(layers []*Layer) bool {
	for i := 1; i < len(layers); i++ {
		if layers[i-1].id >= layers[i].id {
			return false
		}
	}
	return true
}

// SortForSubmission sorts layers by priority, lowest first, breaking ties by
// ascending id. The sort is stable.
func SortForSubmission(layers []*Layer) {
	slices.SortStableFunc(layers, func(a, b *Layer) int {
		pa, pb := a.Priority(), b.Priority()
		switch {
		case pa < pb:
			return -1
		case pa > pb:
			return 1
		}
		return cmpID(a.id, b.id)
	})
}

func cmpID(a, b ID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// CloneAll clones each layer into a new slice.
func CloneAll(layers []*Layer) []*Layer {
	out := make([]*Layer, len(layers))
	for i, l := range layers {
		out[i] = l.Clone()
	}
	return out
}
