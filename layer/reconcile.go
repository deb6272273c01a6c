// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package layer

import (
	"fmt"
	"slices"

	"github.com/gogpu/xrbridge/internal/xrlog"
)

// InitFunc gives a layer its GPU resource, reusing prev's when possible.
// prev is nil for a newly added id. It reports success; on failure prev
// must be left untouched.
type InitFunc func(l, prev *Layer) bool

// RetireFunc receives a layer whose resource is no longer referenced by the
// next frame.
type RetireFunc func(old *Layer)

// Reconcile merges the incoming layer snapshot against the layers retained
// from the previous frame and returns the new retained list.
//
// Both lists must ascend by id. The merge walks them with two cursors:
//
//	id only in incoming  -> init(l, nil)
//	id only in retained  -> retire(old)
//	id in both           -> init(l, old); reuse or reallocate
//
// Layers whose init fails are left out of the result. When init fails for an
// id present in both lists, the old layer stays under the cursor and is
// retired on the next step, so every dropped id retires exactly once.
func Reconcile(incoming, retained []*Layer, init InitFunc, retire RetireFunc) []*Layer {
	incoming = ensureSorted("incoming", incoming)
	retained = ensureSorted("retained", retained)

	out := make([]*Layer, 0, len(incoming))
	i, j := 0, 0
	for i < len(incoming) && j < len(retained) {
		n, o := incoming[i], retained[j]
		switch {
		case n.id < o.id:
			if init(n, nil) {
				out = append(out, n)
			}
			i++
		case n.id > o.id:
			retire(o)
			j++
		default:
			i++
			if init(n, o) {
				out = append(out, n)
				j++
			}
		}
	}
	for ; i < len(incoming); i++ {
		if init(incoming[i], nil) {
			out = append(out, incoming[i])
		}
	}
	for ; j < len(retained); j++ {
		retire(retained[j])
	}
	return out
}

// ensureSorted enforces the ascending-id invariant the merge relies on.
// Debug builds panic; release builds log and sort a copy.
func ensureSorted(name string, layers []*Layer) []*Layer {
	if IsSortedByID(layers) {
		return layers
	}
	msg := fmt.Sprintf("layer: %s list not sorted by id", name)
	if debugAssertions {
		panic(msg)
	}
	xrlog.Logger().Error(msg, "count", len(layers))
	sorted := slices.Clone(layers)
	SortByID(sorted)
	return slices.CompactFunc(sorted, func(a, b *Layer) bool { return a.id == b.id })
}
