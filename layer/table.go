// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package layer

import (
	"fmt"
	"slices"
	"sync/atomic"
)

// IDAllocator hands out layer ids. Ids are never reused. Id 0 is reserved
// for the eye layer and never returned by Next.
type IDAllocator struct {
	next atomic.Uint32
}

// NewIDAllocator returns an allocator whose first id is 1.
func NewIDAllocator() *IDAllocator {
	a := &IDAllocator{}
	a.next.Store(1)
	return a
}

// Next returns a fresh id.
func (a *IDAllocator) Next() ID {
	return ID(a.next.Add(1) - 1)
}

// Table is the game-thread collection of layers keyed by id. It is not safe
// for concurrent use; other stages only see the clones from Snapshot.
type Table struct {
	ids    *IDAllocator
	layers map[ID]*Layer
	marked map[ID]bool

	// order caches the ascending id list; nil when stale.
	order []ID
}

// NewTable creates an empty table drawing ids from ids. Passing nil creates
// a private allocator.
func NewTable(ids *IDAllocator) *Table {
	if ids == nil {
		ids = NewIDAllocator()
	}
	return &Table{
		ids:    ids,
		layers: make(map[ID]*Layer),
		marked: make(map[ID]bool),
	}
}

// IDs returns the allocator shared with other layer producers.
func (t *Table) IDs() *IDAllocator { return t.ids }

// CreateEye installs the eye layer under EyeLayerID. It fails if the eye
// layer already exists.
func (t *Table) CreateEye(desc Descriptor) error {
	if _, ok := t.layers[EyeLayerID]; ok {
		return fmt.Errorf("layer: eye layer already created")
	}
	desc = desc.WithFlags(ContinuousUpdate, true)
	desc.Priority = EyePriority
	if desc.Shape == nil {
		desc.Shape = Projection{}
	}
	t.put(New(EyeLayerID, desc, RoleEye))
	return nil
}

// Create adds a layer with a fresh id.
func (t *Table) Create(desc Descriptor, roles Role) ID {
	id := t.ids.Next()
	t.put(New(id, desc, roles))
	return id
}

// Destroy removes id. GPU resources are released by the next render-stage
// reconciliation, not here. It reports whether id existed.
func (t *Table) Destroy(id ID) bool {
	if _, ok := t.layers[id]; !ok {
		return false
	}
	delete(t.layers, id)
	delete(t.marked, id)
	t.order = nil
	return true
}

// SetDescriptor replaces the descriptor of id by installing a modified
// clone. Snapshots already taken keep the old descriptor.
func (t *Table) SetDescriptor(id ID, desc Descriptor) error {
	l, ok := t.layers[id]
	if !ok {
		return fmt.Errorf("layer: set descriptor %d: %w", id, ErrLayerNotFound)
	}
	if l.Is(RoleEye) {
		desc = desc.WithFlags(ContinuousUpdate, true)
		desc.Priority = EyePriority
	}
	t.layers[id] = l.WithDescriptor(desc)
	return nil
}

// Descriptor returns a copy of id's descriptor.
func (t *Table) Descriptor(id ID) (Descriptor, bool) {
	l, ok := t.layers[id]
	if !ok {
		return Descriptor{}, false
	}
	return l.Descriptor(), true
}

// Layer returns the table's entry for id. Callers must not mutate it.
func (t *Table) Layer(id ID) (*Layer, bool) {
	l, ok := t.layers[id]
	return l, ok
}

// MarkTextureForUpdate requests a copy of id's source texture with the next
// snapshot. It reports whether id exists.
func (t *Table) MarkTextureForUpdate(id ID) bool {
	if _, ok := t.layers[id]; !ok {
		return false
	}
	t.marked[id] = true
	return true
}

// Len returns the number of layers.
func (t *Table) Len() int { return len(t.layers) }

// SortedIDs returns all ids in ascending order.
func (t *Table) SortedIDs() []ID {
	if t.order == nil {
		t.order = make([]ID, 0, len(t.layers))
		for id := range t.layers {
			t.order = append(t.order, id)
		}
		slices.Sort(t.order)
	}
	return slices.Clone(t.order)
}

// WithRole returns the ids carrying role r, ascending.
func (t *Table) WithRole(r Role) []ID {
	var out []ID
	for _, id := range t.SortedIDs() {
		if t.layers[id].Is(r) {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot clones every layer in ascending id order for hand-off to the
// render stage. Each clone's update flag is set when the layer updates
// continuously from a valid texture or was marked since the last snapshot.
// Pending marks are consumed.
func (t *Table) Snapshot() []*Layer {
	ids := t.SortedIDs()
	out := make([]*Layer, 0, len(ids))
	for _, id := range ids {
		c := t.layers[id].Clone()
		d := c.desc
		c.updateTexture = t.marked[id] || (d.Has(ContinuousUpdate) && d.Texture != nil)
		out = append(out, c)
	}
	clear(t.marked)
	return out
}

func (t *Table) put(l *Layer) {
	t.layers[l.id] = l
	t.order = nil
}
