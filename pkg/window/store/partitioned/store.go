/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package partitioned implements the array backed slice store: a fixed ring of slices,
// addressed by logical slice index modulo the capacity. Slots are reset, never
// reallocated, when a new logical slice takes them over, so steady state operation does
// not allocate. The price is a hard bound on the number of simultaneously open slices.
package partitioned

import (
	"fmt"

	"github.com/numaproj/numaslice/pkg/aggregation"
	"github.com/numaproj/numaslice/pkg/window"
	"github.com/numaproj/numaslice/pkg/window/slicer"
)

type ringState int

const (
	// empty means no slice is open; floor is the lowest index still accepted
	empty ringState = iota
	// occupied means slices floor .. floor+count-1 are open
	occupied
)

// Store is the ring store. It is not safe for concurrent use; every worker owns one.
type Store struct {
	assigner *slicer.Assigner
	slots    []*window.Slice
	opts     *options

	state    ringState
	floor    uint64
	count    uint64
	// anchored is set once the floor was fixed by the first slice or a flush
	anchored bool
}

// New returns a ring of capacity slices.
func New(assigner *slicer.Assigner, fn *aggregation.Function, keyed bool, capacity int, opts ...Option) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid slice store capacity %d", capacity)
	}
	o := &options{slack: uint64(capacity / 4)}
	for _, opt := range opts {
		opt(o)
	}
	if o.slack >= uint64(capacity) {
		return nil, fmt.Errorf("slack %d must be below the capacity %d", o.slack, capacity)
	}
	s := &Store{
		assigner: assigner,
		slots:    make([]*window.Slice, capacity),
		opts:     o,
	}
	for i := range s.slots {
		start, end := assigner.Bounds(uint64(i))
		s.slots[i] = window.NewSlice(start, end, uint64(i), fn, keyed)
	}
	return s, nil
}

func (s *Store) capacity() uint64 {
	return uint64(len(s.slots))
}

// Slice returns the slice with the given logical index, opening it and every slice
// between the last open one and it. It fails with a ProcessingError when the index is
// below the floor or the ring cannot hold it without dropping first slices.
func (s *Store) Slice(index uint64) (*window.Slice, error) {
	if !s.anchored {
		// the first slice of the stream sets the floor, leaving room for slack
		s.floor = index - min(index, s.opts.slack)
		s.anchored = true
	}
	if index < s.floor {
		return nil, s.errorFor(index, window.ErrLateRecord)
	}
	if index >= s.floor+s.capacity() {
		return nil, s.errorFor(index, window.ErrStoreFull)
	}
	if s.state == empty {
		s.state = occupied
		s.count = 0
	}
	for next := s.floor + s.count; next <= index; next++ {
		start, end := s.assigner.Bounds(next)
		s.slots[next%s.capacity()].Reset(start, end, next)
		s.count++
	}
	return s.slots[index%s.capacity()], nil
}

func (s *Store) errorFor(index uint64, err error) error {
	ts, _ := s.assigner.Bounds(index)
	floor, _ := s.assigner.Bounds(s.floor)
	return &window.ProcessingError{Ts: ts, Index: index, Floor: floor, Err: err}
}

// SliceByTs returns the slice containing ts.
func (s *Store) SliceByTs(ts uint64) (*window.Slice, error) {
	sl, err := s.Slice(s.assigner.Index(ts))
	if pe, ok := err.(*window.ProcessingError); ok {
		pe.Ts = ts
	}
	return sl, err
}

// Lift folds raw into the state of key in the slice containing ts.
func (s *Store) Lift(ts, key, raw uint64) error {
	sl, err := s.SliceByTs(ts)
	if err != nil {
		return err
	}
	sl.Lift(key, raw)
	return nil
}

// FirstSlice returns the open slice at the floor.
func (s *Store) FirstSlice() (*window.Slice, bool) {
	if s.state == empty {
		return nil, false
	}
	return s.slots[s.floor%s.capacity()], true
}

// DropFirstSlice advances the floor by one slice and returns the slice that was at the
// floor if it was open. The returned slice stays valid until the ring reuses its slot.
func (s *Store) DropFirstSlice() (*window.Slice, bool) {
	first, ok := s.FirstSlice()
	s.floor++
	s.anchored = true
	if ok {
		s.count--
		if s.count == 0 {
			s.state = empty
		}
	}
	return first, ok
}

// ExtractSlicesUntilTs drops and returns, in index order, every open slice ending at or
// before ts; afterwards the floor is at least the slice containing ts. The returned
// slices stay valid until the next call to Slice.
func (s *Store) ExtractSlicesUntilTs(ts uint64) []*window.Slice {
	var out []*window.Slice
	for s.state == occupied {
		if _, end := s.assigner.Bounds(s.floor); end > ts {
			break
		}
		sl, _ := s.DropFirstSlice()
		out = append(out, sl)
	}
	if idx := s.assigner.Index(ts); idx > s.floor {
		// nothing open below idx remains
		s.floor = idx
	}
	s.anchored = true
	return out
}

// DropSlicesBefore raises the floor to index and returns, in index order, the open slices
// it dropped. It makes room for index+capacity-1 when the ring is full. The returned
// slices stay valid until the next call to Slice.
func (s *Store) DropSlicesBefore(index uint64) []*window.Slice {
	var out []*window.Slice
	for s.state == occupied && s.floor < index {
		sl, _ := s.DropFirstSlice()
		out = append(out, sl)
	}
	if s.floor < index {
		s.floor = index
	}
	s.anchored = true
	return out
}

// Floor returns the lowest logical index still accepted.
func (s *Store) Floor() uint64 {
	return s.floor
}

// Len returns the number of open slices.
func (s *Store) Len() int {
	if s.state == empty {
		return 0
	}
	return int(s.count)
}

// Empty reports whether no slice is open.
func (s *Store) Empty() bool {
	return s.state == empty
}

// Capacity returns the number of slots of the ring.
func (s *Store) Capacity() int {
	return len(s.slots)
}

// Slices returns the open slices in index order.
func (s *Store) Slices() []*window.Slice {
	out := make([]*window.Slice, 0, s.Len())
	for i := uint64(0); i < uint64(s.Len()); i++ {
		out = append(out, s.slots[(s.floor+i)%s.capacity()])
	}
	return out
}

// Assigner returns the assigner slices are computed with.
func (s *Store) Assigner() *slicer.Assigner {
	return s.assigner
}
