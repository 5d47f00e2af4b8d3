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

package window

import (
	"fmt"

	"github.com/numaproj/numaslice/pkg/aggregation"
)

// Slice holds the partial aggregates of the interval [Start, End). A non-keyed slice has
// a single state block; a keyed slice keeps one block per key in an arena that is kept
// across Reset so a reused slice does not allocate in steady state.
//
// State blocks returned by State and Lookup are only valid until the next call that may
// add a key.
type Slice struct {
	start uint64
	end   uint64
	index uint64

	fn    *aggregation.Function
	keyed bool
	size  int

	global  []byte
	touched bool

	keys  []uint64
	slots map[uint64]int
	arena []byte
}

// NewSlice creates an empty slice for [start, end) with the given logical index.
func NewSlice(start, end, index uint64, fn *aggregation.Function, keyed bool) *Slice {
	s := &Slice{
		fn:    fn,
		keyed: keyed,
		size:  fn.StateSize(),
	}
	if keyed {
		s.slots = make(map[uint64]int)
	} else {
		s.global = make([]byte, s.size)
	}
	s.Reset(start, end, index)
	return s
}

// Reset clears every state and assigns new bounds.
func (s *Slice) Reset(start, end, index uint64) {
	if start >= end {
		panic(fmt.Sprintf("window: invalid slice bounds [%d, %d)", start, end))
	}
	s.start, s.end, s.index = start, end, index
	s.touched = false
	if !s.keyed {
		s.fn.Reset(s.global)
		return
	}
	clear(s.slots)
	s.keys = s.keys[:0]
	s.arena = s.arena[:0]
}

func (s *Slice) Start() uint64 { return s.start }

func (s *Slice) End() uint64 { return s.end }

// Index is the logical index of the slice in an index based store.
func (s *Slice) Index() uint64 { return s.index }

func (s *Slice) Keyed() bool { return s.keyed }

// Function returns the aggregation the states are written with.
func (s *Slice) Function() *aggregation.Function { return s.fn }

// Len returns the number of live states.
func (s *Slice) Len() int {
	if s.keyed {
		return len(s.keys)
	}
	if s.touched {
		return 1
	}
	return 0
}

// Empty reports whether no state was written since the last reset.
func (s *Slice) Empty() bool {
	return s.Len() == 0
}

// State returns the state block of key, creating a reset one if needed. The key is ignored
// for non-keyed slices.
func (s *Slice) State(key uint64) []byte {
	if !s.keyed {
		s.touched = true
		return s.global
	}
	if off, ok := s.slots[key]; ok {
		return s.arena[off : off+s.size]
	}
	off := len(s.arena)
	if cap(s.arena)-off < s.size {
		grown := make([]byte, off, 2*cap(s.arena)+s.size)
		copy(grown, s.arena)
		s.arena = grown
	}
	s.arena = s.arena[:off+s.size]
	st := s.arena[off : off+s.size]
	s.fn.Reset(st)
	s.slots[key] = off
	s.keys = append(s.keys, key)
	return st
}

// Lookup returns the state block of key without creating it.
func (s *Slice) Lookup(key uint64) ([]byte, bool) {
	if !s.keyed {
		return s.global, s.touched
	}
	off, ok := s.slots[key]
	if !ok {
		return nil, false
	}
	return s.arena[off : off+s.size], true
}

// Lift folds one raw value into the state of key.
func (s *Slice) Lift(key, raw uint64) {
	s.fn.Lift(s.State(key), raw)
}

// Range calls f for every live state in insertion order until f returns false.
func (s *Slice) Range(f func(key uint64, state []byte) bool) {
	if !s.keyed {
		if s.touched {
			f(0, s.global)
		}
		return
	}
	for _, k := range s.keys {
		off := s.slots[k]
		if !f(k, s.arena[off:off+s.size]) {
			return
		}
	}
}

// Combine merges every state of other into s. Both slices must use the same layout.
func (s *Slice) Combine(other *Slice) {
	if s.keyed != other.keyed {
		panic(fmt.Sprintf("window: combining keyed=%v slice %s into keyed=%v slice %s", other.keyed, other, s.keyed, s))
	}
	if err := s.fn.Layout().Compatible(other.fn.Layout()); err != nil {
		panic(fmt.Sprintf("window: combining %s into %s: %v", other, s, err))
	}
	other.Range(func(key uint64, state []byte) bool {
		s.fn.Combine(s.State(key), state)
		return true
	})
}

// CombineState merges a raw state block written with the same layout into the state of key.
func (s *Slice) CombineState(key uint64, state []byte) {
	s.fn.Combine(s.State(key), state)
}

func (s *Slice) String() string {
	return fmt.Sprintf("slice#%d[%d, %d)", s.index, s.start, s.end)
}
