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

package bucket

import (
	"sort"

	"github.com/numaproj/numaslice/pkg/window"
)

// sortedByStart keeps buckets ordered by start time, lowest first, ties broken by end.
// It is owned by a single goroutine and takes no locks.
type sortedByStart struct {
	buckets []*window.Slice
}

func less(a *window.Slice, start, end uint64) bool {
	if a.Start() != start {
		return a.Start() < start
	}
	return a.End() < end
}

// insert adds a bucket at its sorted position.
func (s *sortedByStart) insert(b *window.Slice) {
	index := sort.Search(len(s.buckets), func(i int) bool {
		return !less(s.buckets[i], b.Start(), b.End())
	})
	// the common case is a bucket later than every other one
	if index == len(s.buckets) {
		s.buckets = append(s.buckets, b)
		return
	}
	s.buckets = append(s.buckets, nil)
	copy(s.buckets[index+1:], s.buckets[index:])
	s.buckets[index] = b
}

// removeEndingBy removes and returns, in start order, every bucket with end <= ts.
func (s *sortedByStart) removeEndingBy(ts uint64) []*window.Slice {
	// nothing at or after this index can end by ts
	limit := sort.Search(len(s.buckets), func(i int) bool {
		return s.buckets[i].Start() >= ts
	})
	var removed []*window.Slice
	kept := s.buckets[:0]
	for i, b := range s.buckets {
		if i < limit && b.End() <= ts {
			removed = append(removed, b)
			continue
		}
		kept = append(kept, b)
	}
	clear(s.buckets[len(kept):])
	s.buckets = kept
	return removed
}

// removeStartingBefore removes and returns, in start order, every bucket with start < ts.
func (s *sortedByStart) removeStartingBefore(ts uint64) []*window.Slice {
	index := sort.Search(len(s.buckets), func(i int) bool {
		return s.buckets[i].Start() >= ts
	})
	removed := make([]*window.Slice, index)
	copy(removed, s.buckets[:index])
	clear(s.buckets[:index])
	s.buckets = s.buckets[index:]
	return removed
}

// within returns, in start order, the buckets lying inside [start, end).
func (s *sortedByStart) within(start, end uint64) []*window.Slice {
	index := sort.Search(len(s.buckets), func(i int) bool {
		return s.buckets[i].Start() >= start
	})
	var out []*window.Slice
	for _, b := range s.buckets[index:] {
		if b.Start() >= end {
			break
		}
		if b.End() <= end {
			out = append(out, b)
		}
	}
	return out
}

func (s *sortedByStart) len() int {
	return len(s.buckets)
}

func (s *sortedByStart) items() []*window.Slice {
	items := make([]*window.Slice, len(s.buckets))
	copy(items, s.buckets)
	return items
}
