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

// Package bucket implements the map backed slice store. Each bucket is one window, so a
// record is lifted into every window that contains it. There is no bound on the number of
// open buckets; memory grows with the number of live windows, but any size to slide
// ratio is cheap.
package bucket

import (
	"github.com/numaproj/numaslice/pkg/aggregation"
	"github.com/numaproj/numaslice/pkg/window"
	"github.com/numaproj/numaslice/pkg/window/slicer"
)

// Store is the bucket store. It is not safe for concurrent use; every worker owns one.
type Store struct {
	assigner *slicer.Assigner
	fn       *aggregation.Function
	keyed    bool

	byBounds     map[window.Info]*window.Slice
	sorted       sortedByStart
	// lowWatermark is the highest timestamp buckets were extracted until
	lowWatermark uint64
	// free holds extracted buckets handed back with Recycle
	free         []*window.Slice
}

// New returns an empty bucket store.
func New(assigner *slicer.Assigner, fn *aggregation.Function, keyed bool) *Store {
	return &Store{
		assigner: assigner,
		fn:       fn,
		keyed:    keyed,
		byBounds: make(map[window.Info]*window.Slice),
	}
}

// FindBucketsByTs returns the buckets of every window containing ts, creating missing
// ones. Timestamps below the low watermark are rejected with a ProcessingError.
func (s *Store) FindBucketsByTs(ts uint64) ([]*window.Slice, error) {
	if ts < s.lowWatermark {
		return nil, &window.ProcessingError{Ts: ts, Floor: s.lowWatermark, Err: window.ErrLateRecord}
	}
	windows := s.assigner.WindowsForTs(ts)
	buckets := make([]*window.Slice, 0, len(windows))
	for _, w := range windows {
		buckets = append(buckets, s.Bucket(w.Start, w.End))
	}
	return buckets, nil
}

// Lift folds raw into the state of key in every bucket containing ts.
func (s *Store) Lift(ts, key, raw uint64) error {
	if ts < s.lowWatermark {
		return &window.ProcessingError{Ts: ts, Floor: s.lowWatermark, Err: window.ErrLateRecord}
	}
	for _, w := range s.assigner.WindowsForTs(ts) {
		s.Bucket(w.Start, w.End).Lift(key, raw)
	}
	return nil
}

// Bucket returns the bucket for [start, end), creating it if needed.
func (s *Store) Bucket(start, end uint64) *window.Slice {
	w := window.Info{Start: start, End: end}
	if b, ok := s.byBounds[w]; ok {
		return b
	}
	var b *window.Slice
	if n := len(s.free); n > 0 {
		b = s.free[n-1]
		s.free = s.free[:n-1]
		b.Reset(start, end, start)
	} else {
		b = window.NewSlice(start, end, start, s.fn, s.keyed)
	}
	s.byBounds[w] = b
	s.sorted.insert(b)
	return b
}

// Lookup returns the bucket for [start, end) if it exists.
func (s *Store) Lookup(start, end uint64) (*window.Slice, bool) {
	b, ok := s.byBounds[window.Info{Start: start, End: end}]
	return b, ok
}

// ExtractBucketsUntilTs removes and returns, in start order, every bucket whose end is
// at or before ts, and raises the low watermark to ts.
func (s *Store) ExtractBucketsUntilTs(ts uint64) []*window.Slice {
	removed := s.sorted.removeEndingBy(ts)
	for _, b := range removed {
		delete(s.byBounds, window.Info{Start: b.Start(), End: b.End()})
	}
	s.lowWatermark = max(s.lowWatermark, ts)
	return removed
}

// ExtractBucketsStartingBefore removes and returns, in start order, every bucket whose
// start is before ts. The low watermark is not changed.
func (s *Store) ExtractBucketsStartingBefore(ts uint64) []*window.Slice {
	removed := s.sorted.removeStartingBefore(ts)
	for _, b := range removed {
		delete(s.byBounds, window.Info{Start: b.Start(), End: b.End()})
	}
	return removed
}

// BucketsWithin returns, in start order, the open buckets lying inside [start, end).
func (s *Store) BucketsWithin(start, end uint64) []*window.Slice {
	return s.sorted.within(start, end)
}

// Recycle hands extracted buckets back for reuse. They must not be used afterwards.
func (s *Store) Recycle(buckets ...*window.Slice) {
	s.free = append(s.free, buckets...)
}

// Buckets returns the open buckets in start order.
func (s *Store) Buckets() []*window.Slice {
	return s.sorted.items()
}

// Len returns the number of open buckets.
func (s *Store) Len() int {
	return s.sorted.len()
}

// LowWatermark returns the lowest timestamp the store accepts.
func (s *Store) LowWatermark() uint64 {
	return s.lowWatermark
}

// Assigner returns the assigner windows are computed with.
func (s *Store) Assigner() *slicer.Assigner {
	return s.assigner
}
