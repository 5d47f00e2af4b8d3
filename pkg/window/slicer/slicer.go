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

// Package slicer maps timestamps to slices and slices to windows. An Assigner is pure and
// holds nothing but the window spec, so it is safe for concurrent use.
package slicer

import (
	"github.com/numaproj/numaslice/pkg/window"
)

// Assigner computes slice bounds and window membership for a window spec.
type Assigner struct {
	size  uint64
	slide uint64
	// rem is size % slide; window ends fall on multiples of slide shifted by rem
	rem   uint64
}

// New returns an assigner for spec. It panics on an invalid spec, which has to be
// validated at setup.
func New(spec window.Spec) *Assigner {
	if err := spec.Validate(); err != nil {
		panic(err)
	}
	return &Assigner{size: spec.Size, slide: spec.Slide, rem: spec.Size % spec.Slide}
}

// Spec returns the window spec.
func (a *Assigner) Spec() window.Spec {
	return window.Spec{Size: a.size, Slide: a.slide}
}

// SliceStart returns the start of the slice containing ts: the later of the last window
// start and the last window end at or before ts.
func (a *Assigner) SliceStart(ts uint64) uint64 {
	lastStart := ts - ts%a.slide
	if ts < a.size {
		// no window has ended yet
		return lastStart
	}
	lastEnd := ts - (ts-a.size)%a.slide
	return max(lastStart, lastEnd)
}

// SliceEnd returns the end of the slice containing ts: the earlier of the next window
// start and the next window end after ts.
func (a *Assigner) SliceEnd(ts uint64) uint64 {
	nextStart := ts + a.slide - ts%a.slide
	nextEnd := a.size
	if ts >= a.size {
		nextEnd = ts + a.slide - (ts-a.size)%a.slide
	}
	return min(nextStart, nextEnd)
}

// Slice returns the bounds of the slice containing ts.
func (a *Assigner) Slice(ts uint64) (start, end uint64) {
	return a.SliceStart(ts), a.SliceEnd(ts)
}

// WindowsForSlice returns, ordered by start, every window that fully contains
// [start, end). The result can be empty when slide > size.
func (a *Assigner) WindowsForSlice(start, end uint64) []window.Info {
	var lo uint64
	if end > a.size {
		lo = end - a.size
	}
	// round up to the next window start
	if r := lo % a.slide; r != 0 {
		lo += a.slide - r
	}
	if lo > start {
		return nil
	}
	windows := make([]window.Info, 0, (start-lo)/a.slide+1)
	for s := lo; s <= start; s += a.slide {
		windows = append(windows, window.Info{Start: s, End: s + a.size})
	}
	return windows
}

// WindowsForTs returns, ordered by start, every window containing ts.
func (a *Assigner) WindowsForTs(ts uint64) []window.Info {
	return a.WindowsForSlice(ts, ts+1)
}

// Index returns the logical index of the slice containing ts in the periodic
// decomposition used by index based stores. The stream is cut at every multiple of slide
// and, when size is not a multiple of slide, additionally at every multiple of slide
// plus size % slide. For ts >= size the decomposition is exactly the one of SliceStart
// and SliceEnd; below size it can be finer, which never makes a slice straddle a window.
func (a *Assigner) Index(ts uint64) uint64 {
	p := ts / a.slide
	if a.rem == 0 {
		return p
	}
	if ts%a.slide >= a.rem {
		return 2*p + 1
	}
	return 2 * p
}

// Bounds returns the interval of the slice with the given logical index.
func (a *Assigner) Bounds(index uint64) (start, end uint64) {
	if a.rem == 0 {
		return index * a.slide, (index + 1) * a.slide
	}
	p := index / 2
	if index%2 == 0 {
		return p * a.slide, p*a.slide + a.rem
	}
	return p*a.slide + a.rem, (p + 1) * a.slide
}
