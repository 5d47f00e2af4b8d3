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

package slicer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/numaproj/numaslice/pkg/window"
)

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

var specs = []window.Spec{
	{Size: 10, Slide: 5},
	{Size: 10, Slide: 10},
	{Size: 10, Slide: 3},
	{Size: 10, Slide: 20},
	{Size: 7, Slide: 4},
	{Size: 1, Slide: 1},
	{Size: 60000, Slide: 1000},
}

func TestAssigner_SliceContainsTs(t *testing.T) {
	for _, spec := range specs {
		a := New(spec)
		g := gcd(spec.Size, spec.Slide)
		for ts := uint64(0); ts < 500; ts++ {
			start, end := a.Slice(ts)
			assert.LessOrEqual(t, start, ts, "%s ts %d", spec, ts)
			assert.Less(t, ts, end, "%s ts %d", spec, ts)
			assert.Zero(t, start%g, "%s ts %d", spec, ts)
			assert.Zero(t, end%g, "%s ts %d", spec, ts)
			// every timestamp of the slice maps to the same slice
			s2, e2 := a.Slice(end - 1)
			assert.Equal(t, start, s2)
			assert.Equal(t, end, e2)
		}
	}
}

func TestAssigner_SlicesNeverStraddleWindows(t *testing.T) {
	for _, spec := range specs {
		a := New(spec)
		for ts := uint64(0); ts < 500; ts++ {
			start, end := a.Slice(ts)
			windows := a.WindowsForSlice(start, end)
			assert.Equal(t, a.WindowsForTs(ts), windows, "%s ts %d", spec, ts)
			for _, w := range windows {
				assert.True(t, w.Contains(start, end))
				assert.Equal(t, spec.Size, w.End-w.Start)
				assert.Zero(t, w.Start%spec.Slide)
			}
		}
	}
}

func TestAssigner_Examples(t *testing.T) {
	a := New(window.Spec{Size: 10, Slide: 5})
	start, end := a.Slice(12)
	assert.Equal(t, uint64(10), start)
	assert.Equal(t, uint64(15), end)
	assert.Equal(t, []window.Info{{Start: 5, End: 15}, {Start: 10, End: 20}}, a.WindowsForSlice(10, 15))
	assert.Equal(t, []window.Info{{Start: 0, End: 10}}, a.WindowsForSlice(0, 5))

	gap := New(window.Spec{Size: 10, Slide: 20})
	start, end = gap.Slice(15)
	assert.Equal(t, uint64(10), start)
	assert.Equal(t, uint64(20), end)
	assert.Empty(t, gap.WindowsForSlice(10, 20))
	assert.Equal(t, []window.Info{{Start: 20, End: 30}}, gap.WindowsForSlice(20, 30))
}

func TestAssigner_Tumbling(t *testing.T) {
	a := New(window.Spec{Size: 5, Slide: 5})
	for ts := uint64(0); ts < 100; ts++ {
		start, end := a.Slice(ts)
		assert.Equal(t, []window.Info{{Start: start, End: end}}, a.WindowsForSlice(start, end))
	}
}

func TestAssigner_Index(t *testing.T) {
	for _, spec := range specs {
		a := New(spec)
		var last uint64
		for ts := uint64(0); ts < 500; ts++ {
			idx := a.Index(ts)
			start, end := a.Bounds(idx)
			assert.LessOrEqual(t, start, ts)
			assert.Less(t, ts, end)
			assert.GreaterOrEqual(t, idx, last)
			last = idx
			if ts >= spec.Size {
				s, e := a.Slice(ts)
				assert.Equal(t, s, start, "%s ts %d", spec, ts)
				assert.Equal(t, e, end, "%s ts %d", spec, ts)
			}
			for _, w := range a.WindowsForSlice(start, end) {
				assert.True(t, w.Contains(start, end))
			}
		}
	}
}

func TestNew_InvalidSpec(t *testing.T) {
	assert.Panics(t, func() { New(window.Spec{Size: 10}) })
}
