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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/numaslice/pkg/aggregation"
	"github.com/numaproj/numaslice/pkg/tuple"
	"github.com/numaproj/numaslice/pkg/window"
	"github.com/numaproj/numaslice/pkg/window/slicer"
)

func newStore(size, slide uint64) *Store {
	return New(slicer.New(window.Spec{Size: size, Slide: slide}), aggregation.MustNew(aggregation.Sum, tuple.Int64), false)
}

func bounds(buckets []*window.Slice) []window.Info {
	out := make([]window.Info, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, window.Info{Start: b.Start(), End: b.End()})
	}
	return out
}

func TestStore_FindBucketsByTs(t *testing.T) {
	s := newStore(10, 5)
	buckets, err := s.FindBucketsByTs(12)
	require.NoError(t, err)
	assert.Equal(t, []window.Info{{Start: 5, End: 15}, {Start: 10, End: 20}}, bounds(buckets))

	again, err := s.FindBucketsByTs(14)
	require.NoError(t, err)
	// the same objects come back while the buckets are open
	assert.Same(t, buckets[0], again[0])
	assert.Same(t, buckets[1], again[1])
	assert.Equal(t, 2, s.Len())

	buckets, err = s.FindBucketsByTs(3)
	require.NoError(t, err)
	assert.Equal(t, []window.Info{{Start: 0, End: 10}}, bounds(buckets))
	assert.Equal(t, []window.Info{{Start: 0, End: 10}, {Start: 5, End: 15}, {Start: 10, End: 20}}, bounds(s.Buckets()))
}

func TestStore_ExtractBucketsUntilTs(t *testing.T) {
	s := newStore(10, 5)
	for ts := uint64(0); ts < 30; ts++ {
		require.NoError(t, s.Lift(ts, 0, 1))
	}
	assert.Empty(t, s.ExtractBucketsUntilTs(9))
	extracted := s.ExtractBucketsUntilTs(15)
	assert.Equal(t, []window.Info{{Start: 0, End: 10}, {Start: 5, End: 15}}, bounds(extracted))
	fn := extracted[0].Function()
	st, ok := extracted[0].Lookup(0)
	require.True(t, ok)
	assert.Equal(t, int64(10), tuple.BitsInt64(fn.Lower(st)))
	assert.Equal(t, uint64(15), s.LowWatermark())

	_, ok = s.Lookup(0, 10)
	assert.False(t, ok)
	_, ok = s.Lookup(10, 20)
	assert.True(t, ok)

	_, err := s.FindBucketsByTs(14)
	assert.ErrorIs(t, err, window.ErrLateRecord)
	assert.ErrorIs(t, s.Lift(14, 0, 1), window.ErrLateRecord)
	_, err = s.FindBucketsByTs(15)
	assert.NoError(t, err)

	// the low watermark never goes back
	s.ExtractBucketsUntilTs(3)
	assert.Equal(t, uint64(15), s.LowWatermark())
}

func TestStore_MixedLengths(t *testing.T) {
	s := newStore(10, 5)
	long := s.Bucket(0, 20)
	short := s.Bucket(5, 10)
	s.Bucket(10, 15)
	extracted := s.ExtractBucketsUntilTs(15)
	assert.Equal(t, []window.Info{{Start: 5, End: 10}, {Start: 10, End: 15}}, bounds(extracted))
	assert.Same(t, short, extracted[0])
	assert.Equal(t, []*window.Slice{long}, s.Buckets())
}

func TestStore_Recycle(t *testing.T) {
	s := newStore(5, 5)
	require.NoError(t, s.Lift(1, 0, 7))
	extracted := s.ExtractBucketsUntilTs(5)
	require.Len(t, extracted, 1)
	s.Recycle(extracted...)
	buckets, err := s.FindBucketsByTs(6)
	require.NoError(t, err)
	assert.Same(t, extracted[0], buckets[0])
	assert.True(t, buckets[0].Empty())
	assert.Equal(t, uint64(5), buckets[0].Start())
}

func TestStore_NoWindows(t *testing.T) {
	s := newStore(10, 20)
	buckets, err := s.FindBucketsByTs(15)
	require.NoError(t, err)
	assert.Empty(t, buckets)
	assert.Zero(t, s.Len())
}

func TestStore_GlobalQueries(t *testing.T) {
	s := newStore(10, 5)
	for _, b := range [][2]uint64{{0, 5}, {5, 10}, {10, 15}, {15, 20}, {2, 30}} {
		s.Bucket(b[0], b[1])
	}
	assert.Equal(t, []window.Info{{Start: 5, End: 10}, {Start: 10, End: 15}}, bounds(s.BucketsWithin(5, 15)))
	assert.Equal(t, []window.Info{{Start: 0, End: 5}, {Start: 5, End: 10}}, bounds(s.BucketsWithin(0, 10)))

	removed := s.ExtractBucketsStartingBefore(10)
	assert.Equal(t, []window.Info{{Start: 0, End: 5}, {Start: 2, End: 30}, {Start: 5, End: 10}}, bounds(removed))
	assert.Equal(t, 2, s.Len())
	_, ok := s.Lookup(2, 30)
	assert.False(t, ok)
	assert.Zero(t, s.LowWatermark())
}
